package domain

import (
	"fmt"
	"sort"
	"time"

	"lead_cadence_backend/platform/apperr"
)

// CadenceWindow is the rolling window the weekly cap is counted over.
const CadenceWindow = 7 * 24 * time.Hour

// CadenceStrategy is the outreach rule set for one classification category.
type CadenceStrategy struct {
	Category           Tier      `yaml:"category" json:"category"`
	InitialWaitDays    int       `yaml:"initialWaitDays" json:"initialWaitDays"`
	CooldownHours      int       `yaml:"cooldownHours" json:"cooldownHours"`
	MaxSessionsPerWeek int       `yaml:"maxSessionsPerWeek" json:"maxSessionsPerWeek"`
	Enabled            bool      `yaml:"enabled" json:"enabled"`
	UpdatedAt          time.Time `yaml:"-" json:"updatedAt"`
}

// SafeDefaultStrategy is what a category without a stored row behaves like:
// disabled, so no outreach happens until someone configures it.
func SafeDefaultStrategy(category Tier) CadenceStrategy {
	return CadenceStrategy{Category: category}
}

// Validate checks the numeric fields.
func (s CadenceStrategy) Validate() error {
	bad := map[string]int{}
	if s.InitialWaitDays < 0 {
		bad["initialWaitDays"] = s.InitialWaitDays
	}
	if s.CooldownHours < 0 {
		bad["cooldownHours"] = s.CooldownHours
	}
	if s.MaxSessionsPerWeek < 0 {
		bad["maxSessionsPerWeek"] = s.MaxSessionsPerWeek
	}
	if len(bad) > 0 {
		return apperr.Validation(fmt.Sprintf("cadence strategy %q has negative values", s.Category)).WithDetails(bad)
	}
	return nil
}

// StrategyPatch is a partial update; nil fields keep their current value.
type StrategyPatch struct {
	InitialWaitDays    *int  `json:"initialWaitDays,omitempty"`
	CooldownHours      *int  `json:"cooldownHours,omitempty"`
	MaxSessionsPerWeek *int  `json:"maxSessionsPerWeek,omitempty"`
	Enabled            *bool `json:"enabled,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p StrategyPatch) IsEmpty() bool {
	return p.InitialWaitDays == nil && p.CooldownHours == nil && p.MaxSessionsPerWeek == nil && p.Enabled == nil
}

// Apply merges the patch onto current.
func (p StrategyPatch) Apply(current CadenceStrategy) CadenceStrategy {
	next := current
	if p.InitialWaitDays != nil {
		next.InitialWaitDays = *p.InitialWaitDays
	}
	if p.CooldownHours != nil {
		next.CooldownHours = *p.CooldownHours
	}
	if p.MaxSessionsPerWeek != nil {
		next.MaxSessionsPerWeek = *p.MaxSessionsPerWeek
	}
	if p.Enabled != nil {
		next.Enabled = *p.Enabled
	}
	return next
}

// Reason names the rule that blocked outreach.
type Reason string

const (
	ReasonDisabled    Reason = "disabled"
	ReasonInitialWait Reason = "initial_wait"
	ReasonCooldown    Reason = "cooldown"
	ReasonWeeklyCap   Reason = "weekly_cap"
)

// Decision answers "may this lead be contacted now?".
// A blocked decision with a nil NextEligibleAt means never under the
// current strategy.
type Decision struct {
	Eligible       bool       `json:"eligible"`
	NextEligibleAt *time.Time `json:"nextEligibleAt"`
	BlockedBy      []Reason   `json:"blockedBy,omitempty"`
	WindowCount    int        `json:"windowCount"`
}

// ReasonStrings returns BlockedBy as plain strings.
func (d Decision) ReasonStrings() []string {
	out := make([]string, len(d.BlockedBy))
	for i, r := range d.BlockedBy {
		out[i] = string(r)
	}
	return out
}

// EvaluateCadence applies a strategy to a lead's attempt history at now.
// lastAttempt is the most recent attempt regardless of age; windowAttempts may
// contain anything and is filtered to (now-7d, now]. The initial wait, cooldown
// and weekly cap are evaluated independently and the latest unblock time wins.
func EvaluateCadence(strategy CadenceStrategy, qualifiedAt time.Time, lastAttempt *time.Time, windowAttempts []time.Time, now time.Time) Decision {
	inWindow := attemptsInWindow(windowAttempts, now)
	decision := Decision{WindowCount: len(inWindow)}

	if !strategy.Enabled {
		decision.BlockedBy = []Reason{ReasonDisabled}
		return decision
	}

	var (
		latest  time.Time
		forever bool
	)
	block := func(reason Reason, until *time.Time) {
		decision.BlockedBy = append(decision.BlockedBy, reason)
		if until == nil {
			forever = true
			return
		}
		if until.After(latest) {
			latest = *until
		}
	}

	if strategy.InitialWaitDays > 0 {
		until := qualifiedAt.Add(time.Duration(strategy.InitialWaitDays) * 24 * time.Hour)
		if now.Before(until) {
			block(ReasonInitialWait, &until)
		}
	}

	if lastAttempt != nil && strategy.CooldownHours > 0 {
		until := lastAttempt.Add(time.Duration(strategy.CooldownHours) * time.Hour)
		if now.Before(until) {
			block(ReasonCooldown, &until)
		}
	}

	if count := len(inWindow); count >= strategy.MaxSessionsPerWeek {
		if strategy.MaxSessionsPerWeek == 0 {
			block(ReasonWeeklyCap, nil)
		} else {
			// Enough attempts must age out to bring the count below the cap.
			until := inWindow[count-strategy.MaxSessionsPerWeek].Add(CadenceWindow)
			block(ReasonWeeklyCap, &until)
		}
	}

	if len(decision.BlockedBy) == 0 {
		decision.Eligible = true
		return decision
	}
	if !forever {
		decision.NextEligibleAt = &latest
	}
	return decision
}

// attemptsInWindow returns the attempts in (now-7d, now], oldest first.
func attemptsInWindow(attempts []time.Time, now time.Time) []time.Time {
	start := now.Add(-CadenceWindow)
	out := make([]time.Time, 0, len(attempts))
	for _, at := range attempts {
		if at.After(start) && !at.After(now) {
			out = append(out, at)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
