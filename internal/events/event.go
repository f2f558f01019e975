// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"lead_cadence_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewBaseEventAt = events.NewBaseEventAt
)

// =============================================================================
// Qualification Domain Events
// =============================================================================

// LeadQualificationSubmitted is published after a questionnaire response has been
// scored, classified and persisted as the lead's active qualification.
type LeadQualificationSubmitted struct {
	BaseEvent
	RecordID       uuid.UUID  `json:"recordId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	LeadID         uuid.UUID  `json:"leadId"`
	Score          int        `json:"score"`
	Classification string     `json:"classification"`
	SupersededID   *uuid.UUID `json:"supersededId,omitempty"`
	ScoringVersion string     `json:"scoringVersion"`
}

func (e LeadQualificationSubmitted) EventName() string { return "qualification.submitted" }

// LeadClassificationOverridden is published when a user sets or clears a manual tier.
type LeadClassificationOverridden struct {
	BaseEvent
	RecordID       uuid.UUID  `json:"recordId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	LeadID         uuid.UUID  `json:"leadId"`
	Classification string     `json:"classification"`
	Override       *string    `json:"override,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	ActorID        *uuid.UUID `json:"actorId,omitempty"`
}

func (e LeadClassificationOverridden) EventName() string {
	return "qualification.classification_overridden"
}

// =============================================================================
// Outreach Cadence Events
// =============================================================================

// OutreachAttemptRecorded is published after an attempt is appended to the log.
type OutreachAttemptRecorded struct {
	BaseEvent
	AttemptID      uuid.UUID `json:"attemptId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	LeadID         uuid.UUID `json:"leadId"`
	Outcome        string    `json:"outcome"`
	AttemptedAt    time.Time `json:"attemptedAt"`
}

func (e OutreachAttemptRecorded) EventName() string { return "outreach.attempt_recorded" }

// OutreachOveradmitted is published when concurrent recordings pushed a lead's
// rolling window past the weekly cap.
type OutreachOveradmitted struct {
	BaseEvent
	OrganizationID     uuid.UUID `json:"organizationId"`
	LeadID             uuid.UUID `json:"leadId"`
	Category           string    `json:"category"`
	WindowCount        int       `json:"windowCount"`
	MaxSessionsPerWeek int       `json:"maxSessionsPerWeek"`
}

func (e OutreachOveradmitted) EventName() string { return "outreach.overadmitted" }

// OutreachEligible is published by the recheck worker once a previously blocked
// lead may be contacted again.
type OutreachEligible struct {
	BaseEvent
	OrganizationID uuid.UUID `json:"organizationId"`
	LeadID         uuid.UUID `json:"leadId"`
	Category       string    `json:"category"`
}

func (e OutreachEligible) EventName() string { return "outreach.eligible" }

// CadenceStrategyUpdated is published after an administrator changes a strategy.
type CadenceStrategyUpdated struct {
	BaseEvent
	Category           string     `json:"category"`
	InitialWaitDays    int        `json:"initialWaitDays"`
	CooldownHours      int        `json:"cooldownHours"`
	MaxSessionsPerWeek int        `json:"maxSessionsPerWeek"`
	Enabled            bool       `json:"enabled"`
	ActorID            *uuid.UUID `json:"actorId,omitempty"`
}

func (e CadenceStrategyUpdated) EventName() string { return "cadence.strategy_updated" }
