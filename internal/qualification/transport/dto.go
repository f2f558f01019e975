package transport

import (
	"time"

	"lead_cadence_backend/internal/qualification/domain"

	"github.com/google/uuid"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// SubmitQualificationRequest carries a questionnaire response. Values are a
// string for single-choice and text questions, a list for multi-select.
type SubmitQualificationRequest struct {
	Answers domain.Answers `json:"answers" validate:"required,min=1"`
}

// OverrideClassificationRequest sets a manual tier on the active qualification.
type OverrideClassificationRequest struct {
	Classification string `json:"classification" validate:"required,max=64"`
	Reason         string `json:"reason" validate:"required,min=3,max=500"`
}

// RecordAttemptRequest records an outreach attempt. OccurredAt defaults to now
// and may not be in the future.
type RecordAttemptRequest struct {
	Outcome    string     `json:"outcome" validate:"omitempty,oneof=attempted succeeded failed"`
	OccurredAt *time.Time `json:"occurredAt"`
}

// UpdateStrategyRequest is a partial cadence strategy update.
type UpdateStrategyRequest struct {
	InitialWaitDays    *int  `json:"initialWaitDays" validate:"omitempty,min=0,max=365"`
	CooldownHours      *int  `json:"cooldownHours" validate:"omitempty,min=0,max=8760"`
	MaxSessionsPerWeek *int  `json:"maxSessionsPerWeek" validate:"omitempty,min=0,max=100"`
	Enabled            *bool `json:"enabled"`
}

// Patch converts the request into a domain patch.
func (r UpdateStrategyRequest) Patch() domain.StrategyPatch {
	return domain.StrategyPatch{
		InitialWaitDays:    r.InitialWaitDays,
		CooldownHours:      r.CooldownHours,
		MaxSessionsPerWeek: r.MaxSessionsPerWeek,
		Enabled:            r.Enabled,
	}
}

// ListQuery is the pagination query for history endpoints.
type ListQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=200"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// OverrideResponse describes a manual classification.
type OverrideResponse struct {
	Classification string     `json:"classification"`
	Reason         string     `json:"reason,omitempty"`
	OverriddenBy   *uuid.UUID `json:"overriddenBy,omitempty"`
	OverriddenAt   *time.Time `json:"overriddenAt,omitempty"`
}

// QualificationResponse is a stored qualification.
type QualificationResponse struct {
	ID                      uuid.UUID           `json:"id"`
	LeadID                  uuid.UUID           `json:"leadId"`
	Score                   int                 `json:"score"`
	Classification          string              `json:"classification"`
	EffectiveClassification string              `json:"effectiveClassification"`
	Override                *OverrideResponse   `json:"override,omitempty"`
	Answers                 domain.Answers      `json:"answers"`
	Factors                 map[string]float64  `json:"factors"`
	UnknownChoices          map[string][]string `json:"unknownChoices,omitempty"`
	ScoringVersion          string              `json:"scoringVersion"`
	CreatedAt               time.Time           `json:"createdAt"`
	QualifiedAt             time.Time           `json:"qualifiedAt"`
	SupersededAt            *time.Time          `json:"supersededAt,omitempty"`
	SupersededBy            *uuid.UUID          `json:"supersededBy,omitempty"`
}

// RescoreResponse reports the active qualification after a rescore.
type RescoreResponse struct {
	Changed       bool                  `json:"changed"`
	Qualification QualificationResponse `json:"qualification"`
}

// EligibilityResponse is a cadence decision.
type EligibilityResponse struct {
	Eligible       bool       `json:"eligible"`
	NextEligibleAt *time.Time `json:"nextEligibleAt"`
	BlockedBy      []string   `json:"blockedBy"`
	Category       string     `json:"category"`
	WindowCount    int        `json:"windowCount"`
	EvaluatedAt    time.Time  `json:"evaluatedAt"`
}

// AttemptResponse is a recorded outreach attempt.
type AttemptResponse struct {
	ID         uuid.UUID `json:"id"`
	LeadID     uuid.UUID `json:"leadId"`
	OccurredAt time.Time `json:"occurredAt"`
	Outcome    string    `json:"outcome"`
	CreatedAt  time.Time `json:"createdAt"`
}

// StrategyResponse is a cadence strategy.
type StrategyResponse struct {
	Category           string     `json:"category"`
	InitialWaitDays    int        `json:"initialWaitDays"`
	CooldownHours      int        `json:"cooldownHours"`
	MaxSessionsPerWeek int        `json:"maxSessionsPerWeek"`
	Enabled            bool       `json:"enabled"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

// ── Mapping ───────────────────────────────────────────────────────────────────

func ToQualificationResponse(rec domain.Record) QualificationResponse {
	resp := QualificationResponse{
		ID:                      rec.ID,
		LeadID:                  rec.LeadID,
		Score:                   rec.Score,
		Classification:          string(rec.Classification),
		EffectiveClassification: string(rec.EffectiveClassification()),
		Answers:                 rec.Answers,
		Factors:                 rec.Factors,
		UnknownChoices:          rec.UnknownChoices,
		ScoringVersion:          rec.ScoringVersion,
		CreatedAt:               rec.CreatedAt,
		QualifiedAt:             rec.QualifiedAt,
		SupersededAt:            rec.SupersededAt,
		SupersededBy:            rec.SupersededBy,
	}
	if rec.ClassificationOverride != nil {
		override := &OverrideResponse{
			Classification: string(*rec.ClassificationOverride),
			OverriddenBy:   rec.OverriddenBy,
			OverriddenAt:   rec.OverriddenAt,
		}
		if rec.OverrideReason != nil {
			override.Reason = *rec.OverrideReason
		}
		resp.Override = override
	}
	return resp
}

func ToQualificationResponses(records []domain.Record) []QualificationResponse {
	out := make([]QualificationResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, ToQualificationResponse(rec))
	}
	return out
}

func ToEligibilityResponse(d domain.Decision, category domain.Tier, now time.Time) EligibilityResponse {
	return EligibilityResponse{
		Eligible:       d.Eligible,
		NextEligibleAt: d.NextEligibleAt,
		BlockedBy:      d.ReasonStrings(),
		Category:       string(category),
		WindowCount:    d.WindowCount,
		EvaluatedAt:    now,
	}
}

func ToAttemptResponse(a domain.OutreachAttempt) AttemptResponse {
	return AttemptResponse{
		ID:         a.ID,
		LeadID:     a.LeadID,
		OccurredAt: a.OccurredAt,
		Outcome:    string(a.Outcome),
		CreatedAt:  a.CreatedAt,
	}
}

func ToAttemptResponses(attempts []domain.OutreachAttempt) []AttemptResponse {
	out := make([]AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, ToAttemptResponse(a))
	}
	return out
}

func ToStrategyResponse(s domain.CadenceStrategy) StrategyResponse {
	resp := StrategyResponse{
		Category:           string(s.Category),
		InitialWaitDays:    s.InitialWaitDays,
		CooldownHours:      s.CooldownHours,
		MaxSessionsPerWeek: s.MaxSessionsPerWeek,
		Enabled:            s.Enabled,
	}
	if !s.UpdatedAt.IsZero() {
		updated := s.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

func ToStrategyResponses(strategies []domain.CadenceStrategy) []StrategyResponse {
	out := make([]StrategyResponse, 0, len(strategies))
	for _, s := range strategies {
		out = append(out, ToStrategyResponse(s))
	}
	return out
}
