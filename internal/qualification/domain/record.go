package domain

import (
	"time"

	"lead_cadence_backend/platform/apperr"

	"github.com/google/uuid"
)

// Record is one scored questionnaire response for a lead. The active record is
// the one with a nil SupersededAt; older ones are kept for audit.
type Record struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
	Answers        Answers
	Score          int
	// Classification is always the policy's tier for Score.
	Classification Tier
	Factors        map[string]float64
	UnknownChoices map[string][]string
	ScoringVersion string

	ClassificationOverride *Tier
	OverrideReason         *string
	OverriddenBy           *uuid.UUID
	OverriddenAt           *time.Time

	CreatedAt time.Time
	// QualifiedAt is when the lead was first qualified with these answers. A
	// rescore keeps it, so the initial wait is not restarted; a new submission
	// sets it to CreatedAt.
	QualifiedAt  time.Time
	SupersededAt *time.Time
	SupersededBy *uuid.UUID
}

// EffectiveClassification is the override when present, otherwise the derived tier.
func (r Record) EffectiveClassification() Tier {
	if r.ClassificationOverride != nil {
		return *r.ClassificationOverride
	}
	return r.Classification
}

// CarryForward copies what a rescore must not lose onto next: the manual
// override and the original qualification time.
func (r Record) CarryForward(next Record) Record {
	next.QualifiedAt = r.QualifiedAt
	if next.QualifiedAt.IsZero() {
		next.QualifiedAt = r.CreatedAt
	}
	next.ClassificationOverride = r.ClassificationOverride
	next.OverrideReason = r.OverrideReason
	next.OverriddenBy = r.OverriddenBy
	next.OverriddenAt = r.OverriddenAt
	return next
}

// IsActive reports whether the record has not been superseded.
func (r Record) IsActive() bool {
	return r.SupersededAt == nil
}

// Outcome is the result an outreach attempt reported.
type Outcome string

const (
	OutcomeAttempted Outcome = "attempted"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// ParseOutcome validates an outcome; empty defaults to attempted.
func ParseOutcome(value string) (Outcome, error) {
	switch Outcome(value) {
	case "":
		return OutcomeAttempted, nil
	case OutcomeAttempted, OutcomeSucceeded, OutcomeFailed:
		return Outcome(value), nil
	default:
		return "", apperr.Validation("outcome must be one of attempted, succeeded, failed").
			WithDetails(map[string]string{"outcome": value})
	}
}

// OutreachAttempt is an entry in a lead's append-only attempt log.
// Every outcome counts toward the weekly cap.
type OutreachAttempt struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organizationId"`
	LeadID         uuid.UUID `json:"leadId"`
	OccurredAt     time.Time `json:"occurredAt"`
	Outcome        Outcome   `json:"outcome"`
	CreatedAt      time.Time `json:"createdAt"`
}
