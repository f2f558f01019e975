package repository

import (
	"context"
	"time"

	"lead_cadence_backend/internal/qualification/domain"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// RecordReader provides read-only access to qualification records.
type RecordReader interface {
	GetActive(ctx context.Context, organizationID, leadID uuid.UUID) (domain.Record, error)
	GetByID(ctx context.Context, organizationID, id uuid.UUID) (domain.Record, error)
	ListHistory(ctx context.Context, organizationID, leadID uuid.UUID, limit int) ([]domain.Record, error)
}

// RecordWriter persists qualification records.
type RecordWriter interface {
	// Supersede stores rec as the lead's active record and marks the previous
	// active record (if any) as superseded, atomically.
	Supersede(ctx context.Context, rec domain.Record) (domain.Record, *uuid.UUID, error)
	SetOverride(ctx context.Context, params OverrideParams) (domain.Record, error)
}

// RecordStore is the full record repository.
type RecordStore interface {
	RecordReader
	RecordWriter
}

// AttemptLog is the append-only outreach attempt log for leads.
type AttemptLog interface {
	Append(ctx context.Context, attempt domain.OutreachAttempt) (domain.OutreachAttempt, error)
	// Latest returns the most recent attempt time, or nil when there is none.
	Latest(ctx context.Context, organizationID, leadID uuid.UUID) (*time.Time, error)
	// ListWindow returns attempt times in (from, to], oldest first.
	ListWindow(ctx context.Context, organizationID, leadID uuid.UUID, from, to time.Time) ([]time.Time, error)
	// CountWindow counts attempts in (from, to].
	CountWindow(ctx context.Context, organizationID, leadID uuid.UUID, from, to time.Time) (int, error)
	List(ctx context.Context, organizationID, leadID uuid.UUID, limit int) ([]domain.OutreachAttempt, error)
}

// LeadLocker runs fn while holding a per-lead lock, with an attempt log bound
// to the same transaction.
type LeadLocker interface {
	WithLeadLock(ctx context.Context, organizationID, leadID uuid.UUID, fn func(ctx context.Context, log AttemptLog) error) error
}

// StrategyRepository stores one cadence strategy per category.
type StrategyRepository interface {
	Get(ctx context.Context, category domain.Tier) (domain.CadenceStrategy, error)
	List(ctx context.Context) ([]domain.CadenceStrategy, error)
	// UpsertMerge applies patch to the stored row (or the safe default) under a
	// row lock, runs validate on the merged value and writes it back.
	UpsertMerge(ctx context.Context, category domain.Tier, patch domain.StrategyPatch, validate func(domain.CadenceStrategy) error) (domain.CadenceStrategy, error)
	// SeedDefaults inserts strategies for categories without a row and returns how many were added.
	SeedDefaults(ctx context.Context, strategies []domain.CadenceStrategy) (int, error)
}

// OverrideParams sets (Tier non-nil) or clears (Tier nil) a manual classification.
type OverrideParams struct {
	OrganizationID uuid.UUID
	RecordID       uuid.UUID
	Tier           *domain.Tier
	Reason         *string
	ActorID        *uuid.UUID
	At             time.Time
}
