package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lead_cadence_backend/internal/qualification/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const recordColumns = `id, organization_id, lead_id, answers, score, classification, factors, scoring_version,
	classification_override, override_reason, overridden_by, overridden_at,
	created_at, qualified_at, superseded_at, superseded_by`

// factorBreakdown is the JSONB shape of the factors column.
type factorBreakdown struct {
	Contributions  map[string]float64  `json:"contributions"`
	UnknownChoices map[string][]string `json:"unknownChoices,omitempty"`
}

func scanRecord(row pgx.Row) (domain.Record, error) {
	var (
		rec            domain.Record
		answersRaw     []byte
		factorsRaw     []byte
		classification string
		override       *string
	)
	if err := row.Scan(
		&rec.ID, &rec.OrganizationID, &rec.LeadID, &answersRaw, &rec.Score, &classification, &factorsRaw, &rec.ScoringVersion,
		&override, &rec.OverrideReason, &rec.OverriddenBy, &rec.OverriddenAt,
		&rec.CreatedAt, &rec.QualifiedAt, &rec.SupersededAt, &rec.SupersededBy,
	); err != nil {
		return domain.Record{}, err
	}

	rec.Classification = domain.Tier(classification)
	if override != nil {
		tier := domain.Tier(*override)
		rec.ClassificationOverride = &tier
	}
	if err := json.Unmarshal(answersRaw, &rec.Answers); err != nil {
		return domain.Record{}, fmt.Errorf("decode answers: %w", err)
	}
	if len(factorsRaw) > 0 {
		var breakdown factorBreakdown
		if err := json.Unmarshal(factorsRaw, &breakdown); err != nil {
			return domain.Record{}, fmt.Errorf("decode factors: %w", err)
		}
		rec.Factors = breakdown.Contributions
		rec.UnknownChoices = breakdown.UnknownChoices
	}
	return rec, nil
}

// GetActive returns the lead's current (non-superseded) record.
func (r *Repository) GetActive(ctx context.Context, organizationID, leadID uuid.UUID) (domain.Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM lead_qualifications
		WHERE organization_id = $1 AND lead_id = $2 AND superseded_at IS NULL
	`, organizationID, leadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Record{}, ErrNotFound
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("get active qualification: %w", err)
	}
	return rec, nil
}

// GetByID returns any record, active or superseded.
func (r *Repository) GetByID(ctx context.Context, organizationID, id uuid.UUID) (domain.Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM lead_qualifications
		WHERE organization_id = $1 AND id = $2
	`, organizationID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Record{}, ErrNotFound
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("get qualification: %w", err)
	}
	return rec, nil
}

// ListHistory returns the lead's records newest first.
func (r *Repository) ListHistory(ctx context.Context, organizationID, leadID uuid.UUID, limit int) ([]domain.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM lead_qualifications
		WHERE organization_id = $1 AND lead_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, organizationID, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list qualification history: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan qualification: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate qualification history: %w", err)
	}
	return items, nil
}

// Supersede inserts rec as the active record. The previous active record is
// locked, then stamped with superseded_at/superseded_by in the same transaction.
// The new record's created_at and the old record's superseded_at are the
// same transaction timestamp. A zero rec.QualifiedAt starts the qualification
// at created_at; the override columns are written as given.
func (r *Repository) Supersede(ctx context.Context, rec domain.Record) (domain.Record, *uuid.UUID, error) {
	answersJSON, err := json.Marshal(rec.Answers)
	if err != nil {
		return domain.Record{}, nil, fmt.Errorf("encode answers: %w", err)
	}
	factorsJSON, err := json.Marshal(factorBreakdown{Contributions: rec.Factors, UnknownChoices: rec.UnknownChoices})
	if err != nil {
		return domain.Record{}, nil, fmt.Errorf("encode factors: %w", err)
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Record{}, nil, fmt.Errorf("begin supersede: %w", err)
	}
	defer rollback(ctx, tx)

	var previousID *uuid.UUID
	var prev uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM lead_qualifications
		WHERE organization_id = $1 AND lead_id = $2 AND superseded_at IS NULL
		FOR UPDATE
	`, rec.OrganizationID, rec.LeadID).Scan(&prev)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return domain.Record{}, nil, fmt.Errorf("lock active qualification: %w", err)
	default:
		previousID = &prev
		if _, err := tx.Exec(ctx, `
			UPDATE lead_qualifications
			SET superseded_at = now(), superseded_by = $2
			WHERE id = $1
		`, prev, rec.ID); err != nil {
			return domain.Record{}, nil, fmt.Errorf("supersede qualification: %w", err)
		}
	}

	var qualifiedAt *time.Time
	if !rec.QualifiedAt.IsZero() {
		qualifiedAt = &rec.QualifiedAt
	}
	var override *string
	if rec.ClassificationOverride != nil {
		tier := string(*rec.ClassificationOverride)
		override = &tier
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO lead_qualifications
			(id, organization_id, lead_id, answers, score, classification, factors, scoring_version,
			 qualified_at, classification_override, override_reason, overridden_by, overridden_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), $10, $11, $12, $13)
		RETURNING created_at, qualified_at
	`, rec.ID, rec.OrganizationID, rec.LeadID, answersJSON, rec.Score, string(rec.Classification), factorsJSON, rec.ScoringVersion,
		qualifiedAt, override, rec.OverrideReason, rec.OverriddenBy, rec.OverriddenAt).
		Scan(&rec.CreatedAt, &rec.QualifiedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Record{}, nil, ErrConcurrentSubmission
		}
		return domain.Record{}, nil, fmt.Errorf("insert qualification: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.Record{}, nil, ErrConcurrentSubmission
		}
		return domain.Record{}, nil, fmt.Errorf("commit supersede: %w", err)
	}

	rec.SupersededAt = nil
	rec.SupersededBy = nil
	return rec, previousID, nil
}

// SetOverride sets or clears the manual classification on an active record.
func (r *Repository) SetOverride(ctx context.Context, params OverrideParams) (domain.Record, error) {
	var (
		override     *string
		reason       *string
		actor        *uuid.UUID
		overriddenAt *time.Time
	)
	if params.Tier != nil {
		tier := string(*params.Tier)
		at := params.At
		override, reason, actor, overriddenAt = &tier, params.Reason, params.ActorID, &at
	}

	rec, err := scanRecord(r.pool.QueryRow(ctx, `
		UPDATE lead_qualifications
		SET classification_override = $3, override_reason = $4, overridden_by = $5, overridden_at = $6
		WHERE organization_id = $1 AND id = $2 AND superseded_at IS NULL
		RETURNING `+recordColumns,
		params.OrganizationID, params.RecordID, override, reason, actor, overriddenAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Record{}, ErrNotFound
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("set classification override: %w", err)
	}
	return rec, nil
}
