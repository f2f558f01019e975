package repository

import (
	"context"
	"fmt"
	"time"

	"lead_cadence_backend/internal/qualification/domain"

	"github.com/google/uuid"
)

// Attempts is the outreach attempt log. Rows are only ever inserted.
type Attempts struct {
	q querier
}

// Append inserts an attempt and returns it with its server timestamps.
func (a *Attempts) Append(ctx context.Context, attempt domain.OutreachAttempt) (domain.OutreachAttempt, error) {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	err := a.q.QueryRow(ctx, `
		INSERT INTO outreach_attempts (id, organization_id, lead_id, occurred_at, outcome)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, attempt.ID, attempt.OrganizationID, attempt.LeadID, attempt.OccurredAt, string(attempt.Outcome)).Scan(&attempt.CreatedAt)
	if err != nil {
		return domain.OutreachAttempt{}, fmt.Errorf("append outreach attempt: %w", err)
	}
	return attempt, nil
}

// Latest returns the newest attempt time for the lead, or nil.
func (a *Attempts) Latest(ctx context.Context, organizationID, leadID uuid.UUID) (*time.Time, error) {
	var latest *time.Time
	err := a.q.QueryRow(ctx, `
		SELECT max(occurred_at)
		FROM outreach_attempts
		WHERE organization_id = $1 AND lead_id = $2
	`, organizationID, leadID).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("latest outreach attempt: %w", err)
	}
	return latest, nil
}

// ListWindow returns attempt times in (from, to], oldest first.
func (a *Attempts) ListWindow(ctx context.Context, organizationID, leadID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := a.q.Query(ctx, `
		SELECT occurred_at
		FROM outreach_attempts
		WHERE organization_id = $1 AND lead_id = $2 AND occurred_at > $3 AND occurred_at <= $4
		ORDER BY occurred_at ASC
	`, organizationID, leadID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list outreach window: %w", err)
	}
	defer rows.Close()

	times := make([]time.Time, 0)
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, fmt.Errorf("scan outreach attempt: %w", err)
		}
		times = append(times, at)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outreach window: %w", err)
	}
	return times, nil
}

// CountWindow counts attempts in (from, to].
func (a *Attempts) CountWindow(ctx context.Context, organizationID, leadID uuid.UUID, from, to time.Time) (int, error) {
	var count int
	err := a.q.QueryRow(ctx, `
		SELECT count(*)
		FROM outreach_attempts
		WHERE organization_id = $1 AND lead_id = $2 AND occurred_at > $3 AND occurred_at <= $4
	`, organizationID, leadID, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count outreach window: %w", err)
	}
	return count, nil
}

// List returns the lead's attempts newest first.
func (a *Attempts) List(ctx context.Context, organizationID, leadID uuid.UUID, limit int) ([]domain.OutreachAttempt, error) {
	rows, err := a.q.Query(ctx, `
		SELECT id, organization_id, lead_id, occurred_at, outcome, created_at
		FROM outreach_attempts
		WHERE organization_id = $1 AND lead_id = $2
		ORDER BY occurred_at DESC
		LIMIT $3
	`, organizationID, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list outreach attempts: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OutreachAttempt, 0)
	for rows.Next() {
		var (
			item    domain.OutreachAttempt
			outcome string
		)
		if err := rows.Scan(&item.ID, &item.OrganizationID, &item.LeadID, &item.OccurredAt, &outcome, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outreach attempt: %w", err)
		}
		item.Outcome = domain.Outcome(outcome)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outreach attempts: %w", err)
	}
	return items, nil
}

// WithLeadLock runs fn in a transaction holding a PostgreSQL advisory lock
// for (organizationID, leadID). The lock is released on commit or rollback.
func (r *Repository) WithLeadLock(ctx context.Context, organizationID, leadID uuid.UUID, fn func(ctx context.Context, log AttemptLog) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin lead lock: %w", err)
	}
	defer rollback(ctx, tx)

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		"outreach:"+organizationID.String()+":"+leadID.String(),
	); err != nil {
		return fmt.Errorf("acquire lead lock: %w", err)
	}

	if err := fn(ctx, &Attempts{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit lead lock: %w", err)
	}
	return nil
}
