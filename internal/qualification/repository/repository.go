package repository

import (
	"context"
	"errors"

	"lead_cadence_backend/platform/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConcurrentSubmission is returned when another submission for the same
	// lead committed first.
	ErrConcurrentSubmission = errors.New("concurrent qualification submission")
)

const uniqueViolation = "23505"

// querier is satisfied by both the pool and a pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements the qualification repositories on PostgreSQL.
type Repository struct {
	pool db.Pool
}

// New creates a repository over pool.
func New(pool db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Attempts returns the attempt log bound to the pool.
func (r *Repository) Attempts() *Attempts {
	return &Attempts{q: r.pool}
}

// Strategies returns the strategy repository.
func (r *Repository) Strategies() *Strategies {
	return &Strategies{pool: r.pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func rollback(ctx context.Context, tx pgx.Tx) {
	_ = tx.Rollback(context.WithoutCancel(ctx))
}

var (
	_ RecordStore        = (*Repository)(nil)
	_ LeadLocker         = (*Repository)(nil)
	_ AttemptLog         = (*Attempts)(nil)
	_ StrategyRepository = (*Strategies)(nil)
)
