package cadence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"lead_cadence_backend/internal/qualification/domain"
	"lead_cadence_backend/internal/qualification/repository"

	"github.com/google/uuid"
)

var errStoreDown = errors.New("connection reset by peer")

type fakeStrategies struct {
	mu       sync.Mutex
	rows     map[domain.Tier]domain.CadenceStrategy
	gets     int
	failGet  bool
	failList bool
	// afterRead runs once the row has been read, outside the lock.
	afterRead func()
}

func newFakeStrategies(rows ...domain.CadenceStrategy) *fakeStrategies {
	f := &fakeStrategies{rows: map[domain.Tier]domain.CadenceStrategy{}}
	for _, r := range rows {
		f.rows[r.Category] = r
	}
	return f
}

func (f *fakeStrategies) Get(_ context.Context, category domain.Tier) (domain.CadenceStrategy, error) {
	f.mu.Lock()
	f.gets++
	fail := f.failGet
	row, ok := f.rows[category]
	hook := f.afterRead
	f.afterRead = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fail {
		return domain.CadenceStrategy{}, errStoreDown
	}
	if !ok {
		return domain.CadenceStrategy{}, repository.ErrNotFound
	}
	return row, nil
}

func (f *fakeStrategies) pauseNextRead(hook func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterRead = hook
}

func (f *fakeStrategies) List(context.Context) ([]domain.CadenceStrategy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		return nil, errStoreDown
	}
	out := make([]domain.CadenceStrategy, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStrategies) UpsertMerge(_ context.Context, category domain.Tier, patch domain.StrategyPatch, validate func(domain.CadenceStrategy) error) (domain.CadenceStrategy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.rows[category]
	if !ok {
		current = domain.SafeDefaultStrategy(category)
	}
	merged := patch.Apply(current)
	if validate != nil {
		if err := validate(merged); err != nil {
			return domain.CadenceStrategy{}, err
		}
	}
	f.rows[category] = merged
	return merged, nil
}

func (f *fakeStrategies) SeedDefaults(_ context.Context, strategies []domain.CadenceStrategy) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range strategies {
		if _, ok := f.rows[s.Category]; !ok {
			f.rows[s.Category] = s
			n++
		}
	}
	return n, nil
}

func (f *fakeStrategies) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

// fakeAttempts is an in-memory attempt log that also acts as a lead locker.
type fakeAttempts struct {
	mu       sync.Mutex
	lockMu   sync.Mutex
	attempts []domain.OutreachAttempt
	fail     bool
}

func (f *fakeAttempts) Append(_ context.Context, a domain.OutreachAttempt) (domain.OutreachAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return domain.OutreachAttempt{}, errStoreDown
	}
	a.ID = uuid.New()
	a.CreatedAt = a.OccurredAt
	f.attempts = append(f.attempts, a)
	return a, nil
}

func (f *fakeAttempts) Latest(_ context.Context, org, lead uuid.UUID) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errStoreDown
	}
	var latest *time.Time
	for _, a := range f.attempts {
		if a.OrganizationID == org && a.LeadID == lead && (latest == nil || a.OccurredAt.After(*latest)) {
			at := a.OccurredAt
			latest = &at
		}
	}
	return latest, nil
}

func (f *fakeAttempts) ListWindow(_ context.Context, org, lead uuid.UUID, from, to time.Time) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errStoreDown
	}
	var out []time.Time
	for _, a := range f.attempts {
		if a.OrganizationID == org && a.LeadID == lead && a.OccurredAt.After(from) && !a.OccurredAt.After(to) {
			out = append(out, a.OccurredAt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (f *fakeAttempts) CountWindow(ctx context.Context, org, lead uuid.UUID, from, to time.Time) (int, error) {
	times, err := f.ListWindow(ctx, org, lead, from, to)
	return len(times), err
}

func (f *fakeAttempts) List(_ context.Context, org, lead uuid.UUID, limit int) ([]domain.OutreachAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.OutreachAttempt
	for i := len(f.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if f.attempts[i].OrganizationID == org && f.attempts[i].LeadID == lead {
			out = append(out, f.attempts[i])
		}
	}
	return out, nil
}

func (f *fakeAttempts) WithLeadLock(ctx context.Context, _, _ uuid.UUID, fn func(context.Context, repository.AttemptLog) error) error {
	f.lockMu.Lock()
	defer f.lockMu.Unlock()
	return fn(ctx, f)
}

func (f *fakeAttempts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}
