package service

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

var errDBDown = errors.New("dial tcp: connection refused")

type leadKey struct{ org, lead uuid.UUID }

type fakeRecords struct {
	mu      sync.Mutex
	now     time.Time
	records []domain.Record
	fail    bool
}

func (f *fakeRecords) GetActive(_ context.Context, org, lead uuid.UUID) (domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return domain.Record{}, errDBDown
	}
	for _, r := range f.records {
		if r.OrganizationID == org && r.LeadID == lead && r.IsActive() {
			return r, nil
		}
	}
	return domain.Record{}, repository.ErrNotFound
}

func (f *fakeRecords) GetByID(_ context.Context, org, id uuid.UUID) (domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.OrganizationID == org && r.ID == id {
			return r, nil
		}
	}
	return domain.Record{}, repository.ErrNotFound
}

func (f *fakeRecords) ListHistory(_ context.Context, org, lead uuid.UUID, limit int) ([]domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Record
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := f.records[i]
		if r.OrganizationID == org && r.LeadID == lead {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) Supersede(_ context.Context, rec domain.Record) (domain.Record, *uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return domain.Record{}, nil, errDBDown
	}
	var superseded *uuid.UUID
	for i := range f.records {
		r := &f.records[i]
		if r.OrganizationID == rec.OrganizationID && r.LeadID == rec.LeadID && r.IsActive() {
			at := f.now
			r.SupersededAt = &at
			r.SupersededBy = &rec.ID
			id := r.ID
			superseded = &id
		}
	}
	rec.CreatedAt = f.now
	if rec.QualifiedAt.IsZero() {
		rec.QualifiedAt = f.now
	}
	f.records = append(f.records, rec)
	return rec, superseded, nil
}

func (f *fakeRecords) SetOverride(_ context.Context, params repository.OverrideParams) (domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		r := &f.records[i]
		if r.OrganizationID != params.OrganizationID || r.ID != params.RecordID || !r.IsActive() {
			continue
		}
		r.ClassificationOverride = params.Tier
		r.OverrideReason = params.Reason
		r.OverriddenBy = params.ActorID
		at := params.At
		r.OverriddenAt = &at
		if params.Tier == nil {
			r.OverrideReason = nil
			r.OverriddenAt = nil
		}
		return *r, nil
	}
	return domain.Record{}, repository.ErrNotFound
}

// memAttempts is an in-memory attempt log that also serves as the lead locker.
type memAttempts struct {
	mu     sync.Mutex
	lockMu sync.Mutex
	byLead map[leadKey][]domain.OutreachAttempt
}

func newMemAttempts() *memAttempts {
	return &memAttempts{byLead: map[leadKey][]domain.OutreachAttempt{}}
}

func (m *memAttempts) Append(_ context.Context, a domain.OutreachAttempt) (domain.OutreachAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = a.OccurredAt
	k := leadKey{a.OrganizationID, a.LeadID}
	m.byLead[k] = append(m.byLead[k], a)
	return a, nil
}

func (m *memAttempts) Latest(_ context.Context, org, lead uuid.UUID) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *time.Time
	for _, a := range m.byLead[leadKey{org, lead}] {
		if latest == nil || a.OccurredAt.After(*latest) {
			t := a.OccurredAt
			latest = &t
		}
	}
	return latest, nil
}

func (m *memAttempts) ListWindow(_ context.Context, org, lead uuid.UUID, from, to time.Time) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []time.Time
	for _, a := range m.byLead[leadKey{org, lead}] {
		if a.OccurredAt.After(from) && !a.OccurredAt.After(to) {
			out = append(out, a.OccurredAt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (m *memAttempts) CountWindow(ctx context.Context, org, lead uuid.UUID, from, to time.Time) (int, error) {
	window, err := m.ListWindow(ctx, org, lead, from, to)
	return len(window), err
}

func (m *memAttempts) List(_ context.Context, org, lead uuid.UUID, limit int) ([]domain.OutreachAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.byLead[leadKey{org, lead}]
	out := make([]domain.OutreachAttempt, 0, len(all))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *memAttempts) WithLeadLock(ctx context.Context, _, _ uuid.UUID, fn func(context.Context, repository.AttemptLog) error) error {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	return fn(ctx, m)
}

type memStrategies struct {
	mu   sync.Mutex
	rows map[domain.Tier]domain.CadenceStrategy
}

func newMemStrategies(rows []domain.CadenceStrategy) *memStrategies {
	s := &memStrategies{rows: map[domain.Tier]domain.CadenceStrategy{}}
	for _, r := range rows {
		s.rows[r.Category] = r
	}
	return s
}

func (s *memStrategies) Get(_ context.Context, category domain.Tier) (domain.CadenceStrategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[category]; ok {
		return row, nil
	}
	return domain.SafeDefaultStrategy(category), nil
}

func (s *memStrategies) List(context.Context) ([]domain.CadenceStrategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CadenceStrategy, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	return out, nil
}

func (s *memStrategies) Update(_ context.Context, category domain.Tier, patch domain.StrategyPatch) (domain.CadenceStrategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rows[category]
	if !ok {
		current = domain.SafeDefaultStrategy(category)
	}
	merged := patch.Apply(current)
	if err := merged.Validate(); err != nil {
		return domain.CadenceStrategy{}, err
	}
	s.rows[category] = merged
	return merged, nil
}

type recordedRecheck struct {
	lead uuid.UUID
	at   time.Time
}

type fakeRechecks struct {
	mu    sync.Mutex
	calls []recordedRecheck
}

func (f *fakeRechecks) ScheduleEligibilityRecheck(_ context.Context, _, leadID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedRecheck{lead: leadID, at: at})
	return nil
}

// setActiveVersion rewrites the scoring version of the lead's active record,
// as if it had been scored under an older questionnaire.
func (f *fakeRecords) setActiveVersion(org, lead uuid.UUID, version string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		r := &f.records[i]
		if r.OrganizationID == org && r.LeadID == lead && r.IsActive() {
			r.ScoringVersion = version
		}
	}
}
