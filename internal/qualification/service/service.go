// Package service is the qualification engine façade: it scores questionnaire
// responses, keeps each lead's active qualification and answers cadence
// questions for it. Callers pass now; the service never reads the clock.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead_cadence_backend/internal/events"
	"lead_cadence_backend/internal/metrics"
	"lead_cadence_backend/internal/qualification/cadence"
	"lead_cadence_backend/internal/qualification/domain"
	"lead_cadence_backend/internal/qualification/repository"
	"lead_cadence_backend/platform/apperr"
	"lead_cadence_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultHistoryLimit  = 20
	defaultAttemptsLimit = 50
	maxListLimit         = 200

	msgNoActiveQualification = "lead has no active qualification"
	msgRecordStoreFailed     = "qualification store unavailable"
)

// StrategyManager reads and changes cadence strategies.
type StrategyManager interface {
	Get(ctx context.Context, category domain.Tier) (domain.CadenceStrategy, error)
	List(ctx context.Context) ([]domain.CadenceStrategy, error)
	Update(ctx context.Context, category domain.Tier, patch domain.StrategyPatch) (domain.CadenceStrategy, error)
}

// CadenceController decides and records outreach attempts.
type CadenceController interface {
	IsEligibleNow(ctx context.Context, in cadence.LeadCadenceInput, now time.Time) (domain.Decision, error)
	RecordAttempt(ctx context.Context, in cadence.LeadCadenceInput, now time.Time, outcome domain.Outcome) (domain.OutreachAttempt, error)
	RecordAttemptIfEligible(ctx context.Context, in cadence.LeadCadenceInput, now time.Time, outcome domain.Outcome) (cadence.AttemptResult, error)
}

// RecheckScheduler queues an eligibility re-evaluation for a blocked lead.
type RecheckScheduler interface {
	ScheduleEligibilityRecheck(ctx context.Context, organizationID, leadID uuid.UUID, at time.Time) error
}

// EligibilityResult is a cadence decision for the lead's active qualification.
type EligibilityResult struct {
	domain.Decision
	Category domain.Tier
	RecordID uuid.UUID
}

// Deps are the collaborators of a Service.
type Deps struct {
	Scoring    *domain.Scoring
	Records    repository.RecordStore
	Attempts   repository.AttemptLog
	Strategies StrategyManager
	Controller CadenceController
	EventBus   events.Bus
	Metrics    metrics.Recorder
	Rechecks   RecheckScheduler
	Logger     *logger.Logger
	// Strict routes RecordOutreachAttempt through the lock-protected check-and-append.
	Strict bool
}

// Service implements the qualification use cases.
type Service struct {
	questionnaire *domain.Questionnaire
	policy        *domain.ClassificationPolicy
	records       repository.RecordStore
	attempts      repository.AttemptLog
	strategies    StrategyManager
	controller    CadenceController
	bus           events.Bus
	metrics       metrics.Recorder
	rechecks      RecheckScheduler
	log           *logger.Logger
	strict        bool
}

// New creates a Service.
func New(deps Deps) *Service {
	m := deps.Metrics
	if m == nil {
		m = metrics.Noop{}
	}
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		questionnaire: deps.Scoring.Questionnaire,
		policy:        deps.Scoring.Policy,
		records:       deps.Records,
		attempts:      deps.Attempts,
		strategies:    deps.Strategies,
		controller:    deps.Controller,
		bus:           deps.EventBus,
		metrics:       m,
		rechecks:      deps.Rechecks,
		log:           log,
		strict:        deps.Strict,
	}
}

// Policy exposes the classification policy the service scores with.
func (s *Service) Policy() *domain.ClassificationPolicy { return s.policy }

// IsStrict reports whether attempts are only recorded when eligible.
func (s *Service) IsStrict() bool { return s.strict }

// SubmitQualification scores answers and stores them as the lead's active
// qualification, superseding the previous one.
func (s *Service) SubmitQualification(ctx context.Context, organizationID, leadID uuid.UUID, answers domain.Answers) (domain.Record, error) {
	result, err := s.questionnaire.ComputeScore(answers)
	if err != nil {
		return domain.Record{}, err
	}
	return s.store(ctx, organizationID, leadID, answers, result, nil)
}

// store supersedes the active record with a freshly scored one. previous is
// set for rescores: its override and qualification time carry over.
func (s *Service) store(ctx context.Context, organizationID, leadID uuid.UUID, answers domain.Answers, result domain.ScoreResult, previous *domain.Record) (domain.Record, error) {
	tier := s.policy.Classify(result.Score)

	rec := domain.Record{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		LeadID:         leadID,
		Answers:        answers,
		Score:          result.Score,
		Classification: tier,
		Factors:        result.Factors,
		UnknownChoices: result.UnknownChoices,
		ScoringVersion: result.Version,
	}
	if previous != nil {
		rec = previous.CarryForward(rec)
		if rec.ClassificationOverride != nil && !s.policy.Has(*rec.ClassificationOverride) {
			s.log.WithContext(ctx).Warn("dropping override for tier no longer configured",
				"leadId", leadID, "override", *rec.ClassificationOverride)
			rec.ClassificationOverride, rec.OverrideReason, rec.OverriddenBy, rec.OverriddenAt = nil, nil, nil, nil
		}
	}

	saved, supersededID, err := s.records.Supersede(ctx, rec)
	if err != nil {
		if errors.Is(err, repository.ErrConcurrentSubmission) {
			return domain.Record{}, apperr.Conflict("another qualification for this lead was submitted concurrently")
		}
		return domain.Record{}, s.recordStoreError("qualification.Submit", err)
	}

	s.metrics.QualificationSubmitted(string(tier), result.Score)
	s.log.WithContext(ctx).Info("qualification submitted",
		"leadId", leadID, "recordId", saved.ID, "score", saved.Score, "classification", tier)

	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadQualificationSubmitted{
			BaseEvent:      events.NewBaseEvent(),
			RecordID:       saved.ID,
			OrganizationID: organizationID,
			LeadID:         leadID,
			Score:          saved.Score,
			Classification: string(saved.EffectiveClassification()),
			SupersededID:   supersededID,
			ScoringVersion: saved.ScoringVersion,
		})
	}
	return saved, nil
}

// RescoreQualification re-runs scoring over the stored answers of the active
// qualification and supersedes it when score, tier or version changed.
// The second return value reports whether a new record was written.
func (s *Service) RescoreQualification(ctx context.Context, organizationID, leadID uuid.UUID) (domain.Record, bool, error) {
	current, err := s.GetActiveQualification(ctx, organizationID, leadID)
	if err != nil {
		return domain.Record{}, false, err
	}

	result, err := s.questionnaire.ComputeScore(current.Answers)
	if err != nil {
		return domain.Record{}, false, err
	}
	if result.Score == current.Score &&
		s.policy.Classify(result.Score) == current.Classification &&
		result.Version == current.ScoringVersion {
		return current, false, nil
	}

	saved, err := s.store(ctx, organizationID, leadID, current.Answers, result, &current)
	if err != nil {
		return domain.Record{}, false, err
	}
	return saved, true, nil
}

// GetActiveQualification returns the lead's current qualification.
func (s *Service) GetActiveQualification(ctx context.Context, organizationID, leadID uuid.UUID) (domain.Record, error) {
	rec, err := s.records.GetActive(ctx, organizationID, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Record{}, apperr.NotFound(msgNoActiveQualification)
	}
	if err != nil {
		return domain.Record{}, s.recordStoreError("qualification.GetActive", err)
	}
	return rec, nil
}

// ListQualificationHistory returns the lead's qualifications, newest first.
func (s *Service) ListQualificationHistory(ctx context.Context, organizationID, leadID uuid.UUID, limit int) ([]domain.Record, error) {
	records, err := s.records.ListHistory(ctx, organizationID, leadID, clampLimit(limit, defaultHistoryLimit))
	if err != nil {
		return nil, s.recordStoreError("qualification.ListHistory", err)
	}
	return records, nil
}

// OverrideClassification sets a manual tier on the active qualification of the
// record's lead. The derived classification is left untouched.
func (s *Service) OverrideClassification(ctx context.Context, organizationID, recordID uuid.UUID, tier domain.Tier, reason string, actorID uuid.UUID, now time.Time) (domain.Record, error) {
	if !s.policy.Has(tier) {
		return domain.Record{}, apperr.Validation(fmt.Sprintf("unknown classification %q", tier)).
			WithDetails(map[string]any{"classification": tier, "known": s.policy.Tiers()})
	}
	if reason == "" {
		return domain.Record{}, apperr.Validation("an override reason is required")
	}
	return s.setOverride(ctx, repository.OverrideParams{
		OrganizationID: organizationID,
		RecordID:       recordID,
		Tier:           &tier,
		Reason:         &reason,
		ActorID:        &actorID,
		At:             now,
	})
}

// ClearOverride removes a manual tier; the derived classification applies again.
func (s *Service) ClearOverride(ctx context.Context, organizationID, recordID uuid.UUID, actorID uuid.UUID, now time.Time) (domain.Record, error) {
	return s.setOverride(ctx, repository.OverrideParams{
		OrganizationID: organizationID,
		RecordID:       recordID,
		ActorID:        &actorID,
		At:             now,
	})
}

func (s *Service) setOverride(ctx context.Context, params repository.OverrideParams) (domain.Record, error) {
	rec, err := s.records.SetOverride(ctx, params)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Record{}, apperr.NotFound("qualification not found or no longer active")
	}
	if err != nil {
		return domain.Record{}, s.recordStoreError("qualification.SetOverride", err)
	}

	evt := events.LeadClassificationOverridden{
		BaseEvent:      events.NewBaseEventAt(params.At),
		RecordID:       rec.ID,
		OrganizationID: rec.OrganizationID,
		LeadID:         rec.LeadID,
		Classification: string(rec.EffectiveClassification()),
		ActorID:        params.ActorID,
	}
	if params.Tier != nil {
		override := string(*params.Tier)
		evt.Override = &override
		evt.Reason = *params.Reason
	}
	if s.bus != nil {
		s.bus.Publish(ctx, evt)
	}

	s.log.WithContext(ctx).Info("classification override changed",
		"recordId", rec.ID, "leadId", rec.LeadID, "classification", evt.Classification)
	return rec, nil
}

// CheckEligibility evaluates the cadence of the lead's active qualification.
// A blocked lead with a known unblock time gets a recheck queued when a
// scheduler is configured.
func (s *Service) CheckEligibility(ctx context.Context, organizationID, leadID uuid.UUID, now time.Time) (EligibilityResult, error) {
	rec, err := s.GetActiveQualification(ctx, organizationID, leadID)
	if err != nil {
		return EligibilityResult{}, err
	}

	in := cadenceInput(rec)
	decision, err := s.controller.IsEligibleNow(ctx, in, now)
	if err != nil {
		return EligibilityResult{}, err
	}

	if !decision.Eligible && decision.NextEligibleAt != nil && s.rechecks != nil {
		if err := s.rechecks.ScheduleEligibilityRecheck(ctx, organizationID, leadID, *decision.NextEligibleAt); err != nil {
			s.log.WithContext(ctx).Warn("eligibility recheck not scheduled", "leadId", leadID, "error", err)
		}
	}

	return EligibilityResult{Decision: decision, Category: in.Category, RecordID: rec.ID}, nil
}

// RecordOutreachAttempt appends an attempt for the lead. In strict mode the
// attempt is only appended when the lead is eligible, and a refusal is a conflict.
func (s *Service) RecordOutreachAttempt(ctx context.Context, organizationID, leadID uuid.UUID, now time.Time, outcome domain.Outcome) (domain.OutreachAttempt, error) {
	if s.strict {
		result, err := s.RecordOutreachAttemptIfEligible(ctx, organizationID, leadID, now, outcome)
		if err != nil {
			return domain.OutreachAttempt{}, err
		}
		if !result.Admitted {
			return domain.OutreachAttempt{}, notAdmitted(result.Decision)
		}
		return *result.Attempt, nil
	}

	rec, err := s.GetActiveQualification(ctx, organizationID, leadID)
	if err != nil {
		return domain.OutreachAttempt{}, err
	}
	attempt, err := s.controller.RecordAttempt(ctx, cadenceInput(rec), now, outcome)
	if err != nil {
		return domain.OutreachAttempt{}, err
	}
	s.attemptRecorded(ctx, attempt)
	return attempt, nil
}

// RecordOutreachAttemptIfEligible checks eligibility and appends under a per-lead lock.
func (s *Service) RecordOutreachAttemptIfEligible(ctx context.Context, organizationID, leadID uuid.UUID, now time.Time, outcome domain.Outcome) (cadence.AttemptResult, error) {
	rec, err := s.GetActiveQualification(ctx, organizationID, leadID)
	if err != nil {
		return cadence.AttemptResult{}, err
	}
	result, err := s.controller.RecordAttemptIfEligible(ctx, cadenceInput(rec), now, outcome)
	if err != nil {
		return cadence.AttemptResult{}, err
	}
	if result.Admitted {
		s.attemptRecorded(ctx, *result.Attempt)
	}
	return result, nil
}

// ListOutreachAttempts returns the lead's attempts, newest first.
func (s *Service) ListOutreachAttempts(ctx context.Context, organizationID, leadID uuid.UUID, limit int) ([]domain.OutreachAttempt, error) {
	attempts, err := s.attempts.List(ctx, organizationID, leadID, clampLimit(limit, defaultAttemptsLimit))
	if err != nil {
		s.metrics.StoreError("attempt_list")
		return nil, apperr.Transient("outreach attempt log unavailable", err).WithOp("qualification.ListAttempts")
	}
	return attempts, nil
}

// GetStrategy returns the strategy for a category known to the policy.
func (s *Service) GetStrategy(ctx context.Context, category domain.Tier) (domain.CadenceStrategy, error) {
	if !s.policy.Has(category) {
		return domain.CadenceStrategy{}, apperr.NotFound(fmt.Sprintf("unknown category %q", category))
	}
	return s.strategies.Get(ctx, category)
}

// ListStrategies returns one strategy per tier.
func (s *Service) ListStrategies(ctx context.Context) ([]domain.CadenceStrategy, error) {
	return s.strategies.List(ctx)
}

// UpdateStrategy merges patch onto the category's strategy.
func (s *Service) UpdateStrategy(ctx context.Context, category domain.Tier, patch domain.StrategyPatch, actorID *uuid.UUID) (domain.CadenceStrategy, error) {
	if patch.IsEmpty() {
		return domain.CadenceStrategy{}, apperr.Validation("at least one strategy field is required")
	}

	saved, err := s.strategies.Update(ctx, category, patch)
	if err != nil {
		return domain.CadenceStrategy{}, err
	}

	s.log.WithContext(ctx).Info("cadence strategy updated",
		"category", saved.Category, "enabled", saved.Enabled,
		"initialWaitDays", saved.InitialWaitDays, "cooldownHours", saved.CooldownHours,
		"maxSessionsPerWeek", saved.MaxSessionsPerWeek)

	if s.bus != nil {
		s.bus.Publish(ctx, events.CadenceStrategyUpdated{
			BaseEvent:          events.NewBaseEvent(),
			Category:           string(saved.Category),
			InitialWaitDays:    saved.InitialWaitDays,
			CooldownHours:      saved.CooldownHours,
			MaxSessionsPerWeek: saved.MaxSessionsPerWeek,
			Enabled:            saved.Enabled,
			ActorID:            actorID,
		})
	}
	return saved, nil
}

func (s *Service) attemptRecorded(ctx context.Context, attempt domain.OutreachAttempt) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.OutreachAttemptRecorded{
		BaseEvent:      events.NewBaseEventAt(attempt.OccurredAt),
		AttemptID:      attempt.ID,
		OrganizationID: attempt.OrganizationID,
		LeadID:         attempt.LeadID,
		Outcome:        string(attempt.Outcome),
		AttemptedAt:    attempt.OccurredAt,
	})
}

func (s *Service) recordStoreError(op string, err error) error {
	if apperr.GetKind(err) != apperr.KindUnknown {
		return err
	}
	s.metrics.StoreError("record")
	s.log.DatabaseError(op, err)
	return apperr.Transient(msgRecordStoreFailed, err).WithOp(op)
}

func cadenceInput(rec domain.Record) cadence.LeadCadenceInput {
	return cadence.LeadCadenceInput{
		OrganizationID: rec.OrganizationID,
		LeadID:         rec.LeadID,
		Category:       rec.EffectiveClassification(),
		QualifiedAt:    rec.QualifiedAt,
	}
}

func notAdmitted(d domain.Decision) error {
	details := map[string]any{"blockedBy": d.ReasonStrings()}
	if d.NextEligibleAt != nil {
		details["nextEligibleAt"] = d.NextEligibleAt.UTC()
	}
	return apperr.Conflict("lead is not eligible for outreach").WithDetails(details)
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
