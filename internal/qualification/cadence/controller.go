package cadence

import (
	"context"
	"time"

	"lead_cadence_backend/internal/events"
	"lead_cadence_backend/internal/metrics"
	"lead_cadence_backend/internal/qualification/domain"
	"lead_cadence_backend/internal/qualification/repository"
	"lead_cadence_backend/platform/apperr"
	"lead_cadence_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// StrategyGetter is the read side of the strategy store.
type StrategyGetter interface {
	Get(ctx context.Context, category domain.Tier) (domain.CadenceStrategy, error)
}

// LeadCadenceInput identifies a lead and the qualification its cadence runs from.
type LeadCadenceInput struct {
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
	Category       domain.Tier
	// QualifiedAt is when the active qualification was created; the initial wait starts here.
	QualifiedAt time.Time
}

// AttemptResult is the outcome of a strict, lock-protected recording.
type AttemptResult struct {
	Admitted bool
	Attempt  *domain.OutreachAttempt
	Decision domain.Decision
}

// Controller evaluates and records outreach attempts. It never reads the clock;
// callers pass now.
type Controller struct {
	strategies StrategyGetter
	attempts   repository.AttemptLog
	locker     repository.LeadLocker
	bus        events.Bus
	metrics    metrics.Recorder
	log        *logger.Logger
}

// NewController wires a controller. locker may be nil when strict recording is not used.
func NewController(strategies StrategyGetter, attempts repository.AttemptLog, locker repository.LeadLocker, bus events.Bus, recorder metrics.Recorder, log *logger.Logger) *Controller {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Controller{
		strategies: strategies,
		attempts:   attempts,
		locker:     locker,
		bus:        bus,
		metrics:    recorder,
		log:        log,
	}
}

// IsEligibleNow reports whether the lead may be contacted at now. Any storage
// failure is returned as a transient error rather than a guessed decision.
func (c *Controller) IsEligibleNow(ctx context.Context, in LeadCadenceInput, now time.Time) (domain.Decision, error) {
	var (
		strategy domain.CadenceStrategy
		latest   *time.Time
		window   []time.Time
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		strategy, err = c.strategies.Get(gctx, in.Category)
		return err
	})
	g.Go(func() error {
		var err error
		latest, err = c.attempts.Latest(gctx, in.OrganizationID, in.LeadID)
		return c.storeError("attempt_latest", err)
	})
	g.Go(func() error {
		var err error
		window, err = c.attempts.ListWindow(gctx, in.OrganizationID, in.LeadID, now.Add(-domain.CadenceWindow), now)
		return c.storeError("attempt_window", err)
	})
	if err := g.Wait(); err != nil {
		return domain.Decision{}, err
	}

	decision := domain.EvaluateCadence(strategy, in.QualifiedAt, latest, window, now)
	c.observe(in, decision)
	return decision, nil
}

// RecordAttempt appends an attempt unconditionally. When concurrent callers
// pushed the rolling window past the weekly cap, the over-admission is
// reported through logs, metrics and an event; it is not an error.
func (c *Controller) RecordAttempt(ctx context.Context, in LeadCadenceInput, now time.Time, outcome domain.Outcome) (domain.OutreachAttempt, error) {
	attempt, err := c.attempts.Append(ctx, domain.OutreachAttempt{
		OrganizationID: in.OrganizationID,
		LeadID:         in.LeadID,
		OccurredAt:     now,
		Outcome:        outcome,
	})
	if err != nil {
		return domain.OutreachAttempt{}, c.storeError("attempt_append", err)
	}

	c.checkOveradmission(ctx, in, now)
	return attempt, nil
}

// RecordAttemptIfEligible re-evaluates the lead while holding a per-lead lock
// and appends only when the decision is eligible.
func (c *Controller) RecordAttemptIfEligible(ctx context.Context, in LeadCadenceInput, now time.Time, outcome domain.Outcome) (AttemptResult, error) {
	if c.locker == nil {
		return AttemptResult{}, apperr.Configuration("strict outreach recording is not configured")
	}

	strategy, err := c.strategies.Get(ctx, in.Category)
	if err != nil {
		return AttemptResult{}, err
	}

	var result AttemptResult
	err = c.locker.WithLeadLock(ctx, in.OrganizationID, in.LeadID, func(ctx context.Context, log repository.AttemptLog) error {
		latest, err := log.Latest(ctx, in.OrganizationID, in.LeadID)
		if err != nil {
			return err
		}
		window, err := log.ListWindow(ctx, in.OrganizationID, in.LeadID, now.Add(-domain.CadenceWindow), now)
		if err != nil {
			return err
		}

		result.Decision = domain.EvaluateCadence(strategy, in.QualifiedAt, latest, window, now)
		if !result.Decision.Eligible {
			return nil
		}

		attempt, err := log.Append(ctx, domain.OutreachAttempt{
			OrganizationID: in.OrganizationID,
			LeadID:         in.LeadID,
			OccurredAt:     now,
			Outcome:        outcome,
		})
		if err != nil {
			return err
		}
		result.Admitted = true
		result.Attempt = &attempt
		return nil
	})
	if err != nil {
		return AttemptResult{}, c.storeError("attempt_locked_append", err)
	}

	c.observe(in, result.Decision)
	return result, nil
}

func (c *Controller) checkOveradmission(ctx context.Context, in LeadCadenceInput, now time.Time) {
	strategy, err := c.strategies.Get(ctx, in.Category)
	if err != nil {
		c.log.Warn("overadmission check skipped", "leadId", in.LeadID, "error", err)
		return
	}
	if !strategy.Enabled {
		return
	}

	count, err := c.attempts.CountWindow(ctx, in.OrganizationID, in.LeadID, now.Add(-domain.CadenceWindow), now)
	if err != nil {
		c.log.Warn("overadmission check skipped", "leadId", in.LeadID, "error", err)
		return
	}
	if count <= strategy.MaxSessionsPerWeek {
		return
	}

	c.log.WithContext(ctx).Overadmission(in.LeadID.String(), string(in.Category), count, strategy.MaxSessionsPerWeek)
	c.metrics.Overadmission(string(in.Category))
	if c.bus != nil {
		c.bus.Publish(ctx, events.OutreachOveradmitted{
			BaseEvent:          events.NewBaseEventAt(now),
			OrganizationID:     in.OrganizationID,
			LeadID:             in.LeadID,
			Category:           string(in.Category),
			WindowCount:        count,
			MaxSessionsPerWeek: strategy.MaxSessionsPerWeek,
		})
	}
}

func (c *Controller) observe(in LeadCadenceInput, d domain.Decision) {
	reasons := d.ReasonStrings()
	c.metrics.CadenceDecision(string(in.Category), d.Eligible, reasons)
	c.log.CadenceDecision(in.LeadID.String(), string(in.Category), d.Eligible, d.NextEligibleAt, reasons)
}

// storeError converts repository failures into transient errors. Typed
// application errors pass through unchanged.
func (c *Controller) storeError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if apperr.GetKind(err) != apperr.KindUnknown {
		return err
	}
	c.metrics.StoreError(operation)
	return apperr.Transient("outreach attempt log unavailable", err).WithOp("cadence." + operation)
}
