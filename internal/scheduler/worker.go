package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead_cadence_backend/internal/events"
	"lead_cadence_backend/internal/qualification/service"
	"lead_cadence_backend/platform/apperr"
	"lead_cadence_backend/platform/config"
	"lead_cadence_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// recheckEarlyWindow is how close to its unblock time a still-blocked lead
// may be before the task is retried instead of left to the follow-up the
// check schedules. That follow-up would reuse the running task's ID and be
// dropped as a duplicate.
const recheckEarlyWindow = 5 * time.Second

var errRecheckEarly = errors.New("eligibility recheck ran before the lead unblocked")

// EligibilityChecker evaluates a lead's cadence. A blocked result is expected
// to queue its own follow-up recheck.
type EligibilityChecker interface {
	CheckEligibility(ctx context.Context, organizationID, leadID uuid.UUID, now time.Time) (service.EligibilityResult, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	checker EligibilityChecker
	bus     events.Bus
	log     *logger.Logger
	now     func() time.Time
}

func NewWorker(cfg config.SchedulerConfig, checker EligibilityChecker, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := newWorker(checker, bus, log)
	w.server = server
	return w, nil
}

func newWorker(checker EligibilityChecker, bus events.Bus, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Discard()
	}
	w := &Worker{
		mux:     asynq.NewServeMux(),
		checker: checker,
		bus:     bus,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
	w.mux.HandleFunc(TaskEligibilityRecheck, w.handleEligibilityRecheck)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleEligibilityRecheck(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseEligibilityRecheckPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	orgID, leadID, err := payload.IDs()
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	now := w.now()
	result, err := w.checker.CheckEligibility(ctx, orgID, leadID, now)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		w.log.Info("eligibility recheck dropped: no active qualification", "leadId", leadID)
		return nil
	case err != nil:
		return err
	}

	if !result.Eligible {
		if result.NextEligibleAt != nil && result.NextEligibleAt.Sub(now) <= recheckEarlyWindow {
			w.log.Info("eligibility recheck ran early; retrying", "leadId", leadID, "nextEligibleAt", *result.NextEligibleAt)
			return errRecheckEarly
		}
		w.log.Debug("lead still blocked", "leadId", leadID, "blockedBy", result.ReasonStrings())
		return nil
	}

	if w.bus == nil {
		return nil
	}
	return w.bus.PublishSync(ctx, events.OutreachEligible{
		BaseEvent:      events.NewBaseEvent(),
		OrganizationID: orgID,
		LeadID:         leadID,
		Category:       string(result.Category),
	})
}
