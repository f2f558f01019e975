package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"lead_cadence_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// recheckRetention keeps completed task IDs around so a duplicate schedule for
// the same lead and time is rejected rather than run twice.
const recheckRetention = 24 * time.Hour

type Client struct {
	client *asynq.Client
	queue  string
}

type RecheckScheduler interface {
	ScheduleEligibilityRecheck(ctx context.Context, organizationID, leadID uuid.UUID, runAt time.Time) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleEligibilityRecheck enqueues one recheck per lead and run time.
func (c *Client) ScheduleEligibilityRecheck(ctx context.Context, organizationID, leadID uuid.UUID, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	runAt = recheckRunAt(runAt)
	task, err := NewEligibilityRecheckTask(EligibilityRecheckPayload{
		OrganizationID: organizationID.String(),
		LeadID:         leadID.String(),
	})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(runAt),
		asynq.Queue(c.queue),
		asynq.TaskID(recheckTaskID(organizationID, leadID, runAt)),
		asynq.Retention(recheckRetention),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// recheckRunAt rounds at up to a whole second. asynq schedules on Unix
// seconds, so a fractional time would otherwise run up to a second early,
// while the lead is still blocked.
func recheckRunAt(at time.Time) time.Time {
	rounded := at.Truncate(time.Second)
	if rounded.Before(at) {
		rounded = rounded.Add(time.Second)
	}
	return rounded
}

func recheckTaskID(organizationID, leadID uuid.UUID, runAt time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%d", TaskEligibilityRecheck, organizationID, leadID, runAt.Unix())
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
