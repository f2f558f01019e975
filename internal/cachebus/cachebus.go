// Package cachebus invalidates derived caches (dashboard aggregates and the
// per-replica cadence strategy cache) over Redis.
package cachebus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"

	"lead_cadence_backend/platform/config"
	"lead_cadence_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// KindLeadScoringStats invalidates an organization's lead scoring dashboard.
	KindLeadScoringStats = "lead_scoring_stats"
	// KindCadenceStrategy invalidates a cached cadence strategy.
	KindCadenceStrategy = "cadence_strategy"

	defaultChannel     = "qualification:invalidate"
	leadScoringStatsNS = "dashboard:lead_scoring_stats:"
)

// Message is the payload published on the invalidation channel.
type Message struct {
	Kind string `json:"kind"`
	Key  string `json:"key"`
}

// Handler receives invalidation messages from other replicas.
type Handler func(ctx context.Context, msg Message)

// Bus is the invalidation surface the rest of the application uses.
type Bus interface {
	InvalidateLeadScoringStats(ctx context.Context, organizationID uuid.UUID) error
	PublishStrategyChanged(ctx context.Context, category string) error
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}

// LeadScoringStatsKey is the Redis key of an organization's cached scoring stats.
func LeadScoringStatsKey(organizationID uuid.UUID) string {
	return leadScoringStatsNS + organizationID.String()
}

// RedisBus implements Bus on a Redis client.
type RedisBus struct {
	client  redis.UniversalClient
	channel string
	log     *logger.Logger
}

// New connects to the Redis instance in cfg. It returns a Noop bus when the
// cache bus is not enabled.
func New(cfg config.CacheBusConfig, log *logger.Logger) (Bus, error) {
	if !cfg.IsCacheBusEnabled() {
		return Noop{}, nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}

	return NewRedisBus(redis.NewClient(opt), cfg.GetCacheBusChannel(), log), nil
}

// NewRedisBus wraps an existing client.
func NewRedisBus(client redis.UniversalClient, channel string, log *logger.Logger) *RedisBus {
	if channel == "" {
		channel = defaultChannel
	}
	if log == nil {
		log = logger.Discard()
	}
	return &RedisBus{client: client, channel: channel, log: log}
}

// InvalidateLeadScoringStats deletes the organization's cached dashboard stats
// and tells other replicas to drop their copies.
func (b *RedisBus) InvalidateLeadScoringStats(ctx context.Context, organizationID uuid.UUID) error {
	if err := b.client.Del(ctx, LeadScoringStatsKey(organizationID)).Err(); err != nil {
		return fmt.Errorf("delete lead scoring stats: %w", err)
	}
	return b.publish(ctx, Message{Kind: KindLeadScoringStats, Key: organizationID.String()})
}

// PublishStrategyChanged tells other replicas to drop a cached cadence strategy.
func (b *RedisBus) PublishStrategyChanged(ctx context.Context, category string) error {
	return b.publish(ctx, Message{Kind: KindCadenceStrategy, Key: category})
}

func (b *RedisBus) publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}

// Subscribe delivers messages to handler until ctx is cancelled.
// It returns once the subscription is confirmed; delivery happens on a goroutine.
func (b *RedisBus) Subscribe(ctx context.Context, handler Handler) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					b.log.Warn("invalid cache invalidation message", "channel", raw.Channel, "error", err)
					continue
				}
				handler(ctx, msg)
			}
		}
	}()
	return nil
}

// Close releases the Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

// Noop is used when Redis is not configured.
type Noop struct{}

func (Noop) InvalidateLeadScoringStats(context.Context, uuid.UUID) error { return nil }
func (Noop) PublishStrategyChanged(context.Context, string) error        { return nil }
func (Noop) Subscribe(context.Context, Handler) error                    { return nil }
func (Noop) Close() error                                                { return nil }

var (
	_ Bus = (*RedisBus)(nil)
	_ Bus = Noop{}
)
