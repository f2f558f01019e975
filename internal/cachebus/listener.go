package cachebus

import (
	"context"
	"time"

	"lead_cadence_backend/platform/logger"
)

const defaultSubscribeRetryInterval = 15 * time.Second

// Listener keeps this replica subscribed to the invalidation channel. Redis
// reconnects an established subscription by itself; Listener covers the case
// where Redis is unreachable when the process starts.
type Listener struct {
	bus      Bus
	handler  Handler
	log      *logger.Logger
	interval time.Duration
}

func NewListener(bus Bus, handler Handler, log *logger.Logger, interval time.Duration) *Listener {
	if interval <= 0 {
		interval = defaultSubscribeRetryInterval
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Listener{bus: bus, handler: handler, log: log, interval: interval}
}

// Run subscribes, retrying on the interval until it succeeds or ctx is done.
func (l *Listener) Run(ctx context.Context) {
	if l == nil || l.bus == nil {
		return
	}
	if l.subscribe(ctx) {
		return
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if l.subscribe(ctx) {
				return
			}
		}
	}
}

func (l *Listener) subscribe(ctx context.Context) bool {
	if err := l.bus.Subscribe(ctx, l.handler); err != nil {
		l.log.Warn("cache invalidation subscribe failed", "error", err, "retryIn", l.interval.String())
		return false
	}
	l.log.Info("cache invalidation subscribed")
	return true
}
