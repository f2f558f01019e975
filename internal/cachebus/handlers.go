package cachebus

import (
	"context"

	"lead_cadence_backend/internal/events"
	"lead_cadence_backend/platform/logger"
)

// StrategyInvalidator drops cached strategies.
type StrategyInvalidator interface {
	Invalidate(category string)
}

// RegisterHandlers invalidates the organization's dashboard stats whenever a
// qualification or its override changes.
func RegisterHandlers(bus events.Bus, cache Bus) {
	invalidate := func(ctx context.Context, e events.Event) error {
		switch evt := e.(type) {
		case events.LeadQualificationSubmitted:
			return cache.InvalidateLeadScoringStats(ctx, evt.OrganizationID)
		case events.LeadClassificationOverridden:
			return cache.InvalidateLeadScoringStats(ctx, evt.OrganizationID)
		}
		return nil
	}
	bus.Subscribe(events.LeadQualificationSubmitted{}.EventName(), events.HandlerFunc(invalidate))
	bus.Subscribe(events.LeadClassificationOverridden{}.EventName(), events.HandlerFunc(invalidate))
}

// StrategyHandler purges local strategy cache entries announced by other replicas.
func StrategyHandler(store StrategyInvalidator, log *logger.Logger) Handler {
	return func(_ context.Context, msg Message) {
		if msg.Kind != KindCadenceStrategy {
			return
		}
		store.Invalidate(msg.Key)
		if log != nil {
			log.Debug("cadence strategy cache invalidated", "category", msg.Key)
		}
	}
}
