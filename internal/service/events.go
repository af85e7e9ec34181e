package service

import (
	"context"

	"go.uber.org/zap"

	"obra-data/internal/domain"
)

// EventPublisher delivers committed changes to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// NopPublisher drops every event; used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.Event) error { return nil }

// publish runs after commit. A delivery failure is logged and swallowed.
func publish(ctx context.Context, p EventPublisher, logger *zap.Logger, ev domain.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		logger.Warn("event publish failed",
			zap.String("event_type", string(ev.Type)),
			zap.Int64("entity_id", ev.EntityID),
			zap.Error(err),
		)
	}
}
