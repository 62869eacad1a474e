// Package eventbus publishes instance lifecycle events to interested
// consumers (audit, notifications, integrations) over watermill.
package eventbus

import (
	"context"

	"github.com/caseflow-io/caseflow/pkg/events"
)

// EventHandler processes one decoded lifecycle event.
type EventHandler func(ctx context.Context, event any) error

// EventBus publishes and subscribes to instance lifecycle events.
type EventBus interface {
	Publish(ctx context.Context, key string, event events.Event) error
	Handle(eventType events.EventType, handler EventHandler)
	Subscribe(ctx context.Context) error
	GenerateID() string
	Close() error
}
