package eventbus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-io/caseflow/pkg/channels/gochannel"
	"github.com/caseflow-io/caseflow/pkg/eventbus"
	"github.com/caseflow-io/caseflow/pkg/events"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestGenerateID(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestPublishAndSubscribe(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		received []*events.InstanceStarted
	)

	bus.Handle(events.InstanceStartedEvent, func(_ context.Context, event any) error {
		started, ok := event.(*events.InstanceStarted)
		require.True(t, ok)

		mu.Lock()
		received = append(received, started)
		mu.Unlock()

		return nil
	})

	require.NoError(t, bus.Subscribe(ctx))

	err := bus.Publish(ctx, "instance-1", events.InstanceStarted{
		BaseEvent: events.BaseEvent{
			ID:                  "evt-1",
			Type:                events.InstanceStartedEvent,
			Timestamp:           time.Now().UTC(),
			InstanceID:          "instance-1",
			ProcessDefinitionID: "expense-approval",
		},
		DocumentNumber: 7,
		CurrentNodeID:  "intake",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, "instance-1", received[0].InstanceID)
	assert.Equal(t, int64(7), received[0].DocumentNumber)
	assert.Equal(t, "intake", received[0].CurrentNodeID)
}

func TestSubscribeIgnoresUnhandledEventTypes(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu        sync.Mutex
		completed int
	)

	bus.Handle(events.InstanceCompletedEvent, func(_ context.Context, _ any) error {
		mu.Lock()
		completed++
		mu.Unlock()

		return nil
	})

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for step.saved; the bus must ack and move on.
	require.NoError(t, bus.Publish(ctx, "instance-1", events.StepSaved{
		BaseEvent: events.BaseEvent{ID: "evt-1", Type: events.StepSavedEvent, InstanceID: "instance-1"},
		NodeID:    "intake",
	}))
	require.NoError(t, bus.Publish(ctx, "instance-1", events.InstanceCompleted{
		BaseEvent: events.BaseEvent{ID: "evt-2", Type: events.InstanceCompletedEvent, InstanceID: "instance-1"},
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return completed == 1
	}, 2*time.Second, 10*time.Millisecond)
}
