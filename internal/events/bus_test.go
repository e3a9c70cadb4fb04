package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitRunsHandlersInRegistrationOrder(t *testing.T) {
	bus := NewEventBus()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		bus.Subscribe(EventServerUpdate, name, func(ctx context.Context, ev Event) error {
			order = append(order, name)
			return nil
		})
	}

	bus.Emit(context.Background(), Event{Type: EventServerUpdate, Source: "test"})

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestEmitIsSynchronous(t *testing.T) {
	bus := NewEventBus()

	applied := false
	bus.Subscribe(EventFullUpdate, "store", func(ctx context.Context, ev Event) error {
		applied = true
		return nil
	})

	bus.Emit(context.Background(), Event{Type: EventFullUpdate})

	// Emit must not return before the handler has run.
	assert.True(t, applied)
}

func TestPanickingHandlerDoesNotStopDispatch(t *testing.T) {
	bus := NewEventBus()

	var reached bool
	bus.Subscribe(EventServerUpdate, "panics", func(ctx context.Context, ev Event) error {
		panic("boom")
	})
	bus.Subscribe(EventServerUpdate, "survives", func(ctx context.Context, ev Event) error {
		reached = true
		return nil
	})

	require.NotPanics(t, func() {
		bus.Emit(context.Background(), Event{Type: EventServerUpdate})
	})
	assert.True(t, reached)
}

func TestHandlerErrorIsTolerated(t *testing.T) {
	bus := NewEventBus()

	var reached bool
	bus.Subscribe(EventServerUpdate, "fails", func(ctx context.Context, ev Event) error {
		return errors.New("apply failed")
	})
	bus.Subscribe(EventServerUpdate, "survives", func(ctx context.Context, ev Event) error {
		reached = true
		return nil
	})

	bus.Emit(context.Background(), Event{Type: EventServerUpdate})
	assert.True(t, reached)
}

func TestUnsubscribeRemovesNamedHandler(t *testing.T) {
	bus := NewEventBus()

	var calls int
	bus.Subscribe(EventPlayerAdd, "store", func(ctx context.Context, ev Event) error {
		calls++
		return nil
	})
	bus.Subscribe(EventPlayerAdd, "telemetry", func(ctx context.Context, ev Event) error {
		return nil
	})
	require.Equal(t, 2, bus.HandlerCount(EventPlayerAdd))

	bus.Unsubscribe(EventPlayerAdd, "store")
	assert.Equal(t, 1, bus.HandlerCount(EventPlayerAdd))

	bus.Emit(context.Background(), Event{Type: EventPlayerAdd})
	assert.Zero(t, calls)
}

func TestEmitAfterStopIsDropped(t *testing.T) {
	bus := NewEventBus()

	var calls int
	bus.Subscribe(EventServerUpdate, "store", func(ctx context.Context, ev Event) error {
		calls++
		return nil
	})

	bus.Stop()
	bus.Emit(context.Background(), Event{Type: EventServerUpdate})

	assert.Zero(t, calls)

	select {
	case <-bus.StopCh():
	default:
		t.Fatal("stop channel should be closed")
	}
}

func TestEventPayloadReachesHandler(t *testing.T) {
	bus := NewEventBus()

	var got ServerUpdatePayload
	bus.Subscribe(EventServerUpdate, "store", func(ctx context.Context, ev Event) error {
		got = ev.Payload.(ServerUpdatePayload)
		return nil
	})

	bus.Emit(context.Background(), Event{
		Type:   EventServerUpdate,
		Source: "minigames",
		Payload: ServerUpdatePayload{
			ServerID: "bedwars",
			Status:   "online",
		},
	})

	assert.Equal(t, "bedwars", got.ServerID)
	assert.Equal(t, "online", got.Status)
}
