package connector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpulse-project/netpulse/internal/events"
)

// eventCollector records bus events thread-safely.
type eventCollector struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *eventCollector) handler(ctx context.Context, ev events.Event) error {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return nil
}

func (c *eventCollector) ofType(t events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func failedTransition(endpoint string) events.StateChangePayload {
	return events.StateChangePayload{
		Endpoint:  endpoint,
		Previous:  events.StateConnected,
		Current:   events.StateFailed,
		Timestamp: time.Now(),
	}
}

func TestCoordinatorSchedulesRetriesWithBackoff(t *testing.T) {
	bus := events.NewEventBus()
	collector := &eventCollector{}
	bus.Subscribe(events.EventReconnecting, "test", collector.handler)

	policy := NewReconnectPolicy(5, []time.Duration{5 * time.Millisecond, 10 * time.Millisecond})

	connected := make(chan struct{}, 8)
	coord := NewCoordinator("minigames", bus, policy, nil, func(ctx context.Context) error {
		connected <- struct{}{}
		return nil
	})

	ctx := context.Background()

	// First drop: attempt 1 pairs with the first backoff step.
	coord.HandleTransition(ctx, failedTransition("minigames"), false)
	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled reconnect never fired")
	}

	// Second drop before any success: attempt 2 pairs with the second step.
	coord.HandleTransition(ctx, failedTransition("minigames"), false)
	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("second scheduled reconnect never fired")
	}

	recon := collector.ofType(events.EventReconnecting)
	require.Len(t, recon, 2)

	p1 := recon[0].Payload.(events.ReconnectingPayload)
	assert.Equal(t, 1, p1.Attempt)
	assert.Equal(t, 5*time.Millisecond, p1.Delay)

	p2 := recon[1].Payload.(events.ReconnectingPayload)
	assert.Equal(t, 2, p2.Attempt)
	assert.Equal(t, 10*time.Millisecond, p2.Delay)

	coord.Stop()
}

func TestCoordinatorEmitsTerminalFailure(t *testing.T) {
	bus := events.NewEventBus()
	collector := &eventCollector{}
	bus.Subscribe(events.EventConnectionFailed, "test", collector.handler)
	bus.Subscribe(events.EventReconnecting, "test", collector.handler)

	policy := NewReconnectPolicy(2, []time.Duration{time.Millisecond})

	coord := NewCoordinator("minigames", bus, policy, nil, func(ctx context.Context) error {
		return nil
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		coord.HandleTransition(ctx, failedTransition("minigames"), false)
		time.Sleep(10 * time.Millisecond)
	}

	failures := collector.ofType(events.EventConnectionFailed)
	require.Len(t, failures, 1)

	p := failures[0].Payload.(events.ConnectionFailedPayload)
	assert.Equal(t, "minigames", p.Endpoint)
	assert.Equal(t, 2, p.MaxAttempts)
	assert.Equal(t, 2, p.TotalAttempts)

	coord.Stop()
}

func TestCoordinatorCleanDisconnectDoesNotRetry(t *testing.T) {
	bus := events.NewEventBus()
	collector := &eventCollector{}
	bus.Subscribe(events.EventReconnecting, "test", collector.handler)

	policy := NewReconnectPolicy(5, []time.Duration{time.Millisecond})
	coord := NewCoordinator("minigames", bus, policy, nil, func(ctx context.Context) error {
		return nil
	})

	p := events.StateChangePayload{
		Endpoint: "minigames",
		Previous: events.StateConnected,
		Current:  events.StateDisconnected,
	}
	coord.HandleTransition(context.Background(), p, true)
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, collector.ofType(events.EventReconnecting))
}

func TestCoordinatorSuccessResetsPolicy(t *testing.T) {
	bus := events.NewEventBus()
	policy := NewReconnectPolicy(3, []time.Duration{time.Millisecond})
	coord := NewCoordinator("minigames", bus, policy, nil, func(ctx context.Context) error {
		return nil
	})

	policy.IncrementAttempts()
	policy.IncrementAttempts()

	p := events.StateChangePayload{
		Endpoint: "minigames",
		Previous: events.StateConnecting,
		Current:  events.StateConnected,
	}
	coord.HandleTransition(context.Background(), p, false)

	assert.Equal(t, 0, policy.Attempts())
}

func TestCoordinatorProtocolMismatchDisablesRetry(t *testing.T) {
	bus := events.NewEventBus()
	policy := NewReconnectPolicy(5, []time.Duration{time.Millisecond})
	coord := NewCoordinator("minigames", bus, policy, nil, func(ctx context.Context) error {
		return nil
	})

	coord.HandleProtocolMismatch()

	assert.False(t, policy.Enabled())
	assert.False(t, policy.ShouldReconnect())
}
