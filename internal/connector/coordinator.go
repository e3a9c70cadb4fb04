package connector

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netpulse-project/netpulse/internal/events"
)

// Coordinator bridges one endpoint's transport transitions into domain
// events and owns the retry trigger. On a non-clean drop it consults
// the reconnect policy, emits reconnecting with attempt metadata, and
// schedules the stored connect callback; exhausted retries emit a
// terminal connection_failed. A successful connection resets the policy.
type Coordinator struct {
	mu sync.Mutex

	endpoint string
	bus      *events.EventBus
	policy   *ReconnectPolicy
	sup      *Supervisor

	connect func(ctx context.Context) error
	timer   *time.Timer
	stopped bool
}

// NewCoordinator creates a coordinator for one endpoint. connect is the
// callback invoked for every scheduled retry.
func NewCoordinator(endpoint string, bus *events.EventBus, policy *ReconnectPolicy, sup *Supervisor, connect func(ctx context.Context) error) *Coordinator {
	return &Coordinator{
		endpoint: endpoint,
		bus:      bus,
		policy:   policy,
		sup:      sup,
		connect:  connect,
	}
}

// HandleTransition reacts to one supervisor state transition.
func (c *Coordinator) HandleTransition(ctx context.Context, p events.StateChangePayload, clean bool) {
	switch p.Current {
	case events.StateConnected:
		c.mu.Lock()
		c.policy.Reset()
		c.cancelTimerLocked()
		c.mu.Unlock()

		c.bus.Emit(ctx, events.Event{
			Type:    events.EventConnected,
			Source:  c.endpoint,
			Payload: p,
		})

	case events.StateDisconnected, events.StateFailed:
		if p.Current == events.StateFailed {
			c.bus.Emit(ctx, events.Event{
				Type:   events.EventConnectionError,
				Source: c.endpoint,
				Payload: events.ConnectionErrorPayload{
					Endpoint: c.endpoint,
					Message:  "transport failure",
				},
			})
		}
		c.bus.Emit(ctx, events.Event{
			Type:    events.EventDisconnected,
			Source:  c.endpoint,
			Payload: p,
		})
		if !clean {
			c.scheduleRetry(ctx)
		}
	}

	c.bus.Emit(ctx, events.Event{
		Type:    events.EventStateChange,
		Source:  c.endpoint,
		Payload: p,
	})
}

// scheduleRetry arms the next reconnection attempt or emits the
// terminal failure. Any pending timer is cancelled and replaced, never
// stacked.
func (c *Coordinator) scheduleRetry(ctx context.Context) {
	c.mu.Lock()

	if c.stopped || !c.policy.ShouldReconnect() {
		maxAttempts := c.policy.MaxAttempts()
		total := c.policy.Attempts()
		stopped := c.stopped
		c.mu.Unlock()

		if stopped {
			return
		}
		log.Warn().
			Str("endpoint", c.endpoint).
			Int("attempts", total).
			Msg("reconnection attempts exhausted")
		c.bus.Emit(ctx, events.Event{
			Type:   events.EventConnectionFailed,
			Source: c.endpoint,
			Payload: events.ConnectionFailedPayload{
				Endpoint:      c.endpoint,
				MaxAttempts:   maxAttempts,
				TotalAttempts: total,
			},
		})
		return
	}

	delay := c.policy.NextDelay()
	c.policy.IncrementAttempts()
	attempt := c.policy.Attempts()
	maxAttempts := c.policy.MaxAttempts()

	c.cancelTimerLocked()
	c.timer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			return
		}
		if err := c.connect(ctx); err != nil {
			log.Debug().Err(err).Str("endpoint", c.endpoint).Msg("scheduled reconnect failed")
		}
	})
	c.mu.Unlock()

	log.Info().
		Str("endpoint", c.endpoint).
		Int("attempt", attempt).
		Int("max_attempts", maxAttempts).
		Dur("delay", delay).
		Msg("reconnection scheduled")

	if c.sup != nil {
		c.sup.SetReconnecting()
	}

	c.bus.Emit(ctx, events.Event{
		Type:   events.EventReconnecting,
		Source: c.endpoint,
		Payload: events.ReconnectingPayload{
			Endpoint:    c.endpoint,
			Attempt:     attempt,
			Delay:       delay,
			MaxAttempts: maxAttempts,
		},
	})
}

// HandleProtocolMismatch reacts to a fatal protocol-version mismatch:
// the endpoint is disconnected immediately, bypassing normal retry.
func (c *Coordinator) HandleProtocolMismatch() {
	c.mu.Lock()
	c.cancelTimerLocked()
	c.policy.SetEnabled(false)
	c.mu.Unlock()

	if c.sup != nil {
		c.sup.Disconnect()
	}
}

// Stop cancels any pending retry. Further transitions are ignored for
// retry purposes.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.cancelTimerLocked()
}

// Resume re-enables retry scheduling after a Stop (used by pause/resume).
func (c *Coordinator) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = false
	c.policy.Reset()
}

// cancelTimerLocked stops a pending retry timer. Callers hold c.mu.
func (c *Coordinator) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
