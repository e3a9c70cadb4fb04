package connector

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netpulse-project/netpulse/internal/events"
)

// OverallDebounce is how long the pool waits after a state change
// before recomputing the derived overall status, so simultaneous
// multi-socket churn does not emit transient flapping.
const OverallDebounce = 100 * time.Millisecond

// OverallFunc receives derived overall-status transitions.
type OverallFunc func(previous, current events.ConnectionState)

// Pool owns a fixed set of named endpoint supervisors. Endpoints
// connect and disconnect independently; one endpoint's failure never
// blocks the others. Inbound frames are republished tagged with their
// source endpoint name.
type Pool struct {
	mu sync.Mutex

	supervisors map[string]*Supervisor
	order       []string

	onMessage    MessageFunc
	onTransition TransitionFunc

	overall       events.ConnectionState
	onOverall     OverallFunc
	debounce      *time.Timer
	debounceDelay time.Duration
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		supervisors:   make(map[string]*Supervisor),
		overall:       events.StateDisconnected,
		debounceDelay: OverallDebounce,
	}
}

// Add registers a supervisor under its endpoint name and wires its
// callbacks through the pool.
func (p *Pool) Add(sup *Supervisor) {
	p.mu.Lock()
	p.supervisors[sup.Name()] = sup
	p.order = append(p.order, sup.Name())
	p.mu.Unlock()

	sup.OnMessage(func(endpoint string, raw []byte) {
		p.mu.Lock()
		fn := p.onMessage
		p.mu.Unlock()
		if fn != nil {
			fn(endpoint, raw)
		}
	})

	sup.OnTransition(func(payload events.StateChangePayload, clean bool) {
		p.mu.Lock()
		fn := p.onTransition
		p.mu.Unlock()
		if fn != nil {
			fn(payload, clean)
		}
		p.scheduleOverallRecompute()
	})
}

// OnMessage sets the endpoint-tagged frame callback.
func (p *Pool) OnMessage(fn MessageFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onMessage = fn
}

// OnTransition sets the endpoint state-transition callback.
func (p *Pool) OnTransition(fn TransitionFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTransition = fn
}

// OnOverall sets the derived overall-status callback.
func (p *Pool) OnOverall(fn OverallFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onOverall = fn
}

// Get returns the named supervisor.
func (p *Pool) Get(name string) (*Supervisor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sup, ok := p.supervisors[name]
	return sup, ok
}

// Names returns the endpoint names in registration order.
func (p *Pool) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

// ConnectAll attempts every endpoint concurrently and independently.
// Errors are collected per endpoint, never thrown across endpoints.
func (p *Pool) ConnectAll(ctx context.Context) map[string]error {
	p.mu.Lock()
	sups := make([]*Supervisor, 0, len(p.order))
	for _, name := range p.order {
		sups = append(sups, p.supervisors[name])
	}
	p.mu.Unlock()

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
	)
	errs := make(map[string]error)

	for _, sup := range sups {
		sup := sup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sup.Connect(ctx); err != nil {
				log.Warn().Err(err).Str("endpoint", sup.Name()).Msg("endpoint connect failed")
				errMu.Lock()
				errs[sup.Name()] = err
				errMu.Unlock()
			}
		}()
	}
	wg.Wait()

	return errs
}

// DisconnectAll gracefully closes every endpoint.
func (p *Pool) DisconnectAll() {
	for _, name := range p.Names() {
		if sup, ok := p.Get(name); ok {
			sup.Disconnect()
		}
	}
}

// ForceCloseAll tears down every endpoint without further transitions.
func (p *Pool) ForceCloseAll() {
	for _, name := range p.Names() {
		if sup, ok := p.Get(name); ok {
			sup.ForceClose()
		}
	}
}

// States returns a snapshot of every endpoint's state.
func (p *Pool) States() map[string]events.ConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	states := make(map[string]events.ConnectionState, len(p.supervisors))
	for name, sup := range p.supervisors {
		states[name] = sup.State()
	}
	return states
}

// Overall returns the current derived overall status.
func (p *Pool) Overall() events.ConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overall
}

// scheduleOverallRecompute resets the debounce timer. The timer is
// replaced, not stacked, on every new state change.
func (p *Pool) scheduleOverallRecompute() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, p.recomputeOverall)
}

// recomputeOverall derives overall status from the individual states:
// any connected wins, else any connecting reads as reconnecting, else
// disconnected.
func (p *Pool) recomputeOverall() {
	p.mu.Lock()

	anyConnected := false
	anyConnecting := false
	for _, sup := range p.supervisors {
		switch sup.State() {
		case events.StateConnected:
			anyConnected = true
		case events.StateConnecting, events.StateReconnecting:
			anyConnecting = true
		}
	}

	next := events.StateDisconnected
	if anyConnected {
		next = events.StateConnected
	} else if anyConnecting {
		next = events.StateReconnecting
	}

	prev := p.overall
	fn := p.onOverall
	p.overall = next
	p.mu.Unlock()

	if prev != next {
		log.Debug().
			Str("previous", prev.String()).
			Str("current", next.String()).
			Msg("overall connection status changed")
		if fn != nil {
			fn(prev, next)
		}
	}
}
