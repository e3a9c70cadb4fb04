package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netpulse-project/netpulse/internal/events"
)

// DefaultConnectTimeout bounds one dial attempt.
const DefaultConnectTimeout = 10 * time.Second

// ErrAlreadyConnecting is returned by Connect while a concurrent
// connection attempt is in flight.
var ErrAlreadyConnecting = errors.New("connection attempt already in progress")

// MessageFunc receives raw inbound frames tagged with their endpoint.
type MessageFunc func(endpoint string, raw []byte)

// TransitionFunc receives state transitions. clean is true only for
// locally requested disconnects, so the coordinator can tell a user
// Disconnect from a dropped socket.
type TransitionFunc func(p events.StateChangePayload, clean bool)

// Supervisor owns the lifecycle of exactly one endpoint connection:
// dial with timeout, read loop, graceful close, forced teardown. It is
// the sole owner of that endpoint's ConnectionState; observers learn
// about transport health only through its transitions.
type Supervisor struct {
	mu sync.Mutex

	name    string
	url     string
	dialer  Dialer
	timeout time.Duration

	state   events.ConnectionState
	conn    Conn
	gen     uint64 // connection generation; stale read loops check it and bow out
	closing bool

	onTransition TransitionFunc
	onMessage    MessageFunc
}

// SupervisorOptions configures a Supervisor.
type SupervisorOptions struct {
	Name    string
	URL     string
	Dialer  Dialer
	Timeout time.Duration
}

// NewSupervisor creates a supervisor for one endpoint.
func NewSupervisor(opts SupervisorOptions) *Supervisor {
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultConnectTimeout
	}
	return &Supervisor{
		name:    opts.Name,
		url:     opts.URL,
		dialer:  opts.Dialer,
		timeout: opts.Timeout,
		state:   events.StateDisconnected,
	}
}

// OnTransition sets the state-transition callback. Must be set before Connect.
func (s *Supervisor) OnTransition(fn TransitionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTransition = fn
}

// OnMessage sets the inbound frame callback. Must be set before Connect.
func (s *Supervisor) OnMessage(fn MessageFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = fn
}

// Name returns the endpoint name.
func (s *Supervisor) Name() string { return s.name }

// State returns the current connection state.
func (s *Supervisor) State() events.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect opens the transport. It is a no-op when already connected and
// fails fast when another attempt is in flight. The attempt is bounded
// by the configured timeout; on timeout or dial error the supervisor
// transitions to failed and the error is returned.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case events.StateConnected:
		s.mu.Unlock()
		return nil
	case events.StateConnecting:
		s.mu.Unlock()
		return ErrAlreadyConnecting
	}
	s.closing = false
	emit := s.setStateLocked(events.StateConnecting)
	gen := s.gen
	s.mu.Unlock()
	emit()

	dialCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.dialer.Dial(dialCtx, s.url)
	if err != nil {
		s.mu.Lock()
		emit := s.setStateLocked(events.StateFailed)
		s.mu.Unlock()
		emit()
		return fmt.Errorf("dial %s: %w", s.name, err)
	}

	s.mu.Lock()
	if s.gen != gen || s.state != events.StateConnecting {
		// Torn down while dialing; discard the late socket.
		s.mu.Unlock()
		conn.Close()
		return fmt.Errorf("dial %s: connection torn down during attempt", s.name)
	}
	s.conn = conn
	s.gen++
	readGen := s.gen
	emit = s.setStateLocked(events.StateConnected)
	s.mu.Unlock()
	emit()

	log.Info().Str("endpoint", s.name).Str("url", s.url).Msg("endpoint connected")

	go s.readLoop(conn, readGen)
	return nil
}

// Disconnect closes gracefully if open or connecting, otherwise no-ops.
// It always ends in disconnected and the resulting transition is clean.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	if s.state == events.StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.closing = true
	s.gen++
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	emit := s.setStateLocked(events.StateDisconnected)
	s.mu.Unlock()
	emit()

	log.Info().Str("endpoint", s.name).Msg("endpoint disconnected")
}

// ForceClose tears the connection down without emitting further
// transitions. Used for full shutdown so listeners are never invoked
// during teardown.
func (s *Supervisor) ForceClose() {
	s.mu.Lock()
	s.onTransition = nil
	s.onMessage = nil
	s.closing = true
	s.gen++
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.state = events.StateDisconnected
	s.mu.Unlock()
}

// SetReconnecting marks the supervisor as waiting for a scheduled
// reconnection attempt. The state is caller-signaled: the supervisor
// never enters it on its own.
func (s *Supervisor) SetReconnecting() {
	s.mu.Lock()
	emit := s.setStateLocked(events.StateReconnecting)
	s.mu.Unlock()
	emit()
}

// Send writes one frame to the endpoint.
func (s *Supervisor) Send(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	state := s.state
	s.mu.Unlock()

	if state != events.StateConnected || conn == nil {
		return fmt.Errorf("endpoint %s is not connected", s.name)
	}
	return conn.WriteMessage(data)
}

// readLoop delivers inbound frames in arrival order until the
// connection drops or the generation goes stale.
func (s *Supervisor) readLoop(conn Conn, gen uint64) {
	for {
		data, err := conn.ReadMessage()

		s.mu.Lock()
		if s.gen != gen {
			// Superseded by a disconnect, teardown, or newer connection.
			s.mu.Unlock()
			return
		}

		if err != nil {
			clean := s.closing
			s.conn = nil
			s.gen++
			var emit func()
			if clean {
				emit = s.setStateLocked(events.StateDisconnected)
			} else {
				emit = s.setStateLocked(events.StateFailed)
			}
			s.mu.Unlock()

			if !clean {
				log.Warn().Err(err).Str("endpoint", s.name).Msg("connection lost")
			}
			emit()
			return
		}

		onMessage := s.onMessage
		s.mu.Unlock()

		if onMessage != nil {
			onMessage(s.name, data)
		}
	}
}

// setStateLocked records a transition and returns a closure that
// notifies the listener. Callers hold s.mu and must invoke the closure
// after unlocking so listeners can call back into the supervisor.
func (s *Supervisor) setStateLocked(next events.ConnectionState) func() {
	prev := s.state
	s.state = next
	fn := s.onTransition
	clean := s.closing

	if fn == nil || prev == next {
		return func() {}
	}

	payload := events.StateChangePayload{
		Endpoint:  s.name,
		Previous:  prev,
		Current:   next,
		Timestamp: time.Now(),
	}
	return func() { fn(payload, clean) }
}
