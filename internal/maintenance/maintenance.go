// Package maintenance tracks the network's maintenance mode as a small
// state machine with named transitions (message, force, reset). It has
// no transport knowledge; the router delegates flag resolution here so
// the sticky-override rule lives in exactly one place.
package maintenance

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Transition sources.
const (
	SourceMessage = "message"
	SourceForce   = "force"
	SourceReset   = "reset"
)

// State is the current maintenance-mode state. ForceShow is a sticky
// override: once set by an explicit maintenance-start message it pins
// IsMaintenance true regardless of snapshot content until it is
// explicitly cleared.
type State struct {
	IsMaintenance bool       `json:"is_maintenance"`
	StartTime     *time.Time `json:"start_time"`
	ForceShow     bool       `json:"force_show"`
}

// Transition describes one state change delivered to subscribers.
type Transition struct {
	Previous  State
	Current   State
	Timestamp time.Time
	Source    string
}

// SubscriberFunc receives state transitions.
type SubscriberFunc func(Transition)

// Handler owns the maintenance state machine.
type Handler struct {
	mu          sync.Mutex
	state       State
	subscribers []SubscriberFunc
	now         func() time.Time
}

// NewHandler creates a maintenance handler.
func NewHandler() *Handler {
	return &Handler{now: time.Now}
}

// Subscribe registers a transition subscriber. Subscribers are invoked
// synchronously on every state change.
func (h *Handler) Subscribe(fn SubscriberFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers = append(h.subscribers, fn)
}

// State returns a copy of the current state.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// HandleMaintenanceMessage applies an explicit maintenance status
// update. A truthy status enters maintenance and sets the sticky
// override; anything else exits and clears it.
func (h *Handler) HandleMaintenanceMessage(enter bool, startTime *time.Time) State {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.state
	if enter {
		next.IsMaintenance = true
		next.ForceShow = true
		if startTime != nil {
			next.StartTime = startTime
		} else if next.StartTime == nil {
			t := h.now()
			next.StartTime = &t
		}
	} else {
		next.IsMaintenance = false
		next.ForceShow = false
		next.StartTime = nil
	}

	return h.transition(next, SourceMessage)
}

// HandleFullMessage resolves the maintenance flag carried by a full
// snapshot. While the sticky override is set, a conflicting
// isMaintenance=false is suppressed.
func (h *Handler) HandleFullMessage(isMaintenance bool, startTime *time.Time) State {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.state
	if h.state.ForceShow {
		next.IsMaintenance = true
		if startTime != nil {
			next.StartTime = startTime
		}
	} else {
		next.IsMaintenance = isMaintenance
		if isMaintenance {
			next.StartTime = startTime
		} else {
			next.StartTime = nil
		}
	}

	return h.transition(next, SourceMessage)
}

// ForceMaintenanceMode sets or clears the operator override.
func (h *Handler) ForceMaintenanceMode(on bool) State {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.state
	next.ForceShow = on
	if on {
		next.IsMaintenance = true
		if next.StartTime == nil {
			t := h.now()
			next.StartTime = &t
		}
	} else {
		next.IsMaintenance = false
		next.StartTime = nil
	}

	return h.transition(next, SourceForce)
}

// Reset returns the handler to its zero state.
func (h *Handler) Reset() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transition(State{}, SourceReset)
}

// transition records the new state and notifies subscribers. Callers
// hold h.mu.
func (h *Handler) transition(next State, source string) State {
	prev := h.state
	h.state = next

	t := Transition{
		Previous:  prev,
		Current:   next,
		Timestamp: h.now(),
		Source:    source,
	}

	log.Debug().
		Bool("is_maintenance", next.IsMaintenance).
		Bool("force_show", next.ForceShow).
		Str("source", source).
		Msg("maintenance state changed")

	for _, fn := range h.subscribers {
		fn(t)
	}
	return next
}
