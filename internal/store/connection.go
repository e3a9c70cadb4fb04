package store

import "github.com/netpulse-project/netpulse/internal/events"

// ConnectionSnapshot is the per-endpoint and aggregate transport view.
type ConnectionSnapshot struct {
	Endpoints map[string]events.ConnectionState `json:"endpoints"`
	Overall   events.ConnectionState            `json:"overall"`
}

// ConnectionView tracks the last reported state of every endpoint plus
// the debounced overall status. Not synchronized; the aggregator
// serializes access.
type ConnectionView struct {
	endpoints map[string]events.ConnectionState
	overall   events.ConnectionState
}

// NewConnectionView creates a view with all endpoints disconnected.
func NewConnectionView() *ConnectionView {
	return &ConnectionView{endpoints: make(map[string]events.ConnectionState)}
}

// SetEndpoint records one endpoint's state.
func (v *ConnectionView) SetEndpoint(name string, state events.ConnectionState) {
	v.endpoints[name] = state
}

// SetOverall records the aggregate status.
func (v *ConnectionView) SetOverall(state events.ConnectionState) {
	v.overall = state
}

// Endpoint returns the last known state of name.
func (v *ConnectionView) Endpoint(name string) events.ConnectionState {
	return v.endpoints[name]
}

// Snapshot returns a copy of the full view.
func (v *ConnectionView) Snapshot() ConnectionSnapshot {
	eps := make(map[string]events.ConnectionState, len(v.endpoints))
	for k, s := range v.endpoints {
		eps[k] = s
	}
	return ConnectionSnapshot{Endpoints: eps, Overall: v.overall}
}

// Reset wipes the view.
func (v *ConnectionView) Reset() {
	v.endpoints = make(map[string]events.ConnectionState)
	v.overall = events.StateDisconnected
}
