// Package events defines the event system connecting transport,
// routing, and the state store.
package events

import (
	"encoding/json"
	"time"

	"github.com/netpulse-project/netpulse/internal/protocol"
)

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Connection lifecycle events
	EventConnected        EventType = "connected"
	EventDisconnected     EventType = "disconnected"
	EventReconnecting     EventType = "reconnecting"
	EventConnectionFailed EventType = "connection_failed"
	EventStateChange      EventType = "state_change"
	EventConnectionError  EventType = "connection_error"

	// Protocol events
	EventProtocolMismatch EventType = "protocol_version_mismatch"
	EventUnhandledMessage EventType = "unhandled_message"

	// Domain events
	EventFullUpdate        EventType = "full_update"
	EventMaintenanceUpdate EventType = "maintenance_update"
	EventPlayerAdd         EventType = "player_add"
	EventPlayerRemove      EventType = "player_remove"
	EventPlayerMove        EventType = "player_move"
	EventPlayerUpdate      EventType = "player_update"
	EventServerUpdate      EventType = "server_update"
	EventNoticeReturn      EventType = "notice_return"
	EventNoticeError       EventType = "notice_error"
	EventNoticeUpdate      EventType = "notice_update"

	// System events
	EventShutdown EventType = "shutdown"
)

// ConnectionState represents the transport health of one endpoint.
// Transitions are owned exclusively by that endpoint's supervisor.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

// connectionStateStrings maps ConnectionState values to their lowercase
// JSON string representation.
var connectionStateStrings = map[ConnectionState]string{
	StateDisconnected: "disconnected",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateReconnecting: "reconnecting",
	StateFailed:       "failed",
}

// String returns the string representation of ConnectionState.
func (s ConnectionState) String() string {
	if str, ok := connectionStateStrings[s]; ok {
		return str
	}
	return "disconnected"
}

// MarshalJSON serializes ConnectionState as a JSON string (e.g. "connected").
func (s ConnectionState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// StateChangePayload describes one supervisor state transition.
type StateChangePayload struct {
	Endpoint  string          `json:"endpoint"`
	Previous  ConnectionState `json:"previous"`
	Current   ConnectionState `json:"current"`
	Timestamp time.Time       `json:"timestamp"`
}

// ReconnectingPayload announces a scheduled reconnection attempt.
type ReconnectingPayload struct {
	Endpoint    string        `json:"endpoint"`
	Attempt     int           `json:"attempt"`
	Delay       time.Duration `json:"delay"`
	MaxAttempts int           `json:"max_attempts"`
}

// ConnectionFailedPayload is the terminal event after retries are exhausted.
type ConnectionFailedPayload struct {
	Endpoint      string `json:"endpoint"`
	MaxAttempts   int    `json:"max_attempts"`
	TotalAttempts int    `json:"total_attempts"`
}

// ConnectionErrorPayload carries a transport error surfaced as state.
type ConnectionErrorPayload struct {
	Endpoint string `json:"endpoint"`
	Err      error  `json:"-"`
	Message  string `json:"message"`
}

// ProtocolMismatchPayload is emitted once per connection when a full
// snapshot declares an unsupported protocol version.
type ProtocolMismatchPayload struct {
	Endpoint      string `json:"endpoint"`
	ServerVersion int    `json:"server_version"`
	ClientVersion int    `json:"client_version"`
	Message       string `json:"message"`
}

// FullUpdatePayload is the normalized snapshot emitted by the router.
// HasUptime is set only for endpoints whose snapshots carry uptime
// counters, so a snapshot without them cannot clobber the baseline.
type FullUpdatePayload struct {
	Source               string
	Servers              map[string]protocol.ServerStatus
	Players              map[string]protocol.PlayerInfo
	RunningTime          int64
	TotalRunningTime     int64
	HasUptime            bool
	IsMaintenance        bool
	MaintenanceStartTime *time.Time
}

// MaintenancePayload describes a maintenance state transition.
type MaintenancePayload struct {
	IsMaintenance bool       `json:"is_maintenance"`
	StartTime     *time.Time `json:"start_time"`
	Forced        bool       `json:"forced"`
	Source        string     `json:"source"`
}

// PlayerAddPayload reports a player joining a server.
type PlayerAddPayload struct {
	Endpoint string
	PlayerID string
	ServerID string
	Player   protocol.PlayerInfo
}

// PlayerRemovePayload reports a player leaving the network.
type PlayerRemovePayload struct {
	Endpoint string
	PlayerID string
	ServerID string
}

// PlayerMovePayload reports a player switching servers.
type PlayerMovePayload struct {
	PlayerID   string
	FromServer string
	ToServer   string
}

// PlayerUpdatePayload carries an authoritative player total, or nil to
// signal that the total must be recomputed from current state.
type PlayerUpdatePayload struct {
	Total *int
}

// ServerUpdatePayload carries normalized per-server deltas.
type ServerUpdatePayload struct {
	Source  string
	Servers map[string]protocol.ServerStatus
}

// NoticeReturnPayload carries one page of normalized announcements.
type NoticeReturnPayload struct {
	Notices map[string]protocol.Notice
	Page    int
	Counts  int
	Total   *int
}

// NoticeErrorPayload reports an announcement fetch failure.
type NoticeErrorPayload struct {
	Message string `json:"message"`
}

// NoticeUpdatePayload relays an announcement add/remove response unchanged.
type NoticeUpdatePayload struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// UnhandledMessagePayload wraps a frame the router has no semantics for.
type UnhandledMessagePayload struct {
	Endpoint string
	WireType string
}
