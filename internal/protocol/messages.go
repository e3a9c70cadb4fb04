// Package protocol implements the JSON wire protocol spoken by the
// network backends: inbound frame parsing and validation, and outbound
// request construction with echo correlation ids.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SupportedProtocolVersion is the single protocol version this client
// understands. A full snapshot declaring any other version is fatal for
// that endpoint's connection.
const SupportedProtocolVersion = 3

// Inbound frame type tags.
const (
	TypeFull                = "full"
	TypeMaintenanceStatus   = "maintenance_status_update"
	TypePlayerAdd           = "players_update_add"
	TypePlayerRemove        = "players_update_remove"
	TypeServerUpdate        = "server_update"
	TypeNoticeReturn        = "notice_return"
	TypeNoticeAddRespond    = "notice_update_add_respond"
	TypeNoticeRemoveRespond = "notice_update_remove_respond"
)

// Message is the closed union of parsed inbound frames. Exactly one
// concrete type exists per wire tag; unrecognized tags parse into
// *UnknownMessage so forward-compatible frames survive validation.
type Message interface {
	// MessageType returns the wire tag the frame was parsed from.
	MessageType() string
}

// ServerStatus is the canonical per-server state carried by snapshots
// and deltas. A bare number on the wire is the compact delta form and
// decodes as {Online: n, IsOnline: true}.
type ServerStatus struct {
	Online      int    `json:"online"`
	MaxPlayers  int    `json:"maxPlayers,omitempty"`
	IsOnline    bool   `json:"isOnline"`
	DisplayName string `json:"displayName,omitempty"`
	Address     string `json:"address,omitempty"`
	Uptime      int64  `json:"uptime,omitempty"`
	TotalUptime int64  `json:"totalUptime,omitempty"`
}

// UnmarshalJSON accepts either the verbose object form or the compact
// numeric delta form.
func (s *ServerStatus) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty server status value")
	}

	if trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9') {
		var n int
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return fmt.Errorf("invalid numeric server status: %w", err)
		}
		*s = ServerStatus{Online: n, IsOnline: true}
		return nil
	}

	type plain ServerStatus
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return fmt.Errorf("invalid server status object: %w", err)
	}
	*s = ServerStatus(p)
	return nil
}

// PlayerInfo describes one online player as reported by the backend.
type PlayerInfo struct {
	UUID          string `json:"uuid"`
	IGN           string `json:"ign"`
	CurrentServer string `json:"currentServer"`
	JoinTime      int64  `json:"joinTime,omitempty"`
	LastSeen      int64  `json:"lastSeen,omitempty"`
}

// Notice is one announcement entry.
type Notice struct {
	Title string          `json:"title"`
	Text  string          `json:"text"`
	Time  int64           `json:"time"`
	Color string          `json:"color"`
	Rich  json.RawMessage `json:"rich,omitempty"`
}

// FullMessage is a complete state snapshot from the primary endpoint.
type FullMessage struct {
	ProtocolVersion      int                     `json:"protocol_version"`
	Servers              map[string]ServerStatus `json:"servers"`
	Players              map[string]PlayerInfo   `json:"players"`
	RunningTime          int64                   `json:"runningTime"`
	TotalRunningTime     int64                   `json:"totalRunningTime"`
	IsMaintenance        bool                    `json:"isMaintenance"`
	MaintenanceStartTime *int64                  `json:"maintenanceStartTime"`
}

func (*FullMessage) MessageType() string { return TypeFull }

// MaintenanceMessage flips maintenance mode. Status is truthy when it
// is boolean true or the string "true"; anything else exits maintenance.
type MaintenanceMessage struct {
	Status    any    `json:"status"`
	StartTime *int64 `json:"startTime"`
}

func (*MaintenanceMessage) MessageType() string { return TypeMaintenanceStatus }

// StatusTruthy reports whether the maintenance status field requests
// entering maintenance mode.
func (m *MaintenanceMessage) StatusTruthy() bool {
	switch v := m.Status.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

// PlayerAddMessage reports one player joining the network.
type PlayerAddMessage struct {
	Player       PlayerInfo `json:"player"`
	TotalPlayers *int       `json:"totalPlayers"`
}

func (*PlayerAddMessage) MessageType() string { return TypePlayerAdd }

// PlayerRemoveMessage reports one player leaving the network.
type PlayerRemoveMessage struct {
	Player       PlayerInfo `json:"player"`
	TotalPlayers *int       `json:"totalPlayers"`
}

func (*PlayerRemoveMessage) MessageType() string { return TypePlayerRemove }

// ServerUpdateMessage carries per-server deltas. When PreviousServer
// and NewServer are both present the delta also encodes a player move.
type ServerUpdateMessage struct {
	Servers        map[string]ServerStatus `json:"servers"`
	PlayerID       string                  `json:"playerId,omitempty"`
	PreviousServer string                  `json:"previousServer,omitempty"`
	NewServer      string                  `json:"newServer,omitempty"`
}

func (*ServerUpdateMessage) MessageType() string { return TypeServerUpdate }

// HasPlayerMove reports whether the delta embeds a player move.
func (m *ServerUpdateMessage) HasPlayerMove() bool {
	return m.PreviousServer != "" && m.NewServer != ""
}

// NoticeReturnMessage answers a get_notice request.
type NoticeReturnMessage struct {
	Error   string            `json:"error,omitempty"`
	Notices map[string]Notice `json:"notices"`
	Page    int               `json:"page"`
	Counts  int               `json:"counts"`
	Total   *int              `json:"total"`
}

func (*NoticeReturnMessage) MessageType() string { return TypeNoticeReturn }

// NoticeUpdateMessage reports an announcement being added or removed.
type NoticeUpdateMessage struct {
	wireType string
	Data     json.RawMessage `json:"data"`
}

func (m *NoticeUpdateMessage) MessageType() string { return m.wireType }

// UnknownMessage wraps a structurally valid frame whose type tag is not
// recognized. Routing sends it to the unhandled branch.
type UnknownMessage struct {
	wireType string
	Raw      json.RawMessage
}

func (m *UnknownMessage) MessageType() string { return m.wireType }

// SurvivalPlayer is one entry of the survival endpoint's player list,
// which may be a bare username string or a {uuid, name} object.
type SurvivalPlayer struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts both the bare-string and object forms.
func (p *SurvivalPlayer) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return err
		}
		*p = SurvivalPlayer{Name: name}
		return nil
	}

	type plain SurvivalPlayer
	var v plain
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return fmt.Errorf("invalid survival player entry: %w", err)
	}
	*p = SurvivalPlayer(v)
	return nil
}

// SurvivalFullMessage is the survival endpoint's minimal snapshot
// format. It has no protocol version and no maintenance concept; the
// multi-endpoint router normalizes it into a FullMessage.
type SurvivalFullMessage struct {
	Players struct {
		Max     int              `json:"max"`
		Curr    int              `json:"curr"`
		Players []SurvivalPlayer `json:"players"`
	} `json:"players"`
	ServerVersion string `json:"server-version"`
}

func (*SurvivalFullMessage) MessageType() string { return TypeFull }
