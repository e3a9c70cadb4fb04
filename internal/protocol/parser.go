package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Parser performs stateless validation and normalization of raw inbound
// frames. It never panics past its own boundary: a malformed frame is
// reported as an error result so one bad frame cannot take down the
// socket handler.
type Parser struct{}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

type envelope struct {
	Type string `json:"type"`
}

// Parse decodes and validates one raw frame into its tagged message
// variant. Frames with an unrecognized type tag are structurally
// accepted and returned as *UnknownMessage.
func (p *Parser) Parse(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("frame has no type field")
	}

	switch env.Type {
	case TypeFull:
		return p.parseFull(raw)
	case TypeMaintenanceStatus:
		return p.parseMaintenance(raw)
	case TypePlayerAdd:
		msg := &PlayerAddMessage{}
		if err := p.parsePlayerUpdate(raw, env.Type, &msg.Player, &msg.TotalPlayers); err != nil {
			return nil, err
		}
		return msg, nil
	case TypePlayerRemove:
		msg := &PlayerRemoveMessage{}
		if err := p.parsePlayerUpdate(raw, env.Type, &msg.Player, &msg.TotalPlayers); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeServerUpdate:
		return p.parseServerUpdate(raw)
	case TypeNoticeReturn:
		return p.parseNoticeReturn(raw)
	case TypeNoticeAddRespond, TypeNoticeRemoveRespond:
		var msg NoticeUpdateMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("invalid %s frame: %w", env.Type, err)
		}
		msg.wireType = env.Type
		return &msg, nil
	default:
		log.Debug().Str("type", env.Type).Msg("unrecognized frame type accepted")
		return &UnknownMessage{wireType: env.Type, Raw: append([]byte(nil), raw...)}, nil
	}
}

// parseFull validates a full snapshot: it must carry servers or players.
func (p *Parser) parseFull(raw []byte) (*FullMessage, error) {
	// Presence probe: distinguish absent maps from empty ones.
	var probe struct {
		Servers json.RawMessage `json:"servers"`
		Players json.RawMessage `json:"players"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("invalid full frame: %w", err)
	}
	if probe.Servers == nil && probe.Players == nil {
		return nil, fmt.Errorf("full frame carries neither servers nor players")
	}

	var msg FullMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid full frame: %w", err)
	}
	return &msg, nil
}

func (p *Parser) parseMaintenance(raw []byte) (*MaintenanceMessage, error) {
	var probe struct {
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("invalid maintenance frame: %w", err)
	}
	if probe.Status == nil {
		return nil, fmt.Errorf("maintenance frame has no status field")
	}

	var msg MaintenanceMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid maintenance frame: %w", err)
	}
	return &msg, nil
}

func (p *Parser) parsePlayerUpdate(raw []byte, wireType string, player *PlayerInfo, total **int) error {
	var probe struct {
		Player json.RawMessage `json:"player"`
		Total  *int            `json:"totalPlayers"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("invalid %s frame: %w", wireType, err)
	}
	if probe.Player == nil {
		return fmt.Errorf("%s frame has no player object", wireType)
	}
	if err := json.Unmarshal(probe.Player, player); err != nil {
		return fmt.Errorf("invalid player object in %s frame: %w", wireType, err)
	}
	*total = probe.Total
	return nil
}

func (p *Parser) parseServerUpdate(raw []byte) (*ServerUpdateMessage, error) {
	var probe struct {
		Servers json.RawMessage `json:"servers"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("invalid server_update frame: %w", err)
	}
	if probe.Servers == nil {
		return nil, fmt.Errorf("server_update frame has no servers object")
	}

	var msg ServerUpdateMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid server_update frame: %w", err)
	}
	return &msg, nil
}

func (p *Parser) parseNoticeReturn(raw []byte) (*NoticeReturnMessage, error) {
	var msg NoticeReturnMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid notice_return frame: %w", err)
	}
	return &msg, nil
}

// ParseSurvivalFull decodes the survival endpoint's minimal snapshot
// format. The survival backend tags these frames "full" but speaks a
// different shape, so the multi-endpoint router calls this directly.
func (p *Parser) ParseSurvivalFull(raw []byte) (*SurvivalFullMessage, error) {
	var probe struct {
		Players json.RawMessage `json:"players"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("invalid survival frame: %w", err)
	}
	if probe.Players == nil {
		return nil, fmt.Errorf("survival full frame has no players object")
	}

	var msg SurvivalFullMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid survival frame: %w", err)
	}
	return &msg, nil
}
