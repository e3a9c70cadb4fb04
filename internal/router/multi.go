package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/netpulse-project/netpulse/internal/events"
	"github.com/netpulse-project/netpulse/internal/maintenance"
	"github.com/netpulse-project/netpulse/internal/protocol"
)

// EndpointConfig describes one endpoint's wire dialect for the
// multi-endpoint router.
type EndpointConfig struct {
	// RequireVersion enables the protocol-version gate.
	RequireVersion bool
	// MaintenanceCapable marks endpoints whose snapshots carry
	// maintenance and uptime fields.
	MaintenanceCapable bool
	// SurvivalFormat selects the minimal survival snapshot dialect,
	// which is normalized into the canonical shape before routing.
	SurvivalFormat bool
}

// MultiRouter routes frames from multiple endpoints, applying
// endpoint-specific dialect normalization before shared routing.
// The two endpoint streams are independent; no ordering is assumed
// between them.
type MultiRouter struct {
	routers map[string]*Router
	configs map[string]EndpointConfig
	parser  *protocol.Parser
}

// NewMulti creates a multi-endpoint router over a shared bus and
// maintenance handler.
func NewMulti(bus *events.EventBus, maint *maintenance.Handler, endpoints map[string]EndpointConfig) *MultiRouter {
	routers := make(map[string]*Router, len(endpoints))
	configs := make(map[string]EndpointConfig, len(endpoints))
	for name, cfg := range endpoints {
		routers[name] = New(Options{
			Endpoint:           name,
			RequireVersion:     cfg.RequireVersion,
			MaintenanceCapable: cfg.MaintenanceCapable,
		}, bus, maint)
		configs[name] = cfg
	}
	return &MultiRouter{
		routers: routers,
		configs: configs,
		parser:  protocol.NewParser(),
	}
}

// ResetVerification clears the named endpoint's version gate for a new
// connection.
func (mr *MultiRouter) ResetVerification(endpoint string) {
	if r, ok := mr.routers[endpoint]; ok {
		r.ResetVerification()
	}
}

// HandleRaw routes one raw frame from the named endpoint.
func (mr *MultiRouter) HandleRaw(ctx context.Context, endpoint string, raw []byte) {
	r, ok := mr.routers[endpoint]
	if !ok {
		log.Warn().Str("endpoint", endpoint).Msg("frame from unknown endpoint dropped")
		return
	}

	cfg := mr.configs[endpoint]
	if cfg.SurvivalFormat && isFullFrame(raw) {
		msg, err := mr.parser.ParseSurvivalFull(raw)
		if err != nil {
			log.Warn().Err(err).Str("endpoint", endpoint).Msg("dropping malformed survival frame")
			return
		}
		r.Handle(ctx, normalizeSurvivalFull(endpoint, msg))
		return
	}

	r.HandleRaw(ctx, raw)
}

// isFullFrame peeks at the type tag without full decoding.
func isFullFrame(raw []byte) bool {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	return env.Type == protocol.TypeFull
}

// normalizeSurvivalFull maps the survival endpoint's minimal snapshot
// into the canonical full shape: one synthetic server record named
// after the endpoint, and a player map keyed by real UUIDs where
// present, index-derived pseudo-UUIDs where only usernames arrived.
func normalizeSurvivalFull(endpoint string, m *protocol.SurvivalFullMessage) *protocol.FullMessage {
	servers := map[string]protocol.ServerStatus{
		endpoint: {
			Online:     m.Players.Curr,
			MaxPlayers: m.Players.Max,
			IsOnline:   true,
		},
	}

	players := make(map[string]protocol.PlayerInfo, len(m.Players.Players))
	for i, p := range m.Players.Players {
		uuid := p.UUID
		if uuid == "" {
			uuid = fmt.Sprintf("%s-%d", endpoint, i)
		}
		players[uuid] = protocol.PlayerInfo{
			UUID:          uuid,
			IGN:           p.Name,
			CurrentServer: endpoint,
		}
	}

	return &protocol.FullMessage{
		ProtocolVersion: protocol.SupportedProtocolVersion,
		Servers:         servers,
		Players:         players,
	}
}
