// Package router dispatches parsed wire messages to semantic events.
// It owns the per-endpoint protocol-version gate and the normalization
// of heterogeneous endpoint formats into the canonical snapshot shape.
package router

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netpulse-project/netpulse/internal/events"
	"github.com/netpulse-project/netpulse/internal/maintenance"
	"github.com/netpulse-project/netpulse/internal/protocol"
)

// Options configures a single-endpoint router.
type Options struct {
	Endpoint string
	// RequireVersion enables the protocol-version gate: the first full
	// snapshot of every connection must declare the supported version.
	RequireVersion bool
	// MaintenanceCapable marks endpoints whose snapshots carry
	// maintenance and uptime fields.
	MaintenanceCapable bool
}

// Router routes one endpoint's parsed messages. The only state it owns
// is the version-verification flag, which lives for one connection.
type Router struct {
	opts   Options
	bus    *events.EventBus
	maint  *maintenance.Handler
	parser *protocol.Parser

	verified         bool
	mismatchReported bool
	supportedVersion int
}

// New creates a router for one endpoint.
func New(opts Options, bus *events.EventBus, maint *maintenance.Handler) *Router {
	return &Router{
		opts:             opts,
		bus:              bus,
		maint:            maint,
		parser:           protocol.NewParser(),
		supportedVersion: protocol.SupportedProtocolVersion,
	}
}

// ResetVerification clears the version gate. Called on every new
// connection so the next snapshot is verified again.
func (r *Router) ResetVerification() {
	r.verified = false
	r.mismatchReported = false
}

// HandleRaw parses and routes one raw frame. Parse failures are logged
// and dropped so a malformed frame never reaches callers or crashes the
// handler chain.
func (r *Router) HandleRaw(ctx context.Context, raw []byte) {
	msg, err := r.parser.Parse(raw)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", r.opts.Endpoint).Msg("dropping malformed frame")
		return
	}
	r.Handle(ctx, msg)
}

// Handle routes one parsed message to its semantic events.
func (r *Router) Handle(ctx context.Context, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.FullMessage:
		r.handleFull(ctx, m)
	case *protocol.MaintenanceMessage:
		r.handleMaintenance(ctx, m)
	case *protocol.PlayerAddMessage:
		r.handlePlayerAdd(ctx, m)
	case *protocol.PlayerRemoveMessage:
		r.handlePlayerRemove(ctx, m)
	case *protocol.ServerUpdateMessage:
		r.handleServerUpdate(ctx, m)
	case *protocol.NoticeReturnMessage:
		r.handleNoticeReturn(ctx, m)
	case *protocol.NoticeUpdateMessage:
		r.bus.Emit(ctx, events.Event{
			Type:   events.EventNoticeUpdate,
			Source: r.opts.Endpoint,
			Payload: events.NoticeUpdatePayload{
				Type: m.MessageType(),
				Data: m.Data,
			},
		})
	default:
		log.Debug().
			Str("endpoint", r.opts.Endpoint).
			Str("type", msg.MessageType()).
			Msg("message type has no handler")
		r.bus.Emit(ctx, events.Event{
			Type:   events.EventUnhandledMessage,
			Source: r.opts.Endpoint,
			Payload: events.UnhandledMessagePayload{
				Endpoint: r.opts.Endpoint,
				WireType: msg.MessageType(),
			},
		})
	}
}

// verifyVersion runs the protocol-version gate. It returns false when
// the message must not be processed further. The check runs exactly
// once per connection; on mismatch exactly one event fires even if more
// mismatched snapshots arrive before the disconnect completes.
func (r *Router) verifyVersion(ctx context.Context, m *protocol.FullMessage) bool {
	if !r.opts.RequireVersion || r.verified {
		return !r.mismatchReported
	}

	if m.ProtocolVersion != r.supportedVersion {
		if !r.mismatchReported {
			r.mismatchReported = true
			log.Error().
				Str("endpoint", r.opts.Endpoint).
				Int("server_version", m.ProtocolVersion).
				Int("client_version", r.supportedVersion).
				Msg("protocol version mismatch")
			r.bus.Emit(ctx, events.Event{
				Type:   events.EventProtocolMismatch,
				Source: r.opts.Endpoint,
				Payload: events.ProtocolMismatchPayload{
					Endpoint:      r.opts.Endpoint,
					ServerVersion: m.ProtocolVersion,
					ClientVersion: r.supportedVersion,
					Message:       "server protocol version is not supported by this client",
				},
			})
		}
		return false
	}

	r.verified = true
	return true
}

func (r *Router) handleFull(ctx context.Context, m *protocol.FullMessage) {
	if !r.verifyVersion(ctx, m) {
		return
	}

	payload := events.FullUpdatePayload{
		Source:           r.opts.Endpoint,
		Servers:          m.Servers,
		Players:          m.Players,
		RunningTime:      m.RunningTime,
		TotalRunningTime: m.TotalRunningTime,
		HasUptime:        r.opts.MaintenanceCapable,
	}

	if r.opts.MaintenanceCapable {
		st := r.maint.HandleFullMessage(m.IsMaintenance, millisToTime(m.MaintenanceStartTime))
		payload.IsMaintenance = st.IsMaintenance
		payload.MaintenanceStartTime = st.StartTime
	} else {
		// Endpoint has no maintenance concept; carry the current state
		// through so the snapshot cannot flip the flag.
		st := r.maint.State()
		payload.IsMaintenance = st.IsMaintenance
		payload.MaintenanceStartTime = st.StartTime
	}

	r.bus.Emit(ctx, events.Event{
		Type:    events.EventFullUpdate,
		Source:  r.opts.Endpoint,
		Payload: payload,
	})
}

func (r *Router) handleMaintenance(ctx context.Context, m *protocol.MaintenanceMessage) {
	st := r.maint.HandleMaintenanceMessage(m.StatusTruthy(), millisToTime(m.StartTime))

	r.bus.Emit(ctx, events.Event{
		Type:   events.EventMaintenanceUpdate,
		Source: r.opts.Endpoint,
		Payload: events.MaintenancePayload{
			IsMaintenance: st.IsMaintenance,
			StartTime:     st.StartTime,
			Forced:        st.ForceShow,
			Source:        maintenance.SourceMessage,
		},
	})
}

func (r *Router) handlePlayerAdd(ctx context.Context, m *protocol.PlayerAddMessage) {
	r.bus.Emit(ctx, events.Event{
		Type:   events.EventPlayerAdd,
		Source: r.opts.Endpoint,
		Payload: events.PlayerAddPayload{
			Endpoint: r.opts.Endpoint,
			PlayerID: m.Player.UUID,
			ServerID: m.Player.CurrentServer,
			Player:   m.Player,
		},
	})

	r.bus.Emit(ctx, events.Event{
		Type:    events.EventPlayerUpdate,
		Source:  r.opts.Endpoint,
		Payload: events.PlayerUpdatePayload{Total: m.TotalPlayers},
	})
}

func (r *Router) handlePlayerRemove(ctx context.Context, m *protocol.PlayerRemoveMessage) {
	r.bus.Emit(ctx, events.Event{
		Type:   events.EventPlayerRemove,
		Source: r.opts.Endpoint,
		Payload: events.PlayerRemovePayload{
			Endpoint: r.opts.Endpoint,
			PlayerID: m.Player.UUID,
			ServerID: m.Player.CurrentServer,
		},
	})

	r.bus.Emit(ctx, events.Event{
		Type:    events.EventPlayerUpdate,
		Source:  r.opts.Endpoint,
		Payload: events.PlayerUpdatePayload{Total: m.TotalPlayers},
	})
}

func (r *Router) handleServerUpdate(ctx context.Context, m *protocol.ServerUpdateMessage) {
	r.bus.Emit(ctx, events.Event{
		Type:   events.EventServerUpdate,
		Source: r.opts.Endpoint,
		Payload: events.ServerUpdatePayload{
			Source:  r.opts.Endpoint,
			Servers: m.Servers,
		},
	})

	if m.HasPlayerMove() {
		r.bus.Emit(ctx, events.Event{
			Type:   events.EventPlayerMove,
			Source: r.opts.Endpoint,
			Payload: events.PlayerMovePayload{
				PlayerID:   m.PlayerID,
				FromServer: m.PreviousServer,
				ToServer:   m.NewServer,
			},
		})
	}
}

func (r *Router) handleNoticeReturn(ctx context.Context, m *protocol.NoticeReturnMessage) {
	if m.Error != "" {
		r.bus.Emit(ctx, events.Event{
			Type:    events.EventNoticeError,
			Source:  r.opts.Endpoint,
			Payload: events.NoticeErrorPayload{Message: m.Error},
		})
		return
	}

	normalized := make(map[string]protocol.Notice, len(m.Notices))
	for id, n := range m.Notices {
		normalized[id] = normalizeNotice(n)
	}

	r.bus.Emit(ctx, events.Event{
		Type:   events.EventNoticeReturn,
		Source: r.opts.Endpoint,
		Payload: events.NoticeReturnPayload{
			Notices: normalized,
			Page:    m.Page,
			Counts:  m.Counts,
			Total:   m.Total,
		},
	})
}

// normalizeNotice fills defaults for missing title/text/time/color.
func normalizeNotice(n protocol.Notice) protocol.Notice {
	if n.Title == "" {
		n.Title = "Announcement"
	}
	if n.Time == 0 {
		n.Time = time.Now().UnixMilli()
	}
	if n.Color == "" {
		n.Color = "#ffffff"
	}
	return n
}

// millisToTime converts an optional unix-millisecond wire timestamp.
func millisToTime(ms *int64) *time.Time {
	if ms == nil || *ms == 0 {
		return nil
	}
	t := time.UnixMilli(*ms)
	return &t
}
