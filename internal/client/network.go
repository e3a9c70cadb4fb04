// Package client assembles the transport, routing, and state layers
// into the network client used by the daemon surfaces.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/netpulse-project/netpulse/internal/config"
	"github.com/netpulse-project/netpulse/internal/connector"
	"github.com/netpulse-project/netpulse/internal/events"
	"github.com/netpulse-project/netpulse/internal/maintenance"
	"github.com/netpulse-project/netpulse/internal/protocol"
	"github.com/netpulse-project/netpulse/internal/router"
	"github.com/netpulse-project/netpulse/internal/store"
)

// Network is the multi-endpoint client. It owns one supervisor and one
// reconnect coordinator per configured endpoint, routes every inbound
// frame through the shared router, and feeds the aggregate store.
type Network struct {
	mu sync.Mutex

	bus     *events.EventBus
	maint   *maintenance.Handler
	router  *router.MultiRouter
	pool    *connector.Pool
	builder *protocol.RequestBuilder
	store   *store.Store

	coords   map[string]*connector.Coordinator
	policies map[string]*connector.ReconnectPolicy
	primary  string
	paused   bool

	// baseCtx carries dispatch triggered by transport callbacks, which
	// have no caller context of their own.
	baseCtx context.Context
}

// New assembles a network client from configuration. Nothing connects
// until Connect is called.
func New(cfg *config.Config) (*Network, error) {
	netCfg := cfg.GetNetwork()
	if len(netCfg.Endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints configured")
	}

	bus := events.NewEventBus()
	maint := maintenance.NewHandler()
	builder := protocol.NewRequestBuilder()

	endpointCfgs := make(map[string]router.EndpointConfig, len(netCfg.Endpoints))
	for name, ep := range netCfg.Endpoints {
		endpointCfgs[name] = router.EndpointConfig{
			RequireVersion:     ep.RequireVersion,
			MaintenanceCapable: ep.MaintenanceCapable,
			SurvivalFormat:     ep.SurvivalFormat,
		}
	}

	n := &Network{
		bus:      bus,
		maint:    maint,
		router:   router.NewMulti(bus, maint, endpointCfgs),
		pool:     connector.NewPool(),
		builder:  builder,
		coords:   make(map[string]*connector.Coordinator),
		policies: make(map[string]*connector.ReconnectPolicy),
		primary:  config.PrimaryEndpoint,
		baseCtx:  context.Background(),
	}

	n.store = store.New(store.Options{
		TestServerID:    netCfg.TestServerID,
		PrimaryEndpoint: n.primary,
		IGNTTL:          netCfg.IGNTTL(),
	}, builder, n.sendPrimary)
	n.store.Register(bus)

	backoff := netCfg.BackoffTable()
	for name, ep := range netCfg.Endpoints {
		sup := connector.NewSupervisor(connector.SupervisorOptions{
			Name:    name,
			URL:     ep.URL,
			Timeout: netCfg.ConnectTimeout(),
		})
		policy := connector.NewReconnectPolicy(netCfg.MaxAttempts, backoff)

		endpoint := name
		coord := connector.NewCoordinator(endpoint, bus, policy, sup, func(ctx context.Context) error {
			return sup.Connect(ctx)
		})

		n.coords[name] = coord
		n.policies[name] = policy
		n.pool.Add(sup)
	}

	n.pool.OnMessage(func(endpoint string, raw []byte) {
		n.router.HandleRaw(n.baseCtx, endpoint, raw)
	})
	n.pool.OnTransition(func(p events.StateChangePayload, clean bool) {
		if coord, ok := n.coords[p.Endpoint]; ok {
			coord.HandleTransition(n.baseCtx, p, clean)
		}
	})
	n.pool.OnOverall(func(prev, curr events.ConnectionState) {
		n.store.SetOverallState(curr)
	})

	bus.Subscribe(events.EventConnected, "client", n.onConnected)
	bus.Subscribe(events.EventProtocolMismatch, "client", n.onProtocolMismatch)

	// Message-sourced transitions reach the bus through the router;
	// operator-sourced ones are republished here.
	maint.Subscribe(func(t maintenance.Transition) {
		if t.Source == maintenance.SourceMessage {
			return
		}
		bus.Emit(n.baseCtx, events.Event{
			Type:   events.EventMaintenanceUpdate,
			Source: "local",
			Payload: events.MaintenancePayload{
				IsMaintenance: t.Current.IsMaintenance,
				StartTime:     t.Current.StartTime,
				Forced:        t.Current.ForceShow,
				Source:        t.Source,
			},
		})
	})

	return n, nil
}

// ForceMaintenance sets or clears the operator maintenance override.
func (n *Network) ForceMaintenance(on bool) {
	n.maint.ForceMaintenanceMode(on)
}

// onConnected resets the version gate for the fresh connection and, on
// the primary endpoint, issues the initial requests: push
// subscriptions, a full status query, and meta info.
func (n *Network) onConnected(ctx context.Context, ev events.Event) error {
	n.router.ResetVerification(ev.Source)

	if ev.Source != n.primary {
		return nil
	}

	sup, ok := n.pool.Get(ev.Source)
	if !ok {
		return nil
	}

	for _, frame := range [][]byte{
		n.builder.InitialSubscriptions(),
		n.builder.ServerStatus(protocol.StatusActionGetAll),
		n.builder.MetaInfo(protocol.MetaActionGetAll),
	} {
		if err := sup.Send(frame); err != nil {
			return fmt.Errorf("initial request on %s: %w", ev.Source, err)
		}
	}

	log.Debug().Str("endpoint", ev.Source).Msg("initial requests sent")
	return nil
}

// onProtocolMismatch hands the fatal mismatch to the endpoint's
// coordinator, which disables retries and drops the connection.
func (n *Network) onProtocolMismatch(ctx context.Context, ev events.Event) error {
	if coord, ok := n.coords[ev.Source]; ok {
		coord.HandleProtocolMismatch()
	}
	return nil
}

// Connect opens every configured endpoint. A manual connect re-enables
// reconnection for endpoints previously stopped by a protocol mismatch.
func (n *Network) Connect(ctx context.Context) error {
	n.mu.Lock()
	n.paused = false
	for _, policy := range n.policies {
		policy.SetEnabled(true)
		policy.Reset()
	}
	for _, coord := range n.coords {
		coord.Resume()
	}
	n.mu.Unlock()

	errs := n.pool.ConnectAll(ctx)
	if len(errs) == len(n.coords) {
		return fmt.Errorf("all %d endpoints failed to connect", len(errs))
	}
	return nil
}

// Disconnect gracefully closes every endpoint and cancels pending
// retries.
func (n *Network) Disconnect() {
	n.mu.Lock()
	for _, coord := range n.coords {
		coord.Stop()
	}
	n.mu.Unlock()

	n.pool.DisconnectAll()
}

// Pause suspends the client while its consumer is inactive: retries are
// cancelled and connections closed cleanly. State in the store is kept.
func (n *Network) Pause() {
	n.mu.Lock()
	if n.paused {
		n.mu.Unlock()
		return
	}
	n.paused = true
	for _, coord := range n.coords {
		coord.Stop()
	}
	n.mu.Unlock()

	n.pool.DisconnectAll()
	log.Info().Msg("network client paused")
}

// Resume reconnects after a Pause with a fresh retry budget.
func (n *Network) Resume(ctx context.Context) {
	n.mu.Lock()
	if !n.paused {
		n.mu.Unlock()
		return
	}
	n.paused = false
	for _, coord := range n.coords {
		coord.Resume()
	}
	n.mu.Unlock()

	n.pool.ConnectAll(ctx)
	log.Info().Msg("network client resumed")
}

// Shutdown tears everything down without further event dispatch.
func (n *Network) Shutdown() {
	n.mu.Lock()
	for _, coord := range n.coords {
		coord.Stop()
	}
	n.mu.Unlock()

	n.pool.ForceCloseAll()
	n.bus.Stop()
}

// Send writes one frame to the named endpoint.
func (n *Network) Send(endpoint string, data []byte) error {
	sup, ok := n.pool.Get(endpoint)
	if !ok {
		return fmt.Errorf("unknown endpoint %q", endpoint)
	}
	return sup.Send(data)
}

// sendPrimary transmits one frame through the primary endpoint.
func (n *Network) sendPrimary(data []byte) error {
	return n.Send(n.primary, data)
}

// On subscribes a named handler to a bus event.
func (n *Network) On(t events.EventType, name string, fn events.HandlerFunc) {
	n.bus.Subscribe(t, name, fn)
}

// Off removes a named handler from a bus event.
func (n *Network) Off(t events.EventType, name string) {
	n.bus.Unsubscribe(t, name)
}

// Store returns the aggregate state store.
func (n *Network) Store() *store.Store {
	return n.store
}

// Bus returns the event bus.
func (n *Network) Bus() *events.EventBus {
	return n.bus
}

// Maintenance returns the maintenance state machine.
func (n *Network) Maintenance() *maintenance.Handler {
	return n.maint
}

// Builder returns the outbound request builder.
func (n *Network) Builder() *protocol.RequestBuilder {
	return n.builder
}

// Paused reports whether the client is currently paused.
func (n *Network) Paused() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.paused
}

// States returns every endpoint's current connection state.
func (n *Network) States() map[string]events.ConnectionState {
	return n.pool.States()
}

// Overall returns the debounced aggregate connection status.
func (n *Network) Overall() events.ConnectionState {
	return n.pool.Overall()
}
