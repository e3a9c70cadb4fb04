package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netpulse-project/netpulse/internal/events"
	"github.com/netpulse-project/netpulse/internal/protocol"
)

// MaintenanceView is the stored maintenance state as seen by readers.
type MaintenanceView struct {
	IsMaintenance bool       `json:"is_maintenance"`
	StartTime     *time.Time `json:"start_time"`
	Forced        bool       `json:"forced"`
}

// Options configures the aggregate store.
type Options struct {
	// TestServerID names the internal test server excluded from
	// aggregate stats.
	TestServerID string
	// PrimaryEndpoint names the endpoint whose connection state gates
	// uptime interpolation.
	PrimaryEndpoint string
	// IGNTTL bounds how long an unseen name cache entry survives.
	IGNTTL time.Duration
}

// Store is the aggregate over all sub-stores. It is the only writer;
// every mutation triggered by an event runs as one critical section
// across all affected sub-stores, so readers never observe a location
// update without its matching count update. Reads take the same lock.
type Store struct {
	mu sync.RWMutex

	opts Options

	servers   *ServerSet
	locations *LocationMap
	igns      *IGNIndex
	uptime    *UptimeTracker
	notices   *NoticeBoard
	conn      *ConnectionView

	stats AggregateStats
	maint MaintenanceView

	now func() time.Time
}

// New creates the aggregate store. send transmits announcement page
// requests through the primary endpoint.
func New(opts Options, builder *protocol.RequestBuilder, send SendFunc) *Store {
	if opts.IGNTTL <= 0 {
		opts.IGNTTL = 10 * time.Minute
	}
	return &Store{
		opts:      opts,
		servers:   NewServerSet(opts.TestServerID),
		locations: NewLocationMap(),
		igns:      NewIGNIndex(),
		uptime:    NewUptimeTracker(),
		notices:   NewNoticeBoard(builder, send),
		conn:      NewConnectionView(),
		now:       time.Now,
	}
}

// Register subscribes the store's handlers on the bus. Dispatch is
// synchronous, so frames mutate the store in arrival order.
func (s *Store) Register(bus *events.EventBus) {
	for _, t := range []events.EventType{
		events.EventFullUpdate,
		events.EventServerUpdate,
		events.EventPlayerAdd,
		events.EventPlayerRemove,
		events.EventPlayerMove,
		events.EventPlayerUpdate,
		events.EventMaintenanceUpdate,
		events.EventStateChange,
		events.EventNoticeReturn,
		events.EventNoticeError,
	} {
		bus.Subscribe(t, "store", s.onEvent)
	}
}

func (s *Store) onEvent(ctx context.Context, ev events.Event) error {
	switch ev.Type {
	case events.EventFullUpdate:
		if p, ok := ev.Payload.(events.FullUpdatePayload); ok {
			s.ApplyFullUpdate(p)
		}
	case events.EventServerUpdate:
		if p, ok := ev.Payload.(events.ServerUpdatePayload); ok {
			s.ApplyServerUpdate(p)
		}
	case events.EventPlayerAdd:
		if p, ok := ev.Payload.(events.PlayerAddPayload); ok {
			s.ApplyPlayerAdd(p)
		}
	case events.EventPlayerRemove:
		if p, ok := ev.Payload.(events.PlayerRemovePayload); ok {
			s.ApplyPlayerRemove(p)
		}
	case events.EventPlayerMove:
		if p, ok := ev.Payload.(events.PlayerMovePayload); ok {
			s.ApplyPlayerMove(p)
		}
	case events.EventPlayerUpdate:
		if p, ok := ev.Payload.(events.PlayerUpdatePayload); ok {
			s.ApplyPlayerTotal(p.Total)
		}
	case events.EventMaintenanceUpdate:
		if p, ok := ev.Payload.(events.MaintenancePayload); ok {
			s.ApplyMaintenance(p)
		}
	case events.EventStateChange:
		if p, ok := ev.Payload.(events.StateChangePayload); ok {
			s.ApplyConnectionState(p)
		}
	case events.EventNoticeReturn:
		if p, ok := ev.Payload.(events.NoticeReturnPayload); ok {
			s.ApplyNoticeReturn(p)
		}
	case events.EventNoticeError:
		if p, ok := ev.Payload.(events.NoticeErrorPayload); ok {
			s.ApplyNoticeError(p.Message)
		}
	}
	return nil
}

// ApplyFullUpdate ingests one normalized snapshot: server records are
// bulk-applied, the player map (when present) is reconciled as the sole
// bulk player ingestion path, and uptime counters are rebased for
// endpoints that carry them.
func (s *Store) ApplyFullUpdate(p events.FullUpdatePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, st := range p.Servers {
		s.servers.Apply(id, st, now)
	}

	if len(p.Players) > 0 {
		s.reconcilePlayersLocked(p, now)
	}

	if p.HasUptime {
		s.uptime.Rebase(p.RunningTime, p.TotalRunningTime)
	}

	s.maint.IsMaintenance = p.IsMaintenance
	s.maint.StartTime = p.MaintenanceStartTime

	s.updateUptimeGateLocked()
	s.stats = s.servers.Stats()

	log.Debug().
		Str("source", p.Source).
		Int("servers", len(p.Servers)).
		Int("players", len(p.Players)).
		Msg("snapshot applied")
}

// reconcilePlayersLocked replaces the tracked player set for the servers
// named in the snapshot. Counts come from the server records, not from
// this pass, so snapshot ingestion never double-counts against deltas.
func (s *Store) reconcilePlayersLocked(p events.FullUpdatePayload, now time.Time) {
	inSnapshot := make(map[string]bool, len(p.Servers))
	for id := range p.Servers {
		inSnapshot[id] = true
	}

	for uuid, info := range p.Players {
		server := info.CurrentServer
		if server == "" {
			continue
		}
		s.locations.Set(uuid, server)
		s.igns.Put(uuid, info.IGN, server, now)
	}

	// Players previously placed on a snapshotted server but absent from
	// the snapshot have left.
	for uuid, server := range s.locations.All() {
		if !inSnapshot[server] {
			continue
		}
		if _, ok := p.Players[uuid]; !ok {
			s.locations.Remove(uuid)
			s.igns.Remove(uuid)
		}
	}
}

// ApplyServerUpdate ingests per-server deltas.
func (s *Store) ApplyServerUpdate(p events.ServerUpdatePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, st := range p.Servers {
		s.servers.Apply(id, st, now)
	}
	s.stats = s.servers.Stats()
}

// ApplyPlayerAdd places a player on a server. An add for a player that
// is already placed elsewhere is treated as a move; a same-server add is
// a no-op for counts.
func (s *Store) ApplyPlayerAdd(p events.PlayerAddPayload) {
	if p.PlayerID == "" || p.ServerID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	prev, existed := s.locations.Set(p.PlayerID, p.ServerID)
	switch {
	case !existed:
		s.servers.AddPlayers(p.ServerID, 1, now)
	case prev != p.ServerID:
		s.servers.AddPlayers(prev, -1, now)
		s.servers.AddPlayers(p.ServerID, 1, now)
	}

	name := p.Player.IGN
	s.igns.Put(p.PlayerID, name, p.ServerID, now)
	s.stats = s.servers.Stats()
}

// ApplyPlayerRemove drops a player. When the location map has no entry
// the name cache provides the server to decrement.
func (s *Store) ApplyPlayerRemove(p events.PlayerRemovePayload) {
	if p.PlayerID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	server, ok := s.locations.Remove(p.PlayerID)
	if !ok {
		if info, found := s.igns.Get(p.PlayerID); found {
			server = info.ServerID
			ok = true
		} else if p.ServerID != "" {
			server = p.ServerID
			ok = true
		}
	}
	if ok && server != "" {
		s.servers.AddPlayers(server, -1, now)
	}

	s.igns.Remove(p.PlayerID)
	s.stats = s.servers.Stats()
}

// ApplyPlayerMove relocates a player between servers. A move whose
// source and destination match changes nothing.
func (s *Store) ApplyPlayerMove(p events.PlayerMovePayload) {
	if p.PlayerID == "" || p.ToServer == "" || p.FromServer == p.ToServer {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	prev, existed := s.locations.Set(p.PlayerID, p.ToServer)
	from := p.FromServer
	if existed {
		from = prev
	}
	if from == p.ToServer {
		return
	}
	if from != "" {
		s.servers.AddPlayers(from, -1, now)
	}
	s.servers.AddPlayers(p.ToServer, 1, now)

	if info, ok := s.igns.Get(p.PlayerID); ok {
		s.igns.Put(p.PlayerID, info.DisplayName, p.ToServer, now)
	}
	s.stats = s.servers.Stats()
}

// ApplyPlayerTotal overrides the aggregate player count with an
// authoritative wire total; nil recomputes from current state.
func (s *Store) ApplyPlayerTotal(total *int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if total != nil && *total >= 0 {
		s.stats.TotalPlayers = *total
		return
	}
	s.stats = s.servers.Stats()
}

// ApplyMaintenance records a maintenance transition and updates the
// uptime gate.
func (s *Store) ApplyMaintenance(p events.MaintenancePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maint = MaintenanceView{
		IsMaintenance: p.IsMaintenance,
		StartTime:     p.StartTime,
		Forced:        p.Forced,
	}
	s.updateUptimeGateLocked()
}

// ApplyConnectionState records one endpoint transition and updates the
// uptime gate when the primary endpoint changed.
func (s *Store) ApplyConnectionState(p events.StateChangePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetEndpoint(p.Endpoint, p.Current)
	if p.Endpoint == s.opts.PrimaryEndpoint {
		s.updateUptimeGateLocked()
	}
}

// SetOverallState records the debounced aggregate connection status.
func (s *Store) SetOverallState(state events.ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetOverall(state)
}

// ApplyNoticeReturn ingests one announcement page.
func (s *Store) ApplyNoticeReturn(p events.NoticeReturnPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices.ApplyReturn(p)
}

// ApplyNoticeError records an announcement fetch failure.
func (s *Store) ApplyNoticeError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices.ApplyError(msg)
}

// RequestNotices asks the backend for one announcement page, subject to
// the dedupe window.
func (s *Store) RequestNotices(page, counts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notices.Request(page, counts)
}

// NextNoticePage requests the following page.
func (s *Store) NextNoticePage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notices.NextPage()
}

// PrevNoticePage requests the preceding page.
func (s *Store) PrevNoticePage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notices.PrevPage()
}

// SweepStaleIGNs drops name cache entries past the TTL. Players still
// placed by the location map are kept regardless of age.
func (s *Store) SweepStaleIGNs() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for uuid := range s.locations.All() {
		s.igns.Touch(uuid, now)
	}
	dropped := s.igns.SweepStale(s.opts.IGNTTL, now)
	if dropped > 0 {
		log.Debug().Int("dropped", dropped).Msg("stale name cache entries swept")
	}
	return dropped
}

// updateUptimeGateLocked starts interpolation only while the primary
// endpoint is connected and maintenance is off.
func (s *Store) updateUptimeGateLocked() {
	connected := s.conn.Endpoint(s.opts.PrimaryEndpoint) == events.StateConnected
	s.uptime.SetTracking(connected && !s.maint.IsMaintenance)
}

// Servers returns copies of every server record, ordered by id.
func (s *Store) Servers() []ServerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.servers.All()
}

// Server returns a copy of one server record.
func (s *Store) Server(id string) (ServerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.servers.Get(id)
}

// Stats returns the current aggregate stats.
func (s *Store) Stats() AggregateStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// PlayerLocation returns the server a player is on.
func (s *Store) PlayerLocation(playerID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locations.Get(playerID)
}

// PlayerCount returns the number of individually tracked players.
func (s *Store) PlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locations.Count()
}

// PlayersOn returns name cache entries for one server, ordered by name.
func (s *Store) PlayersOn(serverID string) []IGNInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.igns.ByServer(serverID)
}

// Player returns the name cache entry for one player.
func (s *Store) Player(uuid string) (IGNInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.igns.Get(uuid)
}

// Maintenance returns the stored maintenance view.
func (s *Store) Maintenance() MaintenanceView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maint
}

// Uptime returns interpolated uptime seconds; ok is false before the
// first snapshot.
func (s *Store) Uptime() (running, total int64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uptime.Current()
}

// Connections returns the per-endpoint and overall transport view.
func (s *Store) Connections() ConnectionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn.Snapshot()
}

// Notices returns the current announcement page snapshot.
func (s *Store) Notices() NoticePage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notices.Snapshot()
}

// Reset wipes every sub-store. Connection state is kept; it reflects
// live transports, not reconciled data.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.servers.Reset()
	s.locations.Reset()
	s.igns.Reset()
	s.uptime.Reset()
	s.notices.Reset()
	s.stats = AggregateStats{}
	s.maint = MaintenanceView{}
}
