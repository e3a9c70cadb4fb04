// Package store holds the reconciled client-side view of the network:
// per-server records, player locations, the IGN cache, uptime
// interpolation, announcement pages, and connection status. Sub-stores
// are plain state containers; the Store aggregator is the only writer
// and applies multi-store mutations as single critical sections so
// readers never observe partial state.
package store

import (
	"sort"
	"time"

	"github.com/netpulse-project/netpulse/internal/protocol"
)

// Server statuses as rendered to consumers.
const (
	ServerOnline  = "online"
	ServerOffline = "offline"
)

// ServerRecord is the reconciled state of one network server. Records
// are created on first sighting and never deleted; only an explicit
// offline update marks one offline.
type ServerRecord struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Address     string    `json:"address,omitempty"`
	Status      string    `json:"status"`
	Players     int       `json:"players"`
	MaxPlayers  int       `json:"max_players"`
	Uptime      int64     `json:"uptime"`
	TotalUptime int64     `json:"total_uptime"`
	LastUpdate  time.Time `json:"last_update"`
	IsOnline    bool      `json:"is_online"`
}

// AggregateStats is derived from the current record set after every
// mutation; it is never mutated directly.
type AggregateStats struct {
	TotalPlayers  int   `json:"total_players"`
	OnlineServers int   `json:"online_servers"`
	TotalUptime   int64 `json:"total_uptime"`
}

// ServerSet tracks all sighted servers. It is not synchronized; the
// aggregator serializes access.
type ServerSet struct {
	records      map[string]*ServerRecord
	testServerID string
}

// NewServerSet creates a server set. testServerID names the internal
// test server excluded from aggregate stats.
func NewServerSet(testServerID string) *ServerSet {
	return &ServerSet{
		records:      make(map[string]*ServerRecord),
		testServerID: testServerID,
	}
}

// Apply merges one status update into the record for id, creating the
// record on first sighting.
func (s *ServerSet) Apply(id string, st protocol.ServerStatus, now time.Time) {
	rec := s.ensure(id)
	rec.Players = st.Online
	rec.IsOnline = st.IsOnline
	if st.IsOnline {
		rec.Status = ServerOnline
	} else {
		rec.Status = ServerOffline
	}
	if st.MaxPlayers > 0 {
		rec.MaxPlayers = st.MaxPlayers
	}
	if st.DisplayName != "" {
		rec.DisplayName = st.DisplayName
	}
	if st.Address != "" {
		rec.Address = st.Address
	}
	if st.Uptime > 0 {
		rec.Uptime = st.Uptime
	}
	if st.TotalUptime > 0 {
		rec.TotalUptime = st.TotalUptime
	}
	rec.LastUpdate = now
}

// AddPlayers adjusts a server's player count by delta, floored at zero.
func (s *ServerSet) AddPlayers(id string, delta int, now time.Time) {
	rec := s.ensure(id)
	rec.Players += delta
	if rec.Players < 0 {
		rec.Players = 0
	}
	rec.LastUpdate = now
}

func (s *ServerSet) ensure(id string) *ServerRecord {
	rec, ok := s.records[id]
	if !ok {
		rec = &ServerRecord{
			ID:          id,
			DisplayName: id,
			Status:      ServerOffline,
		}
		s.records[id] = rec
	}
	return rec
}

// Get returns a copy of the record for id.
func (s *ServerSet) Get(id string) (ServerRecord, bool) {
	rec, ok := s.records[id]
	if !ok {
		return ServerRecord{}, false
	}
	return *rec, true
}

// All returns copies of every record, ordered by id.
func (s *ServerSet) All() []ServerRecord {
	out := make([]ServerRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats recomputes aggregate stats from the current record set,
// excluding the designated test server.
func (s *ServerSet) Stats() AggregateStats {
	var stats AggregateStats
	for id, rec := range s.records {
		if id == s.testServerID {
			continue
		}
		stats.TotalPlayers += rec.Players
		if rec.IsOnline {
			stats.OnlineServers++
		}
		stats.TotalUptime += rec.TotalUptime
	}
	return stats
}

// Reset wipes all records.
func (s *ServerSet) Reset() {
	s.records = make(map[string]*ServerRecord)
}
