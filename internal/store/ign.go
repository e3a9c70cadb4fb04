package store

import (
	"sort"
	"time"
)

// IGNInfo is one cached in-game-name entry. A player appears in exactly
// one server's list at a time.
type IGNInfo struct {
	UUID        string    `json:"uuid"`
	DisplayName string    `json:"display_name"`
	ServerID    string    `json:"server_id"`
	JoinTime    time.Time `json:"join_time"`
	LastSeen    time.Time `json:"last_seen"`
}

// IGNIndex caches player display names indexed per server and by UUID.
// Not synchronized; the aggregator serializes access.
type IGNIndex struct {
	byUUID   map[string]*IGNInfo
	byServer map[string]map[string]*IGNInfo
}

// NewIGNIndex creates an empty index.
func NewIGNIndex() *IGNIndex {
	return &IGNIndex{
		byUUID:   make(map[string]*IGNInfo),
		byServer: make(map[string]map[string]*IGNInfo),
	}
}

// Put records a sighting of uuid on serverID. An existing entry moves to
// the new server list; JoinTime is preserved across moves.
func (x *IGNIndex) Put(uuid, displayName, serverID string, now time.Time) {
	info, ok := x.byUUID[uuid]
	if !ok {
		info = &IGNInfo{UUID: uuid, JoinTime: now}
		x.byUUID[uuid] = info
	} else if info.ServerID != serverID {
		x.detachFromServer(info)
	}

	if displayName != "" {
		info.DisplayName = displayName
	}
	info.ServerID = serverID
	info.LastSeen = now

	bucket, ok := x.byServer[serverID]
	if !ok {
		bucket = make(map[string]*IGNInfo)
		x.byServer[serverID] = bucket
	}
	bucket[uuid] = info
}

// Touch refreshes the last-seen timestamp of uuid.
func (x *IGNIndex) Touch(uuid string, now time.Time) {
	if info, ok := x.byUUID[uuid]; ok {
		info.LastSeen = now
	}
}

// Remove purges uuid and returns a copy of the removed entry.
func (x *IGNIndex) Remove(uuid string) (IGNInfo, bool) {
	info, ok := x.byUUID[uuid]
	if !ok {
		return IGNInfo{}, false
	}
	x.detachFromServer(info)
	delete(x.byUUID, uuid)
	return *info, true
}

// Get returns a copy of the entry for uuid.
func (x *IGNIndex) Get(uuid string) (IGNInfo, bool) {
	info, ok := x.byUUID[uuid]
	if !ok {
		return IGNInfo{}, false
	}
	return *info, true
}

// ByServer returns copies of all entries on serverID, ordered by name.
func (x *IGNIndex) ByServer(serverID string) []IGNInfo {
	bucket := x.byServer[serverID]
	out := make([]IGNInfo, 0, len(bucket))
	for _, info := range bucket {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out
}

// Count returns the number of cached entries.
func (x *IGNIndex) Count() int {
	return len(x.byUUID)
}

// SweepStale removes entries not seen within ttl and returns how many
// were dropped.
func (x *IGNIndex) SweepStale(ttl time.Duration, now time.Time) int {
	cutoff := now.Add(-ttl)
	dropped := 0
	for uuid, info := range x.byUUID {
		if info.LastSeen.Before(cutoff) {
			x.detachFromServer(info)
			delete(x.byUUID, uuid)
			dropped++
		}
	}
	return dropped
}

// Reset wipes the index.
func (x *IGNIndex) Reset() {
	x.byUUID = make(map[string]*IGNInfo)
	x.byServer = make(map[string]map[string]*IGNInfo)
}

func (x *IGNIndex) detachFromServer(info *IGNInfo) {
	if bucket, ok := x.byServer[info.ServerID]; ok {
		delete(bucket, info.UUID)
		if len(bucket) == 0 {
			delete(x.byServer, info.ServerID)
		}
	}
}
