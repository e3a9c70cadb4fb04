package store

// LocationMap tracks which server each online player is on. Every known
// player appears exactly once; move semantics go through Set so the old
// entry is replaced, never duplicated. Not synchronized; the aggregator
// serializes access.
type LocationMap struct {
	byPlayer map[string]string
}

// NewLocationMap creates an empty location map.
func NewLocationMap() *LocationMap {
	return &LocationMap{byPlayer: make(map[string]string)}
}

// Set records playerID on serverID and returns the previous server, if
// any. A same-server set reports existed with prev == serverID.
func (l *LocationMap) Set(playerID, serverID string) (prev string, existed bool) {
	prev, existed = l.byPlayer[playerID]
	l.byPlayer[playerID] = serverID
	return prev, existed
}

// Remove deletes playerID and returns the server it was on.
func (l *LocationMap) Remove(playerID string) (serverID string, ok bool) {
	serverID, ok = l.byPlayer[playerID]
	if ok {
		delete(l.byPlayer, playerID)
	}
	return serverID, ok
}

// Get returns the server playerID is on.
func (l *LocationMap) Get(playerID string) (string, bool) {
	serverID, ok := l.byPlayer[playerID]
	return serverID, ok
}

// Count returns the number of tracked players.
func (l *LocationMap) Count() int {
	return len(l.byPlayer)
}

// All returns a copy of the player-to-server map.
func (l *LocationMap) All() map[string]string {
	out := make(map[string]string, len(l.byPlayer))
	for k, v := range l.byPlayer {
		out[k] = v
	}
	return out
}

// Reset wipes the map.
func (l *LocationMap) Reset() {
	l.byPlayer = make(map[string]string)
}
