package protocol

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestEchoFormat(t *testing.T) {
	b := NewRequestBuilder()
	b.now = fixedClock(1700000000000)

	echo := b.Echo("get_all")
	assert.Equal(t, "get_all_1700000000000_1", echo)

	// Counter is monotonically increasing, so concurrent requests in the
	// same millisecond still get distinct ids.
	echo2 := b.Echo("get_all")
	assert.Equal(t, "get_all_1700000000000_2", echo2)
	assert.NotEqual(t, echo, echo2)
}

func TestServerStatusFrame(t *testing.T) {
	b := NewRequestBuilder()
	b.now = fixedClock(1700000000000)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(b.ServerStatus(StatusActionGetBatch, "lobby", "bedwars"), &frame))

	assert.Equal(t, "get_server_status", frame["type"])
	assert.Equal(t, "get_batch", frame["action"])
	assert.Equal(t, []any{"lobby", "bedwars"}, frame["servers"])
	assert.Equal(t, "get_batch_1700000000000_1", frame["echo"])
}

func TestServerStatusGetAllOmitsServers(t *testing.T) {
	b := NewRequestBuilder()

	var frame map[string]any
	require.NoError(t, json.Unmarshal(b.ServerStatus(StatusActionGetAll), &frame))

	assert.Equal(t, "get_all", frame["action"])
	_, hasServers := frame["servers"]
	assert.False(t, hasServers)
}

func TestInitialSubscriptions(t *testing.T) {
	b := NewRequestBuilder()

	var frame struct {
		Type   string         `json:"type"`
		Action string         `json:"action"`
		Events []string       `json:"events"`
		Filter map[string]any `json:"filter"`
	}
	require.NoError(t, json.Unmarshal(b.InitialSubscriptions(), &frame))

	assert.Equal(t, "subscribe_event", frame.Type)
	assert.Equal(t, "batch_subscribe", frame.Action)
	assert.Equal(t, []string{"player_join", "player_quit", "player_switch_server"}, frame.Events)
	assert.Equal(t, float64(SwitchRateLimitMS), frame.Filter["intervalMs"])
}

func TestNoticeFrame(t *testing.T) {
	b := NewRequestBuilder()
	b.now = fixedClock(1700000000000)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(b.Notice(3, 5), &frame))

	assert.Equal(t, "get_notice", frame["type"])
	assert.Equal(t, float64(3), frame["page"])
	assert.Equal(t, float64(5), frame["counts"])
	assert.Equal(t, fmt.Sprintf("get_notice_%d_1", int64(1700000000000)), frame["echo"])
}
