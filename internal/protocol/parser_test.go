package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullSnapshot(t *testing.T) {
	raw := []byte(`{
		"type": "full",
		"protocol_version": 3,
		"servers": {
			"lobby": {"online": 12, "maxPlayers": 100, "isOnline": true},
			"skywars": 7
		},
		"players": {
			"u1": {"uuid": "u1", "ign": "Steve", "currentServer": "lobby"}
		},
		"runningTime": 3600,
		"totalRunningTime": 720000,
		"isMaintenance": false
	}`)

	p := NewParser()
	msg, err := p.Parse(raw)
	require.NoError(t, err)

	full, ok := msg.(*FullMessage)
	require.True(t, ok)
	assert.Equal(t, 3, full.ProtocolVersion)
	assert.Equal(t, int64(3600), full.RunningTime)
	assert.False(t, full.IsMaintenance)

	// Verbose object form.
	lobby := full.Servers["lobby"]
	assert.Equal(t, 12, lobby.Online)
	assert.Equal(t, 100, lobby.MaxPlayers)
	assert.True(t, lobby.IsOnline)

	// Compact numeric delta form decodes as online.
	skywars := full.Servers["skywars"]
	assert.Equal(t, 7, skywars.Online)
	assert.True(t, skywars.IsOnline)

	assert.Equal(t, "Steve", full.Players["u1"].IGN)
}

func TestParseFullRequiresServersOrPlayers(t *testing.T) {
	p := NewParser()
	_, err := p.Parse([]byte(`{"type": "full", "protocol_version": 3}`))
	assert.Error(t, err)
}

func TestParseMaintenanceStatusForms(t *testing.T) {
	p := NewParser()

	cases := []struct {
		raw   string
		enter bool
	}{
		{`{"type": "maintenance_status_update", "status": true}`, true},
		{`{"type": "maintenance_status_update", "status": "true"}`, true},
		{`{"type": "maintenance_status_update", "status": false}`, false},
		{`{"type": "maintenance_status_update", "status": "yes"}`, false},
	}

	for _, tc := range cases {
		msg, err := p.Parse([]byte(tc.raw))
		require.NoError(t, err, tc.raw)
		m, ok := msg.(*MaintenanceMessage)
		require.True(t, ok)
		assert.Equal(t, tc.enter, m.StatusTruthy(), tc.raw)
	}
}

func TestParseMaintenanceRequiresStatus(t *testing.T) {
	p := NewParser()
	_, err := p.Parse([]byte(`{"type": "maintenance_status_update"}`))
	assert.Error(t, err)
}

func TestParsePlayerAdd(t *testing.T) {
	raw := []byte(`{
		"type": "players_update_add",
		"player": {"uuid": "u2", "ign": "Alex", "currentServer": "bedwars"},
		"totalPlayers": 42
	}`)

	p := NewParser()
	msg, err := p.Parse(raw)
	require.NoError(t, err)

	add, ok := msg.(*PlayerAddMessage)
	require.True(t, ok)
	assert.Equal(t, "u2", add.Player.UUID)
	require.NotNil(t, add.TotalPlayers)
	assert.Equal(t, 42, *add.TotalPlayers)
}

func TestParsePlayerAddRequiresPlayer(t *testing.T) {
	p := NewParser()
	_, err := p.Parse([]byte(`{"type": "players_update_add", "totalPlayers": 5}`))
	assert.Error(t, err)
}

func TestParseServerUpdateWithMove(t *testing.T) {
	raw := []byte(`{
		"type": "server_update",
		"servers": {"lobby": 11, "bedwars": 8},
		"playerId": "u3",
		"previousServer": "lobby",
		"newServer": "bedwars"
	}`)

	p := NewParser()
	msg, err := p.Parse(raw)
	require.NoError(t, err)

	upd, ok := msg.(*ServerUpdateMessage)
	require.True(t, ok)
	assert.True(t, upd.HasPlayerMove())
	assert.Equal(t, "u3", upd.PlayerID)
	assert.Equal(t, 11, upd.Servers["lobby"].Online)
}

func TestParseNoticeReturn(t *testing.T) {
	raw := []byte(`{
		"type": "notice_return",
		"notices": {"n1": {"title": "Event", "text": "Tonight!", "time": 1700000000000}},
		"page": 2,
		"counts": 5,
		"total": 13
	}`)

	p := NewParser()
	msg, err := p.Parse(raw)
	require.NoError(t, err)

	nr, ok := msg.(*NoticeReturnMessage)
	require.True(t, ok)
	assert.Equal(t, 2, nr.Page)
	require.NotNil(t, nr.Total)
	assert.Equal(t, 13, *nr.Total)
	assert.Equal(t, "Event", nr.Notices["n1"].Title)
}

func TestParseUnknownTypeSurvives(t *testing.T) {
	p := NewParser()
	msg, err := p.Parse([]byte(`{"type": "future_feature", "data": [1, 2, 3]}`))
	require.NoError(t, err)

	unk, ok := msg.(*UnknownMessage)
	require.True(t, ok)
	assert.Equal(t, "future_feature", unk.MessageType())
}

func TestParseMalformedFrame(t *testing.T) {
	p := NewParser()

	_, err := p.Parse([]byte(`not json`))
	assert.Error(t, err)

	_, err = p.Parse([]byte(`{"no_type": true}`))
	assert.Error(t, err)
}

func TestParseSurvivalFull(t *testing.T) {
	raw := []byte(`{
		"type": "full",
		"players": {
			"max": 200,
			"curr": 3,
			"players": ["Steve", {"uuid": "u9", "name": "Alex"}, "Herobrine"]
		},
		"server-version": "1.20.4"
	}`)

	p := NewParser()
	msg, err := p.ParseSurvivalFull(raw)
	require.NoError(t, err)

	assert.Equal(t, 200, msg.Players.Max)
	assert.Equal(t, 3, msg.Players.Curr)
	require.Len(t, msg.Players.Players, 3)

	assert.Equal(t, "Steve", msg.Players.Players[0].Name)
	assert.Empty(t, msg.Players.Players[0].UUID)
	assert.Equal(t, "u9", msg.Players.Players[1].UUID)
	assert.Equal(t, "Alex", msg.Players.Players[1].Name)
}
