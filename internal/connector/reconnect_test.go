package connector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconnectPolicyDelaysFollowTable(t *testing.T) {
	p := NewReconnectPolicy(10, nil)

	var delays []time.Duration
	for i := 0; i < 7; i++ {
		delays = append(delays, p.NextDelay())
		p.IncrementAttempts()
	}

	// First attempts walk the table; past the end the last step repeats.
	assert.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		5 * time.Second,
		10 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}, delays)
}

func TestReconnectPolicyExhaustion(t *testing.T) {
	p := NewReconnectPolicy(3, []time.Duration{time.Millisecond})

	for i := 0; i < 3; i++ {
		assert.True(t, p.ShouldReconnect(), "attempt %d", i)
		p.IncrementAttempts()
	}
	assert.False(t, p.ShouldReconnect())
	assert.Equal(t, 3, p.Attempts())
}

func TestReconnectPolicyResetRestoresBudget(t *testing.T) {
	p := NewReconnectPolicy(2, []time.Duration{time.Second, time.Minute})

	p.IncrementAttempts()
	p.IncrementAttempts()
	assert.False(t, p.ShouldReconnect())

	p.Reset()
	assert.True(t, p.ShouldReconnect())
	assert.Equal(t, 0, p.Attempts())
	assert.Equal(t, time.Second, p.NextDelay())
}

func TestReconnectPolicyDisabled(t *testing.T) {
	p := NewReconnectPolicy(5, nil)

	p.SetEnabled(false)
	assert.False(t, p.ShouldReconnect())
	assert.False(t, p.Enabled())

	// Re-enabling restores normal behavior without touching the counter.
	p.SetEnabled(true)
	assert.True(t, p.ShouldReconnect())
}
