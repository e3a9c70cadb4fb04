// Package connector owns the transport layer: per-endpoint WebSocket
// connection supervision, the multi-endpoint pool, the reconnect
// policy, and the coordinator that turns transport transitions into
// domain events and retry scheduling.
package connector

import "time"

// DefaultBackoffTable is the default reconnection delay schedule. Once
// the table is exhausted the last interval repeats.
var DefaultBackoffTable = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

// DefaultMaxAttempts is the default cap on consecutive reconnection attempts.
const DefaultMaxAttempts = 10

// ReconnectPolicy decides whether another connection attempt is allowed
// and how long to wait before it. It is pure state: no I/O, no timers.
// Callers serialize access (the coordinator owns one policy per endpoint).
type ReconnectPolicy struct {
	enabled     bool
	attempts    int
	maxAttempts int
	backoff     []time.Duration
}

// NewReconnectPolicy creates a policy with the given attempt cap and
// backoff table. Zero/nil arguments select the defaults.
func NewReconnectPolicy(maxAttempts int, backoff []time.Duration) *ReconnectPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if len(backoff) == 0 {
		backoff = DefaultBackoffTable
	}
	return &ReconnectPolicy{
		enabled:     true,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// ShouldReconnect reports whether another attempt is allowed.
func (p *ReconnectPolicy) ShouldReconnect() bool {
	return p.enabled && p.attempts < p.maxAttempts
}

// NextDelay returns the delay before the next attempt, clamping to the
// last configured interval once the table is exhausted.
func (p *ReconnectPolicy) NextDelay() time.Duration {
	idx := p.attempts
	if idx >= len(p.backoff) {
		idx = len(p.backoff) - 1
	}
	return p.backoff[idx]
}

// IncrementAttempts records one failed attempt.
func (p *ReconnectPolicy) IncrementAttempts() {
	p.attempts++
}

// Reset clears the attempt counter. Called on every successful connect.
func (p *ReconnectPolicy) Reset() {
	p.attempts = 0
}

// Attempts returns the current attempt counter.
func (p *ReconnectPolicy) Attempts() int {
	return p.attempts
}

// MaxAttempts returns the configured attempt cap.
func (p *ReconnectPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// SetEnabled toggles reconnection entirely.
func (p *ReconnectPolicy) SetEnabled(enabled bool) {
	p.enabled = enabled
}

// Enabled reports whether reconnection is enabled.
func (p *ReconnectPolicy) Enabled() bool {
	return p.enabled
}
