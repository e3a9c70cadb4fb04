package store

import "time"

// UptimeTracker interpolates network uptime between snapshots. A full
// snapshot from the primary endpoint rebases the counters; reads add the
// wall-clock seconds elapsed since the rebase while tracking is active.
// Tracking runs only while the endpoint is connected and the network is
// not in maintenance; the aggregator owns that gate. Not synchronized.
type UptimeTracker struct {
	baseRunning int64
	baseTotal   int64
	baselineAt  time.Time
	hasBaseline bool
	tracking    bool

	now func() time.Time
}

// NewUptimeTracker creates a tracker using the wall clock.
func NewUptimeTracker() *UptimeTracker {
	return &UptimeTracker{now: time.Now}
}

// Rebase anchors the counters to a fresh authoritative snapshot.
func (u *UptimeTracker) Rebase(running, total int64) {
	u.baseRunning = running
	u.baseTotal = total
	u.baselineAt = u.now()
	u.hasBaseline = true
}

// SetTracking starts or stops interpolation. Stopping freezes the
// counters at their current interpolated values so a later restart does
// not credit the paused interval.
func (u *UptimeTracker) SetTracking(on bool) {
	if u.tracking == on {
		return
	}
	if !on && u.hasBaseline {
		running, total, _ := u.Current()
		u.baseRunning = running
		u.baseTotal = total
		u.baselineAt = u.now()
	}
	if on && u.hasBaseline {
		u.baselineAt = u.now()
	}
	u.tracking = on
}

// Tracking reports whether interpolation is active.
func (u *UptimeTracker) Tracking() bool {
	return u.tracking
}

// Current returns the interpolated running and total uptime in seconds.
// ok is false until the first rebase.
func (u *UptimeTracker) Current() (running, total int64, ok bool) {
	if !u.hasBaseline {
		return 0, 0, false
	}
	running = u.baseRunning
	total = u.baseTotal
	if u.tracking {
		elapsed := int64(u.now().Sub(u.baselineAt).Seconds())
		if elapsed > 0 {
			running += elapsed
			total += elapsed
		}
	}
	return running, total, true
}

// Reset drops the baseline and stops tracking.
func (u *UptimeTracker) Reset() {
	*u = UptimeTracker{now: u.now}
}
