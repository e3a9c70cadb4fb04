package connector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpulse-project/netpulse/internal/events"
)

// fakeConn is an in-memory Conn fed through channels.
type fakeConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	writes [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	c.mu.Lock()
	c.writes = append(c.writes, data)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// fakeDialer hands out fakeConns and records them.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// transitionRecorder collects supervisor transitions thread-safely.
type transitionRecorder struct {
	mu      sync.Mutex
	entries []recordedTransition
	notify  chan struct{}
}

type recordedTransition struct {
	payload events.StateChangePayload
	clean   bool
}

func newTransitionRecorder() *transitionRecorder {
	return &transitionRecorder{notify: make(chan struct{}, 32)}
}

func (r *transitionRecorder) record(p events.StateChangePayload, clean bool) {
	r.mu.Lock()
	r.entries = append(r.entries, recordedTransition{p, clean})
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *transitionRecorder) waitFor(t *testing.T, n int) []recordedTransition {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		if len(r.entries) >= n {
			out := append([]recordedTransition(nil), r.entries...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()

		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d transitions", n)
		}
	}
}

func newTestSupervisor(name string, dialer Dialer) *Supervisor {
	return NewSupervisor(SupervisorOptions{
		Name:    name,
		URL:     "ws://test.invalid/ws",
		Dialer:  dialer,
		Timeout: time.Second,
	})
}

func TestSupervisorConnectDeliversMessages(t *testing.T) {
	dialer := &fakeDialer{}
	sup := newTestSupervisor("minigames", dialer)

	received := make(chan []byte, 1)
	sup.OnMessage(func(endpoint string, raw []byte) {
		assert.Equal(t, "minigames", endpoint)
		received <- raw
	})

	require.NoError(t, sup.Connect(context.Background()))
	assert.Equal(t, events.StateConnected, sup.State())

	dialer.last().in <- []byte(`{"type":"full"}`)

	select {
	case raw := <-received:
		assert.JSONEq(t, `{"type":"full"}`, string(raw))
	case <-time.After(2 * time.Second):
		t.Fatal("frame was not delivered")
	}

	sup.ForceClose()
}

func TestSupervisorCleanDisconnect(t *testing.T) {
	dialer := &fakeDialer{}
	sup := newTestSupervisor("minigames", dialer)
	rec := newTransitionRecorder()
	sup.OnTransition(rec.record)

	require.NoError(t, sup.Connect(context.Background()))
	sup.Disconnect()

	entries := rec.waitFor(t, 3)
	assert.Equal(t, events.StateConnecting, entries[0].payload.Current)
	assert.Equal(t, events.StateConnected, entries[1].payload.Current)
	assert.Equal(t, events.StateDisconnected, entries[2].payload.Current)
	assert.True(t, entries[2].clean, "local disconnect must be clean")
}

func TestSupervisorDroppedSocketIsNotClean(t *testing.T) {
	dialer := &fakeDialer{}
	sup := newTestSupervisor("minigames", dialer)
	rec := newTransitionRecorder()
	sup.OnTransition(rec.record)

	require.NoError(t, sup.Connect(context.Background()))

	// Remote side drops the socket.
	dialer.last().Close()

	entries := rec.waitFor(t, 3)
	last := entries[len(entries)-1]
	assert.Equal(t, events.StateFailed, last.payload.Current)
	assert.False(t, last.clean, "remote drop must not be clean")
}

func TestSupervisorConnectWhenConnectedIsNoop(t *testing.T) {
	dialer := &fakeDialer{}
	sup := newTestSupervisor("minigames", dialer)

	require.NoError(t, sup.Connect(context.Background()))
	require.NoError(t, sup.Connect(context.Background()))

	dialer.mu.Lock()
	dials := len(dialer.conns)
	dialer.mu.Unlock()
	assert.Equal(t, 1, dials)

	sup.ForceClose()
}

func TestSupervisorDialFailure(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("connection refused")}
	sup := newTestSupervisor("minigames", dialer)

	err := sup.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, events.StateFailed, sup.State())
}

func TestSupervisorSendRequiresConnection(t *testing.T) {
	dialer := &fakeDialer{}
	sup := newTestSupervisor("minigames", dialer)

	assert.Error(t, sup.Send([]byte("x")))

	require.NoError(t, sup.Connect(context.Background()))
	require.NoError(t, sup.Send([]byte(`{"type":"get_notice"}`)))

	conn := dialer.last()
	conn.mu.Lock()
	writes := len(conn.writes)
	conn.mu.Unlock()
	assert.Equal(t, 1, writes)

	sup.ForceClose()
}
