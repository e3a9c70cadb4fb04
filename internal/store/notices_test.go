package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpulse-project/netpulse/internal/events"
	"github.com/netpulse-project/netpulse/internal/protocol"
)

// frameRecorder captures frames a NoticeBoard sends.
type frameRecorder struct {
	frames [][]byte
	err    error
}

func (r *frameRecorder) send(data []byte) error {
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, data)
	return nil
}

func newTestBoard(rec *frameRecorder) *NoticeBoard {
	return NewNoticeBoard(protocol.NewRequestBuilder(), rec.send)
}

func intPtr(n int) *int { return &n }

func noticePage(page, counts int, total *int, ids ...string) events.NoticeReturnPayload {
	notices := make(map[string]protocol.Notice, len(ids))
	for i, id := range ids {
		notices[id] = protocol.Notice{
			Title: "Announcement",
			Text:  id,
			Time:  int64(1700000000000 + i),
		}
	}
	return events.NoticeReturnPayload{
		Notices: notices,
		Page:    page,
		Counts:  counts,
		Total:   total,
	}
}

func TestNoticeRequestSendsFrame(t *testing.T) {
	rec := &frameRecorder{}
	b := newTestBoard(rec)

	require.NoError(t, b.Request(2, 5))
	require.Len(t, rec.frames, 1)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(rec.frames[0], &frame))
	assert.Equal(t, "get_notice", frame["type"])
	assert.Equal(t, float64(2), frame["page"])
	assert.Equal(t, float64(5), frame["counts"])

	assert.True(t, b.Snapshot().Loading)
}

func TestNoticeRequestDedupeWindow(t *testing.T) {
	rec := &frameRecorder{}
	b := newTestBoard(rec)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	b.now = func() time.Time { return clock }

	require.NoError(t, b.Request(1, 5))
	require.Len(t, rec.frames, 1)

	// Identical request inside the window is silently dropped.
	clock = base.Add(time.Second)
	require.NoError(t, b.Request(1, 5))
	assert.Len(t, rec.frames, 1)

	// A different page goes straight through.
	require.NoError(t, b.Request(2, 5))
	assert.Len(t, rec.frames, 2)

	// The identical request fires again once the window has passed.
	clock = clock.Add(RequestDedupeWindow)
	require.NoError(t, b.Request(2, 5))
	assert.Len(t, rec.frames, 3)
}

func TestNoticeRequestClampsArguments(t *testing.T) {
	rec := &frameRecorder{}
	b := newTestBoard(rec)

	require.NoError(t, b.Request(0, -3))
	require.Len(t, rec.frames, 1)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(rec.frames[0], &frame))
	assert.Equal(t, float64(1), frame["page"])
	assert.Equal(t, float64(DefaultNoticeCounts), frame["counts"])
}

func TestNoticeRequestSendFailure(t *testing.T) {
	rec := &frameRecorder{err: errors.New("socket closed")}
	b := newTestBoard(rec)

	assert.Error(t, b.Request(1, 5))
	assert.False(t, b.Snapshot().Loading)
}

func TestNoticePaginationFromTotal(t *testing.T) {
	rec := &frameRecorder{}
	b := newTestBoard(rec)

	b.ApplyReturn(noticePage(1, 5, intPtr(12), "a", "b", "c", "d", "e"))

	snap := b.Snapshot()
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, 3, snap.TotalPages)
	assert.True(t, snap.HasMore)
	assert.False(t, snap.Loading)

	b.ApplyReturn(noticePage(3, 5, intPtr(12), "k", "l"))
	snap = b.Snapshot()
	assert.Equal(t, 3, snap.TotalPages)
	assert.False(t, snap.HasMore)
}

func TestNoticePaginationEstimatedWithoutTotal(t *testing.T) {
	rec := &frameRecorder{}
	b := newTestBoard(rec)

	// A full page without a grand total implies at least one more page.
	b.ApplyReturn(noticePage(1, 3, nil, "a", "b", "c"))
	snap := b.Snapshot()
	assert.True(t, snap.HasMore)
	assert.Equal(t, 2, snap.TotalPages)

	// A short page is the last one.
	b.ApplyReturn(noticePage(2, 3, nil, "d"))
	snap = b.Snapshot()
	assert.False(t, snap.HasMore)
	assert.Equal(t, 2, snap.TotalPages)
}

func TestNoticeNextPrevPageBounds(t *testing.T) {
	rec := &frameRecorder{}
	b := newTestBoard(rec)

	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time {
		clock = clock.Add(RequestDedupeWindow)
		return clock
	}

	// Nothing loaded yet: no next page, no previous page.
	require.NoError(t, b.NextPage())
	require.NoError(t, b.PrevPage())
	assert.Empty(t, rec.frames)

	b.ApplyReturn(noticePage(1, 3, intPtr(7), "a", "b", "c"))
	require.NoError(t, b.NextPage())
	require.Len(t, rec.frames, 1)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(rec.frames[0], &frame))
	assert.Equal(t, float64(2), frame["page"])

	// On the last page NextPage is a no-op.
	b.ApplyReturn(noticePage(3, 3, intPtr(7), "g"))
	require.NoError(t, b.NextPage())
	assert.Len(t, rec.frames, 1)

	require.NoError(t, b.PrevPage())
	require.Len(t, rec.frames, 2)
	require.NoError(t, json.Unmarshal(rec.frames[1], &frame))
	assert.Equal(t, float64(2), frame["page"])
}

func TestNoticeSnapshotOrderedNewestFirst(t *testing.T) {
	rec := &frameRecorder{}
	b := newTestBoard(rec)

	b.ApplyReturn(events.NoticeReturnPayload{
		Notices: map[string]protocol.Notice{
			"old":   {Text: "old", Time: 1000},
			"new":   {Text: "new", Time: 3000},
			"mid":   {Text: "mid", Time: 2000},
			"tied2": {Text: "t2", Time: 2000},
		},
		Page:   1,
		Counts: 5,
	})

	snap := b.Snapshot()
	require.Len(t, snap.Notices, 4)
	assert.Equal(t, "new", snap.Notices[0].ID)
	// Equal timestamps fall back to id order for a stable listing.
	assert.Equal(t, "mid", snap.Notices[1].ID)
	assert.Equal(t, "tied2", snap.Notices[2].ID)
	assert.Equal(t, "old", snap.Notices[3].ID)
}

func TestNoticeErrorKeepsLoadedPage(t *testing.T) {
	rec := &frameRecorder{}
	b := newTestBoard(rec)

	b.ApplyReturn(noticePage(1, 5, intPtr(3), "a", "b", "c"))
	b.ApplyError("backend unavailable")

	snap := b.Snapshot()
	assert.Equal(t, "backend unavailable", snap.Error)
	assert.False(t, snap.Loading)
	assert.Len(t, snap.Notices, 3)
}

func TestNoticeResetClearsDedupeState(t *testing.T) {
	rec := &frameRecorder{}
	b := newTestBoard(rec)

	require.NoError(t, b.Request(1, 5))
	require.Len(t, rec.frames, 1)

	// After a reset the same request is no longer a duplicate.
	b.Reset()
	require.NoError(t, b.Request(1, 5))
	assert.Len(t, rec.frames, 2)
}
