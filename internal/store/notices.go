package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/netpulse-project/netpulse/internal/events"
	"github.com/netpulse-project/netpulse/internal/protocol"
)

// RequestDedupeWindow suppresses a repeat of the identical announcement
// request fired within this interval of the previous one.
const RequestDedupeWindow = 2 * time.Second

// DefaultNoticeCounts is the page size used when callers pass zero.
const DefaultNoticeCounts = 5

// SendFunc transmits one outbound frame to the primary endpoint.
type SendFunc func(data []byte) error

// NoticeEntry is one announcement with its backend id, ordered newest
// first in page snapshots.
type NoticeEntry struct {
	ID string `json:"id"`
	protocol.Notice
}

// NoticePage is a read-only snapshot of the current announcement page.
type NoticePage struct {
	Notices    []NoticeEntry `json:"notices"`
	Page       int           `json:"page"`
	Counts     int           `json:"counts"`
	TotalPages int           `json:"total_pages"`
	Total      *int          `json:"total,omitempty"`
	HasMore    bool          `json:"has_more"`
	Loading    bool          `json:"loading"`
	Error      string        `json:"error,omitempty"`
}

// NoticeBoard tracks the currently loaded announcement page and issues
// page requests through the primary endpoint. When the backend omits a
// grand total, page bounds are estimated: a full page implies at least
// one more. Not synchronized; the aggregator serializes access.
type NoticeBoard struct {
	notices    map[string]protocol.Notice
	page       int
	counts     int
	totalPages int
	total      *int
	hasMore    bool
	loading    bool
	errMsg     string

	lastPage   int
	lastCounts int
	lastAt     time.Time

	builder *protocol.RequestBuilder
	send    SendFunc
	now     func() time.Time
}

// NewNoticeBoard creates a board that transmits requests through send.
func NewNoticeBoard(builder *protocol.RequestBuilder, send SendFunc) *NoticeBoard {
	return &NoticeBoard{
		notices: make(map[string]protocol.Notice),
		page:    1,
		counts:  DefaultNoticeCounts,
		builder: builder,
		send:    send,
		now:     time.Now,
	}
}

// Request asks the backend for one announcement page. An identical
// request within the dedupe window of the previous one is silently
// dropped; the in-flight response still answers it.
func (b *NoticeBoard) Request(page, counts int) error {
	if page < 1 {
		page = 1
	}
	if counts < 1 {
		counts = DefaultNoticeCounts
	}

	now := b.now()
	if page == b.lastPage && counts == b.lastCounts && now.Sub(b.lastAt) < RequestDedupeWindow {
		return nil
	}
	b.lastPage = page
	b.lastCounts = counts
	b.lastAt = now

	if b.send == nil {
		return fmt.Errorf("no transport for notice request")
	}
	if err := b.send(b.builder.Notice(page, counts)); err != nil {
		return fmt.Errorf("notice request failed: %w", err)
	}
	b.loading = true
	b.errMsg = ""
	return nil
}

// NextPage requests the page after the current one, bounded by the known
// or estimated page count.
func (b *NoticeBoard) NextPage() error {
	if !b.hasMore {
		return nil
	}
	return b.Request(b.page+1, b.counts)
}

// PrevPage requests the page before the current one.
func (b *NoticeBoard) PrevPage() error {
	if b.page <= 1 {
		return nil
	}
	return b.Request(b.page-1, b.counts)
}

// ApplyReturn ingests one announcement page response.
func (b *NoticeBoard) ApplyReturn(p events.NoticeReturnPayload) {
	b.notices = p.Notices
	if b.notices == nil {
		b.notices = make(map[string]protocol.Notice)
	}
	b.page = p.Page
	if b.page < 1 {
		b.page = 1
	}
	b.counts = p.Counts
	if b.counts < 1 {
		b.counts = DefaultNoticeCounts
	}
	b.total = p.Total
	b.loading = false
	b.errMsg = ""

	if p.Total != nil {
		pages := (*p.Total + b.counts - 1) / b.counts
		if pages < 1 {
			pages = 1
		}
		b.totalPages = pages
		b.hasMore = b.page < pages
		return
	}

	// No grand total on the wire. A full page suggests more behind it;
	// a short page is the last one.
	if len(b.notices) >= b.counts {
		b.hasMore = true
		b.totalPages = b.page + 1
	} else {
		b.hasMore = false
		b.totalPages = b.page
	}
}

// ApplyError records a fetch failure without clearing the loaded page.
func (b *NoticeBoard) ApplyError(msg string) {
	b.loading = false
	b.errMsg = msg
}

// Snapshot returns the current page, entries ordered newest first.
func (b *NoticeBoard) Snapshot() NoticePage {
	entries := make([]NoticeEntry, 0, len(b.notices))
	for id, n := range b.notices {
		entries = append(entries, NoticeEntry{ID: id, Notice: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Time != entries[j].Time {
			return entries[i].Time > entries[j].Time
		}
		return entries[i].ID < entries[j].ID
	})

	return NoticePage{
		Notices:    entries,
		Page:       b.page,
		Counts:     b.counts,
		TotalPages: b.totalPages,
		Total:      b.total,
		HasMore:    b.hasMore,
		Loading:    b.loading,
		Error:      b.errMsg,
	}
}

// Reset wipes the board back to its initial state.
func (b *NoticeBoard) Reset() {
	b.notices = make(map[string]protocol.Notice)
	b.page = 1
	b.counts = DefaultNoticeCounts
	b.totalPages = 0
	b.total = nil
	b.hasMore = false
	b.loading = false
	b.errMsg = ""
	b.lastPage = 0
	b.lastCounts = 0
	b.lastAt = time.Time{}
}
