package timeline

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fjordchat/fjord/internal/event"
	"github.com/fjordchat/fjord/internal/feed"
	"github.com/fjordchat/fjord/internal/logging"
)

const (
	// DefaultPageSize is the fixed backward-pagination batch size.
	DefaultPageSize = 50

	// DefaultSearchBudget bounds the synchronous backward target scan.
	DefaultSearchBudget = 100
)

// Requester delivers requests to the producer. The producer deduplicates
// per room: a new request supersedes a pending one for the same room.
type Requester interface {
	Send(req feed.Request)
}

// RequestFunc adapts a function to the Requester interface.
type RequestFunc func(req feed.Request)

// Send implements Requester.
func (f RequestFunc) Send(req feed.Request) { f(req) }

// Engine consumes update messages against a room's State, producing scroll
// anchor adjustments and cache invalidations, and issues pagination
// requests based on scroll position and target search. Single-threaded:
// all methods must be called from the consumer thread only.
type Engine struct {
	requests     Requester
	receipts     ReceiptSink
	pageSize     int
	searchBudget int
	log          zerolog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPageSize overrides the pagination batch size.
func WithPageSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithSearchBudget overrides the synchronous target-scan budget.
func WithSearchBudget(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.searchBudget = n
		}
	}
}

// WithReceiptSink attaches a read-receipt sink.
func WithReceiptSink(sink ReceiptSink) EngineOption {
	return func(e *Engine) {
		e.receipts = sink
	}
}

// NewEngine creates a reconciliation engine sending requests through req.
func NewEngine(req Requester, opts ...EngineOption) *Engine {
	e := &Engine{
		requests:     req,
		pageSize:     DefaultPageSize,
		searchBudget: DefaultSearchBudget,
		log:          logging.Component("timeline"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ApplyUpdate drains every currently queued update against the state,
// batching all of them before returning control to the caller's redraw.
func (e *Engine) ApplyUpdate(st *State, vp Viewport, q *feed.Queue) RedrawHint {
	return e.ApplyUpdates(st, vp, q.Drain())
}

// ApplyUpdates applies an already drained batch in order. Adapters that
// must interleave their own bookkeeping (group index shifts on prepends)
// call this per update and merge the hints.
func (e *Engine) ApplyUpdates(st *State, vp Viewport, updates []feed.Update) RedrawHint {
	var hint RedrawHint
	for _, update := range updates {
		redraw, notice := e.applyOne(st, vp, update)
		hint.Applied++
		if redraw {
			hint.Redraw = true
		}
		if notice != "" {
			hint.Notices = append(hint.Notices, notice)
		}
	}
	hint.HighlightPending = st.PendingHighlight != nil
	return hint
}

// Merge folds another hint into h.
func (h *RedrawHint) Merge(other RedrawHint) {
	h.Applied += other.Applied
	h.Redraw = h.Redraw || other.Redraw
	h.HighlightPending = h.HighlightPending || other.HighlightPending
	h.Notices = append(h.Notices, other.Notices...)
}

func (e *Engine) applyOne(st *State, vp Viewport, update feed.Update) (redraw bool, notice string) {
	switch up := update.(type) {
	case feed.FirstLoad:
		e.applyFirstLoad(st, vp, up)
		return true, ""
	case feed.Replace:
		e.applyReplace(st, vp, up)
		return true, ""
	case feed.TargetEventFound:
		return e.applyTargetFound(st, vp, up)
	case feed.PaginationRunning:
		if up.Direction != feed.DirectionBackward {
			// Forward pagination is never requested by this layer.
			e.log.Warn().Str("room", string(st.RoomID)).Msg("unexpected forward pagination running")
			return false, ""
		}
		st.LoadingOlder = true
		return true, ""
	case feed.PaginationIdle:
		if up.Direction != feed.DirectionBackward {
			return false, ""
		}
		st.LoadingOlder = false
		st.FullyPaginated = up.FullyPaginated
		return true, ""
	case feed.PaginationError:
		st.LoadingOlder = false
		e.log.Warn().Str("room", string(st.RoomID)).Err(up.Cause).Msg("pagination failed")
		return true, fmt.Sprintf("could not load older messages: %v", up.Cause)
	case feed.UnreadCount:
		st.UnreadCount = up.Value
		if up.Value == 0 {
			st.UnreadIndicator = false
		}
		return true, ""
	}
	e.log.Error().Str("room", string(st.RoomID)).Msgf("unknown update type %T", update)
	return false, ""
}

func (e *Engine) applyFirstLoad(st *State, vp Viewport, up feed.FirstLoad) {
	st.Items = up.Items
	st.resetForSnapshot()
	st.LoadingOlder = false
	st.UnreadIndicator = false
	st.AtTail = true
	st.LastScrolledIndex = tailIndex(len(up.Items))
	vp.ScrollToTail()
}

func (e *Engine) applyReplace(st *State, vp Viewport, up feed.Replace) {
	oldLen := len(st.Items)
	newItems := up.Items

	// The cached tail flag goes stale as soon as an append re-anchors the
	// window, so at-tail is recomputed from the live window against the
	// snapshot being replaced.
	atTail := vp.FirstVisibleIndex()+vp.VisibleCount() >= oldLen

	switch {
	case len(newItems) == oldLen:
		// Same length: positions are stable, no anchor jump needed.
	case up.IsAppend && atTail:
		// Tail-follow: stay pinned on the newest item instead of the old
		// anchor.
		st.Items = newItems
		vp.ScrollToTail()
		st.UnreadIndicator = false
	case vp.FirstVisibleIndex() >= len(newItems):
		// Lost position entirely; treat as an implicit jump to bottom.
		st.Items = newItems
		vp.ScrollToTail()
		st.UnreadIndicator = false
		atTail = true
	default:
		e.reanchor(st, vp, newItems)
		if up.IsAppend {
			atTail = false
		}
	}
	st.AtTail = atTail

	if up.IsAppend && !st.AtTail {
		st.UnreadIndicator = true
		e.send(feed.RefreshUnread{RoomID: st.RoomID})
	}

	if up.ClearCache {
		st.ContentDrawn.Clear()
		st.ProfileDrawn.Clear()
		st.FullyPaginated = false
		if st.TargetSearch != nil {
			if delta := len(newItems) - oldLen; delta > 0 {
				st.TargetSearch.Scanned += delta
			}
		}
	} else {
		// Conservative invalidation: indices outside the changed set are
		// assumed stable.
		for _, idx := range up.ChangedIndices {
			st.ContentDrawn.Remove(idx)
			st.ProfileDrawn.Remove(idx)
		}
		st.ContentDrawn.TruncateFrom(len(newItems))
		st.ProfileDrawn.TruncateFrom(len(newItems))
	}

	st.Items = newItems
}

// reanchor preserves the visual scroll position across a snapshot change by
// matching a visible event id between old and new items. Best effort: when
// the window holds no item with a real event id the position is left
// unchanged and may visually jump.
func (e *Engine) reanchor(st *State, vp Viewport, newItems event.Snapshot) bool {
	first := vp.FirstVisibleIndex()
	count := vp.VisibleCount()
	for i := first; i < len(st.Items) && i < first+count; i++ {
		id := st.Items[i].EventID()
		if id == "" {
			continue
		}
		newIndex := newItems.FindEventID(id)
		if newIndex < 0 {
			continue
		}
		vp.ScrollTo(newIndex, vp.ItemOffset(i))
		return true
	}
	e.log.Warn().Str("room", string(st.RoomID)).Int("first_visible", first).
		Msg("no anchor event in visible window; leaving scroll position unchanged")
	return false
}

func (e *Engine) applyTargetFound(st *State, vp Viewport, up feed.TargetEventFound) (bool, string) {
	// The standing search is cancelled either way; failures do not retry.
	st.TargetSearch = nil

	idx := up.Index
	if idx < 0 || idx >= len(st.Items) || st.Items[idx].EventID() != up.TargetEventID {
		// Index drifted under a concurrent update and no longer holds the
		// claimed event.
		e.log.Warn().Str("room", string(st.RoomID)).Int("index", idx).
			Str("target", string(up.TargetEventID)).Msg("target event sanity check failed")
		return true, "could not locate message"
	}

	e.scrollToTarget(st, vp, idx)
	return true, ""
}

// scrollToTarget positions the target just below the viewport top and arms
// a pending highlight for it.
func (e *Engine) scrollToTarget(st *State, vp Viewport, idx int) {
	vp.ScrollTo(maxInt(0, idx-1), 0)
	st.AtTail = false
	target := idx
	st.PendingHighlight = &target
}

// MaybeRequestBackwardPagination is invoked on every scroll event. It
// issues exactly one backward request when the first-visible index crosses
// into the top edge, and none until the index leaves and re-enters zero.
func (e *Engine) MaybeRequestBackwardPagination(st *State, firstVisible int) {
	prev := st.LastScrolledIndex
	st.LastScrolledIndex = firstVisible
	if st.FullyPaginated {
		return
	}
	if firstVisible == 0 && prev > 0 {
		e.send(feed.Paginate{
			RoomID:    st.RoomID,
			Direction: feed.DirectionBackward,
			Count:     e.pageSize,
		})
	}
}

// JumpToRelated scans backward from currentIndex over at most budget items
// for the target event. Found: scroll so the target sits just below the
// viewport top and arm its highlight, all synchronously. Not found:
// register a standing search with the producer (idempotent per room) and
// rely on subsequent clear-cache replaces to advance progress until
// TargetEventFound arrives.
func (e *Engine) JumpToRelated(st *State, vp Viewport, target event.EventID, currentIndex, budget int) bool {
	if budget <= 0 {
		budget = e.searchBudget
	}
	if currentIndex >= len(st.Items) {
		currentIndex = len(st.Items) - 1
	}

	scanned := 0
	for i := currentIndex; i >= 0 && scanned < budget; i-- {
		scanned++
		if st.Items[i].EventID() == target {
			e.scrollToTarget(st, vp, i)
			return true
		}
	}

	if st.TargetSearch != nil {
		st.TargetSearch.Target = target
		st.TargetSearch.Scanned = scanned
	} else {
		st.TargetSearch = &TargetSearch{Target: target, Scanned: scanned}
	}
	e.send(feed.PaginateUntilEvent{
		RoomID:          st.RoomID,
		TargetEventID:   target,
		ResumeFromIndex: scanned,
	})
	return false
}

// MaybeSendReadReceipts runs on scroll stop (never while actively
// scrolling). It emits a "read up to here" signal when the window moved
// toward the present, and the stronger fully-read signal exactly once per
// crossing of the room's previous fully-read position.
func (e *Engine) MaybeSendReadReceipts(st *State, vp Viewport, scrolling bool) {
	if scrolling {
		return
	}
	first := vp.FirstVisibleIndex()
	prev := st.PrevFirstIndex
	recorded := first
	st.PrevFirstIndex = &recorded

	if prev == nil || first <= *prev || e.receipts == nil {
		return
	}

	lastID, lastTS, ok := lastVisibleEvent(st.Items, first, vp.VisibleCount())
	if !ok {
		return
	}
	e.receipts.ReadUpTo(st.RoomID, lastID, lastTS)

	if st.ScrolledPastReadMarker || st.LastFullyReadTime.IsZero() {
		return
	}
	if windowCoversTime(st.Items, *prev, vp.VisibleCount(), st.LastFullyReadTime) {
		st.ScrolledPastReadMarker = true
		e.receipts.FullyReadUpTo(st.RoomID, lastID, lastTS)
	}
}

// ToggleGroup flips a group's opened state and force-invalidates the
// drawn-caches over its whole range so visibility is re-evaluated.
func (e *Engine) ToggleGroup(st *State, idx int) bool {
	r, ok := st.Groups.Toggle(idx)
	if !ok {
		return false
	}
	st.ContentDrawn.RemoveRange(r.Start, r.End)
	st.ProfileDrawn.RemoveRange(r.Start, r.End)
	return true
}

// TakePendingHighlight returns and clears the armed highlight index.
func (e *Engine) TakePendingHighlight(st *State) (int, bool) {
	if st.PendingHighlight == nil {
		return 0, false
	}
	idx := *st.PendingHighlight
	st.PendingHighlight = nil
	return idx, true
}

func (e *Engine) send(req feed.Request) {
	if e.requests != nil {
		e.requests.Send(req)
	}
}

// lastVisibleEvent finds the newest item in the window carrying a real
// event id, scanning backward from the window end.
func lastVisibleEvent(items event.Snapshot, first, count int) (event.EventID, time.Time, bool) {
	last := minInt(first+count, len(items)) - 1
	for i := last; i >= first && i >= 0; i-- {
		if id := items[i].EventID(); id != "" {
			return id, items[i].Timestamp(), true
		}
	}
	return "", time.Time{}, false
}

// windowCoversTime reports whether ts falls within the time range spanned
// by the window [first, first+count).
func windowCoversTime(items event.Snapshot, first, count int, ts time.Time) bool {
	last := minInt(first+count, len(items)) - 1
	if first < 0 || first > last {
		return false
	}
	start := items[first].Timestamp()
	end := items[last].Timestamp()
	if start.IsZero() || end.IsZero() {
		return false
	}
	return !ts.Before(start) && !ts.After(end)
}

func tailIndex(n int) int {
	if n == 0 {
		return 0
	}
	return n - 1
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
