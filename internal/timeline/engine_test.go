package timeline

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fjordchat/fjord/internal/event"
	"github.com/fjordchat/fjord/internal/feed"
)

type scrollCall struct {
	index  int
	offset int
}

// stubViewport models a one-item-per-line window.
type stubViewport struct {
	first int
	count int

	// itemLen, when set, lets ScrollToTail reposition the window against
	// the current snapshot length the way the real window does.
	itemLen func() int

	scrolls []scrollCall
	tails   int
}

func (v *stubViewport) FirstVisibleIndex() int { return v.first }
func (v *stubViewport) VisibleCount() int      { return v.count }
func (v *stubViewport) ItemOffset(index int) int {
	return index - v.first
}
func (v *stubViewport) ScrollTo(index, offset int) {
	v.first = index - offset
	v.scrolls = append(v.scrolls, scrollCall{index: index, offset: offset})
}
func (v *stubViewport) ScrollToTail() {
	v.tails++
	if v.itemLen != nil {
		v.first = maxInt(0, v.itemLen()-v.count)
	}
}

type requestRecorder struct {
	reqs []feed.Request
}

func (r *requestRecorder) Send(req feed.Request) {
	r.reqs = append(r.reqs, req)
}

func (r *requestRecorder) paginations() int {
	n := 0
	for _, req := range r.reqs {
		if _, ok := req.(feed.Paginate); ok {
			n++
		}
	}
	return n
}

type receiptCall struct {
	eventID event.EventID
	ts      time.Time
}

type receiptRecorder struct {
	read  []receiptCall
	fully []receiptCall
}

func (r *receiptRecorder) ReadUpTo(_ event.RoomID, id event.EventID, ts time.Time) {
	r.read = append(r.read, receiptCall{eventID: id, ts: ts})
}

func (r *receiptRecorder) FullyReadUpTo(_ event.RoomID, id event.EventID, ts time.Time) {
	r.fully = append(r.fully, receiptCall{eventID: id, ts: ts})
}

var testEpoch = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// makeItems builds n message items with ids "$<prefix>-<i>" spaced one
// minute apart.
func makeItems(prefix string, n int) event.Snapshot {
	items := make(event.Snapshot, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, event.NewEventItem(&event.Event{
			EventID:   event.EventID(fmt.Sprintf("$%s-%d", prefix, i)),
			Sender:    "@a",
			Timestamp: testEpoch.Add(time.Duration(i) * time.Minute),
			Content:   event.Content{Kind: event.ContentMessage, Body: "m"},
		}))
	}
	return items
}

func newTestEngine(opts ...EngineOption) (*Engine, *requestRecorder) {
	rec := &requestRecorder{}
	return NewEngine(rec, opts...), rec
}

func TestApplyFirstLoad_ResetsAndFollowsTail(t *testing.T) {
	eng, _ := newTestEngine()
	st := NewState("!room")
	st.ContentDrawn.InsertRange(0, 10)
	st.FullyPaginated = true
	vp := &stubViewport{count: 5}

	hint := eng.ApplyUpdates(st, vp, []feed.Update{feed.FirstLoad{Items: makeItems("e", 20)}})

	if !hint.Redraw || hint.Applied != 1 {
		t.Fatalf("expected one applied redraw, got %+v", hint)
	}
	if vp.tails != 1 {
		t.Fatalf("expected tail scroll, got %d", vp.tails)
	}
	if !st.AtTail || st.FullyPaginated || !st.ContentDrawn.IsEmpty() {
		t.Fatalf("first load must reset snapshot-scoped state: %+v", st)
	}
	if st.LastScrolledIndex != 19 {
		t.Fatalf("expected last scrolled index 19, got %d", st.LastScrolledIndex)
	}
}

func TestApplyReplace_AnchorPreservedAcrossPrepend(t *testing.T) {
	eng, _ := newTestEngine()
	st := NewState("!room")
	st.Items = makeItems("e", 20)
	vp := &stubViewport{first: 10, count: 5}

	anchorID := st.Items[10].EventID()
	grown := append(makeItems("old", 5), st.Items...)
	eng.ApplyUpdates(st, vp, []feed.Update{feed.Replace{Items: grown, ClearCache: true}})

	if vp.first != 15 {
		t.Fatalf("expected window re-anchored at 15, got %d", vp.first)
	}
	if got := st.Items[vp.first].EventID(); got != anchorID {
		t.Fatalf("expected anchor %s at window top, got %s", anchorID, got)
	}
	if len(vp.scrolls) != 1 || vp.scrolls[0].offset != 0 {
		t.Fatalf("expected one zero-offset scroll, got %v", vp.scrolls)
	}
}

func TestApplyReplace_AnchorKeepsOffsetForMidWindowMatch(t *testing.T) {
	eng, _ := newTestEngine()
	st := NewState("!room")
	st.Items = makeItems("e", 20)
	vp := &stubViewport{first: 10, count: 5}

	// The top two visible items vanish; the first surviving anchor is the
	// old index 12, two lines below the window top.
	var survived event.Snapshot
	survived = append(survived, st.Items[:10]...)
	survived = append(survived, st.Items[12:]...)
	eng.ApplyUpdates(st, vp, []feed.Update{feed.Replace{Items: survived, ClearCache: true}})

	if len(vp.scrolls) != 1 {
		t.Fatalf("expected one scroll, got %v", vp.scrolls)
	}
	if vp.scrolls[0] != (scrollCall{index: 10, offset: 2}) {
		t.Fatalf("expected scroll to 10 with offset 2, got %+v", vp.scrolls[0])
	}
}

func TestApplyReplace_NoAnchorLeavesPositionUnchanged(t *testing.T) {
	eng, _ := newTestEngine()
	st := NewState("!room")
	st.Items = makeItems("e", 20)
	vp := &stubViewport{first: 5, count: 3}

	// Nothing in the visible window survives into the new snapshot.
	var replacement event.Snapshot
	replacement = append(replacement, st.Items[:5]...)
	replacement = append(replacement, makeItems("new", 10)...)
	eng.ApplyUpdates(st, vp, []feed.Update{feed.Replace{Items: replacement, ClearCache: true}})

	if len(vp.scrolls) != 0 || vp.first != 5 {
		t.Fatalf("stale anchor must leave the scroll position alone, got first=%d scrolls=%v",
			vp.first, vp.scrolls)
	}
}

func TestApplyReplace_ClearCacheEmptiesDrawnCaches(t *testing.T) {
	eng, _ := newTestEngine()
	st := NewState("!room")
	st.Items = makeItems("e", 10)
	st.ContentDrawn.InsertRange(0, 10)
	st.ProfileDrawn.InsertRange(0, 10)
	st.FullyPaginated = true
	vp := &stubViewport{first: 0, count: 5}

	eng.ApplyUpdates(st, vp, []feed.Update{feed.Replace{Items: makeItems("e", 10), ClearCache: true}})

	if !st.ContentDrawn.IsEmpty() || !st.ProfileDrawn.IsEmpty() {
		t.Fatalf("clear-cache replace must empty both drawn caches")
	}
	if st.FullyPaginated {
		t.Fatalf("clear-cache replace must reset fully-paginated")
	}
}

func TestApplyReplace_NarrowsCachesToChangedIndices(t *testing.T) {
	eng, _ := newTestEngine()
	st := NewState("!room")
	st.Items = makeItems("e", 10)
	st.ContentDrawn.InsertRange(0, 10)
	st.ProfileDrawn.InsertRange(0, 10)
	vp := &stubViewport{first: 0, count: 5}

	eng.ApplyUpdates(st, vp, []feed.Update{feed.Replace{
		Items:          makeItems("e", 10),
		ChangedIndices: []int{3, 7},
	}})

	for _, idx := range []int{3, 7} {
		if st.ContentDrawn.Contains(idx) || st.ProfileDrawn.Contains(idx) {
			t.Fatalf("changed index %d must be invalidated", idx)
		}
	}
	if !st.ContentDrawn.Contains(0) || !st.ContentDrawn.Contains(9) {
		t.Fatalf("unchanged indices must stay cached: %s", st.ContentDrawn.String())
	}
}

func TestApplyReplace_TruncatesCachesOnShrink(t *testing.T) {
	eng, _ := newTestEngine()
	st := NewState("!room")
	st.Items = makeItems("e", 20)
	st.ContentDrawn.InsertRange(0, 20)
	st.ProfileDrawn.InsertRange(0, 20)
	vp := &stubViewport{first: 0, count: 5}

	eng.ApplyUpdates(st, vp, []feed.Update{feed.Replace{Items: st.Items[:12]}})

	if st.ContentDrawn.Max() >= 12 || st.ProfileDrawn.Max() >= 12 {
		t.Fatalf("caches must never cover indices past the snapshot end: %s", st.ContentDrawn.String())
	}
}

func TestApplyReplace_AppendOffTailSetsUnreadIndicator(t *testing.T) {
	eng, rec := newTestEngine()
	st := NewState("!room")
	st.Items = makeItems("e", 20)
	st.AtTail = false
	vp := &stubViewport{first: 0, count: 5}

	grown := append(append(event.Snapshot{}, st.Items...), makeItems("new", 1)...)
	changed := []int{20}
	eng.ApplyUpdates(st, vp, []feed.Update{feed.Replace{
		Items:          grown,
		ChangedIndices: changed,
		IsAppend:       true,
	}})

	if !st.UnreadIndicator {
		t.Fatalf("append while off tail must raise the unread indicator")
	}
	found := false
	for _, req := range rec.reqs {
		if _, ok := req.(feed.RefreshUnread); ok {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a RefreshUnread request, got %v", rec.reqs)
	}
}

func TestApplyReplace_AppendAtTailStaysQuiet(t *testing.T) {
	eng, rec := newTestEngine()
	st := NewState("!room")
	st.Items = makeItems("e", 5)
	st.AtTail = true
	vp := &stubViewport{first: 0, count: 10}

	grown := append(append(event.Snapshot{}, st.Items...), makeItems("new", 1)...)
	eng.ApplyUpdates(st, vp, []feed.Update{feed.Replace{Items: grown, IsAppend: true}})

	if st.UnreadIndicator {
		t.Fatalf("append at tail must not raise the unread indicator")
	}
	if len(rec.reqs) != 0 {
		t.Fatalf("expected no requests, got %v", rec.reqs)
	}
}

func TestApplyReplace_TailFollowAcrossConsecutiveAppends(t *testing.T) {
	eng, rec := newTestEngine()
	st := NewState("!room")
	vp := &stubViewport{count: 5}
	vp.itemLen = func() int { return len(st.Items) }

	eng.ApplyUpdates(st, vp, []feed.Update{feed.FirstLoad{Items: makeItems("e", 10)}})
	if vp.first != 5 {
		t.Fatalf("expected window at tail after first load, first=%d", vp.first)
	}

	// Two appends land without any scroll in between. The window must keep
	// following the tail, not freeze on the pre-append anchor.
	for i := 0; i < 2; i++ {
		grown := append(append(event.Snapshot{}, st.Items...), makeItems(fmt.Sprintf("live%d", i), 1)...)
		eng.ApplyUpdates(st, vp, []feed.Update{feed.Replace{Items: grown, IsAppend: true}})
	}

	if vp.first != 7 {
		t.Fatalf("window must follow the tail across appends, first=%d len=%d", vp.first, len(st.Items))
	}
	if !st.AtTail {
		t.Fatalf("tail-follow must keep the tail flag set")
	}
	if st.UnreadIndicator {
		t.Fatalf("appends visible at the tail must not raise the unread indicator")
	}
	if len(rec.reqs) != 0 {
		t.Fatalf("expected no requests while following the tail, got %v", rec.reqs)
	}
}

func TestApplyReplace_AppendRecomputesTailFromWindow(t *testing.T) {
	eng, rec := newTestEngine()
	st := NewState("!room")
	st.Items = makeItems("e", 20)
	st.AtTail = true // stale: the window actually sits mid-history
	vp := &stubViewport{first: 5, count: 5}

	grown := append(append(event.Snapshot{}, st.Items...), makeItems("new", 1)...)
	eng.ApplyUpdates(st, vp, []feed.Update{feed.Replace{Items: grown, IsAppend: true}})

	if st.AtTail {
		t.Fatalf("append landing below the window must clear the tail flag")
	}
	if !st.UnreadIndicator {
		t.Fatalf("expected the unread indicator despite the stale tail flag")
	}
	found := false
	for _, req := range rec.reqs {
		if _, ok := req.(feed.RefreshUnread); ok {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a RefreshUnread request, got %v", rec.reqs)
	}
}

func TestApplyReplace_GrowsStandingSearchProgress(t *testing.T) {
	eng, _ := newTestEngine()
	st := NewState("!room")
	st.Items = makeItems("e", 20)
	st.TargetSearch = &TargetSearch{Target: "$x", Scanned: 20}
	vp := &stubViewport{first: 10, count: 5}

	grown := append(makeItems("old", 25), st.Items...)
	eng.ApplyUpdates(st, vp, []feed.Update{feed.Replace{Items: grown, ClearCache: true}})

	if st.TargetSearch == nil || st.TargetSearch.Scanned != 45 {
		t.Fatalf("expected scanned progress 45, got %+v", st.TargetSearch)
	}
}

func TestPaginationEdgeCrossing(t *testing.T) {
	eng, rec := newTestEngine()
	st := NewState("!room")
	st.Items = makeItems("e", 50)
	st.LastScrolledIndex = 10

	// 10 -> 0 crosses the edge: exactly one request.
	eng.MaybeRequestBackwardPagination(st, 0)
	if rec.paginations() != 1 {
		t.Fatalf("expected one pagination after crossing, got %d", rec.paginations())
	}
	pag := rec.reqs[0].(feed.Paginate)
	if pag.Direction != feed.DirectionBackward || pag.Count != DefaultPageSize {
		t.Fatalf("unexpected pagination request %+v", pag)
	}

	// 0 -> 0 stays on the edge: no new request.
	eng.MaybeRequestBackwardPagination(st, 0)
	if rec.paginations() != 1 {
		t.Fatalf("staying at zero must not re-request, got %d", rec.paginations())
	}

	// 0 -> 5 -> 0 leaves and re-enters: exactly one more.
	eng.MaybeRequestBackwardPagination(st, 5)
	eng.MaybeRequestBackwardPagination(st, 0)
	if rec.paginations() != 2 {
		t.Fatalf("expected a second pagination after re-entry, got %d", rec.paginations())
	}
}

func TestPaginationSkippedWhenFullyPaginated(t *testing.T) {
	eng, rec := newTestEngine()
	st := NewState("!room")
	st.FullyPaginated = true
	st.LastScrolledIndex = 10

	eng.MaybeRequestBackwardPagination(st, 0)
	if len(rec.reqs) != 0 {
		t.Fatalf("fully paginated rooms must not request older pages")
	}
	if st.LastScrolledIndex != 0 {
		t.Fatalf("scroll bookkeeping must still advance, got %d", st.LastScrolledIndex)
	}
}

func TestJumpToRelated_FoundWithinBudget(t *testing.T) {
	eng, rec := newTestEngine()
	st := NewState("!room")
	st.Items = makeItems("e", 100)
	vp := &stubViewport{first: 40, count: 20}

	target := st.Items[5].EventID()
	if !eng.JumpToRelated(st, vp, target, 59, 0) {
		t.Fatalf("expected synchronous hit")
	}
	if len(vp.scrolls) != 1 || vp.scrolls[0] != (scrollCall{index: 4, offset: 0}) {
		t.Fatalf("expected scroll to index 4, got %v", vp.scrolls)
	}
	idx, ok := eng.TakePendingHighlight(st)
	if !ok || idx != 5 {
		t.Fatalf("expected highlight armed for 5, got %d/%v", idx, ok)
	}
	if len(rec.reqs) != 0 {
		t.Fatalf("synchronous hit must not issue requests, got %v", rec.reqs)
	}
	if st.AtTail {
		t.Fatalf("jumping away must clear tail-follow")
	}
}

func TestJumpToRelated_BudgetExhaustedRegistersStandingSearch(t *testing.T) {
	eng, rec := newTestEngine(WithSearchBudget(30))
	st := NewState("!room")
	st.Items = makeItems("e", 100)
	vp := &stubViewport{first: 80, count: 20}

	if eng.JumpToRelated(st, vp, "$missing", 99, 0) {
		t.Fatalf("expected miss")
	}
	if st.TargetSearch == nil || st.TargetSearch.Target != "$missing" || st.TargetSearch.Scanned != 30 {
		t.Fatalf("expected standing search with 30 scanned, got %+v", st.TargetSearch)
	}
	if len(rec.reqs) != 1 {
		t.Fatalf("expected one request, got %v", rec.reqs)
	}
	req, ok := rec.reqs[0].(feed.PaginateUntilEvent)
	if !ok || req.TargetEventID != "$missing" || req.ResumeFromIndex != 30 {
		t.Fatalf("unexpected search request %+v", rec.reqs[0])
	}
}

func TestJumpToRelated_SecondMissUpdatesExistingSearch(t *testing.T) {
	eng, _ := newTestEngine(WithSearchBudget(10))
	st := NewState("!room")
	st.Items = makeItems("e", 50)
	vp := &stubViewport{first: 30, count: 10}

	eng.JumpToRelated(st, vp, "$first", 49, 0)
	eng.JumpToRelated(st, vp, "$second", 49, 0)

	if st.TargetSearch.Target != "$second" {
		t.Fatalf("a new jump must supersede the standing target, got %+v", st.TargetSearch)
	}
}

func TestTargetEventFound_ScrollsAndHighlights(t *testing.T) {
	eng, _ := newTestEngine()
	st := NewState("!room")
	st.Items = makeItems("e", 30)
	st.TargetSearch = &TargetSearch{Target: st.Items[7].EventID()}
	vp := &stubViewport{first: 20, count: 5}

	hint := eng.ApplyUpdates(st, vp, []feed.Update{feed.TargetEventFound{
		TargetEventID: st.Items[7].EventID(),
		Index:         7,
	}})

	if st.TargetSearch != nil {
		t.Fatalf("resolution must cancel the standing search")
	}
	if len(vp.scrolls) != 1 || vp.scrolls[0] != (scrollCall{index: 6, offset: 0}) {
		t.Fatalf("expected scroll to 6, got %v", vp.scrolls)
	}
	if !hint.HighlightPending {
		t.Fatalf("expected pending highlight")
	}
}

func TestTargetEventFound_SanityCheckFailure(t *testing.T) {
	eng, _ := newTestEngine()
	st := NewState("!room")
	st.Items = makeItems("e", 10)
	st.TargetSearch = &TargetSearch{Target: "$x"}
	vp := &stubViewport{first: 0, count: 5}

	hint := eng.ApplyUpdates(st, vp, []feed.Update{feed.TargetEventFound{
		TargetEventID: "$x",
		Index:         3, // items[3] holds a different event
	}})

	if st.TargetSearch != nil {
		t.Fatalf("failed search must be abandoned, not retried")
	}
	if len(hint.Notices) != 1 || !strings.Contains(hint.Notices[0], "could not locate message") {
		t.Fatalf("expected user-facing notice, got %v", hint.Notices)
	}
	if len(vp.scrolls) != 0 {
		t.Fatalf("failed sanity check must not scroll")
	}
}

func TestPaginationLifecycleUpdates(t *testing.T) {
	eng, _ := newTestEngine()
	st := NewState("!room")
	vp := &stubViewport{count: 5}

	eng.ApplyUpdates(st, vp, []feed.Update{feed.PaginationRunning{Direction: feed.DirectionBackward}})
	if !st.LoadingOlder {
		t.Fatalf("running must set the loading indicator")
	}

	eng.ApplyUpdates(st, vp, []feed.Update{feed.PaginationIdle{
		Direction:      feed.DirectionBackward,
		FullyPaginated: true,
	}})
	if st.LoadingOlder || !st.FullyPaginated {
		t.Fatalf("idle must clear loading and record full pagination: %+v", st)
	}
}

func TestPaginationError_SurfacesNoticeAndClearsLoading(t *testing.T) {
	eng, _ := newTestEngine()
	st := NewState("!room")
	st.LoadingOlder = true
	vp := &stubViewport{count: 5}

	hint := eng.ApplyUpdates(st, vp, []feed.Update{feed.PaginationError{
		Direction: feed.DirectionBackward,
		Cause:     errors.New("backend gone"),
	}})

	if st.LoadingOlder {
		t.Fatalf("error must clear the loading indicator")
	}
	if len(hint.Notices) != 1 || !strings.Contains(hint.Notices[0], "backend gone") {
		t.Fatalf("expected error notice, got %v", hint.Notices)
	}
}

func TestUnreadCountUpdate(t *testing.T) {
	eng, _ := newTestEngine()
	st := NewState("!room")
	st.UnreadIndicator = true
	vp := &stubViewport{count: 5}

	eng.ApplyUpdates(st, vp, []feed.Update{feed.UnreadCount{Value: 4}})
	if st.UnreadCount != 4 || !st.UnreadIndicator {
		t.Fatalf("nonzero count must keep the indicator: %+v", st)
	}

	eng.ApplyUpdates(st, vp, []feed.Update{feed.UnreadCount{Value: 0}})
	if st.UnreadCount != 0 || st.UnreadIndicator {
		t.Fatalf("zero count must drop the indicator: %+v", st)
	}
}

func TestMaybeSendReadReceipts(t *testing.T) {
	sink := &receiptRecorder{}
	eng, _ := newTestEngine(WithReceiptSink(sink))
	st := NewState("!room")
	st.Items = makeItems("e", 40)
	st.LastFullyReadTime = st.Items[2].Timestamp()
	vp := &stubViewport{first: 0, count: 5}

	// First stop only records the baseline.
	eng.MaybeSendReadReceipts(st, vp, false)
	if len(sink.read) != 0 {
		t.Fatalf("first stop must not emit, got %v", sink.read)
	}

	// Moving toward the present emits a read receipt for the last visible
	// event, and the fully-read marker fell inside the previous window, so
	// the stronger signal fires too.
	vp.first = 10
	eng.MaybeSendReadReceipts(st, vp, false)
	if len(sink.read) != 1 || sink.read[0].eventID != st.Items[14].EventID() {
		t.Fatalf("expected read receipt for item 14, got %v", sink.read)
	}
	if len(sink.fully) != 1 {
		t.Fatalf("expected one fully-read signal, got %v", sink.fully)
	}
	if !st.ScrolledPastReadMarker {
		t.Fatalf("crossing must be recorded")
	}

	// Further scrolling reads more but never re-emits fully-read.
	vp.first = 20
	eng.MaybeSendReadReceipts(st, vp, false)
	if len(sink.read) != 2 || len(sink.fully) != 1 {
		t.Fatalf("fully-read must fire once per crossing: read=%d fully=%d",
			len(sink.read), len(sink.fully))
	}
}

func TestMaybeSendReadReceipts_SkippedWhileScrolling(t *testing.T) {
	sink := &receiptRecorder{}
	eng, _ := newTestEngine(WithReceiptSink(sink))
	st := NewState("!room")
	st.Items = makeItems("e", 10)
	vp := &stubViewport{first: 0, count: 5}

	eng.MaybeSendReadReceipts(st, vp, true)
	vp.first = 5
	eng.MaybeSendReadReceipts(st, vp, true)

	if len(sink.read) != 0 || st.PrevFirstIndex != nil {
		t.Fatalf("active scrolling must not emit or record")
	}
}

func TestMaybeSendReadReceipts_BackwardScrollStaysQuiet(t *testing.T) {
	sink := &receiptRecorder{}
	eng, _ := newTestEngine(WithReceiptSink(sink))
	st := NewState("!room")
	st.Items = makeItems("e", 40)
	vp := &stubViewport{first: 20, count: 5}

	eng.MaybeSendReadReceipts(st, vp, false)
	vp.first = 5
	eng.MaybeSendReadReceipts(st, vp, false)

	if len(sink.read) != 0 {
		t.Fatalf("scrolling into history must not mark anything read, got %v", sink.read)
	}
}

func TestToggleGroup_InvalidatesGroupRange(t *testing.T) {
	eng, _ := newTestEngine()
	st := NewState("!room")
	st.Items = makeItems("e", 10)
	st.ContentDrawn.InsertRange(0, 10)
	st.ProfileDrawn.InsertRange(0, 10)

	// Build a 4-item group over indices 2..5.
	minors := event.Snapshot{
		event.NewEventItem(&event.Event{Sender: "@b", Content: event.Content{Kind: event.ContentMembership, Membership: event.MembershipJoin, StateKey: "@b"}}),
		event.NewEventItem(&event.Event{Sender: "@c", Content: event.Content{Kind: event.ContentMembership, Membership: event.MembershipJoin, StateKey: "@c"}}),
		event.NewEventItem(&event.Event{Sender: "@d", Content: event.Content{Kind: event.ContentMembership, Membership: event.MembershipJoin, StateKey: "@d"}}),
		event.NewEventItem(&event.Event{Sender: "@e", Content: event.Content{Kind: event.ContentMembership, Membership: event.MembershipJoin, StateKey: "@e"}}),
	}
	for i, item := range minors {
		var prev, next *event.TimelineItem
		if i > 0 {
			prev = minors[i-1]
		}
		if i+1 < len(minors) {
			next = minors[i+1]
		}
		st.Groups.Observe(2+i, item, prev, next)
	}

	if !eng.ToggleGroup(st, 3) {
		t.Fatalf("expected toggle to hit the group")
	}
	for i := 2; i < 6; i++ {
		if st.ContentDrawn.Contains(i) || st.ProfileDrawn.Contains(i) {
			t.Fatalf("index %d must be invalidated after toggle", i)
		}
	}
	if !st.ContentDrawn.Contains(1) || !st.ContentDrawn.Contains(6) {
		t.Fatalf("indices outside the group must stay cached")
	}

	if eng.ToggleGroup(st, 9) {
		t.Fatalf("toggle outside any group must be a no-op")
	}
}

func TestRegistry_CheckoutCheckin(t *testing.T) {
	reg := NewRegistry()

	st := reg.Checkout("!a")
	if st == nil || st.RoomID != "!a" {
		t.Fatalf("expected fresh state for !a, got %+v", st)
	}
	if reg.Len() != 0 {
		t.Fatalf("checked-out state must leave the registry, len=%d", reg.Len())
	}

	st.TargetSearch = &TargetSearch{Target: "$x"}
	reg.Checkin(st)
	if reg.Len() != 1 {
		t.Fatalf("expected one checked-in room, len=%d", reg.Len())
	}

	again := reg.Checkout("!a")
	if again != st {
		t.Fatalf("checkout must return the same state instance")
	}
	if again.TargetSearch == nil || again.TargetSearch.Target != "$x" {
		t.Fatalf("pending search must survive hide/show, got %+v", again.TargetSearch)
	}
}
