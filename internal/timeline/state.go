// Package timeline implements the reconciliation engine that keeps a
// rendered room view consistent with an event stream mutated by background
// network activity: it drains queued updates, re-anchors the visible scroll
// window, narrows drawn-caches, and drives pagination and target search.
package timeline

import (
	"sync"
	"time"

	"github.com/fjordchat/fjord/internal/event"
	"github.com/fjordchat/fjord/internal/groups"
	"github.com/fjordchat/fjord/internal/rangeset"
)

// TargetSearch is a standing "search until event" request. At most one per
// room; a new request updates the target instead of duplicating.
type TargetSearch struct {
	Target event.EventID

	// Scanned counts items already inspected so the producer can skip them.
	Scanned int
}

// State is the durable per-room timeline state. It persists across
// show/hide cycles in the Registry and is only ever operated on by the
// single consumer thread that checked it out.
type State struct {
	RoomID event.RoomID

	// Items is the current snapshot.
	Items event.Snapshot

	// ContentDrawn and ProfileDrawn conservatively record which indices do
	// not need their content/profile re-rendered. Always valid indices
	// into Items: narrowed by updates, never widened, and fully cleared
	// whenever items are replaced wholesale.
	ContentDrawn rangeset.Set
	ProfileDrawn rangeset.Set

	// FullyPaginated is true once the oldest locally known item is the
	// true start of history. Backward pagination stops once set; reset
	// whenever the snapshot is fully cleared.
	FullyPaginated bool

	// PrevFirstIndex is the first-visible index recorded at the last
	// scroll stop, nil before the first one. Read-receipt edge detection.
	PrevFirstIndex *int

	// LastScrolledIndex is the first-visible index seen by the last scroll
	// event. Pagination edge detection.
	LastScrolledIndex int

	// TargetSearch is the pending target-event search, if any.
	TargetSearch *TargetSearch

	// PendingHighlight is an index armed for a highlighted scroll-to.
	PendingHighlight *int

	// ScrolledPastReadMarker gates the stronger fully-read receipt to one
	// emission per crossing. Reset when the snapshot is replaced wholesale.
	ScrolledPastReadMarker bool

	// LastFullyReadTime is the room's last known fully-read timestamp.
	LastFullyReadTime time.Time

	// AtTail is true while the window follows the newest item.
	AtTail bool

	// UnreadIndicator is surfaced when an append arrives off-tail.
	UnreadIndicator bool

	// UnreadCount is the producer-reported unread message count.
	UnreadCount int

	// LoadingOlder is the backward-pagination loading indicator.
	LoadingOlder bool

	// Groups is the room's small-event group manager.
	Groups *groups.Manager
}

// NewState creates the durable state for one room.
func NewState(roomID event.RoomID, opts ...groups.Option) *State {
	return &State{
		RoomID: roomID,
		Groups: groups.NewManager(opts...),
	}
}

// resetForSnapshot clears everything that is only valid against the old
// snapshot. Called on wholesale replacement.
func (s *State) resetForSnapshot() {
	s.ContentDrawn.Clear()
	s.ProfileDrawn.Clear()
	s.FullyPaginated = false
	s.ScrolledPastReadMarker = false
	s.PrevFirstIndex = nil
	s.PendingHighlight = nil
	s.Groups.Clear()
}

// Registry is the process-wide room to timeline-state map. The mutex
// guards only the brief checkout/checkin transfer; reconciliation never
// runs while the lock is held.
type Registry struct {
	mu    sync.Mutex
	rooms map[event.RoomID]*State
	opts  []groups.Option
}

// NewRegistry creates an empty registry. The group options apply to states
// it creates.
func NewRegistry(opts ...groups.Option) *Registry {
	return &Registry{
		rooms: make(map[event.RoomID]*State),
		opts:  opts,
	}
}

// Checkout moves the room's state out of the registry, creating it on
// first use. The caller owns the state exclusively until Checkin.
func (r *Registry) Checkout(roomID event.RoomID) *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.rooms[roomID]; ok {
		delete(r.rooms, roomID)
		return st
	}
	return NewState(roomID, r.opts...)
}

// Checkin returns a checked-out state to the registry, typically when the
// room's view is hidden. A pending target search stays pending and resumes
// on the next checkout.
func (r *Registry) Checkin(st *State) {
	if st == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[st.RoomID] = st
}

// Len returns the number of checked-in rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
