package timeline

import (
	"time"

	"github.com/fjordchat/fjord/internal/event"
)

// Viewport is the scroll window contract the presentation adapter exposes
// to the engine. All methods refer to the adapter's current layout; the
// engine calls them only from the consumer thread.
type Viewport interface {
	// FirstVisibleIndex is the snapshot index of the topmost visible item.
	FirstVisibleIndex() int

	// VisibleCount is how many items the window can show.
	VisibleCount() int

	// ItemOffset is the vertical offset of the item relative to the
	// window top, in the adapter's own units.
	ItemOffset(index int) int

	// ScrollTo anchors the window at index with the given offset.
	ScrollTo(index, offset int)

	// ScrollToTail snaps the window to the newest item (tail-follow).
	ScrollToTail()
}

// ReceiptSink receives read-receipt signals emitted on scroll stop.
type ReceiptSink interface {
	// ReadUpTo reports the newest visible event.
	ReadUpTo(roomID event.RoomID, eventID event.EventID, ts time.Time)

	// FullyReadUpTo is the stronger signal emitted once per crossing of
	// the room's previous fully-read position.
	FullyReadUpTo(roomID event.RoomID, eventID event.EventID, ts time.Time)
}

// RedrawHint is what ApplyUpdate returns to the caller's redraw tick.
type RedrawHint struct {
	// Redraw is true when at least one applied update warrants a redraw.
	Redraw bool

	// Applied counts the updates drained from the queue.
	Applied int

	// HighlightPending is true when a highlighted scroll-to is armed.
	HighlightPending bool

	// Notices are user-facing recoverable error messages.
	Notices []string
}
