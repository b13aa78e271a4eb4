// Package feed defines the channel contracts between the event feed
// producer and the timeline reconciliation engine, plus a reference
// producer backed by the event store.
package feed

import "github.com/fjordchat/fjord/internal/event"

// Direction identifies a pagination direction.
type Direction string

const (
	DirectionBackward Direction = "backward"
	DirectionForward  Direction = "forward"
)

// Update is the closed union of messages the producer sends to the engine.
// Updates are ordered per room and unordered across rooms.
type Update interface {
	isUpdate()
}

// FirstLoad replaces the snapshot wholesale on initial room load.
type FirstLoad struct {
	Items event.Snapshot
}

// Replace commits a new snapshot. ChangedIndices lists the indices whose
// content changed relative to the previous snapshot; indices outside that
// set are assumed stable unless ClearCache is set.
type Replace struct {
	Items          event.Snapshot
	ChangedIndices []int

	// IsAppend marks updates that only added items at the tail.
	IsAppend bool

	// ClearCache forces a full drawn-cache invalidation. Backward
	// pagination prepends always set it.
	ClearCache bool
}

// PaginationRunning toggles the loading indicator on.
type PaginationRunning struct {
	Direction Direction
}

// PaginationIdle toggles the loading indicator off.
type PaginationIdle struct {
	Direction Direction

	// FullyPaginated is true once the oldest locally known item is the
	// true start of history.
	FullyPaginated bool
}

// PaginationError reports a failed pagination request. The engine does not
// retry; it clears the loading indicator and lets the user re-trigger.
type PaginationError struct {
	Direction Direction
	Cause     error
}

// TargetEventFound resolves a standing PaginateUntilEvent search.
type TargetEventFound struct {
	TargetEventID event.EventID
	Index         int
}

// UnreadCount refreshes the room's unread message count.
type UnreadCount struct {
	Value int
}

func (FirstLoad) isUpdate()         {}
func (Replace) isUpdate()           {}
func (PaginationRunning) isUpdate() {}
func (PaginationIdle) isUpdate()    {}
func (PaginationError) isUpdate()   {}
func (TargetEventFound) isUpdate()  {}
func (UnreadCount) isUpdate()       {}
