package feed

import "github.com/fjordchat/fjord/internal/event"

// Request is the closed union of messages the engine sends to the producer.
type Request interface {
	isRequest()
	Room() event.RoomID
}

// Paginate asks for one fixed-size batch of items in the given direction.
type Paginate struct {
	RoomID    event.RoomID
	Direction Direction
	Count     int
}

// PaginateUntilEvent registers a standing backward search that keeps loading
// pages until the target event is found. Idempotent per room: a second
// request for the same room updates the existing entry's target instead of
// queuing a new one.
type PaginateUntilEvent struct {
	RoomID        event.RoomID
	TargetEventID event.EventID

	// ResumeFromIndex is how many items the engine already scanned, so the
	// producer can skip re-scanning them.
	ResumeFromIndex int
}

// RefreshUnread asks for an out-of-band unread count refresh.
type RefreshUnread struct {
	RoomID event.RoomID
}

func (Paginate) isRequest()           {}
func (PaginateUntilEvent) isRequest() {}
func (RefreshUnread) isRequest()      {}

func (r Paginate) Room() event.RoomID           { return r.RoomID }
func (r PaginateUntilEvent) Room() event.RoomID { return r.RoomID }
func (r RefreshUnread) Room() event.RoomID      { return r.RoomID }
