// Package event defines the timeline data model shared by the feed producer,
// the reconciliation engine and the grouping engine.
package event

import "time"

// RoomID identifies a chat room.
type RoomID string

// EventID is the server-assigned identifier of a confirmed event. Local
// echoes that have not been confirmed yet carry an empty EventID.
type EventID string

// UserID identifies a user.
type UserID string

// ContentKind categorizes the content of a timeline event.
type ContentKind string

const (
	// Regular content.
	ContentMessage ContentKind = "message"
	ContentPoll    ContentKind = "poll"

	// Membership changes (state events keyed by the affected user).
	ContentMembership ContentKind = "membership"

	// Profile changes by the sender themselves.
	ContentDisplayName ContentKind = "profile.display_name"
	ContentAvatar      ContentKind = "profile.avatar"

	// Room configuration state events.
	ContentRoomCreate            ContentKind = "room.create"
	ContentRoomName              ContentKind = "room.name"
	ContentRoomTopic             ContentKind = "room.topic"
	ContentRoomAvatar            ContentKind = "room.avatar"
	ContentRoomHistoryVisibility ContentKind = "room.history_visibility"
	ContentRoomEncryption        ContentKind = "room.encryption"
	ContentRoomPinnedEvents      ContentKind = "room.pinned_events"

	// Degenerate content.
	ContentRedacted       ContentKind = "redacted"
	ContentUndecryptable  ContentKind = "undecryptable"
	ContentHidden         ContentKind = "hidden"
	ContentStateUnchanged ContentKind = "state.unchanged"
)

// Membership is the target state of a membership change.
type Membership string

const (
	MembershipJoin   Membership = "join"
	MembershipLeave  Membership = "leave"
	MembershipInvite Membership = "invite"
	MembershipBan    Membership = "ban"
	MembershipUnban  Membership = "unban"
	MembershipKick   Membership = "kick"
	MembershipKnock  Membership = "knock"
)

// Content is the closed payload union of an event. Kind selects which of the
// optional fields are meaningful.
type Content struct {
	Kind ContentKind `json:"kind"`

	// Body is the message text for ContentMessage and ContentPoll.
	Body string `json:"body,omitempty"`

	// Membership is the target state for ContentMembership.
	Membership Membership `json:"membership,omitempty"`

	// StateKey is the affected entity for state events (the target user for
	// membership changes).
	StateKey string `json:"state_key,omitempty"`

	// Value carries the new state value for room configuration events
	// (room name, topic, avatar URL, visibility setting).
	Value string `json:"value,omitempty"`
}

// Event is one confirmed or locally echoed timeline event.
type Event struct {
	// LocalID is unique within the room and always present, including for
	// optimistic local echoes.
	LocalID string `json:"local_id"`

	// EventID is empty until the event is confirmed by the server.
	EventID EventID `json:"event_id,omitempty"`

	// Sender is the user that produced the event.
	Sender UserID `json:"sender"`

	// SenderName is the sender's display name at the time of the event.
	SenderName string `json:"sender_name,omitempty"`

	// Timestamp is when the event occurred (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Content is the event payload.
	Content Content `json:"content"`
}

// DisplayName returns the sender's display name, falling back to the user id.
func (e *Event) DisplayName() string {
	if e.SenderName != "" {
		return e.SenderName
	}
	return string(e.Sender)
}

// VirtualKind categorizes non-event timeline items.
type VirtualKind string

const (
	VirtualDateDivider VirtualKind = "date_divider"
	VirtualReadMarker  VirtualKind = "read_marker"
)

// Virtual is a synthetic timeline item inserted by the producer.
type Virtual struct {
	Kind VirtualKind `json:"kind"`

	// Timestamp is the divider date for VirtualDateDivider.
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// TimelineItem is the tagged union of a real event and a virtual item.
// Exactly one of Event and Virtual is non-nil. Items are immutable once
// placed into a snapshot; snapshots share item pointers freely.
type TimelineItem struct {
	Event   *Event   `json:"event,omitempty"`
	Virtual *Virtual `json:"virtual,omitempty"`
}

// IsEvent reports whether the item is a real event.
func (it *TimelineItem) IsEvent() bool {
	return it != nil && it.Event != nil
}

// EventID returns the confirmed event id, or empty for virtual items and
// unconfirmed local echoes.
func (it *TimelineItem) EventID() EventID {
	if it == nil || it.Event == nil {
		return ""
	}
	return it.Event.EventID
}

// Timestamp returns the item's timestamp, zero if it has none.
func (it *TimelineItem) Timestamp() time.Time {
	switch {
	case it == nil:
		return time.Time{}
	case it.Event != nil:
		return it.Event.Timestamp
	case it.Virtual != nil:
		return it.Virtual.Timestamp
	}
	return time.Time{}
}

// NewEventItem wraps an event as a timeline item.
func NewEventItem(ev *Event) *TimelineItem {
	return &TimelineItem{Event: ev}
}

// NewDateDivider returns a date divider item for the given day.
func NewDateDivider(ts time.Time) *TimelineItem {
	return &TimelineItem{Virtual: &Virtual{Kind: VirtualDateDivider, Timestamp: ts.UTC()}}
}

// NewReadMarker returns a read marker item.
func NewReadMarker() *TimelineItem {
	return &TimelineItem{Virtual: &Virtual{Kind: VirtualReadMarker}}
}

// Snapshot is one immutable, indexable version of a room's timeline.
// Index 0 is the oldest known item; indices grow toward the present.
// Consumers never mutate items in place; producers build a new slice for
// every update and may share item pointers with previous snapshots.
type Snapshot []*TimelineItem

// FindEventID returns the index of the first item carrying the given event
// id, or -1. Linear scan, first match wins.
func (s Snapshot) FindEventID(id EventID) int {
	if id == "" {
		return -1
	}
	for i, it := range s {
		if it.EventID() == id {
			return i
		}
	}
	return -1
}
