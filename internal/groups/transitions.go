// Package groups implements the small-event grouping engine: it classifies
// minor timeline events (membership, profile and room-configuration
// changes), merges contiguous runs into collapsible summarized groups, and
// keeps every tracked index correct as the timeline grows from either end.
package groups

import "github.com/fjordchat/fjord/internal/event"

// Transition is the closed set of minor-event kinds a user can appear with
// in a group summary.
type Transition string

const (
	TransitionJoined                   Transition = "joined"
	TransitionLeft                     Transition = "left"
	TransitionJoinedAndLeft            Transition = "joined_and_left"
	TransitionLeftAndJoined            Transition = "left_and_joined"
	TransitionInvited                  Transition = "invited"
	TransitionBanned                   Transition = "banned"
	TransitionUnbanned                 Transition = "unbanned"
	TransitionKicked                   Transition = "kicked"
	TransitionKnocked                  Transition = "knocked"
	TransitionChangedName              Transition = "changed_name"
	TransitionChangedAvatar            Transition = "changed_avatar"
	TransitionChangedRoomName          Transition = "changed_room_name"
	TransitionChangedTopic             Transition = "changed_topic"
	TransitionChangedRoomAvatar        Transition = "changed_room_avatar"
	TransitionChangedHistoryVisibility Transition = "changed_history_visibility"
	TransitionEnabledEncryption        Transition = "enabled_encryption"
	TransitionChangedPins              Transition = "changed_pins"
	TransitionNoChange                 Transition = "no_change"
	TransitionHiddenEvent              Transition = "hidden_event"
)

// descriptions are the English renderings used by the summarizer.
var descriptions = map[Transition]string{
	TransitionJoined:                   "joined",
	TransitionLeft:                     "left",
	TransitionJoinedAndLeft:            "joined and left",
	TransitionLeftAndJoined:            "left and rejoined",
	TransitionInvited:                  "was invited",
	TransitionBanned:                   "was banned",
	TransitionUnbanned:                 "was unbanned",
	TransitionKicked:                   "was kicked",
	TransitionKnocked:                  "knocked",
	TransitionChangedName:              "changed their display name",
	TransitionChangedAvatar:            "changed their avatar",
	TransitionChangedRoomName:          "changed the room name",
	TransitionChangedTopic:             "changed the topic",
	TransitionChangedRoomAvatar:        "changed the room avatar",
	TransitionChangedHistoryVisibility: "changed the history visibility",
	TransitionEnabledEncryption:        "enabled encryption",
	TransitionChangedPins:              "pinned some messages",
	TransitionNoChange:                 "made no changes",
	TransitionHiddenEvent:              "sent a hidden event",
}

// Describe returns the English rendering of a transition.
func Describe(t Transition) string {
	if d, ok := descriptions[t]; ok {
		return d
	}
	return string(t)
}

// Classify maps an item's content to its transition kind. The second return
// is false for items that are not minor events (regular messages, polls,
// virtual items, the room-creation event itself).
func Classify(item *event.TimelineItem) (Transition, bool) {
	if item == nil || item.Event == nil {
		return "", false
	}
	c := item.Event.Content
	switch c.Kind {
	case event.ContentMembership:
		return classifyMembership(c.Membership)
	case event.ContentDisplayName:
		return TransitionChangedName, true
	case event.ContentAvatar:
		return TransitionChangedAvatar, true
	case event.ContentRoomName:
		return TransitionChangedRoomName, true
	case event.ContentRoomTopic:
		return TransitionChangedTopic, true
	case event.ContentRoomAvatar:
		return TransitionChangedRoomAvatar, true
	case event.ContentRoomHistoryVisibility:
		return TransitionChangedHistoryVisibility, true
	case event.ContentRoomEncryption:
		return TransitionEnabledEncryption, true
	case event.ContentRoomPinnedEvents:
		return TransitionChangedPins, true
	case event.ContentStateUnchanged:
		return TransitionNoChange, true
	case event.ContentRedacted, event.ContentUndecryptable, event.ContentHidden:
		return TransitionHiddenEvent, true
	}
	return "", false
}

func classifyMembership(m event.Membership) (Transition, bool) {
	switch m {
	case event.MembershipJoin:
		return TransitionJoined, true
	case event.MembershipLeave:
		return TransitionLeft, true
	case event.MembershipInvite:
		return TransitionInvited, true
	case event.MembershipBan:
		return TransitionBanned, true
	case event.MembershipUnban:
		return TransitionUnbanned, true
	case event.MembershipKick:
		return TransitionKicked, true
	case event.MembershipKnock:
		return TransitionKnocked, true
	}
	return "", false
}

// isMinor reports whether an item can participate in a group. The room
// creation event anchors the reserved creation group, so it counts as minor
// for neighbor checks even though Classify rejects it.
func isMinor(item *event.TimelineItem) bool {
	if item == nil || item.Event == nil {
		return false
	}
	if item.Event.Content.Kind == event.ContentRoomCreate {
		return true
	}
	_, ok := Classify(item)
	return ok
}
