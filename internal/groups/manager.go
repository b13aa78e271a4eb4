package groups

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/fjordchat/fjord/internal/event"
	"github.com/fjordchat/fjord/internal/logging"
	"github.com/fjordchat/fjord/internal/rangeset"
)

// DefaultCollapseThreshold is the group length above which a collapse
// toggle is shown; groups at or below it always render expanded.
const DefaultCollapseThreshold = 3

// DefaultNameCap bounds how many names a summary lists before switching to
// "and N others".
const DefaultNameCap = 3

// UserEvent is one minor event recorded inside a group, keyed under the
// user it affects.
type UserEvent struct {
	Transition  Transition
	Index       int
	Sender      event.UserID
	DisplayName string
	StateKey    string
}

// Group is a contiguous half-open index range of minor events rendered
// either as one summarized line or fully expanded.
type Group struct {
	Start  int
	End    int
	Opened bool

	// Users maps each affected user to their events, unsorted.
	Users map[event.UserID][]UserEvent

	// creation marks the reserved room-creation group.
	creation bool

	// Caches are nil whenever Users changed since last computed.
	cachedSummary   *string
	cachedAvatarIDs []event.UserID
}

// Len returns the number of indices the group spans.
func (g *Group) Len() int {
	if g.End <= g.Start {
		return 0
	}
	return g.End - g.Start
}

// Contains reports whether idx falls inside the group's range.
func (g *Group) Contains(idx int) bool {
	return idx >= g.Start && idx < g.End
}

// record stores a user event, replacing any previous record for the same
// index (items are re-observed on every redraw tick). Any change
// invalidates the cached summary.
func (g *Group) record(ue UserEvent) {
	user := ue.affectedUser()
	events := g.Users[user]
	for i, existing := range events {
		if existing.Index == ue.Index {
			if existing == ue {
				return
			}
			events[i] = ue
			g.invalidate()
			return
		}
	}
	g.Users[user] = append(events, ue)
	g.invalidate()
}

func (g *Group) invalidate() {
	g.cachedSummary = nil
	g.cachedAvatarIDs = nil
}

// affectedUser returns the user a transition describes: the state-key
// target for membership changes, otherwise the sender.
func (ue UserEvent) affectedUser() event.UserID {
	switch ue.Transition {
	case TransitionJoined, TransitionLeft, TransitionJoinedAndLeft,
		TransitionLeftAndJoined, TransitionInvited, TransitionBanned,
		TransitionUnbanned, TransitionKicked, TransitionKnocked:
		if ue.StateKey != "" {
			return event.UserID(ue.StateKey)
		}
	}
	return ue.Sender
}

// RenderHint tells the presentation adapter how to draw one observed item.
type RenderHint struct {
	// Standalone items are not part of any group.
	Standalone bool

	// Show is false for non-head items of a collapsed group.
	Show bool

	// Head is true for the first item of a group; the summary line and the
	// toggle render there.
	Head bool

	// ShowToggle is set on the head once the group exceeds the collapse
	// threshold.
	ShowToggle bool

	// Expanded reports whether the group currently renders all its items.
	Expanded bool

	// Start/End is the group's half-open range. Zero for standalone items.
	Start int
	End   int

	// Summary is the cached one-line rendering, filled for the head.
	Summary string

	// AvatarIDs are the users whose avatars decorate the summary line.
	AvatarIDs []event.UserID
}

// Manager owns the small-state groups of one room timeline. It is rebuilt
// from scratch whenever the owning snapshot is wholesale-replaced.
type Manager struct {
	creation *Group
	groups   []*Group
	creator  event.UserID

	collapseThreshold int
	nameCap           int
	log               zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithCollapseThreshold overrides the collapse threshold.
func WithCollapseThreshold(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.collapseThreshold = n
		}
	}
}

// WithNameCap overrides the summary name cap.
func WithNameCap(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.nameCap = n
		}
	}
}

// NewManager creates an empty group manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		collapseThreshold: DefaultCollapseThreshold,
		nameCap:           DefaultNameCap,
		log:               logging.Component("groups"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Clear discards every group. Called when the snapshot is replaced wholesale.
func (m *Manager) Clear() {
	m.creation = nil
	m.groups = nil
	m.creator = ""
}

// Creator returns the room creator observed so far, if any.
func (m *Manager) Creator() event.UserID {
	return m.creator
}

// Groups returns the generic groups. The creation group is separate.
func (m *Manager) Groups() []*Group {
	return m.groups
}

// CreationGroup returns the reserved room-creation group, or nil.
func (m *Manager) CreationGroup() *Group {
	return m.creation
}

// Observe is called once per item as it is drawn, with neighbor context.
// It classifies the item, attaches it to a group where the grouping rules
// allow, and returns how the item should render. Safe to call repeatedly
// for the same index.
func (m *Manager) Observe(idx int, item, prev, next *event.TimelineItem) RenderHint {
	if item == nil || item.Event == nil {
		return standaloneHint()
	}

	// Room-creation special case: the create event anchors a reserved,
	// initially expanded group.
	if item.Event.Content.Kind == event.ContentRoomCreate {
		if m.creation == nil {
			m.creation = &Group{
				Start:    idx,
				End:      idx + 1,
				Opened:   true,
				Users:    make(map[event.UserID][]UserEvent),
				creation: true,
			}
			m.creator = item.Event.Sender
		}
		if m.creation.Contains(idx) {
			return m.hintFor(m.creation, idx)
		}
		m.log.Warn().Int("index", idx).Msg("duplicate room creation event observed")
		return standaloneHint()
	}

	t, ok := Classify(item)
	if !ok {
		return standaloneHint()
	}
	ue := UserEvent{
		Transition:  t,
		Index:       idx,
		Sender:      item.Event.Sender,
		DisplayName: item.Event.DisplayName(),
		StateKey:    item.Event.Content.StateKey,
	}

	// Configuration and join events immediately following the create are
	// routed into the creation group as long as the run stays contiguous.
	// Anything else (departures, moderation, profile changes) ends the run.
	if m.creation != nil {
		if m.creation.Contains(idx) {
			m.creation.record(ue)
			return m.hintFor(m.creation, idx)
		}
		if idx == m.creation.End && creationRunEvent(t) && !m.claimed(idx, m.creation) {
			m.creation.End++
			m.creation.record(ue)
			return m.hintFor(m.creation, idx)
		}
	}

	// Isolated minor events are not grouped.
	if !isMinor(prev) && !isMinor(next) {
		return standaloneHint()
	}

	// (a) A group starts exactly here.
	for _, g := range m.groups {
		if g.Start == idx {
			g.record(ue)
			return m.hintFor(g, idx)
		}
	}

	// (b) A group's range already contains this index.
	for _, g := range m.groups {
		if g.Contains(idx) {
			g.record(ue)
			return m.hintFor(g, idx)
		}
	}

	// (c) A group ends exactly at this index: extend it forward, the
	// direction top-down drawing discovers items.
	for _, g := range m.groups {
		if g.End != idx || m.claimed(idx, g) {
			continue
		}
		g.End++
		g.record(ue)
		return m.hintFor(g, idx)
	}

	// (d) A group starts one past this index: extend it backward, the
	// direction new items are discovered during backward pagination.
	for _, g := range m.groups {
		if g.Start != idx+1 {
			continue
		}
		if m.claimed(idx, g) {
			// Must never happen; checked before extension.
			m.log.Error().Int("index", idx).
				Str("range", fmt.Sprintf("[%d,%d)", g.Start, g.End)).
				Msg("group index conflict during backward extension")
			return standaloneHint()
		}
		g.Start = idx
		g.record(ue)
		return m.hintFor(g, idx)
	}

	// (e) The next item is also minor: open a fresh 2-item group.
	if isMinor(next) {
		g := &Group{
			Start: idx,
			End:   idx + 2,
			Users: make(map[event.UserID][]UserEvent),
		}
		g.record(ue)
		m.groups = append(m.groups, g)
		return m.hintFor(g, idx)
	}

	return standaloneHint()
}

// creationRunEvent reports whether a transition may extend the reserved
// room-creation group: the initial configuration state plus the first
// joins. Departures, moderation and profile changes break the run.
func creationRunEvent(t Transition) bool {
	switch t {
	case TransitionJoined, TransitionChangedRoomName, TransitionChangedTopic,
		TransitionChangedRoomAvatar, TransitionChangedHistoryVisibility,
		TransitionEnabledEncryption, TransitionChangedPins:
		return true
	}
	return false
}

// claimed reports whether idx is inside any group other than except.
func (m *Manager) claimed(idx int, except *Group) bool {
	if m.creation != nil && m.creation != except && m.creation.Contains(idx) {
		return true
	}
	for _, g := range m.groups {
		if g != except && g.Contains(idx) {
			return true
		}
	}
	return false
}

// Toggle flips the opened state of the group containing idx and returns
// the index range whose drawn-caches must be invalidated so the renderer
// re-evaluates visibility. ok is false when idx is in no group.
func (m *Manager) Toggle(idx int) (r rangeset.Range, ok bool) {
	g := m.groupAt(idx)
	if g == nil {
		return rangeset.Range{}, false
	}
	g.Opened = !g.Opened
	return rangeset.Range{Start: g.Start, End: g.End}, true
}

// groupAt returns the group (creation included) containing idx, or nil.
func (m *Manager) groupAt(idx int) *Group {
	if m.creation != nil && m.creation.Contains(idx) {
		return m.creation
	}
	for _, g := range m.groups {
		if g.Contains(idx) {
			return g
		}
	}
	return nil
}

// HintAt returns the render hint for an already observed index without
// recording anything.
func (m *Manager) HintAt(idx int) RenderHint {
	g := m.groupAt(idx)
	if g == nil {
		return standaloneHint()
	}
	return m.hintFor(g, idx)
}

// ShiftIndices moves every tracked index by delta. Called exactly once per
// backward-pagination prepend, before any Observe call against the new
// snapshot; indices silently desynchronize otherwise. Negative deltas are
// clamped at zero.
func (m *Manager) ShiftIndices(delta int) {
	if delta == 0 {
		return
	}
	shift := func(g *Group) {
		g.Start = clampZero(g.Start + delta)
		g.End = clampZero(g.End + delta)
		for user, events := range g.Users {
			for i := range events {
				events[i].Index = clampZero(events[i].Index + delta)
			}
			g.Users[user] = events
		}
	}
	if m.creation != nil {
		shift(m.creation)
	}
	for _, g := range m.groups {
		shift(g)
	}
}

func clampZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func (m *Manager) hintFor(g *Group, idx int) RenderHint {
	expanded := g.Len() <= m.collapseThreshold || g.Opened
	head := idx == g.Start
	hint := RenderHint{
		Show:       head || expanded,
		Head:       head,
		ShowToggle: head && g.Len() > m.collapseThreshold,
		Expanded:   expanded,
		Start:      g.Start,
		End:        g.End,
	}
	if head {
		hint.Summary = m.summaryFor(g)
		hint.AvatarIDs = m.avatarIDsFor(g)
	}
	return hint
}

func (m *Manager) summaryFor(g *Group) string {
	if g.cachedSummary != nil {
		return *g.cachedSummary
	}
	var s string
	if g.creation {
		s = m.creationSummary()
	} else {
		s = Summarize(g.Users, m.creator, m.nameCap)
	}
	g.cachedSummary = &s
	return s
}

func (m *Manager) creationSummary() string {
	name := string(m.creator)
	if m.creation != nil {
		for _, events := range m.creation.Users {
			for _, ue := range events {
				if ue.Sender == m.creator && ue.DisplayName != "" {
					name = ue.DisplayName
				}
			}
		}
	}
	return fmt.Sprintf("%s created and configured the room", name)
}

// avatarIDsFor returns the distinct affected users in first-appearance
// order, cached alongside the summary.
func (m *Manager) avatarIDsFor(g *Group) []event.UserID {
	if g.cachedAvatarIDs != nil {
		return g.cachedAvatarIDs
	}
	type first struct {
		user  event.UserID
		index int
	}
	var order []first
	for user, events := range g.Users {
		min := -1
		for _, ue := range events {
			if min < 0 || ue.Index < min {
				min = ue.Index
			}
		}
		order = append(order, first{user: user, index: min})
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].index != order[j].index {
			return order[i].index < order[j].index
		}
		return order[i].user < order[j].user
	})
	ids := make([]event.UserID, 0, len(order))
	for _, f := range order {
		ids = append(ids, f.user)
	}
	g.cachedAvatarIDs = ids
	return ids
}

func standaloneHint() RenderHint {
	return RenderHint{Standalone: true, Show: true, Expanded: true}
}
