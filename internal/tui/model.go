// Package tui is the presentation adapter: a bubbletea program that renders
// one room's timeline from the reconciliation engine's output. It owns the
// scroll window the engine re-anchors, and performs the adapter duties of
// the render-tick contract: observing items with neighbor context and
// shifting group indices exactly once per backward-pagination prepend.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fjordchat/fjord/internal/event"
	"github.com/fjordchat/fjord/internal/feed"
	"github.com/fjordchat/fjord/internal/timeline"
)

const (
	scrollStopDelay    = 400 * time.Millisecond
	highlightDuration  = 1500 * time.Millisecond
	headerFooterHeight = 3
)

type feedWakeMsg struct{}

type scrollStopMsg struct {
	at time.Time
}

type highlightClearMsg struct {
	index int
}

// Model is the bubbletea model for one room's timeline view.
type Model struct {
	roomID   event.RoomID
	engine   *timeline.Engine
	registry *timeline.Registry
	queue    *feed.Queue
	state    *timeline.State

	width  int
	height int
	theme  Theme
	styles styleSet

	// top is the snapshot index of the first visible line's item.
	top    int
	cursor int

	lastScroll   time.Time
	highlightIdx int
	notices      []string

	// lineCache holds rendered lines for indices in the content drawn
	// cache; anything outside it is re-rendered.
	lineCache map[int]string

	// markerEvent is the stored fully-read event, jumpable via "u".
	markerEvent event.EventID

	quitting bool
}

// New creates the timeline view for a room. The state is checked out of
// the registry and checked back in when the program quits.
func New(roomID event.RoomID, eng *timeline.Engine, reg *timeline.Registry, queue *feed.Queue, theme Theme) *Model {
	return &Model{
		roomID:       roomID,
		engine:       eng,
		registry:     reg,
		queue:        queue,
		state:        reg.Checkout(roomID),
		theme:        theme,
		styles:       newStyleSet(theme),
		highlightIdx: -1,
		lineCache:    make(map[int]string),
	}
}

// SetMarkerEvent sets the stored fully-read event id for the jump binding.
func (m *Model) SetMarkerEvent(id event.EventID) {
	m.markerEvent = id
}

// SetLastFullyRead seeds the room's fully-read timestamp for receipt
// crossing detection.
func (m *Model) SetLastFullyRead(ts time.Time) {
	m.state.LastFullyReadTime = ts
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitForWakeCmd()
}

func (m *Model) waitForWakeCmd() tea.Cmd {
	return func() tea.Msg {
		<-m.queue.Wake()
		return feedWakeMsg{}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		return m, nil

	case feedWakeMsg:
		m.applyPending()
		return m, m.waitForWakeCmd()

	case scrollStopMsg:
		if typed.at.Equal(m.lastScroll) {
			m.engine.MaybeSendReadReceipts(m.state, m, false)
		}
		return m, nil

	case highlightClearMsg:
		if m.highlightIdx == typed.index {
			m.highlightIdx = -1
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

// applyPending drains the queue, interleaving group index shifts before
// each backward-pagination prepend, then applies the batch to the engine.
func (m *Model) applyPending() {
	updates := m.queue.Drain()
	var hint timeline.RedrawHint
	for _, u := range updates {
		if rep, ok := u.(feed.Replace); ok && rep.ClearCache {
			if delta := len(rep.Items) - len(m.state.Items); delta > 0 {
				m.state.Groups.ShiftIndices(delta)
			}
		}
		hint.Merge(m.engine.ApplyUpdates(m.state, m, []feed.Update{u}))
	}
	if hint.Redraw {
		m.pruneLineCache()
	}
	if hint.HighlightPending {
		if idx, ok := m.engine.TakePendingHighlight(m.state); ok {
			m.highlightIdx = idx
		}
	}
	m.notices = append(m.notices, hint.Notices...)
	if len(m.notices) > 3 {
		m.notices = m.notices[len(m.notices)-3:]
	}
}

// pruneLineCache drops cached lines whose indices fell out of the drawn
// cache or past the snapshot end.
func (m *Model) pruneLineCache() {
	for idx := range m.lineCache {
		if idx >= len(m.state.Items) || !m.state.ContentDrawn.Contains(idx) {
			delete(m.lineCache, idx)
		}
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.registry.Checkin(m.state)
		return m, tea.Quit
	case "k", "up":
		return m, m.scrollBy(-1)
	case "j", "down":
		return m, m.scrollBy(1)
	case "pgup", "ctrl+u":
		return m, m.scrollBy(-m.contentHeight())
	case "pgdown", "ctrl+d":
		return m, m.scrollBy(m.contentHeight())
	case "g", "home":
		return m, m.scrollTo(0)
	case "G", "end":
		m.ScrollToTail()
		m.state.AtTail = true
		m.state.UnreadIndicator = false
		return m, m.afterScroll()
	case "o", "enter":
		if m.engine.ToggleGroup(m.state, m.cursor) {
			m.pruneLineCache()
		}
		return m, nil
	case "u":
		if m.markerEvent != "" {
			m.engine.JumpToRelated(m.state, m, m.markerEvent, m.cursor, 0)
			if idx, ok := m.engine.TakePendingHighlight(m.state); ok {
				m.highlightIdx = idx
				return m, m.clearHighlightCmd(idx)
			}
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) scrollBy(delta int) tea.Cmd {
	return m.scrollTo(m.top + delta)
}

func (m *Model) scrollTo(top int) tea.Cmd {
	max := maxInt(0, len(m.state.Items)-m.contentHeight())
	m.top = clamp(top, 0, max)
	m.cursor = clamp(m.cursor, m.top, m.top+m.contentHeight()-1)
	m.state.AtTail = m.top >= max
	if m.state.AtTail {
		m.state.UnreadIndicator = false
	}
	return m.afterScroll()
}

// afterScroll runs the engine's scroll hooks and schedules the stop probe.
func (m *Model) afterScroll() tea.Cmd {
	m.engine.MaybeRequestBackwardPagination(m.state, m.FirstVisibleIndex())
	m.lastScroll = time.Now()
	at := m.lastScroll
	return tea.Tick(scrollStopDelay, func(time.Time) tea.Msg {
		return scrollStopMsg{at: at}
	})
}

func (m *Model) clearHighlightCmd(idx int) tea.Cmd {
	return tea.Tick(highlightDuration, func(time.Time) tea.Msg {
		return highlightClearMsg{index: idx}
	})
}

func (m *Model) contentHeight() int {
	return maxInt(1, m.height-headerFooterHeight)
}

// FirstVisibleIndex implements timeline.Viewport.
func (m *Model) FirstVisibleIndex() int {
	return m.top
}

// VisibleCount implements timeline.Viewport.
func (m *Model) VisibleCount() int {
	return m.contentHeight()
}

// ItemOffset implements timeline.Viewport. Items render one line tall, so
// the offset is the line distance from the window top.
func (m *Model) ItemOffset(index int) int {
	return index - m.top
}

// ScrollTo implements timeline.Viewport.
func (m *Model) ScrollTo(index, offset int) {
	m.top = clamp(index-offset, 0, maxInt(0, len(m.state.Items)-1))
	m.cursor = clamp(index, m.top, m.top+m.contentHeight()-1)
}

// ScrollToTail implements timeline.Viewport.
func (m *Model) ScrollToTail() {
	m.top = maxInt(0, len(m.state.Items)-m.contentHeight())
	m.cursor = maxInt(0, len(m.state.Items)-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
