package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fjordchat/fjord/internal/event"
	"github.com/fjordchat/fjord/internal/groups"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width <= 0 || m.height <= 0 {
		return ""
	}

	lines := make([]string, 0, m.height)
	lines = append(lines, m.renderHeader())
	lines = append(lines, m.renderItems()...)
	for len(lines) < m.height-1 {
		lines = append(lines, "")
	}
	lines = append(lines, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) renderHeader() string {
	parts := []string{m.styles.header.Render(string(m.roomID))}
	if m.state.LoadingOlder {
		parts = append(parts, m.styles.muted.Render("loading older…"))
	}
	if m.state.FullyPaginated {
		parts = append(parts, m.styles.muted.Render("start of history"))
	}
	if m.state.UnreadIndicator {
		label := "new messages"
		if m.state.UnreadCount > 0 {
			label = fmt.Sprintf("%d new messages", m.state.UnreadCount)
		}
		parts = append(parts, m.styles.notice.Render("▼ "+label))
	}
	return truncate(strings.Join(parts, "  "), m.width)
}

func (m *Model) renderFooter() string {
	if len(m.notices) > 0 {
		return m.styles.notice.Render(truncate(m.notices[len(m.notices)-1], m.width))
	}
	help := "j/k scroll  g/G top/bottom  o toggle group  u jump to read marker  q quit"
	return m.styles.muted.Render(truncate(help, m.width))
}

// renderItems draws the visible window, consulting the group manager per
// item with neighbor context. Collapsed group members take no line.
func (m *Model) renderItems() []string {
	items := m.state.Items
	height := m.contentHeight()
	lines := make([]string, 0, height)

	for idx := m.top; idx < len(items) && len(lines) < height; idx++ {
		item := items[idx]
		hint := m.state.Groups.Observe(idx, item, neighbor(items, idx-1), neighbor(items, idx+1))

		if hint.Head && !hint.Standalone {
			lines = append(lines, m.renderSummaryLine(idx, hint))
			if len(lines) >= height {
				break
			}
		}
		if !hint.Show {
			continue
		}
		if !hint.Standalone && !hint.Expanded {
			continue
		}
		lines = append(lines, m.renderItemLine(idx, item))
	}
	return lines
}

func (m *Model) renderSummaryLine(idx int, hint groups.RenderHint) string {
	marker := "  "
	if hint.ShowToggle {
		if hint.Expanded {
			marker = "▾ "
		} else {
			marker = "▸ "
		}
	}
	line := marker + hint.Summary
	if n := len(hint.AvatarIDs); n > 1 {
		line += m.styles.muted.Render(fmt.Sprintf("  (%d people)", n))
	}
	rendered := m.styles.summary.Render(truncate(line, m.width))
	if idx == m.cursor {
		rendered = m.styles.accent.Render("│") + rendered
	}
	return rendered
}

func (m *Model) renderItemLine(idx int, item *event.TimelineItem) string {
	line, ok := m.lineCache[idx]
	if !ok || !m.state.ContentDrawn.Contains(idx) {
		line = m.formatItem(item)
		m.lineCache[idx] = line
		m.state.ContentDrawn.Insert(idx)
		m.state.ProfileDrawn.Insert(idx)
	}

	switch {
	case idx == m.highlightIdx:
		return m.styles.highlight.Render(truncate(line, m.width))
	case idx == m.cursor:
		return m.styles.accent.Render("│") + m.styles.base.Render(truncate(line, m.width-1))
	default:
		return truncate(line, m.width)
	}
}

func (m *Model) formatItem(item *event.TimelineItem) string {
	if item.Virtual != nil {
		switch item.Virtual.Kind {
		case event.VirtualDateDivider:
			return m.styles.divider.Render("── " + item.Virtual.Timestamp.Format("Mon, 02 Jan 2006") + " ──")
		case event.VirtualReadMarker:
			return m.styles.divider.Render("── new messages ──")
		}
		return ""
	}

	ev := item.Event
	ts := ev.Timestamp.Format("15:04")
	if t, ok := groups.Classify(item); ok {
		return m.styles.muted.Render(fmt.Sprintf("%s %s %s", ts, ev.DisplayName(), groups.Describe(t)))
	}
	switch ev.Content.Kind {
	case event.ContentRoomCreate:
		return m.styles.muted.Render(fmt.Sprintf("%s %s created the room", ts, ev.DisplayName()))
	case event.ContentPoll:
		return fmt.Sprintf("%s %s: %s", ts, m.styles.accent.Render(ev.DisplayName()), "[poll] "+ev.Content.Body)
	default:
		return fmt.Sprintf("%s %s: %s", ts, m.styles.accent.Render(ev.DisplayName()), ev.Content.Body)
	}
}

func neighbor(items event.Snapshot, idx int) *event.TimelineItem {
	if idx < 0 || idx >= len(items) {
		return nil
	}
	return items[idx]
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return string(runes[:width])
	}
	return string(runes[:width-1]) + "…"
}
