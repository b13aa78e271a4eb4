package tui

import "github.com/charmbracelet/lipgloss"

// Theme selects a color palette.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// palette holds the colors one theme uses.
type palette struct {
	Foreground string
	Muted      string
	Accent     string
	Border     string
	Highlight  string
	Notice     string
}

func themePalette(theme Theme) palette {
	if theme == ThemeLight {
		return palette{
			Foreground: "235",
			Muted:      "245",
			Accent:     "26",
			Border:     "250",
			Highlight:  "220",
			Notice:     "160",
		}
	}
	return palette{
		Foreground: "252",
		Muted:      "242",
		Accent:     "75",
		Border:     "238",
		Highlight:  "226",
		Notice:     "203",
	}
}

// styleSet is the precomputed style table for a palette.
type styleSet struct {
	base      lipgloss.Style
	muted     lipgloss.Style
	accent    lipgloss.Style
	divider   lipgloss.Style
	summary   lipgloss.Style
	highlight lipgloss.Style
	notice    lipgloss.Style
	header    lipgloss.Style
}

func newStyleSet(theme Theme) styleSet {
	p := themePalette(theme)
	return styleSet{
		base:      lipgloss.NewStyle().Foreground(lipgloss.Color(p.Foreground)),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted)),
		accent:    lipgloss.NewStyle().Foreground(lipgloss.Color(p.Accent)).Bold(true),
		divider:   lipgloss.NewStyle().Foreground(lipgloss.Color(p.Border)),
		summary:   lipgloss.NewStyle().Foreground(lipgloss.Color(p.Accent)).Italic(true),
		highlight: lipgloss.NewStyle().Foreground(lipgloss.Color(p.Highlight)).Bold(true),
		notice:    lipgloss.NewStyle().Foreground(lipgloss.Color(p.Notice)).Bold(true),
		header:    lipgloss.NewStyle().Bold(true),
	}
}
