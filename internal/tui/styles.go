package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/loqalabs/whispnote/internal/prefs"
)

// Palette is the set of colors for one theme.
type Palette struct {
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Record  lipgloss.Color
	Tag     lipgloss.Color
	Info    lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Border  lipgloss.Color
}

var (
	darkPalette = Palette{
		Accent:  lipgloss.Color("#8B5CF6"),
		Text:    lipgloss.Color("#F3F4F6"),
		Muted:   lipgloss.Color("#9CA3AF"),
		Record:  lipgloss.Color("#EF4444"),
		Tag:     lipgloss.Color("#22D3EE"),
		Info:    lipgloss.Color("#34D399"),
		Warning: lipgloss.Color("#FBBF24"),
		Error:   lipgloss.Color("#F87171"),
		Border:  lipgloss.Color("#4B5563"),
	}
	lightPalette = Palette{
		Accent:  lipgloss.Color("#6D28D9"),
		Text:    lipgloss.Color("#111827"),
		Muted:   lipgloss.Color("#6B7280"),
		Record:  lipgloss.Color("#DC2626"),
		Tag:     lipgloss.Color("#0E7490"),
		Info:    lipgloss.Color("#047857"),
		Warning: lipgloss.Color("#B45309"),
		Error:   lipgloss.Color("#B91C1C"),
		Border:  lipgloss.Color("#D1D5DB"),
	}
)

// Styles are the rendered styles for the current theme.
type Styles struct {
	Title       lipgloss.Style
	Status      lipgloss.Style
	RecordDot   lipgloss.Style
	IdleDot     lipgloss.Style
	Transcript  lipgloss.Style
	Interim     lipgloss.Style
	Placeholder lipgloss.Style
	Panel       lipgloss.Style
	Timestamp   lipgloss.Style
	Note        lipgloss.Style
	Selected    lipgloss.Style
	Tag         lipgloss.Style
	Hint        lipgloss.Style
	FooterKey   lipgloss.Style
	FooterDesc  lipgloss.Style
	Info        lipgloss.Style
	Warning     lipgloss.Style
	Error       lipgloss.Style
}

func NewStyles(theme prefs.Theme) Styles {
	p := darkPalette
	if theme == prefs.ThemeLight {
		p = lightPalette
	}
	return Styles{
		Title:       lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		Status:      lipgloss.NewStyle().Foreground(p.Muted),
		RecordDot:   lipgloss.NewStyle().Foreground(p.Record).Bold(true),
		IdleDot:     lipgloss.NewStyle().Foreground(p.Muted),
		Transcript:  lipgloss.NewStyle().Foreground(p.Text),
		Interim:     lipgloss.NewStyle().Foreground(p.Muted).Italic(true),
		Placeholder: lipgloss.NewStyle().Foreground(p.Muted),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Padding(0, 1),
		Timestamp:  lipgloss.NewStyle().Foreground(p.Muted),
		Note:       lipgloss.NewStyle().Foreground(p.Text),
		Selected:   lipgloss.NewStyle().Foreground(p.Accent).Bold(true),
		Tag:        lipgloss.NewStyle().Foreground(p.Tag),
		Hint:       lipgloss.NewStyle().Foreground(p.Accent).Italic(true),
		FooterKey:  lipgloss.NewStyle().Foreground(p.Accent).Bold(true),
		FooterDesc: lipgloss.NewStyle().Foreground(p.Muted),
		Info:       lipgloss.NewStyle().Foreground(p.Info).Bold(true),
		Warning:    lipgloss.NewStyle().Foreground(p.Warning).Bold(true),
		Error:      lipgloss.NewStyle().Foreground(p.Error).Bold(true),
	}
}
