package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/loqalabs/whispnote/internal/app"
	"github.com/loqalabs/whispnote/internal/notes"
)

const placeholder = "Your words will appear here..."

func (m Model) View() string {
	var b strings.Builder
	s := m.styles

	b.WriteString(s.Title.Render("WhispNote"))
	b.WriteString("  ")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	if m.showHint {
		b.WriteString(s.Hint.Render(fmt.Sprintf("Press %s or r to start recording. Your notes are saved when you stop.", shortcutLabel(m.opts.Shortcut))))
		b.WriteString("\n\n")
	}

	b.WriteString(m.panel(m.transcriptView()))
	b.WriteString("\n")

	b.WriteString(s.Title.Render(fmt.Sprintf("Notes (%d)", len(m.snapshot.Notes))))
	b.WriteString("\n")
	b.WriteString(m.notesView())
	b.WriteString("\n")

	if n := m.notification; n != nil {
		b.WriteString(m.notificationView(*n))
		b.WriteString("\n")
	}
	if m.confirmDelete {
		b.WriteString(s.Warning.Render("Are you sure you want to delete this note? (y/n)"))
		b.WriteString("\n")
	}
	b.WriteString(m.footer())
	return b.String()
}

func (m Model) statusLine() string {
	s := m.styles
	if m.snapshot.Recording {
		return s.RecordDot.Render("●") + " " + s.Status.Render("Recording")
	}
	return s.IdleDot.Render("○") + " " + s.Status.Render("Idle")
}

func (m Model) panel(content string) string {
	style := m.styles.Panel
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(content)
}

func (m Model) transcriptView() string {
	s := m.styles
	final, interim := m.snapshot.Transcript, m.snapshot.Interim
	if final == "" && interim == "" {
		return s.Placeholder.Render(placeholder)
	}
	parts := make([]string, 0, 2)
	if final != "" {
		parts = append(parts, s.Transcript.Render(final))
	}
	if interim != "" {
		parts = append(parts, s.Interim.Render(interim))
	}
	return strings.Join(parts, " ")
}

func (m Model) notesView() string {
	s := m.styles
	if len(m.snapshot.Notes) == 0 {
		return s.Placeholder.Render("No saved notes yet. Start recording to create your first note!")
	}
	rows := make([]string, 0, len(m.snapshot.Notes))
	for i, n := range m.snapshot.Notes {
		rows = append(rows, m.noteRow(n, i == m.selected))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) noteRow(n notes.Note, selected bool) string {
	s := m.styles
	cursor := "  "
	text := s.Note.Render(n.Text)
	if selected {
		cursor = s.Selected.Render("> ")
		text = s.Selected.Render(n.Text)
	}
	row := cursor + s.Timestamp.Render(n.Timestamp.Local().Format("2006-01-02 15:04")) + "  " + text
	if len(n.Tags) > 0 {
		tags := make([]string, len(n.Tags))
		for i, tag := range n.Tags {
			tags[i] = s.Tag.Render("#" + tag)
		}
		row += "  " + strings.Join(tags, " ")
	}
	return row
}

func (m Model) notificationView(n app.Notification) string {
	s := m.styles
	switch n.Level {
	case app.LevelError:
		return s.Error.Render("✖ " + n.Message)
	case app.LevelWarning:
		return s.Warning.Render("▲ " + n.Message)
	default:
		return s.Info.Render("✔ " + n.Message)
	}
}

func (m Model) footer() string {
	s := m.styles
	record := "record"
	if m.snapshot.Recording {
		record = "stop"
	}
	keys := []struct{ key, desc string }{
		{shortcutLabel(m.opts.Shortcut) + "/r", record},
		{"s", "save"},
		{"e", "edit"},
		{"d", "delete"},
		{"t", "theme"},
		{"q", "quit"},
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = s.FooterKey.Render(k.key) + " " + s.FooterDesc.Render(k.desc)
	}
	return strings.Join(parts, "  ")
}

// shortcutLabel renders bubbletea key names the way users type them.
func shortcutLabel(key string) string {
	if key == "ctrl+@" {
		return "ctrl+space"
	}
	return key
}
