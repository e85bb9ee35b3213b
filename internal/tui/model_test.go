package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/loqalabs/whispnote/internal/app"
	"github.com/loqalabs/whispnote/internal/blobstore"
	"github.com/loqalabs/whispnote/internal/notes"
	"github.com/loqalabs/whispnote/internal/prefs"
	"github.com/loqalabs/whispnote/internal/stt"
)

func newController(t *testing.T, provider stt.Provider) *app.Controller {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	blobs := blobstore.NewMemory()
	store, err := notes.Open(ctx, blobs, "whisp-notes", log)
	if err != nil {
		t.Fatalf("open notes: %v", err)
	}
	p := prefs.New(blobs, prefs.Keys{Theme: "whisp-theme", Visited: "whisp-visited"})
	c, err := app.NewController(ctx, provider, stt.Options{Language: "en-US"}, store, p, app.Options{}, log)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func key(s string) tea.KeyMsg {
	switch s {
	case "ctrl+@":
		return tea.KeyMsg{Type: tea.KeyCtrlAt}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

// press sends a key and runs the resulting command synchronously.
func press(t *testing.T, m Model, k string) (Model, tea.Msg) {
	t.Helper()
	updated, cmd := m.Update(key(k))
	model := updated.(Model)
	if cmd == nil {
		return model, nil
	}
	return model, cmd()
}

func TestNewModel(t *testing.T) {
	m := New(newController(t, stt.Unavailable{}), Options{FirstVisit: true})
	if m.opts.Shortcut != "ctrl+@" {
		t.Errorf("shortcut = %q, want ctrl+@", m.opts.Shortcut)
	}
	if !m.showHint {
		t.Error("first visit should show the hint")
	}
	if !strings.Contains(m.View(), "ctrl+space") {
		t.Error("view should mention the ctrl+space shortcut")
	}
}

func TestShortcutTogglesRecording(t *testing.T) {
	c := newController(t, &stt.Mock{Interval: time.Hour})
	m := New(c, Options{FirstVisit: true})

	m, msg := press(t, m, "ctrl+@")
	if msg != nil {
		t.Fatalf("unexpected message %#v", msg)
	}
	if m.showHint {
		t.Error("any key should dismiss the hint")
	}
	if !c.Recording() {
		t.Fatal("shortcut should start recording")
	}
	updated, _ := m.Update(ChangedMsg{})
	m = updated.(Model)
	if !strings.Contains(m.View(), "Recording") {
		t.Error("view should show recording state")
	}

	press(t, m, "r")
	if c.Recording() {
		t.Error("second toggle should stop recording")
	}
}

func TestUnsupportedIsNotDoubleReported(t *testing.T) {
	m := New(newController(t, stt.Unavailable{}), Options{})
	m, msg := press(t, m, "r")
	errMsg, ok := msg.(ActionErrorMsg)
	if !ok || !errors.Is(errMsg.Err, stt.ErrUnsupported) {
		t.Fatalf("expected unsupported action error, got %#v", msg)
	}
	updated, cmd := m.Update(errMsg)
	if cmd != nil || updated.(Model).notification != nil {
		t.Error("recognition errors are shown through controller notifications")
	}
}

func TestNotificationExpires(t *testing.T) {
	m := New(newController(t, stt.Unavailable{}), Options{})
	updated, _ := m.Update(NotificationMsg{Notification: app.Notification{Level: app.LevelWarning, Message: "heads up"}})
	m = updated.(Model)
	if m.notification == nil || !strings.Contains(m.View(), "heads up") {
		t.Fatal("notification should be visible")
	}
	stale, _ := m.Update(ClearNotificationMsg{Seq: m.notificationSeq - 1})
	if stale.(Model).notification == nil {
		t.Error("stale clear should not hide a newer notification")
	}
	cleared, _ := m.Update(ClearNotificationMsg{Seq: m.notificationSeq})
	if cleared.(Model).notification != nil {
		t.Error("notification should clear after its timeout")
	}
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	ctx := context.Background()
	c := newController(t, stt.Unavailable{})
	if _, _, err := c.Add(ctx, "first"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.Add(ctx, "second"); err != nil {
		t.Fatal(err)
	}
	m := New(c, Options{})

	m, _ = press(t, m, "j")
	if m.selected != 1 {
		t.Fatalf("selected = %d, want 1", m.selected)
	}
	m, _ = press(t, m, "d")
	if !m.confirmDelete {
		t.Fatal("delete should ask for confirmation")
	}
	m, _ = press(t, m, "n")
	if len(c.Notes()) != 2 {
		t.Fatal("declining must keep the note")
	}

	m, _ = press(t, m, "d")
	press(t, m, "y")
	remaining := c.Notes()
	if len(remaining) != 1 || remaining[0].Text != "second" {
		t.Errorf("expected the selected note removed, got %+v", remaining)
	}
}

func TestEditAndThemeKeys(t *testing.T) {
	ctx := context.Background()
	c := newController(t, stt.Unavailable{})
	if _, _, err := c.Add(ctx, "fix the #bike"); err != nil {
		t.Fatal(err)
	}
	m := New(c, Options{})

	m, _ = press(t, m, "e")
	if snap := c.Snapshot(); snap.Transcript != "fix the #bike" || len(snap.Notes) != 0 {
		t.Errorf("edit should load the note into the buffer, got %+v", snap)
	}

	press(t, m, "t")
	if c.Theme() != prefs.ThemeLight {
		t.Errorf("theme = %s, want light", c.Theme())
	}
}
