// Package tui is the terminal front end: a record control, the transcript
// being dictated and the saved notes, all driven by an in-process controller.
package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/loqalabs/whispnote/internal/app"
	"github.com/loqalabs/whispnote/internal/notes"
	"github.com/loqalabs/whispnote/internal/stt"
)

const defaultShortcut = "ctrl+@"

type Options struct {
	// Shortcut is the key that toggles recording, in bubbletea notation.
	// ctrl+space arrives as "ctrl+@" in most terminals.
	Shortcut            string
	NotificationTimeout time.Duration
	// FirstVisit shows the onboarding hint until the first key press.
	FirstVisit bool
}

// Model is the root bubbletea model.
type Model struct {
	controller  *app.Controller
	opts        Options
	changes     <-chan struct{}
	notices     <-chan app.Notification
	unsubscribe func()

	snapshot app.Snapshot
	styles   Styles

	selected      int
	confirmDelete bool
	showHint      bool

	notification    *app.Notification
	notificationSeq int

	width  int
	height int
}

func New(controller *app.Controller, opts Options) Model {
	if opts.Shortcut == "" {
		opts.Shortcut = defaultShortcut
	}
	if opts.NotificationTimeout <= 0 {
		opts.NotificationTimeout = 3 * time.Second
	}
	changes, cancelChanges := controller.SubscribeChanges()
	notices, cancelNotices := controller.SubscribeNotifications()
	snap := controller.Snapshot()
	return Model{
		controller: controller,
		opts:       opts,
		changes:    changes,
		notices:    notices,
		unsubscribe: func() {
			cancelChanges()
			cancelNotices()
		},
		snapshot: snap,
		styles:   NewStyles(snap.Theme),
		showHint: opts.FirstVisit,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.changes), waitForNotification(m.notices))
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return subscriptionClosedMsg{}
		}
		return ChangedMsg{}
	}
}

func waitForNotification(ch <-chan app.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return subscriptionClosedMsg{}
		}
		return NotificationMsg{Notification: n}
	}
}

func clearNotificationCmd(seq int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return ClearNotificationMsg{Seq: seq}
	})
}

// action runs a controller call off the UI goroutine.
func action(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(context.Background()); err != nil {
			return ActionErrorMsg{Err: err}
		}
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ChangedMsg:
		m.refresh()
		return m, waitForChange(m.changes)

	case NotificationMsg:
		cmd := m.show(msg.Notification)
		return m, tea.Batch(cmd, waitForNotification(m.notices))

	case ClearNotificationMsg:
		if msg.Seq == m.notificationSeq {
			m.notification = nil
		}
		return m, nil

	case ActionErrorMsg:
		// Recognition failures already arrive as notifications.
		var rerr *stt.Error
		if errors.As(msg.Err, &rerr) {
			return m, nil
		}
		return m, m.show(app.Notification{Level: app.LevelError, Message: msg.Err.Error(), Time: time.Now()})

	case subscriptionClosedMsg:
		return m, nil
	}
	return m, nil
}

func (m *Model) refresh() {
	m.snapshot = m.controller.Snapshot()
	m.styles = NewStyles(m.snapshot.Theme)
	if m.selected >= len(m.snapshot.Notes) {
		m.selected = max(0, len(m.snapshot.Notes)-1)
	}
}

func (m *Model) show(n app.Notification) tea.Cmd {
	m.notificationSeq++
	m.notification = &n
	return clearNotificationCmd(m.notificationSeq, m.opts.NotificationTimeout)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	m.showHint = false

	if m.confirmDelete {
		m.confirmDelete = false
		if key == "y" || key == "Y" {
			if note, ok := m.selectedNote(); ok {
				id := note.ID
				return m, action(func(ctx context.Context) error {
					_, err := m.controller.Delete(ctx, id)
					return err
				})
			}
		}
		return m, nil
	}

	switch key {
	case "q", "ctrl+c":
		m.unsubscribe()
		return m, tea.Quit

	case m.opts.Shortcut, "r":
		return m, action(m.controller.Toggle)

	case "s":
		return m, action(func(ctx context.Context) error {
			_, _, err := m.controller.Save(ctx)
			return err
		})

	case "t":
		return m, action(func(ctx context.Context) error {
			_, err := m.controller.ToggleTheme(ctx)
			return err
		})

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down", "j":
		if m.selected < len(m.snapshot.Notes)-1 {
			m.selected++
		}
		return m, nil

	case "e":
		if note, ok := m.selectedNote(); ok {
			id := note.ID
			return m, action(func(ctx context.Context) error {
				_, err := m.controller.Edit(ctx, id)
				return err
			})
		}
		return m, nil

	case "d":
		if _, ok := m.selectedNote(); ok {
			m.confirmDelete = true
		}
		return m, nil

	case "esc":
		m.notification = nil
		return m, nil
	}
	return m, nil
}

func (m Model) selectedNote() (notes.Note, bool) {
	if m.selected < 0 || m.selected >= len(m.snapshot.Notes) {
		return notes.Note{}, false
	}
	return m.snapshot.Notes[m.selected], true
}
