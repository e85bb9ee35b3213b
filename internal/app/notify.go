package app

import (
	"sync"
	"time"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient, dismissible message for the user.
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

const (
	msgUnsupported      = "Speech recognition is not supported on this system."
	msgPermissionDenied = "Microphone access denied. Please allow microphone access."
	msgTransient        = "Speech recognition stopped unexpectedly."
	msgSaved            = "Note saved!"
	msgStoreFailed      = "Could not save your notes."
)

// hub fans out change signals and notifications. Sends never block:
// change signals coalesce and notifications are dropped for slow readers.
type hub struct {
	mu      sync.Mutex
	nextID  int
	changes map[int]chan struct{}
	notes   map[int]chan Notification
}

func newHub() *hub {
	return &hub{
		changes: make(map[int]chan struct{}),
		notes:   make(map[int]chan Notification),
	}
}

func (h *hub) subscribeChanges() (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan struct{}, 1)
	h.changes[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.changes[id]; ok {
			delete(h.changes, id)
			close(ch)
		}
	}
}

func (h *hub) subscribeNotifications() (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Notification, 16)
	h.notes[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.notes[id]; ok {
			delete(h.notes, id)
			close(ch)
		}
	}
}

func (h *hub) changed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.changes {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *hub) notify(n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.notes {
		select {
		case ch <- n:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.changes {
		delete(h.changes, id)
		close(ch)
	}
	for id, ch := range h.notes {
		delete(h.notes, id)
		close(ch)
	}
}
