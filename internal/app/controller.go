// Package app owns WhispNote's application state: the recording flag, the
// transcript buffer and the note collection. Every front end (HTTP API,
// terminal UI, CLI) drives the same Controller.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/whispnote/internal/notes"
	"github.com/loqalabs/whispnote/internal/prefs"
	"github.com/loqalabs/whispnote/internal/protocol"
	"github.com/loqalabs/whispnote/internal/stt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Publisher announces note changes to other processes.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

type Options struct {
	// SaveOnEnd commits the buffer when a session ends on its own.
	SaveOnEnd bool
	Publisher Publisher
}

// Snapshot is a consistent view of the controller state.
type Snapshot struct {
	Recording  bool         `json:"recording"`
	SessionID  string       `json:"session_id,omitempty"`
	Transcript string       `json:"transcript"`
	Interim    string       `json:"interim"`
	Notes      []notes.Note `json:"notes"`
	Theme      prefs.Theme  `json:"theme"`
}

type Controller struct {
	log     *slog.Logger
	opts    Options
	notes   *notes.Store
	prefs   *prefs.Prefs
	tracer  trace.Tracer
	metrics *metrics
	hub     *hub
	clock   func() time.Time

	mu      sync.Mutex
	adapter *stt.Adapter
	theme   prefs.Theme
}

func NewController(ctx context.Context, provider stt.Provider, sttOpts stt.Options, store *notes.Store, p *prefs.Prefs, opts Options, log *slog.Logger) (*Controller, error) {
	c := &Controller{
		log:    log.With(slog.String("component", "controller")),
		opts:   opts,
		notes:  store,
		prefs:  p,
		tracer: otel.Tracer(instrumentationName),
		hub:    newHub(),
		clock:  time.Now,
	}
	c.adapter = stt.NewAdapter(provider, sttOpts, listener{c}, log)

	theme, err := p.Theme(ctx)
	if err != nil {
		return nil, err
	}
	c.theme = theme

	m, err := newMetrics(store.Len)
	if err != nil {
		c.log.Warn("failed to initialize metrics", slogError(err))
	} else {
		c.metrics = m
	}
	return c, nil
}

// Run feeds recognition events into the adapter until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	events := c.adapter.Events()
	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.adapter.Stop()
			c.mu.Unlock()
			return ctx.Err()
		case evt := <-events:
			c.handle(ctx, evt)
		}
	}
}

func (c *Controller) handle(ctx context.Context, evt stt.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.adapter.State()
	c.adapter.Handle(evt)
	if was == stt.StateRecording && c.adapter.State() == stt.StateIdle && c.opts.SaveOnEnd {
		c.saveLocked(ctx)
	}
}

// Toggle is the record control: it stops a running session and starts one otherwise.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	recording := c.adapter.State() == stt.StateRecording
	c.mu.Unlock()
	if recording {
		_, _, err := c.Stop(ctx)
		return err
	}
	return c.Start(ctx)
}

// Start clears the buffer and begins recording. It is a no-op while recording.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.adapter.State() == stt.StateRecording {
		return nil
	}
	c.adapter.ClearTranscript()
	if err := c.adapter.Start(ctx); err != nil {
		rerr := stt.AsError(err)
		c.metrics.recognitionError(ctx, string(rerr.Reason))
		c.notifyFailure(rerr)
		return err
	}
	if c.metrics != nil {
		c.metrics.sessions.Add(ctx, 1)
	}
	c.hub.changed()
	return nil
}

// Stop ends recording and commits a non-blank buffer as a note. The
// returned bool reports whether a note was saved.
func (c *Controller) Stop(ctx context.Context) (notes.Note, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adapter.Stop()
	return c.saveLocked(ctx)
}

// Save commits the buffer as a note and clears it. A blank buffer is left alone.
func (c *Controller) Save(ctx context.Context) (notes.Note, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked(ctx)
}

func (c *Controller) saveLocked(ctx context.Context) (notes.Note, bool, error) {
	if c.adapter.TranscriptBlank() {
		return notes.Note{}, false, nil
	}
	ctx, span := c.tracer.Start(ctx, "notes.save")
	defer span.End()

	note, created, err := c.notes.Create(ctx, c.adapter.Transcript())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Error("failed to save note", slogError(err))
		c.notify(LevelError, msgStoreFailed)
		return notes.Note{}, false, err
	}
	if !created {
		return notes.Note{}, false, nil
	}
	span.SetAttributes(attribute.Int64("note.id", note.ID), attribute.Int("note.tags", len(note.Tags)))
	c.adapter.ClearTranscript()
	c.committed(ctx, note)
	return note, true, nil
}

func (c *Controller) committed(ctx context.Context, note notes.Note) {
	if c.metrics != nil {
		c.metrics.created.Add(ctx, 1)
	}
	c.publish(protocol.SubjectNoteCreated, note)
	c.log.Info("note saved", slog.Int64("id", note.ID), slog.Int("tags", len(note.Tags)))
	c.notify(LevelInfo, msgSaved)
	c.hub.changed()
}

// Add stores text as a note without touching the buffer. Blank text is a no-op.
func (c *Controller) Add(ctx context.Context, text string) (notes.Note, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, span := c.tracer.Start(ctx, "notes.add")
	defer span.End()

	note, created, err := c.notes.Create(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.notify(LevelError, msgStoreFailed)
		return notes.Note{}, false, err
	}
	if created {
		c.committed(ctx, note)
	}
	return note, created, nil
}

// Edit removes the note and loads its text into the buffer. Saving again
// creates a new note with a new id and timestamp.
func (c *Controller) Edit(ctx context.Context, id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, span := c.tracer.Start(ctx, "notes.edit", trace.WithAttributes(attribute.Int64("note.id", id)))
	defer span.End()

	if _, ok := c.notes.Get(id); !ok {
		return false, nil
	}
	note, ok, err := c.notes.Take(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.notify(LevelError, msgStoreFailed)
		return false, err
	}
	if !ok {
		return false, nil
	}
	c.adapter.LoadTranscript(note.Text)
	if c.metrics != nil {
		c.metrics.deleted.Add(ctx, 1)
	}
	c.publish(protocol.SubjectNoteDeleted, note)
	c.hub.changed()
	return true, nil
}

// Delete removes the note with id; a missing id is not an error.
func (c *Controller) Delete(ctx context.Context, id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, span := c.tracer.Start(ctx, "notes.delete", trace.WithAttributes(attribute.Int64("note.id", id)))
	defer span.End()

	note, ok, err := c.notes.Take(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.notify(LevelError, msgStoreFailed)
		return false, err
	}
	if ok {
		if c.metrics != nil {
			c.metrics.deleted.Add(ctx, 1)
		}
		c.publish(protocol.SubjectNoteDeleted, note)
		c.log.Info("note deleted", slog.Int64("id", id))
	}
	c.hub.changed()
	return ok, nil
}

// SetTranscript replaces the buffer, as when the user corrects dictated text.
func (c *Controller) SetTranscript(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adapter.LoadTranscript(text)
}

// Notes returns every note newest-first.
func (c *Controller) Notes() []notes.Note {
	return c.notes.List()
}

func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adapter.State() == stt.StateRecording
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Recording:  c.adapter.State() == stt.StateRecording,
		Transcript: c.adapter.Transcript(),
		Interim:    c.adapter.Interim(),
		Notes:      c.notes.List(),
		Theme:      c.theme,
	}
	if snap.Recording {
		snap.SessionID = c.adapter.SessionID()
	}
	return snap
}

func (c *Controller) Theme() prefs.Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

func (c *Controller) SetTheme(ctx context.Context, theme prefs.Theme) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.prefs.SetTheme(ctx, theme); err != nil {
		return err
	}
	c.theme = prefs.ParseTheme(string(theme))
	c.hub.changed()
	return nil
}

func (c *Controller) ToggleTheme(ctx context.Context) (prefs.Theme, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := c.prefs.ToggleTheme(ctx)
	if err != nil {
		return c.theme, err
	}
	c.theme = next
	c.hub.changed()
	return next, nil
}

// FirstVisit reports whether this is the first run against the store.
func (c *Controller) FirstVisit(ctx context.Context) (bool, error) {
	return c.prefs.FirstVisit(ctx)
}

// SubscribeChanges returns a coalescing change signal and its cancel func.
func (c *Controller) SubscribeChanges() (<-chan struct{}, func()) {
	return c.hub.subscribeChanges()
}

// SubscribeNotifications returns a stream of notifications and its cancel func.
func (c *Controller) SubscribeNotifications() (<-chan Notification, func()) {
	return c.hub.subscribeNotifications()
}

// Close stops any running session and releases subscribers.
func (c *Controller) Close() {
	c.mu.Lock()
	c.adapter.Stop()
	c.mu.Unlock()
	c.metrics.close()
	c.hub.close()
}

func (c *Controller) notify(level Level, message string) {
	c.hub.notify(Notification{Level: level, Message: message, Time: c.clock().UTC()})
}

func (c *Controller) notifyFailure(err *stt.Error) {
	switch {
	case errors.Is(err, stt.ErrPermissionDenied):
		c.notify(LevelError, msgPermissionDenied)
	case errors.Is(err, stt.ErrUnsupported):
		c.notify(LevelWarning, msgUnsupported)
	default:
		c.notify(LevelWarning, msgTransient)
	}
}

func (c *Controller) publish(subject string, note notes.Note) {
	if c.opts.Publisher == nil {
		return
	}
	evt := protocol.NoteEvent{ID: note.ID, Text: note.Text, Tags: note.Tags, Timestamp: note.Timestamp}
	if subject == protocol.SubjectNoteDeleted {
		evt.Text, evt.Tags = "", nil
	}
	if err := c.opts.Publisher.PublishJSON(subject, evt); err != nil {
		c.log.Warn("failed to publish note event", slog.String("subject", subject), slogError(err))
	}
}

// listener receives adapter callbacks. They run with c.mu already held.
type listener struct{ c *Controller }

func (l listener) RecordingStarted(id string) {
	l.c.log.Debug("recording started", slog.String("session_id", id))
	l.c.hub.changed()
}

func (l listener) TranscriptChanged(string, string) { l.c.hub.changed() }

func (l listener) RecordingEnded(id string) {
	l.c.log.Debug("recording ended", slog.String("session_id", id))
	l.c.hub.changed()
}

func (l listener) RecognitionFailed(err *stt.Error) {
	l.c.metrics.recognitionError(context.Background(), string(err.Reason))
	l.c.notifyFailure(err)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
