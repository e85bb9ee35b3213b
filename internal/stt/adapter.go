package stt

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type State int

const (
	StateIdle State = iota
	StateRecording
)

func (s State) String() string {
	if s == StateRecording {
		return "recording"
	}
	return "idle"
}

// Listener receives the adapter's signals. Calls happen synchronously on
// the goroutine that invoked Start, Stop or Handle.
type Listener interface {
	RecordingStarted(sessionID string)
	TranscriptChanged(final, interim string)
	RecordingEnded(sessionID string)
	RecognitionFailed(err *Error)
}

type nopListener struct{}

func (nopListener) RecordingStarted(string)          {}
func (nopListener) TranscriptChanged(string, string) {}
func (nopListener) RecordingEnded(string)            {}
func (nopListener) RecognitionFailed(*Error)         {}

// Adapter drives one recognition session at a time and owns the
// transcript buffer. It is not safe for concurrent use: the owner
// serializes Start, Stop, Handle and the buffer accessors. Provider
// goroutines only forward events into the channel returned by Events.
type Adapter struct {
	provider Provider
	opts     Options
	log      *slog.Logger
	listener Listener
	newID    func() string

	state      State
	sessionID  string
	stream     Stream
	cancel     context.CancelFunc
	transcript Transcript
	interim    string

	events chan Event
}

func NewAdapter(provider Provider, opts Options, listener Listener, log *slog.Logger) *Adapter {
	if provider == nil {
		provider = Unavailable{}
	}
	if listener == nil {
		listener = nopListener{}
	}
	return &Adapter{
		provider: provider,
		opts:     opts,
		log:      log.With(slog.String("component", "stt-adapter")),
		listener: listener,
		newID:    uuid.NewString,
		events:   make(chan Event, 64),
	}
}

// Events is the stream the owner must feed back into Handle.
func (a *Adapter) Events() <-chan Event { return a.events }

func (a *Adapter) State() State { return a.state }

func (a *Adapter) SessionID() string { return a.sessionID }

// Transcript returns the accumulated final text.
func (a *Adapter) Transcript() string { return a.transcript.String() }

// Interim returns the display-only text of the latest partial result.
func (a *Adapter) Interim() string { return a.interim }

// TranscriptBlank reports whether the buffer has nothing worth saving.
func (a *Adapter) TranscriptBlank() bool { return a.transcript.Blank() }

// LoadTranscript replaces the buffer with text.
func (a *Adapter) LoadTranscript(text string) {
	a.transcript.Set(text)
	a.listener.TranscriptChanged(a.transcript.String(), a.interim)
}

// ClearTranscript empties the buffer.
func (a *Adapter) ClearTranscript() {
	a.transcript.Reset()
	a.interim = ""
	a.listener.TranscriptChanged("", "")
}

// Start opens a session and clears the buffer. Failures are *Error values
// whose Reason tells unsupported hosts from refused permission.
func (a *Adapter) Start(ctx context.Context) error {
	if a.state == StateRecording {
		return nil
	}
	id := a.newID()
	opts := a.opts
	opts.SessionID = id

	// The session outlives the request that started it.
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := a.provider.Open(sctx, opts)
	if err != nil {
		cancel()
		rerr := AsError(err)
		a.log.Warn("recognition failed to start", slog.String("reason", string(rerr.Reason)), slogError(rerr))
		return rerr
	}

	a.state = StateRecording
	a.sessionID = id
	a.stream = stream
	a.cancel = cancel
	a.transcript.Reset()
	a.interim = ""
	a.log.Info("recognition started", slog.String("session_id", id), slog.String("language", opts.Language))

	go a.forward(sctx, id, stream)
	return nil
}

// Stop ends the session. It is safe to call at any time.
func (a *Adapter) Stop() {
	if a.state != StateRecording {
		return
	}
	a.finish("stopped")
}

// Handle applies one event. Events from sessions other than the current
// one are ignored.
func (a *Adapter) Handle(evt Event) {
	if a.state != StateRecording || evt.SessionID != a.sessionID {
		return
	}
	switch evt.Kind {
	case EventStarted:
		a.listener.RecordingStarted(a.sessionID)
	case EventPartial:
		a.interim = evt.Text
		a.listener.TranscriptChanged(a.transcript.String(), a.interim)
	case EventFinal:
		a.transcript.Append(evt.Text)
		a.interim = ""
		a.listener.TranscriptChanged(a.transcript.String(), a.interim)
	case EventEnded:
		a.finish(evt.Reason)
	case EventError:
		rerr := AsError(evt.Err)
		if rerr == nil || evt.Reason != "" {
			rerr = NewError(evt.Reason, evt.Err)
		}
		a.log.Warn("recognition error", slog.String("session_id", a.sessionID), slog.String("reason", string(rerr.Reason)), slog.String("code", rerr.Code))
		a.listener.RecognitionFailed(rerr)
		a.finish("error")
	}
}

func (a *Adapter) finish(reason string) {
	id := a.sessionID
	stream, cancel := a.stream, a.cancel
	a.state = StateIdle
	a.stream = nil
	a.cancel = nil
	a.interim = ""

	if stream != nil {
		if err := stream.Stop(); err != nil {
			a.log.Debug("stream stop failed", slog.String("session_id", id), slogError(err))
		}
	}
	if cancel != nil {
		cancel()
	}
	a.log.Info("recognition ended", slog.String("session_id", id), slog.String("reason", reason))
	a.listener.RecordingEnded(id)
}

func (a *Adapter) forward(ctx context.Context, id string, stream Stream) {
	deliver := func(evt Event) bool {
		evt.SessionID = id
		select {
		case a.events <- evt:
			return true
		case <-ctx.Done():
			return false
		}
	}
	src := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-src:
			if !ok {
				deliver(Event{Kind: EventEnded, Reason: "stream closed"})
				return
			}
			if !deliver(evt) {
				return
			}
		}
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
