package stt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type chanStream struct {
	events  chan Event
	stopped int
}

func (s *chanStream) Events() <-chan Event { return s.events }

func (s *chanStream) Stop() error {
	s.stopped++
	return nil
}

type chanProvider struct {
	streams []*chanStream
	err     error
}

func (p *chanProvider) Open(context.Context, Options) (Stream, error) {
	if p.err != nil {
		return nil, p.err
	}
	s := &chanStream{events: make(chan Event, 16)}
	p.streams = append(p.streams, s)
	return s, nil
}

type recordingListener struct {
	started  []string
	ended    []string
	failures []*Error
	final    string
	interim  string
}

func (l *recordingListener) RecordingStarted(id string) { l.started = append(l.started, id) }

func (l *recordingListener) TranscriptChanged(final, interim string) {
	l.final, l.interim = final, interim
}

func (l *recordingListener) RecordingEnded(id string) { l.ended = append(l.ended, id) }

func (l *recordingListener) RecognitionFailed(err *Error) { l.failures = append(l.failures, err) }

func newTestAdapter(p Provider, l Listener) *Adapter {
	a := NewAdapter(p, Options{Language: "en-US", Continuous: true, InterimResults: true}, l, testLogger())
	n := 0
	a.newID = func() string {
		n++
		return "session-" + strings.Repeat("x", n)
	}
	return a
}

// drain feeds forwarded events into Handle until the channel is quiet.
func drain(t *testing.T, a *Adapter) {
	t.Helper()
	for {
		select {
		case evt := <-a.Events():
			a.Handle(evt)
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

func TestTranscriptAccumulatesFinals(t *testing.T) {
	provider := &chanProvider{}
	listener := &recordingListener{}
	a := newTestAdapter(provider, listener)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	id := a.SessionID()
	a.Handle(Event{Kind: EventStarted, SessionID: id})
	a.Handle(Event{Kind: EventPartial, SessionID: id, Text: "hel"})
	if a.Transcript() != "" || a.Interim() != "hel" {
		t.Fatalf("interim must not reach the buffer: %q / %q", a.Transcript(), a.Interim())
	}
	a.Handle(Event{Kind: EventFinal, SessionID: id, Text: "hello"})
	a.Handle(Event{Kind: EventFinal, SessionID: id, Text: "world"})
	if got := a.Transcript(); got != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got)
	}
	if a.Interim() != "" {
		t.Fatalf("expected interim cleared after final")
	}
	if len(listener.started) != 1 || listener.final != "hello world" {
		t.Fatalf("unexpected listener state %+v", listener)
	}
}

func TestTranscriptProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := newTestAdapter(&chanProvider{}, nil)
		if err := a.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
		id := a.SessionID()
		var finals []string
		steps := rapid.IntRange(0, 20).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			text := rapid.StringMatching(`[a-z]{1,8}( [a-z]{1,8})?`).Draw(t, "text")
			if rapid.Bool().Draw(t, "final") {
				finals = append(finals, text)
				a.Handle(Event{Kind: EventFinal, SessionID: id, Text: text})
			} else {
				a.Handle(Event{Kind: EventPartial, SessionID: id, Text: text})
			}
		}
		if got, want := a.Transcript(), strings.Join(finals, " "); got != want {
			t.Fatalf("transcript %q, want %q", got, want)
		}
	})
}

func TestStartClearsBuffer(t *testing.T) {
	a := newTestAdapter(&chanProvider{}, nil)
	a.LoadTranscript("left over")
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !a.TranscriptBlank() {
		t.Fatalf("expected buffer cleared on start, got %q", a.Transcript())
	}
}

func TestStartWhileRecordingIsNoop(t *testing.T) {
	provider := &chanProvider{}
	a := newTestAdapter(provider, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	id := a.SessionID()
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if len(provider.streams) != 1 || a.SessionID() != id {
		t.Fatalf("expected a single session")
	}
}

func TestStopIdempotent(t *testing.T) {
	provider := &chanProvider{}
	listener := &recordingListener{}
	a := newTestAdapter(provider, listener)

	a.Stop()
	if len(listener.ended) != 0 {
		t.Fatalf("stop before start must not signal")
	}

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	a.Stop()
	a.Stop()
	if a.State() != StateIdle {
		t.Fatalf("expected idle after stop")
	}
	if len(listener.ended) != 1 {
		t.Fatalf("expected one ended signal, got %d", len(listener.ended))
	}
	if provider.streams[0].stopped != 1 {
		t.Fatalf("expected stream stopped once, got %d", provider.streams[0].stopped)
	}
}

func TestEndedSignalledOnce(t *testing.T) {
	provider := &chanProvider{}
	listener := &recordingListener{}
	a := newTestAdapter(provider, listener)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	id := a.SessionID()
	a.Handle(Event{Kind: EventEnded, SessionID: id, Reason: "silence"})
	a.Handle(Event{Kind: EventEnded, SessionID: id, Reason: "silence"})
	a.Stop()
	if len(listener.ended) != 1 || listener.ended[0] != id {
		t.Fatalf("expected exactly one ended signal, got %v", listener.ended)
	}
}

func TestNaturalEndKeepsTranscript(t *testing.T) {
	a := newTestAdapter(&chanProvider{}, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	id := a.SessionID()
	a.Handle(Event{Kind: EventFinal, SessionID: id, Text: "keep me"})
	a.Handle(Event{Kind: EventEnded, SessionID: id})
	if a.Transcript() != "keep me" {
		t.Fatalf("expected transcript to survive session end, got %q", a.Transcript())
	}
}

func TestStaleEventsIgnored(t *testing.T) {
	a := newTestAdapter(&chanProvider{}, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	old := a.SessionID()
	a.Stop()
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	a.Handle(Event{Kind: EventFinal, SessionID: old, Text: "stale"})
	a.Handle(Event{Kind: EventEnded, SessionID: old})
	if a.Transcript() != "" || a.State() != StateRecording {
		t.Fatalf("stale events must not affect the new session")
	}

	a.Stop()
	a.Handle(Event{Kind: EventFinal, SessionID: a.SessionID(), Text: "late"})
	if a.Transcript() != "" {
		t.Fatalf("events after stop must be ignored")
	}
}

func TestStartFailureReasons(t *testing.T) {
	cases := map[string]struct {
		err  error
		want error
	}{
		"unavailable": {err: unsupported("no engine"), want: ErrUnsupported},
		"denied":      {err: NewError("not-allowed", nil), want: ErrPermissionDenied},
		"other":       {err: errors.New("boom"), want: ErrTransient},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			a := newTestAdapter(&chanProvider{err: tc.err}, nil)
			err := a.Start(context.Background())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if a.State() != StateIdle {
				t.Fatalf("failed start must leave the adapter idle")
			}
		})
	}
}

func TestUnavailableProvider(t *testing.T) {
	a := newTestAdapter(nil, nil)
	if err := a.Start(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestErrorEventEndsSession(t *testing.T) {
	listener := &recordingListener{}
	a := newTestAdapter(&chanProvider{}, listener)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	a.Handle(Event{Kind: EventError, SessionID: a.SessionID(), Reason: "not-allowed"})
	if a.State() != StateIdle {
		t.Fatalf("expected idle after error")
	}
	if len(listener.failures) != 1 || !errors.Is(listener.failures[0], ErrPermissionDenied) {
		t.Fatalf("expected permission failure, got %v", listener.failures)
	}
	if len(listener.ended) != 1 {
		t.Fatalf("expected ended after error")
	}
}

func TestForwardStampsSessionAndSynthesizesEnd(t *testing.T) {
	provider := &chanProvider{}
	listener := &recordingListener{}
	a := newTestAdapter(provider, listener)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	stream := provider.streams[0]
	stream.events <- Event{Kind: EventFinal, Text: "forwarded"}
	close(stream.events)
	drain(t, a)
	if a.Transcript() != "forwarded" {
		t.Fatalf("expected forwarded final, got %q", a.Transcript())
	}
	if a.State() != StateIdle || len(listener.ended) != 1 {
		t.Fatalf("closed stream should end the session")
	}
}

func TestResultEvents(t *testing.T) {
	r := Result{Segments: []Segment{
		{Text: "hello", IsFinal: true},
		{Text: "wor"},
		{Text: "ld"},
		{Text: "again", IsFinal: true},
	}}
	events := r.Events()
	want := []Event{
		{Kind: EventFinal, Text: "hello"},
		{Kind: EventFinal, Text: "again"},
		{Kind: EventPartial, Text: "world"},
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d: expected %+v, got %+v", i, want[i], events[i])
		}
	}

	ended := Result{SessionEndedReason: "silence"}.Events()
	if len(ended) != 1 || ended[0].Kind != EventEnded {
		t.Fatalf("expected only an ended event, got %v", ended)
	}
	failed := Result{Error: "not-allowed"}.Events()
	if len(failed) != 1 || failed[0].Kind != EventError || failed[0].Reason != "not-allowed" {
		t.Fatalf("expected error event, got %v", failed)
	}
}

func TestClassifyCode(t *testing.T) {
	cases := map[string]Reason{
		"not-allowed":         ReasonPermissionDenied,
		"service-not-allowed": ReasonPermissionDenied,
		"unsupported":         ReasonUnsupported,
		"network":             ReasonTransient,
		"":                    ReasonTransient,
	}
	for code, want := range cases {
		if got := ClassifyCode(code); got != want {
			t.Fatalf("ClassifyCode(%q) = %s, want %s", code, got, want)
		}
	}
}

func TestBlankFinalsSkipped(t *testing.T) {
	a := newTestAdapter(&chanProvider{}, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	id := a.SessionID()
	for _, text := range []string{"hello", "", "  ", "world"} {
		a.Handle(Event{Kind: EventFinal, SessionID: id, Text: text})
	}
	if got := a.Transcript(); got != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got)
	}
}
