// Package stt adapts an external streaming speech recognizer into a
// transcript: final segments accumulate, interim segments are display-only.
package stt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loqalabs/whispnote/internal/bus"
	"github.com/loqalabs/whispnote/internal/config"
)

// Options configures a recognition session.
type Options struct {
	SessionID      string
	Language       string
	Continuous     bool
	InterimResults bool
}

func OptionsFromConfig(cfg config.STTConfig) Options {
	opts := Options{Language: cfg.Language, Continuous: cfg.Continuous, InterimResults: cfg.InterimResults}
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	return opts
}

// Provider is the host's recognition capability.
type Provider interface {
	Open(ctx context.Context, opts Options) (Stream, error)
}

// Stream is one running recognition session. A closed Events channel
// without an EventEnded is treated as a natural end.
type Stream interface {
	Events() <-chan Event
	Stop() error
}

type EventKind int

const (
	EventStarted EventKind = iota
	EventPartial
	EventFinal
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventPartial:
		return "partial"
	case EventFinal:
		return "final"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a single recognition callback. Text is set for partial and
// final events; Reason carries the end reason or the engine's error code.
type Event struct {
	Kind      EventKind
	SessionID string
	Text      string
	Reason    string
	Err       error
}

// Segment is one recognized chunk as reported by an engine.
type Segment struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// Result is the engine's result shape on the wire.
type Result struct {
	Segments           []Segment `json:"segments"`
	SessionEndedReason string    `json:"session_ended_reason,omitempty"`
	Error              string    `json:"error,omitempty"`
}

// Events expands a result into the adapter's event stream: every final
// segment in order, then one partial event carrying the concatenated
// interim text (empty when there is none, so stale interim text is
// replaced), then an end or error event when the result carries one.
func (r Result) Events() []Event {
	var events []Event
	var interim strings.Builder
	for _, seg := range r.Segments {
		if seg.IsFinal {
			events = append(events, Event{Kind: EventFinal, Text: seg.Text})
			continue
		}
		interim.WriteString(seg.Text)
	}
	if len(r.Segments) > 0 {
		events = append(events, Event{Kind: EventPartial, Text: interim.String()})
	}
	switch {
	case r.Error != "":
		events = append(events, Event{Kind: EventError, Reason: r.Error})
	case r.SessionEndedReason != "":
		events = append(events, Event{Kind: EventEnded, Reason: r.SessionEndedReason})
	}
	return events
}

// Unavailable is the provider for hosts without a recognizer.
type Unavailable struct{}

func (Unavailable) Open(context.Context, Options) (Stream, error) {
	return nil, unsupported("speech recognition is not available on this host")
}

// NewProvider builds the provider selected by cfg.Mode.
func NewProvider(cfg config.STTConfig, busClient *bus.Client, log *slog.Logger) (Provider, error) {
	switch cfg.Mode {
	case "none":
		return Unavailable{}, nil
	case "mock":
		return &Mock{Phrases: cfg.MockPhrases, Interval: time.Duration(cfg.MockIntervalMS) * time.Millisecond}, nil
	case "exec":
		return NewExec(cfg.Command, log)
	case "nats":
		if busClient == nil {
			return Unavailable{}, nil
		}
		return NewNATS(busClient, log), nil
	default:
		return nil, fmt.Errorf("unknown stt mode %q", cfg.Mode)
	}
}
