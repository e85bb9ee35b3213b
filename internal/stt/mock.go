package stt

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Mock replays fixed phrases as if spoken: for each phrase a partial
// result with its first half, then the final phrase. After the last
// phrase the session stays open until stopped.
type Mock struct {
	Phrases  []string
	Interval time.Duration
}

func (m *Mock) Open(ctx context.Context, opts Options) (Stream, error) {
	s := &mockStream{
		events: make(chan Event, 4),
		stop:   make(chan struct{}),
	}
	go s.run(ctx, append([]string(nil), m.Phrases...), m.Interval, opts.InterimResults)
	return s, nil
}

type mockStream struct {
	events chan Event
	stop   chan struct{}
	once   sync.Once
}

func (s *mockStream) Events() <-chan Event { return s.events }

func (s *mockStream) Stop() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *mockStream) run(ctx context.Context, phrases []string, interval time.Duration, interim bool) {
	defer close(s.events)

	send := func(evt Event) bool {
		select {
		case s.events <- evt:
			return true
		case <-s.stop:
			return false
		case <-ctx.Done():
			return false
		}
	}
	wait := func() bool {
		if interval <= 0 {
			return true
		}
		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-timer.C:
			return true
		case <-s.stop:
			return false
		case <-ctx.Done():
			return false
		}
	}

	if !send(Event{Kind: EventStarted}) {
		return
	}
	for _, phrase := range phrases {
		if interim {
			words := strings.Fields(phrase)
			if !wait() || !send(Event{Kind: EventPartial, Text: strings.Join(words[:(len(words)+1)/2], " ")}) {
				return
			}
		}
		if !wait() || !send(Event{Kind: EventFinal, Text: phrase}) {
			return
		}
	}
	select {
	case <-s.stop:
	case <-ctx.Done():
	}
}
