package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/whispnote/internal/bus"
	"github.com/loqalabs/whispnote/internal/protocol"
	"github.com/nats-io/nats.go"
)

// NATS talks to a recognizer service over the bus. One subscription
// covers every stt subject so partial and final results keep their order.
type NATS struct {
	bus *bus.Client
	log *slog.Logger
}

func NewNATS(busClient *bus.Client, log *slog.Logger) *NATS {
	return &NATS{bus: busClient, log: log.With(slog.String("component", "stt-nats"))}
}

func (n *NATS) Open(ctx context.Context, opts Options) (Stream, error) {
	if !n.bus.Healthy() {
		return nil, unsupported("bus is not connected")
	}
	cctx, cancel := context.WithCancel(ctx)
	s := &natsStream{
		bus:       n.bus,
		log:       n.log,
		sessionID: opts.SessionID,
		ctx:       cctx,
		cancel:    cancel,
		events:    make(chan Event, 32),
	}
	sub, err := n.bus.Conn().Subscribe(protocol.SubjectSTTAll, s.handle)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe stt subjects: %w", err)
	}
	s.sub = sub

	start := protocol.SessionControl{
		SessionID:      opts.SessionID,
		Language:       opts.Language,
		Continuous:     opts.Continuous,
		InterimResults: opts.InterimResults,
		Timestamp:      time.Now().UTC(),
	}
	if err := n.bus.PublishJSON(protocol.SubjectSessionStart, start); err != nil {
		_ = sub.Unsubscribe()
		cancel()
		return nil, fmt.Errorf("publish session start: %w", err)
	}
	s.send(Event{Kind: EventStarted})
	return s, nil
}

type natsStream struct {
	bus       *bus.Client
	log       *slog.Logger
	sessionID string
	sub       *nats.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	events    chan Event
	once      sync.Once
}

func (s *natsStream) Events() <-chan Event { return s.events }

func (s *natsStream) Stop() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		if s.sub != nil {
			_ = s.sub.Unsubscribe()
		}
		err = s.bus.PublishJSON(protocol.SubjectSessionStop, protocol.SessionControl{
			SessionID: s.sessionID,
			Timestamp: time.Now().UTC(),
		})
	})
	return err
}

func (s *natsStream) send(evt Event) {
	select {
	case s.events <- evt:
	case <-s.ctx.Done():
	}
}

func (s *natsStream) handle(msg *nats.Msg) {
	switch msg.Subject {
	case protocol.SubjectTranscriptPartial, protocol.SubjectTranscriptFinal:
		var transcript protocol.Transcript
		if err := json.Unmarshal(msg.Data, &transcript); err != nil {
			s.log.Warn("failed to decode transcript", slogError(err))
			return
		}
		if transcript.SessionID != s.sessionID {
			return
		}
		kind := EventFinal
		if transcript.Partial || msg.Subject == protocol.SubjectTranscriptPartial {
			kind = EventPartial
		}
		s.send(Event{Kind: kind, Text: transcript.Text})
	case protocol.SubjectSessionEnded, protocol.SubjectSessionError:
		var status protocol.SessionStatus
		if err := json.Unmarshal(msg.Data, &status); err != nil {
			s.log.Warn("failed to decode session status", slogError(err))
			return
		}
		if status.SessionID != s.sessionID {
			return
		}
		if status.Error != "" || msg.Subject == protocol.SubjectSessionError {
			code := status.Error
			if code == "" {
				code = status.Reason
			}
			s.send(Event{Kind: EventError, Reason: code})
			return
		}
		s.send(Event{Kind: EventEnded, Reason: status.Reason})
	}
}
