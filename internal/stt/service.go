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

// Service serves a local provider to remote clients over the bus: it
// answers stt.session.start/stop and publishes the session's transcripts.
// It is the counterpart of the NATS provider.
type Service struct {
	bus      *bus.Client
	provider Provider
	log      *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	subs     []*nats.Subscription
	wg       sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*serviceSession
}

type serviceSession struct {
	stream Stream
	cancel context.CancelFunc
}

func NewService(parent context.Context, busClient *bus.Client, provider Provider, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:      busClient,
		provider: provider,
		log:      log.With(slog.String("component", "stt-service")),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*serviceSession),
	}
}

func (s *Service) Start() error {
	conn := s.bus.Conn()
	startSub, err := conn.Subscribe(protocol.SubjectSessionStart, s.handleStart)
	if err != nil {
		return fmt.Errorf("subscribe session start: %w", err)
	}
	s.subs = append(s.subs, startSub)
	stopSub, err := conn.Subscribe(protocol.SubjectSessionStop, s.handleStop)
	if err != nil {
		_ = startSub.Unsubscribe()
		return fmt.Errorf("subscribe session stop: %w", err)
	}
	s.subs = append(s.subs, stopSub)
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("flush subscriptions: %w", err)
	}
	s.log.Info("serving speech recognition on the bus")
	return nil
}

func (s *Service) Close() {
	s.cancel()
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.mu.Lock()
	for id, sess := range s.sessions {
		_ = sess.stream.Stop()
		sess.cancel()
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Sessions reports how many sessions are running.
func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) handleStart(msg *nats.Msg) {
	var ctl protocol.SessionControl
	if err := json.Unmarshal(msg.Data, &ctl); err != nil {
		s.log.Warn("failed to decode session start", slogError(err))
		return
	}
	if ctl.SessionID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[ctl.SessionID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	stream, err := s.provider.Open(ctx, Options{
		SessionID:      ctl.SessionID,
		Language:       ctl.Language,
		Continuous:     ctl.Continuous,
		InterimResults: ctl.InterimResults,
	})
	if err != nil {
		cancel()
		rerr := AsError(err)
		s.log.Warn("failed to open recognition session", slog.String("session_id", ctl.SessionID), slogError(rerr))
		s.publishStatus(ctl.SessionID, "", errorCode(rerr))
		return
	}
	s.sessions[ctl.SessionID] = &serviceSession{stream: stream, cancel: cancel}
	s.log.Debug("session opened", slog.String("session_id", ctl.SessionID))

	s.wg.Add(1)
	go s.pump(ctx, ctl.SessionID, stream)
}

func (s *Service) handleStop(msg *nats.Msg) {
	var ctl protocol.SessionControl
	if err := json.Unmarshal(msg.Data, &ctl); err != nil {
		s.log.Warn("failed to decode session stop", slogError(err))
		return
	}
	s.mu.Lock()
	sess, ok := s.sessions[ctl.SessionID]
	delete(s.sessions, ctl.SessionID)
	s.mu.Unlock()
	if !ok {
		return
	}
	sess.cancel()
	_ = sess.stream.Stop()
	s.log.Debug("session stopped", slog.String("session_id", ctl.SessionID))
}

func (s *Service) pump(ctx context.Context, id string, stream Stream) {
	defer s.wg.Done()
	defer s.forget(id)
	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				if ctx.Err() == nil {
					s.publishStatus(id, "stream closed", "")
				}
				return
			}
			switch evt.Kind {
			case EventPartial, EventFinal:
				s.publishTranscript(id, evt.Text, evt.Kind == EventPartial)
			case EventEnded:
				s.publishStatus(id, evt.Reason, "")
				return
			case EventError:
				code := evt.Reason
				if code == "" {
					code = errorCode(AsError(evt.Err))
				}
				s.publishStatus(id, "", code)
				return
			}
		}
	}
}

func (s *Service) forget(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.cancel()
		_ = sess.stream.Stop()
	}
}

func (s *Service) publishTranscript(id, text string, partial bool) {
	subject := protocol.SubjectTranscriptFinal
	if partial {
		subject = protocol.SubjectTranscriptPartial
	}
	msg := protocol.Transcript{
		SessionID: id,
		Text:      text,
		Partial:   partial,
		Timestamp: time.Now().UTC(),
	}
	if err := s.bus.PublishJSON(subject, msg); err != nil {
		s.log.Warn("failed to publish transcript", slogError(err))
	}
}

func (s *Service) publishStatus(id, reason, code string) {
	subject := protocol.SubjectSessionEnded
	if code != "" {
		subject = protocol.SubjectSessionError
	}
	msg := protocol.SessionStatus{
		SessionID: id,
		Reason:    reason,
		Error:     code,
		Timestamp: time.Now().UTC(),
	}
	if err := s.bus.PublishJSON(subject, msg); err != nil {
		s.log.Warn("failed to publish session status", slogError(err))
	}
}

// errorCode turns a failure into a code that ClassifyCode maps back to
// the same reason on the other side.
func errorCode(err *Error) string {
	if err == nil {
		return string(ReasonTransient)
	}
	if err.Code != "" {
		return err.Code
	}
	return string(err.Reason)
}
