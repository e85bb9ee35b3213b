package stt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/loqalabs/whispnote/internal/bus"
	"github.com/loqalabs/whispnote/internal/config"
	"github.com/loqalabs/whispnote/internal/natsserver"
	"github.com/loqalabs/whispnote/internal/protocol"
	"github.com/nats-io/nats.go"
)

func startBus(t *testing.T) *bus.Client {
	t.Helper()
	log := testLogger()
	srv, err := natsserver.Start(config.BusConfig{Enabled: true, Embedded: true, Port: -1, StoreDir: t.TempDir()}, log)
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	client, err := bus.Connect(context.Background(), config.BusConfig{Servers: []string{srv.ClientURL()}}, log)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestNATSSession(t *testing.T) {
	client := startBus(t)

	stops := make(chan string, 1)
	_, err := client.Conn().Subscribe(protocol.SubjectSessionStart, func(msg *nats.Msg) {
		var ctl protocol.SessionControl
		if err := json.Unmarshal(msg.Data, &ctl); err != nil {
			return
		}
		_ = client.PublishJSON(protocol.SubjectTranscriptFinal, protocol.Transcript{SessionID: "someone-else", Text: "noise"})
		_ = client.PublishJSON(protocol.SubjectTranscriptPartial, protocol.Transcript{SessionID: ctl.SessionID, Text: "rem", Partial: true})
		_ = client.PublishJSON(protocol.SubjectTranscriptFinal, protocol.Transcript{SessionID: ctl.SessionID, Text: "remember the milk"})
		_ = client.PublishJSON(protocol.SubjectSessionEnded, protocol.SessionStatus{SessionID: ctl.SessionID, Reason: "silence"})
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	_, err = client.Conn().Subscribe(protocol.SubjectSessionStop, func(msg *nats.Msg) {
		var ctl protocol.SessionControl
		if json.Unmarshal(msg.Data, &ctl) == nil {
			stops <- ctl.SessionID
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := client.Conn().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	listener := &recordingListener{}
	a := NewAdapter(NewNATS(client, testLogger()), Options{Language: "en-US"}, listener, testLogger())
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	id := a.SessionID()
	deadline := time.After(5 * time.Second)
	for a.State() == StateRecording {
		select {
		case evt := <-a.Events():
			a.Handle(evt)
		case <-deadline:
			t.Fatalf("timed out waiting for session end")
		}
	}
	if a.Transcript() != "remember the milk" {
		t.Fatalf("unexpected transcript %q", a.Transcript())
	}
	select {
	case got := <-stops:
		if got != id {
			t.Fatalf("stop published for %q, want %q", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected stop control message")
	}
}

func TestNATSProviderWithoutBus(t *testing.T) {
	provider, err := NewProvider(config.STTConfig{Mode: "nats"}, nil, testLogger())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := provider.Open(context.Background(), Options{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}
