package stt

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
)

// Exec runs an external recognizer that prints one JSON Result per line
// on stdout until it exits.
type Exec struct {
	cmd []string
	log *slog.Logger
}

func NewExec(command string, log *slog.Logger) (*Exec, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse stt command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("stt command is empty")
	}
	return &Exec{cmd: args, log: log.With(slog.String("component", "stt-exec"))}, nil
}

func (e *Exec) Open(ctx context.Context, opts Options) (Stream, error) {
	args := append([]string{}, e.cmd[1:]...)
	args = append(args, "--language", opts.Language)
	if opts.Continuous {
		args = append(args, "--continuous")
	}
	if opts.InterimResults {
		args = append(args, "--interim")
	}
	if opts.SessionID != "" {
		args = append(args, "--session", opts.SessionID)
	}

	cctx, cancel := context.WithCancel(ctx)
	command := exec.CommandContext(cctx, e.cmd[0], args...)
	command.Cancel = func() error { return command.Process.Signal(os.Interrupt) }
	command.WaitDelay = 2 * time.Second
	stderr := &limitedBuffer{max: 4096}
	command.Stderr = stderr

	stdout, err := command.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stt stdout pipe: %w", err)
	}
	if err := command.Start(); err != nil {
		cancel()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, unsupported("recognizer %q not found: %w", e.cmd[0], err)
		}
		return nil, fmt.Errorf("start stt command: %w", err)
	}

	s := &execStream{
		cmd:    command,
		ctx:    cctx,
		cancel: cancel,
		events: make(chan Event, 16),
		stderr: stderr,
		log:    e.log,
	}
	go s.read(stdout)
	return s, nil
}

type execStream struct {
	cmd    *exec.Cmd
	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	stderr *limitedBuffer
	log    *slog.Logger
}

func (s *execStream) Events() <-chan Event { return s.events }

func (s *execStream) Stop() error {
	s.cancel()
	return nil
}

func (s *execStream) send(evt Event) bool {
	select {
	case s.events <- evt:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *execStream) read(stdout io.Reader) {
	defer close(s.events)
	if !s.send(Event{Kind: EventStarted}) {
		_ = s.cmd.Wait()
		return
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var res Result
		if err := json.Unmarshal(line, &res); err != nil {
			s.log.Warn("failed to decode stt result", slogError(err))
			continue
		}
		for _, evt := range res.Events() {
			if !s.send(evt) {
				_ = s.cmd.Wait()
				return
			}
		}
	}

	if scanErr := scanner.Err(); scanErr != nil && s.ctx.Err() == nil {
		// stdout is no longer drained, so the recognizer has to go.
		s.send(Event{Kind: EventError, Err: fmt.Errorf("read stt output: %w", scanErr)})
		s.cancel()
		_ = s.cmd.Wait()
		return
	}

	err := s.cmd.Wait()
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		s.send(Event{Kind: EventError, Err: fmt.Errorf("stt command failed: %w: %s", err, strings.TrimSpace(s.stderr.String()))})
		return
	}
	s.send(Event{Kind: EventEnded, Reason: "end of speech"})
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
