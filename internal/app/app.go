package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/loqalabs/whispnote/internal/blobstore"
	"github.com/loqalabs/whispnote/internal/bus"
	"github.com/loqalabs/whispnote/internal/config"
	"github.com/loqalabs/whispnote/internal/natsserver"
	"github.com/loqalabs/whispnote/internal/notes"
	"github.com/loqalabs/whispnote/internal/prefs"
	"github.com/loqalabs/whispnote/internal/stt"
)

// App is a fully wired controller plus the resources it owns.
type App struct {
	Controller *Controller

	log     *slog.Logger
	server  *natsserver.EmbeddedServer
	bus     *bus.Client
	blobs   blobstore.Store
	service *stt.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New connects the bus when enabled, opens storage, loads notes and
// preferences and builds the recognition provider selected by cfg.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{log: log}
	ok := false
	defer func() {
		if !ok {
			a.release()
		}
	}()

	if cfg.Bus.Enabled {
		srv, err := natsserver.Start(cfg.Bus, log)
		if err != nil {
			return nil, fmt.Errorf("start embedded nats: %w", err)
		}
		a.server = srv
		busCfg := cfg.Bus
		if srv != nil {
			busCfg.Servers = []string{srv.ClientURL()}
		}
		client, err := bus.Connect(ctx, busCfg, log)
		if err != nil {
			return nil, err
		}
		a.bus = client
	}

	blobs, err := blobstore.Open(ctx, cfg.Storage, a.bus, log)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	a.blobs = blobs

	store, err := notes.Open(ctx, blobs, cfg.Storage.NotesKey, log)
	if err != nil {
		return nil, err
	}
	p := prefs.New(blobs, prefs.Keys{Theme: cfg.Storage.ThemeKey, Visited: cfg.Storage.VisitedKey})

	provider, err := stt.NewProvider(cfg.STT, a.bus, log)
	if err != nil {
		return nil, err
	}

	if cfg.STT.Serve && a.bus != nil {
		svc := stt.NewService(context.WithoutCancel(ctx), a.bus, provider, log)
		if err := svc.Start(); err != nil {
			return nil, err
		}
		a.service = svc
	}

	opts := Options{SaveOnEnd: cfg.Notes.SaveOnEnd}
	if a.bus != nil {
		opts.Publisher = a.bus
	}
	controller, err := NewController(ctx, provider, stt.OptionsFromConfig(cfg.STT), store, p, opts, log)
	if err != nil {
		return nil, err
	}
	a.Controller = controller

	log.Info("whispnote ready",
		slog.String("storage", cfg.Storage.Backend),
		slog.String("stt", cfg.STT.Mode),
		slog.Int("notes", store.Len()),
		slog.Bool("bus", a.bus != nil),
		slog.Bool("serving_stt", a.service != nil))
	ok = true
	return a, nil
}

// Start runs the controller event loop in the background.
func (a *App) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.Controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("controller stopped", slogError(err))
		}
	}()
}

// Bus returns the bus connection, or nil when the bus is disabled.
func (a *App) Bus() *bus.Client { return a.bus }

func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.Controller != nil {
		a.Controller.Close()
	}
	return a.release()
}

func (a *App) release() error {
	var errs []error
	if a.service != nil {
		a.log.Info("stopping recognition service", slog.Int("open_sessions", a.service.Sessions()))
		a.service.Close()
		a.service = nil
	}
	if a.blobs != nil {
		if err := a.blobs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close blob store: %w", err))
		}
		a.blobs = nil
	}
	if a.bus != nil {
		a.bus.Close()
		a.bus = nil
	}
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	return errors.Join(errs...)
}
