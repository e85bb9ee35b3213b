// Package blobstore persists string values under string keys. It is the Go
// home of the browser's local storage: the app keeps its whole note
// collection, theme and visited flag as independent keys.
package blobstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loqalabs/whispnote/internal/bus"
	"github.com/loqalabs/whispnote/internal/config"
)

// Store is a durable key-value byte-string store.
type Store interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set overwrites the value stored under key.
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Open builds the backend selected by cfg.Backend. busClient is only
// consulted for the nats backend.
func Open(ctx context.Context, cfg config.StorageConfig, busClient *bus.Client, log *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg, log)
	case "nats":
		if busClient == nil {
			return nil, fmt.Errorf("nats blob store requires a bus connection")
		}
		return OpenKV(busClient, cfg.Bucket, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
