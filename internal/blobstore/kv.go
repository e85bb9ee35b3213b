package blobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loqalabs/whispnote/internal/bus"
	"github.com/nats-io/nats.go"
)

// KV stores blobs in a JetStream key-value bucket.
type KV struct {
	kv  nats.KeyValue
	log *slog.Logger
}

// OpenKV binds to bucket, creating it when missing. Only the latest
// revision of each key is kept.
func OpenKV(busClient *bus.Client, bucket string, log *slog.Logger) (*KV, error) {
	js := busClient.JetStream()
	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "whispnote blobs",
			History:     1,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("bind kv bucket %s: %w", bucket, err)
	}
	log.Info("blob store bound to jetstream bucket", slog.String("bucket", bucket))
	return &KV{kv: kv, log: log}, nil
}

func (s *KV) Get(_ context.Context, key string) (string, bool, error) {
	entry, err := s.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(entry.Value()), true, nil
}

func (s *KV) Set(_ context.Context, key, value string) error {
	if _, err := s.kv.PutString(key, value); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the bus connection is owned by the caller.
func (s *KV) Close() error { return nil }
