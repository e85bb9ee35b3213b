package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loqalabs/whispnote/internal/blobstore"
)

// Store keeps the note collection newest-first and rewrites the whole
// collection under a single blob key on every mutation.
type Store struct {
	blobs blobstore.Store
	key   string
	log   *slog.Logger
	clock func() time.Time

	mu     sync.RWMutex
	notes  []Note
	lastID int64
}

// Open loads the collection stored under key. Absent or malformed data
// yields an empty collection; only backend failures are returned.
func Open(ctx context.Context, blobs blobstore.Store, key string, log *slog.Logger) (*Store, error) {
	s := &Store{
		blobs: blobs,
		key:   key,
		log:   log.With(slog.String("component", "notes")),
		clock: time.Now,
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	raw, ok, err := s.blobs.Get(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		s.notes = nil
		return nil
	}
	var loaded []Note
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		s.log.Warn("stored notes are malformed, starting empty", slog.String("key", s.key), slogError(err))
		s.notes = nil
		return nil
	}
	for i := range loaded {
		if loaded[i].Tags == nil {
			loaded[i].Tags = []string{}
		}
	}
	s.notes = loaded
	for _, n := range loaded {
		s.lastID = max(s.lastID, n.ID)
	}
	s.log.Debug("notes loaded", slog.Int("count", len(loaded)))
	return nil
}

// List returns a copy of every note in current order.
func (s *Store) List() []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Note, len(s.notes))
	for i, n := range s.notes {
		out[i] = n.clone()
	}
	return out
}

// Len reports the collection size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

// Get returns the note with id, if present.
func (s *Store) Get(id int64) (Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.notes[i].clone(), true
	}
	return Note{}, false
}

// Create trims text and, when anything is left, inserts a new note at the
// front and persists the collection. created is false for blank text; that
// is not an error and nothing is written.
func (s *Store) Create(ctx context.Context, text string) (note Note, created bool, err error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Note{}, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().UTC().Truncate(time.Millisecond)
	note = Note{
		ID:        s.nextID(now),
		Text:      trimmed,
		Timestamp: now,
		Tags:      ExtractTags(trimmed),
	}

	previous := s.notes
	next := make([]Note, 0, len(previous)+1)
	next = append(next, note)
	next = append(next, previous...)
	if err := s.persist(ctx, next); err != nil {
		return Note{}, false, err
	}
	s.notes = next
	s.lastID = note.ID
	return note.clone(), true, nil
}

// Delete removes the note with id. A missing id leaves the collection as is.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, _, err := s.Take(ctx, id)
	return err
}

// Take removes the note with id and returns it. The resulting collection
// is persisted even when id is absent.
func (s *Store) Take(ctx context.Context, id int64) (Note, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	next := make([]Note, 0, len(s.notes))
	var taken Note
	for j, n := range s.notes {
		if j == i {
			taken = n
			continue
		}
		next = append(next, n)
	}
	if err := s.persist(ctx, next); err != nil {
		return Note{}, false, err
	}
	s.notes = next
	if i < 0 {
		return Note{}, false, nil
	}
	return taken.clone(), true, nil
}

func (s *Store) indexOf(id int64) int {
	for i, n := range s.notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// nextID uses the creation millisecond, bumped past every id ever handed
// out, deleted ones included.
func (s *Store) nextID(now time.Time) int64 {
	return max(now.UnixMilli(), s.lastID+1)
}

func (s *Store) persist(ctx context.Context, collection []Note) error {
	if collection == nil {
		collection = []Note{}
	}
	data, err := json.Marshal(collection)
	if err != nil {
		return fmt.Errorf("encode notes: %w", err)
	}
	if err := s.blobs.Set(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("persist notes: %w", err)
	}
	return nil
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
