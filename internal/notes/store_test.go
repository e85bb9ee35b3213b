package notes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/loqalabs/whispnote/internal/blobstore"
	"pgregory.net/rapid"
)

const notesKey = "whisp-notes"

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(1500 * time.Microsecond)
	return c.now
}

func openStore(t interface {
	Fatalf(format string, args ...any)
}, blobs blobstore.Store) *Store {
	s, err := Open(context.Background(), blobs, notesKey, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	s.clock = clock.Now
	return s
}

// countingStore records how many writes reach the backend.
type countingStore struct {
	*blobstore.Memory
	sets int
	fail error
}

func (c *countingStore) Set(ctx context.Context, key, value string) error {
	if c.fail != nil {
		return c.fail
	}
	c.sets++
	return c.Memory.Set(ctx, key, value)
}

func TestCreateBlankIsNoop(t *testing.T) {
	blobs := &countingStore{Memory: blobstore.NewMemory()}
	s := openStore(t, blobs)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, created, err := s.Create(context.Background(), text)
		if err != nil {
			t.Fatalf("create %q: %v", text, err)
		}
		if created {
			t.Fatalf("create %q should be a no-op", text)
		}
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
	if blobs.sets != 0 {
		t.Fatalf("expected nothing persisted, got %d writes", blobs.sets)
	}
}

func TestCreateTrimsAndTags(t *testing.T) {
	s := openStore(t, blobstore.NewMemory())

	note, created, err := s.Create(context.Background(), " buy milk #grocery #todo ")
	if err != nil || !created {
		t.Fatalf("create: created=%v err=%v", created, err)
	}
	if note.Text != "buy milk #grocery #todo" {
		t.Fatalf("unexpected text %q", note.Text)
	}
	if !reflect.DeepEqual(note.Tags, []string{"grocery", "todo"}) {
		t.Fatalf("unexpected tags %v", note.Tags)
	}
	if note.ID != note.Timestamp.UnixMilli() {
		t.Fatalf("expected id from creation time, got %d vs %d", note.ID, note.Timestamp.UnixMilli())
	}
}

func TestCreateInsertsNewestFirstWithIncreasingIDs(t *testing.T) {
	s := openStore(t, blobstore.NewMemory())
	s.clock = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	first, _, _ := s.Create(ctx, "first")
	second, _, _ := s.Create(ctx, "second")
	third, _, _ := s.Create(ctx, "third")

	if !(first.ID < second.ID && second.ID < third.ID) {
		t.Fatalf("ids not increasing within the same millisecond: %d %d %d", first.ID, second.ID, third.ID)
	}
	list := s.List()
	if len(list) != 3 || list[0].Text != "third" || list[2].Text != "first" {
		t.Fatalf("expected newest first, got %+v", list)
	}
}

func TestDeleteMissingLeavesCollection(t *testing.T) {
	s := openStore(t, blobstore.NewMemory())
	ctx := context.Background()
	s.Create(ctx, "one")
	s.Create(ctx, "two #x")
	before := s.List()

	if err := s.Delete(ctx, 42); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !reflect.DeepEqual(before, s.List()) {
		t.Fatalf("collection changed after deleting missing id")
	}
}

func TestTakeReturnsRemovedNote(t *testing.T) {
	s := openStore(t, blobstore.NewMemory())
	ctx := context.Background()
	note, _, _ := s.Create(ctx, "edit me #later")

	taken, ok, err := s.Take(ctx, note.ID)
	if err != nil || !ok {
		t.Fatalf("take: ok=%v err=%v", ok, err)
	}
	if taken.Text != note.Text {
		t.Fatalf("unexpected taken note %+v", taken)
	}
	if _, ok := s.Get(note.ID); ok {
		t.Fatalf("note should be gone after take")
	}
}

func TestMalformedDataLoadsEmpty(t *testing.T) {
	for _, raw := range []string{"not json", `{"id":1}`, `[{"id":"x"}]`} {
		blobs := blobstore.NewMemory()
		_ = blobs.Set(context.Background(), notesKey, raw)
		s := openStore(t, blobs)
		if s.Len() != 0 {
			t.Fatalf("expected empty collection for %q, got %d", raw, s.Len())
		}
	}
}

func TestLoadNormalizesMissingTags(t *testing.T) {
	blobs := blobstore.NewMemory()
	_ = blobs.Set(context.Background(), notesKey, `[{"id":7,"text":"old note","timestamp":"2024-05-01T10:00:00.000Z"}]`)
	s := openStore(t, blobs)
	list := s.List()
	if len(list) != 1 || list[0].Tags == nil {
		t.Fatalf("expected one note with non-nil tags, got %+v", list)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if !list[0].Timestamp.Equal(want) {
		t.Fatalf("unexpected timestamp %v", list[0].Timestamp)
	}
}

func TestPersistFailureRollsBack(t *testing.T) {
	blobs := &countingStore{Memory: blobstore.NewMemory()}
	s := openStore(t, blobs)
	ctx := context.Background()
	kept, _, _ := s.Create(ctx, "kept")

	blobs.fail = errors.New("disk full")
	if _, _, err := s.Create(ctx, "lost"); err == nil {
		t.Fatalf("expected persist error")
	}
	if err := s.Delete(ctx, kept.ID); err == nil {
		t.Fatalf("expected persist error on delete")
	}
	list := s.List()
	if len(list) != 1 || list[0].ID != kept.ID {
		t.Fatalf("expected in-memory state rolled back, got %+v", list)
	}
}

func TestBackendErrorFailsOpen(t *testing.T) {
	_, err := Open(context.Background(), failingGet{blobstore.NewMemory()}, notesKey, newLogger())
	if err == nil {
		t.Fatalf("expected backend error to surface")
	}
}

type failingGet struct{ *blobstore.Memory }

func (failingGet) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("io error")
}

func textGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[ ]{0,2}[A-Za-z0-9 #_]{0,40}[ ]{0,2}`)
}

func TestCreateDeleteRestoresCollection(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := openStore(t, blobstore.NewMemory())
		ctx := context.Background()
		for _, text := range rapid.SliceOfN(textGenerator(), 0, 5).Draw(t, "seed") {
			if _, _, err := s.Create(ctx, text); err != nil {
				t.Fatalf("seed create: %v", err)
			}
		}
		before := s.List()

		text := textGenerator().Draw(t, "text")
		note, created, err := s.Create(ctx, text)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if !created {
			if strings.TrimSpace(text) != "" {
				t.Fatalf("non-blank text %q was not created", text)
			}
			if !reflect.DeepEqual(before, s.List()) {
				t.Fatalf("no-op create changed the collection")
			}
			return
		}
		if err := s.Delete(ctx, note.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if !reflect.DeepEqual(before, s.List()) {
			t.Fatalf("create+delete did not restore collection")
		}
	})
}

func TestPersistReloadRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		blobs := blobstore.NewMemory()
		s := openStore(t, blobs)
		ctx := context.Background()
		texts := rapid.SliceOfN(textGenerator(), 1, 8).Draw(t, "texts")
		for _, text := range texts {
			if _, _, err := s.Create(ctx, text); err != nil {
				t.Fatalf("create: %v", err)
			}
		}
		if list := s.List(); len(list) > 1 && rapid.Bool().Draw(t, "delete") {
			if err := s.Delete(ctx, list[rapid.IntRange(0, len(list)-1).Draw(t, "victim")].ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
		}

		reloaded := openStore(t, blobs)
		want, got := s.List(), reloaded.List()
		if len(want) != len(got) {
			t.Fatalf("reloaded %d notes, want %d", len(got), len(want))
		}
		for i := range want {
			if want[i].ID != got[i].ID || want[i].Text != got[i].Text ||
				!want[i].Timestamp.Equal(got[i].Timestamp) || !reflect.DeepEqual(want[i].Tags, got[i].Tags) {
				t.Fatalf("note %d differs after reload: %+v vs %+v", i, want[i], got[i])
			}
		}
	})
}

func TestIDsNeverReusedAfterDelete(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, blobstore.NewMemory())
	pinned := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	s.clock = func() time.Time { return pinned }

	first, _, err := s.Create(ctx, "first")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	second, _, err := s.Create(ctx, "second")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if second.ID <= first.ID {
		t.Fatalf("id after delete must increase: first=%d second=%d", first.ID, second.ID)
	}
}

func TestSameMillisecondCreatesGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, blobstore.NewMemory())
	pinned := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	s.clock = func() time.Time { return pinned }

	seen := map[int64]bool{}
	var last int64
	for i := 0; i < 5; i++ {
		n, _, err := s.Create(ctx, "note")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if seen[n.ID] || n.ID <= last {
			t.Fatalf("id %d is not unique and increasing after %d", n.ID, last)
		}
		seen[n.ID] = true
		last = n.ID
	}
	if last != pinned.UnixMilli()+4 {
		t.Fatalf("expected ids bumped by one, last=%d", last)
	}
}

func TestIDHighWaterMarkSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemory()
	s := openStore(t, blobs)
	pinned := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	s.clock = func() time.Time { return pinned }

	a, _, _ := s.Create(ctx, "a")
	b, _, _ := s.Create(ctx, "b")
	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	reopened := openStore(t, blobs)
	reopened.clock = func() time.Time { return pinned }
	c, _, err := reopened.Create(ctx, "c")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID <= b.ID {
		t.Fatalf("expected id past %d, got %d", b.ID, c.ID)
	}
}

func TestFailedCreateDoesNotAdvanceIDs(t *testing.T) {
	ctx := context.Background()
	blobs := &countingStore{Memory: blobstore.NewMemory()}
	s := openStore(t, blobs)
	pinned := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	s.clock = func() time.Time { return pinned }

	blobs.fail = errors.New("disk full")
	if _, _, err := s.Create(ctx, "lost"); err == nil {
		t.Fatalf("expected persist failure")
	}
	blobs.fail = nil
	n, _, err := s.Create(ctx, "kept")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n.ID != pinned.UnixMilli() {
		t.Fatalf("expected id %d, got %d", pinned.UnixMilli(), n.ID)
	}
}
