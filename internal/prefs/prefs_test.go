package prefs

import (
	"context"
	"testing"

	"github.com/loqalabs/whispnote/internal/blobstore"
)

var testKeys = Keys{Theme: "whisp-theme", Visited: "whisp-visited"}

func TestThemeDefaultsToDark(t *testing.T) {
	p := New(blobstore.NewMemory(), testKeys)
	theme, err := p.Theme(context.Background())
	if err != nil {
		t.Fatalf("theme: %v", err)
	}
	if theme != ThemeDark {
		t.Fatalf("expected dark, got %s", theme)
	}
}

func TestParseTheme(t *testing.T) {
	cases := map[string]Theme{
		"light": ThemeLight,
		"dark":  ThemeDark,
		"":      ThemeDark,
		"Light": ThemeDark,
		"blue":  ThemeDark,
	}
	for raw, want := range cases {
		if got := ParseTheme(raw); got != want {
			t.Fatalf("ParseTheme(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestToggleThemePersists(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemory()
	p := New(blobs, testKeys)

	next, err := p.ToggleTheme(ctx)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if next != ThemeLight {
		t.Fatalf("expected light after first toggle, got %s", next)
	}
	raw, ok, _ := blobs.Get(ctx, testKeys.Theme)
	if !ok || raw != "light" {
		t.Fatalf("expected light stored, got %q", raw)
	}
	if next, _ = p.ToggleTheme(ctx); next != ThemeDark {
		t.Fatalf("expected dark after second toggle, got %s", next)
	}
}

func TestFirstVisitOnce(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemory()
	p := New(blobs, testKeys)

	first, err := p.FirstVisit(ctx)
	if err != nil || !first {
		t.Fatalf("expected first visit, got %v %v", first, err)
	}
	again, err := p.FirstVisit(ctx)
	if err != nil || again {
		t.Fatalf("expected no second first visit, got %v %v", again, err)
	}
	if raw, _, _ := blobs.Get(ctx, testKeys.Visited); raw != "true" {
		t.Fatalf("expected visited flag stored as true, got %q", raw)
	}
}
