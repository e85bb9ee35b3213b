package prefs

import (
	"context"
	"fmt"

	"github.com/loqalabs/whispnote/internal/blobstore"
)

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme reads a stored theme. Only "light" selects the light theme.
func ParseTheme(s string) Theme {
	if Theme(s) == ThemeLight {
		return ThemeLight
	}
	return ThemeDark
}

func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

type Keys struct {
	Theme   string
	Visited string
}

// Prefs stores UI preferences next to the notes.
type Prefs struct {
	blobs blobstore.Store
	keys  Keys
}

func New(blobs blobstore.Store, keys Keys) *Prefs {
	return &Prefs{blobs: blobs, keys: keys}
}

func (p *Prefs) Theme(ctx context.Context) (Theme, error) {
	raw, _, err := p.blobs.Get(ctx, p.keys.Theme)
	if err != nil {
		return ThemeDark, fmt.Errorf("read theme: %w", err)
	}
	return ParseTheme(raw), nil
}

func (p *Prefs) SetTheme(ctx context.Context, theme Theme) error {
	if err := p.blobs.Set(ctx, p.keys.Theme, string(ParseTheme(string(theme)))); err != nil {
		return fmt.Errorf("store theme: %w", err)
	}
	return nil
}

// ToggleTheme flips the stored theme and returns the new value.
func (p *Prefs) ToggleTheme(ctx context.Context) (Theme, error) {
	current, err := p.Theme(ctx)
	if err != nil {
		return current, err
	}
	next := current.Toggle()
	if err := p.SetTheme(ctx, next); err != nil {
		return current, err
	}
	return next, nil
}

// FirstVisit reports true the first time it is called against a store and
// records the visit.
func (p *Prefs) FirstVisit(ctx context.Context) (bool, error) {
	_, seen, err := p.blobs.Get(ctx, p.keys.Visited)
	if err != nil {
		return false, fmt.Errorf("read visited flag: %w", err)
	}
	if seen {
		return false, nil
	}
	if err := p.blobs.Set(ctx, p.keys.Visited, "true"); err != nil {
		return false, fmt.Errorf("store visited flag: %w", err)
	}
	return true, nil
}
