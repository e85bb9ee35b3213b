package stt

import "strings"

// Transcript accumulates final segments for the session in progress.
type Transcript struct {
	segments []string
}

// Append adds a final segment. Blank segments are dropped.
func (t *Transcript) Append(segment string) {
	if strings.TrimSpace(segment) == "" {
		return
	}
	t.segments = append(t.segments, segment)
}

// Set replaces the buffer with text, as when a note is loaded back for editing.
func (t *Transcript) Set(text string) {
	t.segments = t.segments[:0]
	if text != "" {
		t.segments = append(t.segments, text)
	}
}

func (t *Transcript) Reset() {
	t.segments = nil
}

// String joins the final segments with single spaces.
func (t *Transcript) String() string {
	return strings.Join(t.segments, " ")
}

// Blank reports whether the buffer holds nothing worth saving.
func (t *Transcript) Blank() bool {
	return strings.TrimSpace(t.String()) == ""
}
