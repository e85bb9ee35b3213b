package protocol

import "time"

// Transcript represents recognizer output broadcast on the bus.
type Transcript struct {
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	Partial    bool      `json:"partial"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence,omitempty"`
}

// SessionControl asks a remote recognizer to start or stop a session.
type SessionControl struct {
	SessionID      string    `json:"session_id"`
	Language       string    `json:"language,omitempty"`
	Continuous     bool      `json:"continuous,omitempty"`
	InterimResults bool      `json:"interim_results,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// SessionStatus reports the end of a remote session. Error is the
// engine's error code when the session failed.
type SessionStatus struct {
	SessionID string    `json:"session_id"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NoteEvent announces a change to the note collection.
type NoteEvent struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectSTTAll            = "stt.>"
	SubjectTranscriptPartial = "stt.text.partial"
	SubjectTranscriptFinal   = "stt.text.final"
	SubjectSessionStart      = "stt.session.start"
	SubjectSessionStop       = "stt.session.stop"
	SubjectSessionEnded      = "stt.session.ended"
	SubjectSessionError      = "stt.session.error"

	SubjectNoteCreated = "notes.created"
	SubjectNoteDeleted = "notes.deleted"
)
