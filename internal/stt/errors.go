package stt

import (
	"errors"
	"fmt"
	"strings"
)

// Reason classifies why a recognition session could not run or stopped early.
type Reason string

const (
	ReasonUnsupported      Reason = "unsupported"
	ReasonPermissionDenied Reason = "permission-denied"
	ReasonTransient        Reason = "transient"
)

var (
	ErrUnsupported      = &Error{Reason: ReasonUnsupported}
	ErrPermissionDenied = &Error{Reason: ReasonPermissionDenied}
	ErrTransient        = &Error{Reason: ReasonTransient}
)

// Error is a recognition failure. Code carries the engine's raw error
// string when there is one.
type Error struct {
	Reason Reason
	Code   string
	Err    error
}

// NewError classifies an engine error code.
func NewError(code string, err error) *Error {
	return &Error{Reason: ClassifyCode(code), Code: code, Err: err}
}

func (e *Error) Error() string {
	msg := "speech recognition " + string(e.Reason)
	if e.Code != "" && e.Code != string(e.Reason) {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same reason, so errors.Is(err, ErrUnsupported) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

// ClassifyCode maps engine error strings onto a Reason.
func ClassifyCode(code string) Reason {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "not-allowed", "service-not-allowed", "permission-denied":
		return ReasonPermissionDenied
	case "unsupported", "not-supported":
		return ReasonUnsupported
	default:
		return ReasonTransient
	}
}

// AsError converts any error into a recognition *Error, treating unknown
// failures as transient.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr
	}
	return &Error{Reason: ReasonTransient, Err: err}
}

func unsupported(format string, args ...any) *Error {
	return &Error{Reason: ReasonUnsupported, Err: fmt.Errorf(format, args...)}
}
