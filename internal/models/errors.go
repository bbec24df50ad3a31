package models

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or invalid input caught before any
// network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return e.Field + " is required"
}

// NetworkError is a failed fetch, upload or delete against the backend.
// Message carries the server-provided text when the backend sent one.
type NetworkError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + " failed"
}

func (e *NetworkError) Unwrap() error { return e.Err }

// PlaybackError is reported when a surface never mounted or refused to
// load or start the source.
type PlaybackError struct {
	ItemID ItemID
	Op     string
	Err    error
}

func (e *PlaybackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("playback %s %s: %v", e.Op, e.ItemID, e.Err)
	}
	return fmt.Sprintf("playback %s %s failed", e.Op, e.ItemID)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse time %q", e.Value)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ServerMessage returns the backend-provided message carried by err, if any.
func ServerMessage(err error) string {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Message
	}
	return ""
}
