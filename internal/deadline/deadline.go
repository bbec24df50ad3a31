package deadline

import (
	"strings"
	"time"

	"lectern/internal/models"
)

// Parse parses a submission or due timestamp as sent by the backend.
// RFC3339 is the canonical form; the SQLite-style space separated layouts
// are accepted too. Times without an explicit timezone are assumed UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &models.ParseError{Value: s}
	}

	var lastErr error
	for _, f := range timeFormats {
		t, err := time.Parse(f, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	for _, f := range timeFormatsNoTZ {
		t, err := time.ParseInLocation(f, s, time.UTC)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, &models.ParseError{Value: s, Err: lastErr}
}

var timeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05Z",
}

var timeFormatsNoTZ = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
}

// IsOnTime reports whether submittedAt is at or before dueAt. It fails
// closed: an unparsable timestamp on either side counts as late.
func IsOnTime(submittedAt, dueAt string) bool {
	submitted, err := Parse(submittedAt)
	if err != nil {
		return false
	}
	due, err := Parse(dueAt)
	if err != nil {
		return false
	}
	return !submitted.After(due)
}
