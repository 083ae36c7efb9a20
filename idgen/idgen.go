// Package idgen produces identifiers for runs and diagnostics artifacts.
//
// Runs carry two IDs: a UUIDv7 primary key (time-sortable, used by the
// history store) and a short human label such as "R-260418-093012" shown
// in transcripts and reports.
package idgen

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// RunLabel formats the display label of a run started at t.
func RunLabel(t time.Time) string {
	return t.Format("R-060102-150405")
}

// Stamp formats t for artifact file names, down to the microsecond.
func Stamp(t time.Time) string {
	return fmt.Sprintf("%s_%06d", t.Format("20060102_150405"), t.Nanosecond()/1000)
}

// Parse validates a UUID string and returns it or an error.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID: %w", err)
	}
	return u.String(), nil
}
