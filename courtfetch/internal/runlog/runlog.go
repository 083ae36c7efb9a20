// Package runlog holds the human-readable transcript of a run: an ordered,
// append-only list of "[15:04:05] message" lines.
package runlog

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LineFunc receives each entry right after it is appended. It is how the
// transcript reaches live views (stdout, HTTP, UI).
type LineFunc func(line string)

// Log is the run transcript. One goroutine writes; any goroutine may read.
type Log struct {
	mu      sync.RWMutex
	entries []string
	onLine  LineFunc
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithLineFunc forwards every appended entry to fn.
func WithLineFunc(fn LineFunc) Option {
	return func(l *Log) { l.onLine = fn }
}

// WithLogger mirrors every entry to logger at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New creates an empty Log.
func New(opts ...Option) *Log {
	l := &Log{now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Add appends a timestamped entry.
func (l *Log) Add(msg string) {
	line := fmt.Sprintf("[%s] %s", l.now().Format("15:04:05"), msg)

	l.mu.Lock()
	l.entries = append(l.entries, line)
	l.mu.Unlock()

	if l.logger != nil {
		l.logger.Debug("runlog: entry", "msg", msg)
	}
	if l.onLine != nil {
		l.onLine(line)
	}
}

// Addf appends a formatted entry.
func (l *Log) Addf(format string, args ...any) {
	l.Add(fmt.Sprintf(format, args...))
}

// Entries returns a copy of the transcript.
func (l *Log) Entries() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// String joins the transcript with newlines.
func (l *Log) String() string {
	return strings.Join(l.Entries(), "\n")
}

// FirstLine trims an error message to its first line, the way the
// transcript reports errors.
func FirstLine(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
