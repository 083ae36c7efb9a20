// Package diag writes diagnostics artifacts (captcha images, page
// screenshots, DOM snapshots, transcripts) to a directory. It is a pure
// side channel: nothing in a run reads these files back.
package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/hazyhaar/hcbot/idgen"
)

// Tag identifies the case and attempt an artifact belongs to.
type Tag struct {
	Case    string
	Attempt int
}

// Writer saves artifacts. The zero value and a nil *Writer are disabled
// writers whose Save is a no-op.
type Writer struct {
	dir  string
	logf func(format string, args ...any)
	now  func() time.Time
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogf narrates each saved file, typically into the run transcript.
func WithLogf(fn func(format string, args ...any)) Option {
	return func(w *Writer) { w.logf = fn }
}

// WithClock overrides the timestamp source used in file names.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// New returns an enabled Writer rooted at dir. An empty dir returns a
// disabled Writer.
func New(dir string, opts ...Option) *Writer {
	if dir == "" {
		return nil
	}
	w := &Writer{dir: dir, now: time.Now}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Enabled reports whether Save writes anything.
func (w *Writer) Enabled() bool {
	return w != nil && w.dir != ""
}

// Dir returns the artifact directory ("" when disabled).
func (w *Writer) Dir() string {
	if w == nil {
		return ""
	}
	return w.dir
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Path builds the artifact path for tag/name/ext without writing it.
func (w *Writer) Path(tag Tag, name, ext string) string {
	safe := unsafeName.ReplaceAllString(tag.Case, "_")
	file := fmt.Sprintf("%s_attempt%d_%s_%s.%s", safe, tag.Attempt, name, idgen.Stamp(w.now()), ext)
	return filepath.Join(w.dir, file)
}

// Save writes data and returns the path. Disabled writers return "".
func (w *Writer) Save(tag Tag, name, ext string, data []byte) (string, error) {
	if !w.Enabled() {
		return "", nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("diag: mkdir: %w", err)
	}
	path := w.Path(tag, name, ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("diag: write %s: %w", name, err)
	}
	if w.logf != nil {
		w.logf("[debug] saved %s: %s", name, filepath.ToSlash(path))
	}
	return path, nil
}

// SaveTranscript writes a finished run transcript as terminal_log_<stamp>.txt.
func (w *Writer) SaveTranscript(text string) (string, error) {
	if !w.Enabled() {
		return "", nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("diag: mkdir: %w", err)
	}
	path := filepath.Join(w.dir, "terminal_log_"+w.now().Format("20060102_150405")+".txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("diag: write transcript: %w", err)
	}
	return path, nil
}

// Capture calls produce and saves its output. Producer failures are
// narrated and swallowed: diagnostics never fail an attempt.
func (w *Writer) Capture(tag Tag, name, ext string, produce func() ([]byte, error)) {
	if !w.Enabled() {
		return
	}
	data, err := produce()
	if err != nil {
		if w.logf != nil {
			w.logf("[debug] capture %s failed: %v", name, err)
		}
		return
	}
	if _, err := w.Save(tag, name, ext, data); err != nil && w.logf != nil {
		w.logf("[debug] %v", err)
	}
}
