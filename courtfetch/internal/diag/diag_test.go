package diag

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clock() func() time.Time {
	ts := time.Date(2026, 4, 18, 9, 30, 12, 5000, time.UTC)
	return func() time.Time { return ts }
}

func TestDisabledWriterIsNoop(t *testing.T) {
	var w *Writer
	if w.Enabled() {
		t.Fatal("nil writer must be disabled")
	}
	path, err := w.Save(Tag{Case: "x", Attempt: 1}, "captcha_raw", "png", []byte("x"))
	if err != nil || path != "" {
		t.Fatalf("Save on disabled writer: %q, %v", path, err)
	}
	if New("") != nil {
		t.Fatal("New(\"\") should return a disabled writer")
	}
	called := false
	w.Capture(Tag{}, "n", "png", func() ([]byte, error) { called = true; return nil, nil })
	if called {
		t.Fatal("Capture must not call the producer when disabled")
	}
}

func TestSaveNamesAndNarrates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	var logged []string
	w := New(dir, WithClock(clock()), WithLogf(func(f string, a ...any) {
		logged = append(logged, f)
	}))

	path, err := w.Save(Tag{Case: "WP(Writ)-1_11311_2025", Attempt: 2}, "captcha_raw", "png", []byte("png"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := "WP_Writ_-1_11311_2025_attempt2_captcha_raw_20260418_093012_000005.png"
	if filepath.Base(path) != want {
		t.Errorf("file name: got %q, want %q", filepath.Base(path), want)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "png" {
		t.Fatalf("read back: %q, %v", data, err)
	}
	if len(logged) != 1 || !strings.Contains(logged[0], "saved") {
		t.Errorf("narration: got %v", logged)
	}
}

func TestCaptureSwallowsProducerErrors(t *testing.T) {
	dir := t.TempDir()
	var logged int
	w := New(dir, WithLogf(func(string, ...any) { logged++ }))
	w.Capture(Tag{Case: "c", Attempt: 1}, "exception_page", "png", func() ([]byte, error) {
		return nil, errors.New("target closed")
	})
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no files, got %d", len(entries))
	}
	if logged != 1 {
		t.Fatalf("expected one narration, got %d", logged)
	}
}

func TestSaveTranscript(t *testing.T) {
	w := New(t.TempDir(), WithClock(clock()))
	path, err := w.SaveTranscript("[09:30:12] [done] finished")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "terminal_log_20260418_093012.txt" {
		t.Errorf("transcript name: %q", filepath.Base(path))
	}
}
