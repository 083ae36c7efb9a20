package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestXvfbSocket(t *testing.T) {
	for in, want := range map[string]string{
		":99":   "/tmp/.X11-unix/X99",
		":1.0":  "/tmp/.X11-unix/X1",
		"42":    "/tmp/.X11-unix/X42",
		":99.1": "/tmp/.X11-unix/X99",
	} {
		if got := xvfbSocket(in); got != want {
			t.Errorf("xvfbSocket(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWaitSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "X99")
	go func() {
		time.Sleep(100 * time.Millisecond)
		os.WriteFile(path, nil, 0o600)
	}()
	if err := waitSocket(context.Background(), path, 2*time.Second); err != nil {
		t.Fatal(err)
	}

	err := waitSocket(context.Background(), filepath.Join(t.TempDir(), "never"), 100*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}
