package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// xvfbReady bounds the wait for the display socket to appear.
const xvfbReady = 5 * time.Second

// startXvfb launches a virtual display sized to the viewport and waits
// until its X socket exists.
func (m *Manager) startXvfb(ctx context.Context) error {
	if m.xvfb != nil {
		return nil
	}

	display := m.cfg.XvfbDisplay
	screen := fmt.Sprintf("%dx%dx24", max(m.cfg.ViewportWidth, 1280), max(m.cfg.ViewportHeight, 720))
	cmd := exec.Command("Xvfb", display, "-screen", "0", screen, "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	m.xvfb = cmd

	if err := waitSocket(ctx, xvfbSocket(display), xvfbReady); err != nil {
		m.stopXvfb()
		return fmt.Errorf("xvfb %s: %w", display, err)
	}
	m.cfg.Logger.Info("browser: xvfb started", "display", display, "screen", screen, "pid", cmd.Process.Pid)
	return nil
}

func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	if m.xvfb.Process != nil {
		m.xvfb.Process.Kill()
		m.xvfb.Wait()
	}
	m.cfg.Logger.Info("browser: xvfb stopped", "display", m.cfg.XvfbDisplay)
	m.xvfb = nil
}

// xvfbSocket maps ":99" (or ":99.0") to /tmp/.X11-unix/X99.
func xvfbSocket(display string) string {
	n := strings.TrimPrefix(display, ":")
	if i := strings.IndexByte(n, '.'); i >= 0 {
		n = n[:i]
	}
	return "/tmp/.X11-unix/X" + n
}

func waitSocket(ctx context.Context, path string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("display socket %s not ready: %w", path, ctx.Err())
		case <-tick.C:
		}
	}
}
