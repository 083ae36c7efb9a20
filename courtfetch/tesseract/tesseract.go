// Package tesseract is the OCR engine behind captcha recognition. It needs
// libtesseract at build time (cgo); the rest of courtfetch does not.
package tesseract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// ErrClosed is returned by Recognize after Close.
var ErrClosed = errors.New("tesseract: engine closed")

// Config tunes the engine.
type Config struct {
	Languages []string
	Whitelist string
}

// Engine wraps one gosseract client reused for every captcha of a run.
// Tesseract clients are not safe for concurrent use, hence the mutex.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
	cfg    Config
}

// New returns an engine configured for single-line alphanumeric codes.
func New(cfg Config) (*Engine, error) {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	c := gosseract.NewClient()
	if err := c.SetLanguage(cfg.Languages...); err != nil {
		c.Close()
		return nil, fmt.Errorf("tesseract: set languages: %w", err)
	}
	if cfg.Whitelist != "" {
		if err := c.SetWhitelist(cfg.Whitelist); err != nil {
			c.Close()
			return nil, fmt.Errorf("tesseract: set whitelist: %w", err)
		}
	}
	if err := c.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		c.Close()
		return nil, fmt.Errorf("tesseract: set page seg mode: %w", err)
	}
	return &Engine{client: c, cfg: cfg}, nil
}

// Name identifies the engine in the runner's logs.
func (e *Engine) Name() string { return "tesseract" }

// Recognize returns the trimmed text tesseract reads from png.
func (e *Engine) Recognize(ctx context.Context, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return "", ErrClosed
	}
	if err := e.client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("tesseract: set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: recognize: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases the client. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}
