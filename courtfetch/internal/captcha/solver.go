package captcha

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"github.com/hazyhaar/hcbot/courtfetch/internal/diag"
	"github.com/hazyhaar/hcbot/courtfetch/internal/runlog"
)

// Attempt is one pass through acquire → preprocess → recognize. Code is
// empty unless the gate accepted the recognized text.
type Attempt struct {
	Raw       []byte
	Processed []byte
	RawText   string
	Code      string
	Source    string
	Err       error
}

// OK reports whether the attempt produced a usable code.
func (a Attempt) OK() bool { return a.Code != "" }

// Options bound the solver's waits.
type Options struct {
	Selector       string
	VisibleTimeout time.Duration
	FetchTimeout   time.Duration
	Settle         time.Duration
	Diag           *diag.Writer
	Logf           func(format string, args ...any)
}

// Solver turns the captcha on a page into a code.
type Solver struct {
	rec  Recognizer
	opts Options
}

// NewSolver returns a Solver backed by rec.
func NewSolver(rec Recognizer, opts Options) *Solver {
	if opts.Selector == "" {
		opts.Selector = "#captcha_image"
	}
	if opts.VisibleTimeout <= 0 {
		opts.VisibleTimeout = 8 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	return &Solver{rec: rec, opts: opts}
}

func (s *Solver) logf(format string, args ...any) {
	if s.opts.Logf != nil {
		s.opts.Logf(format, args...)
	}
}

// Solve never returns an error: failures leave Code empty and are
// recorded in Err so the caller can retry.
func (s *Solver) Solve(ctx context.Context, page Page, tag diag.Tag) Attempt {
	var a Attempt
	raw, source, err := s.Acquire(ctx, page)
	if err != nil {
		a.Err = fmt.Errorf("%w: %v", ErrUnreadable, err)
		s.logf("[error] captcha exception: %s", runlog.FirstLine(err))
		return a
	}
	a.Raw, a.Source = raw, source
	s.opts.Diag.Capture(tag, "captcha_raw", "png", func() ([]byte, error) { return raw, nil })

	processed, err := Preprocess(raw)
	if err != nil {
		a.Err = fmt.Errorf("%w: %v", ErrUnreadable, err)
		s.logf("[error] captcha exception: %s", runlog.FirstLine(err))
		return a
	}
	a.Processed = processed
	s.opts.Diag.Capture(tag, "captcha_processed", "png", func() ([]byte, error) { return processed, nil })

	text, err := s.rec.Recognize(ctx, processed)
	if err != nil {
		a.Err = fmt.Errorf("%w: %v", ErrUnreadable, err)
		s.logf("[error] captcha exception: %s", runlog.FirstLine(err))
		return a
	}
	a.RawText = text
	code := Sanitize(text)

	w, h := dimensions(raw)
	s.logf("[debug] captcha src=%s raw=%dx%d ocr_raw='%s' ocr='%s' len=%d", source, w, h, text, code, len(code))

	if len(code) != CodeLength {
		a.Err = fmt.Errorf("%w: got %d characters", ErrUnreadable, len(code))
		return a
	}
	a.Code = code
	return a
}

func dimensions(raw []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
