package courtfetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/hcbot/courtfetch/internal/captcha"
	"github.com/hazyhaar/hcbot/courtfetch/internal/diag"
	"github.com/hazyhaar/hcbot/courtfetch/internal/navigate"
	"github.com/hazyhaar/hcbot/courtfetch/internal/runlog"
	"github.com/hazyhaar/hcbot/courtfetch/internal/sink"
	"github.com/hazyhaar/hcbot/courtfetch/record"
)

// Recognizer turns a preprocessed captcha image into text.
type Recognizer = captcha.Recognizer

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc = captcha.RecognizerFunc

var (
	// ErrNoRecognizer is returned by Run when no OCR engine was supplied.
	ErrNoRecognizer = errors.New("courtfetch: no captcha recognizer configured")

	// ErrBusy is returned by Run while another run is in progress.
	ErrBusy = errors.New("courtfetch: a run is already in progress")
)

// Runner processes batches of cases against the portal, one case and one
// attempt at a time.
type Runner struct {
	cfg     *Config
	logger  *slog.Logger
	sinks   []Sink
	rec     Recognizer
	history *History
	open    sessionOpener

	mu      sync.Mutex
	current atomic.Pointer[Run]
}

// Option configures a Runner.
type Option func(*Runner)

// WithSinks adds output sinks.
func WithSinks(sinks ...Sink) Option {
	return func(r *Runner) { r.sinks = append(r.sinks, sinks...) }
}

// WithRecognizer sets the OCR engine used for captchas.
func WithRecognizer(rec Recognizer) Option {
	return func(r *Runner) { r.rec = rec }
}

// WithHistory saves every finished run to h.
func WithHistory(h *History) Option {
	return func(r *Runner) { r.history = h }
}

func withSessionOpener(open sessionOpener) Option {
	return func(r *Runner) { r.open = open }
}

// NewRunner creates a Runner. A nil cfg means defaults.
func NewRunner(cfg *Config, logger *slog.Logger, opts ...Option) *Runner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{cfg: cfg, logger: logger, open: openChrome}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Config returns the runner's configuration.
func (r *Runner) Config() *Config { return r.cfg }

// Current returns the run in progress, or the last one started. Nil before
// the first run.
func (r *Runner) Current() *Run { return r.current.Load() }

// Close waits for a run in progress to return, then closes every sink.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sink.NewRouter(r.logger, r.sinks...).Close()
}

// ValidateCases checks every request and joins the failures.
func ValidateCases(cases []CaseRequest) error {
	if len(cases) == 0 {
		return fmt.Errorf("%w: no cases", record.ErrInvalidRequest)
	}
	var errs []error
	for i, c := range cases {
		if err := c.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("case %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

// Run processes cases in order and records everything on run. Every case
// gets exactly one outcome, including when ctx is cancelled part way; the
// summary is delivered to the sinks and saved to the history either way.
// Run returns ctx.Err() after a cancellation.
func (r *Runner) Run(ctx context.Context, run *Run, cases []CaseRequest) error {
	if r.rec == nil {
		return ErrNoRecognizer
	}
	if err := ValidateCases(cases); err != nil {
		return err
	}
	if !r.mu.TryLock() {
		return ErrBusy
	}
	defer r.mu.Unlock()
	r.current.Store(run)

	// Deliveries outlive cancellation so the stop path still reports.
	sctx := context.WithoutCancel(ctx)
	router := sink.NewRouter(r.logger, r.sinks...)
	run.begin(cases, func(line string) { router.Line(sctx, line) })

	dir := ""
	if r.cfg.Diagnostics.Enabled {
		dir = r.cfg.Diagnostics.Dir
	}
	dw := diag.New(dir, diag.WithLogf(run.log.Addf))
	seq := navigate.New(navigate.Options{
		Config:     r.cfg,
		Recognizer: r.rec,
		Log:        run.log,
		Diag:       dw,
		Logger:     r.logger,
	})

	run.log.Addf("[start] run %s: %d case(s)", run.Label, len(cases))
	r.logger.Info("runner: run started", "run", run.ID, "cases", len(cases), "recognizer", recognizerName(r.rec))

	var runErr error
	sess, err := r.open(ctx, r.cfg, r.logger)
	if err != nil {
		run.log.Addf("[error] browser unavailable: %s", runlog.FirstLine(err))
		r.logger.Error("runner: open browser", "error", err)
		for _, c := range cases {
			r.settle(sctx, router, run, record.CaseOutcome{Case: c.Label(), Reason: record.ReasonNoBrowser})
		}
		runErr = fmt.Errorf("courtfetch: open browser: %w", err)
	} else {
		r.process(ctx, sctx, router, run, seq, dw, sess.Page(), cases)
		if err := sess.Close(); err != nil {
			r.logger.Warn("runner: close browser", "error", err)
		}
	}

	run.log.Add("[done] finished")
	run.finish()
	if _, err := dw.SaveTranscript(run.Transcript()); err != nil {
		r.logger.Warn("runner: save transcript", "error", err)
	}

	sum := run.Summary()
	router.Summary(sctx, sum)
	r.persist(sctx, sum)
	r.logger.Info("runner: run finished", "run", run.ID,
		"total", sum.Total, "fetched", sum.Fetched, "no_document", sum.NoDocument, "failed", sum.Failed)

	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}

func (r *Runner) process(ctx, sctx context.Context, router *sink.Router, run *Run,
	seq *navigate.Sequencer, dw *diag.Writer, page navigate.Page, cases []CaseRequest) {
	for i, req := range cases {
		if ctx.Err() != nil {
			for _, rest := range cases[i:] {
				r.settle(sctx, router, run, record.CaseOutcome{Case: rest.Label(), Reason: record.ReasonCancelled})
			}
			return
		}
		out := r.runCase(ctx, sctx, router, run, seq, dw, page, req)
		r.settle(sctx, router, run, out)
		if i < len(cases)-1 {
			sleep(ctx, r.cfg.Delays.BetweenCases)
		}
	}
}

// runCase spends up to retry.max_attempts attempts on req.
func (r *Runner) runCase(ctx, sctx context.Context, router *sink.Router, run *Run,
	seq *navigate.Sequencer, dw *diag.Writer, page navigate.Page, req CaseRequest) record.CaseOutcome {
	limit := r.cfg.Retry.MaxAttempts
	out := record.CaseOutcome{Case: req.Label()}
	run.log.Addf("[case] %s", req.Title())

	for n := 1; n <= limit; n++ {
		if ctx.Err() != nil {
			out.Reason = record.ReasonCancelled
			return out
		}
		out.Attempts = n
		run.log.Addf("[attempt %d/%d] open page", n, limit)

		res, err := attempt(ctx, seq, page, req, n)
		if err != nil {
			if ctx.Err() != nil {
				out.Reason = record.ReasonCancelled
				return out
			}
			run.log.Addf("[warn] retry %d exception: %s", n, runlog.FirstLine(err))
			r.logger.Warn("runner: attempt failed", "case", req.Label(), "attempt", n, "error", err)
			dw.Capture(diag.Tag{Case: req.Slug(), Attempt: n}, "exception_page", "png", func() ([]byte, error) {
				return page.Screenshot(sctx)
			})
			if err := sleep(ctx, r.cfg.Delays.RetryBackoff); err != nil {
				out.Reason = record.ReasonCancelled
				return out
			}
			continue
		}
		if res.State.Terminal() {
			out.TerminalReached = true
			out.DocumentFetched = len(res.Documents) > 0
			out.Reason = res.Reason
			for _, doc := range res.Documents {
				run.addResult(doc)
				router.Result(sctx, doc)
			}
			return out
		}
		if !res.State.Retryable() {
			r.logger.Warn("runner: attempt stopped early", "case", req.Label(), "attempt", n, "state", res.State)
		}
	}

	run.log.Add("[error] failed after retries")
	out.Reason = record.ReasonRetriesFailed
	return out
}

func (r *Runner) settle(ctx context.Context, router *sink.Router, run *Run, out record.CaseOutcome) {
	run.addOutcome(out)
	router.Outcome(ctx, out)
	r.logger.Info("runner: case done", "case", out.Case, "status", out.Status(),
		"reason", out.Reason, "attempts", out.Attempts)
}

func (r *Runner) persist(ctx context.Context, sum *record.RunSummary) {
	if r.history == nil {
		return
	}
	if err := r.history.SaveRun(ctx, sum); err != nil {
		r.logger.Error("runner: save run", "run", sum.ID, "error", err)
		return
	}
	if n, err := r.history.Prune(ctx, r.cfg.History.Keep); err != nil {
		r.logger.Warn("runner: prune history", "error", err)
	} else if n > 0 {
		r.logger.Debug("runner: pruned history", "removed", n)
	}
}

// recognizerName names rec for logs.
func recognizerName(rec Recognizer) string {
	if n, ok := rec.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", rec)
}

// attempt runs one pass, turning a panic into an attempt error.
func attempt(ctx context.Context, seq *navigate.Sequencer, page navigate.Page, req CaseRequest, n int) (res navigate.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("courtfetch: attempt panicked: %v", p)
		}
	}()
	return seq.Attempt(ctx, page, req, n)
}

// sleep pauses for d, returning early with ctx.Err() on cancellation.
// Non-positive durations do not pause.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
