package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/hcbot/courtfetch/record"
)

// Router fans out to all configured sinks. One sink error does not block
// the others: errors are logged and the first encountered is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Add appends a sink.
func (r *Router) Add(s Sink) {
	r.sinks = append(r.sinks, s)
}

// Len is the number of sinks.
func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) each(what string, fn func(Sink) error) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := fn(s); err != nil {
			r.logger.Warn("sink: delivery failed", "kind", what, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Line(ctx context.Context, line string) error {
	return r.each("line", func(s Sink) error { return s.Line(ctx, line) })
}

func (r *Router) Result(ctx context.Context, res record.FetchResult) error {
	return r.each("result", func(s Sink) error { return s.Result(ctx, res) })
}

func (r *Router) Outcome(ctx context.Context, out record.CaseOutcome) error {
	return r.each("outcome", func(s Sink) error { return s.Outcome(ctx, out) })
}

func (r *Router) Summary(ctx context.Context, sum *record.RunSummary) error {
	return r.each("summary", func(s Sink) error { return s.Summary(ctx, sum) })
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
