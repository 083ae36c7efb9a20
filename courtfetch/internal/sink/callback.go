package sink

import (
	"context"

	"github.com/hazyhaar/hcbot/courtfetch/record"
)

// LineFunc is called for each transcript line.
type LineFunc func(ctx context.Context, line string) error

// ResultFunc is called for each validated document.
type ResultFunc func(ctx context.Context, res record.FetchResult) error

// OutcomeFunc is called once per case.
type OutcomeFunc func(ctx context.Context, out record.CaseOutcome) error

// SummaryFunc is called once per run.
type SummaryFunc func(ctx context.Context, sum *record.RunSummary) error

// Callbacks groups the handlers of a Callback sink. Any may be nil.
type Callbacks struct {
	OnLine    LineFunc
	OnResult  ResultFunc
	OnOutcome OutcomeFunc
	OnSummary SummaryFunc
}

// Callback delivers run output via Go function calls, for embedding the
// runner in another process (the HTTP front end uses it for live logs).
type Callback struct {
	fns Callbacks
}

// NewCallback creates a Callback sink.
func NewCallback(fns Callbacks) *Callback {
	return &Callback{fns: fns}
}

func (c *Callback) Line(ctx context.Context, line string) error {
	if c.fns.OnLine != nil {
		return c.fns.OnLine(ctx, line)
	}
	return nil
}

func (c *Callback) Result(ctx context.Context, res record.FetchResult) error {
	if c.fns.OnResult != nil {
		return c.fns.OnResult(ctx, res)
	}
	return nil
}

func (c *Callback) Outcome(ctx context.Context, out record.CaseOutcome) error {
	if c.fns.OnOutcome != nil {
		return c.fns.OnOutcome(ctx, out)
	}
	return nil
}

func (c *Callback) Summary(ctx context.Context, sum *record.RunSummary) error {
	if c.fns.OnSummary != nil {
		return c.fns.OnSummary(ctx, sum)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
