// Package sink defines output backends for courtfetch runs.
package sink

import (
	"context"

	"github.com/hazyhaar/hcbot/courtfetch/record"
)

// Sink receives everything a run produces, in order: transcript lines as
// they are written, each validated document, one outcome per case, and a
// final summary.
type Sink interface {
	Line(ctx context.Context, line string) error
	Result(ctx context.Context, res record.FetchResult) error
	Outcome(ctx context.Context, out record.CaseOutcome) error
	Summary(ctx context.Context, sum *record.RunSummary) error
	Close() error
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
