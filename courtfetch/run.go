package courtfetch

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hazyhaar/hcbot/courtfetch/internal/runlog"
	"github.com/hazyhaar/hcbot/courtfetch/record"
	"github.com/hazyhaar/hcbot/idgen"
)

// Re-exported record types.
type (
	CaseRequest = record.CaseRequest
	CaseRow     = record.CaseRow
	FetchResult = record.FetchResult
	CaseOutcome = record.CaseOutcome
	RunSummary  = record.RunSummary
	SearchMode  = record.SearchMode
)

const (
	ModeCaseNumber   = record.ModeCaseNumber
	ModeFilingNumber = record.ModeFilingNumber
)

// Outcome reasons.
const (
	ReasonFetched       = record.ReasonFetched
	ReasonNoHistory     = record.ReasonNoHistory
	ReasonNoOrders      = record.ReasonNoOrders
	ReasonFileMissing   = record.ReasonFileMissing
	ReasonRetriesFailed = record.ReasonRetriesFailed
	ReasonCancelled     = record.ReasonCancelled
	ReasonNoBrowser     = record.ReasonNoBrowser
)

// ErrInvalidRequest wraps every case validation failure.
var ErrInvalidRequest = record.ErrInvalidRequest

// Run is the state of one batch: its transcript, documents and outcomes.
// The caller creates it, hands it to Runner.Run, and may read it from
// other goroutines while the run is in progress.
type Run struct {
	ID    string
	Label string

	log *runlog.Log

	mu         sync.Mutex
	startedAt  time.Time
	finishedAt time.Time
	results    []record.FetchResult
	outcomes   []record.CaseOutcome
	cases      []record.CaseRow
	onLine     func(string)
	now        func() time.Time
	logger     *slog.Logger
}

// RunOption configures a Run.
type RunOption func(*Run)

// WithRunClock overrides the clock used for timestamps.
func WithRunClock(now func() time.Time) RunOption {
	return func(r *Run) { r.now = now }
}

// WithRunLogger mirrors every transcript line to logger at debug level.
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(r *Run) { r.logger = logger }
}

// WithRunRows records the rows the cases were resolved from, so the
// history can offer them for resubmission.
func WithRunRows(rows []record.CaseRow) RunOption {
	return func(r *Run) { r.cases = slices.Clone(rows) }
}

// NewRun creates an empty run with a fresh ID and label.
func NewRun(opts ...RunOption) *Run {
	r := &Run{ID: idgen.New(), now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	r.Label = idgen.RunLabel(r.now())
	r.log = runlog.New(
		runlog.WithClock(r.now),
		runlog.WithLogger(r.logger),
		runlog.WithLineFunc(r.forward),
	)
	return r
}

func (r *Run) forward(line string) {
	r.mu.Lock()
	fn := r.onLine
	r.mu.Unlock()
	if fn != nil {
		fn(line)
	}
}

// Lines returns a snapshot of the transcript.
func (r *Run) Lines() []string { return r.log.Entries() }

// Transcript returns the transcript as one newline-joined string.
func (r *Run) Transcript() string { return r.log.String() }

// Results returns the validated documents obtained so far.
func (r *Run) Results() []record.FetchResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.results)
}

// Outcomes returns the per-case outcomes recorded so far.
func (r *Run) Outcomes() []record.CaseOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.outcomes)
}

// Done reports whether the run has finished.
func (r *Run) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.finishedAt.IsZero()
}

// Summary is the persistable form of the run.
func (r *Run) Summary() *record.RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := &record.RunSummary{
		ID:         r.ID,
		Label:      r.Label,
		StartedAt:  r.startedAt,
		FinishedAt: r.finishedAt,
		Outcomes:   slices.Clone(r.outcomes),
		Cases:      slices.Clone(r.cases),
	}
	for _, res := range r.results {
		res.Data = nil
		sum.Results = append(sum.Results, res)
	}
	sum.Tally()
	return sum
}

func (r *Run) begin(cases []record.CaseRequest, onLine func(string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startedAt = r.now()
	r.onLine = onLine
	if len(r.cases) == 0 {
		for _, c := range cases {
			r.cases = append(r.cases, rowOf(c))
		}
	}
}

func (r *Run) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishedAt = r.now()
}

func (r *Run) addResult(res record.FetchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *Run) addOutcome(out record.CaseOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, out)
}

// rowOf is the history row for a request built from raw codes.
func rowOf(c record.CaseRequest) record.CaseRow {
	return record.CaseRow{
		CaseType:     c.CaseTypeLabel,
		Mode:         string(c.Mode),
		No:           c.Number,
		Year:         c.Year,
		CourtCode:    c.Court,
		BenchCode:    c.Bench,
		CaseTypeCode: c.CaseType,
	}
}
