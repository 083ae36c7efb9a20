package courtfetch

import (
	"io"

	"github.com/hazyhaar/hcbot/courtfetch/internal/catalog"
	"github.com/hazyhaar/hcbot/courtfetch/internal/report"
	"github.com/hazyhaar/hcbot/courtfetch/internal/store"
)

// History is the run-history database.
type History = store.Store

// ErrRunNotFound is returned by History.GetRun for unknown IDs.
var ErrRunNotFound = store.ErrNotFound

// OpenHistory opens (creating if needed) the history database at path.
func OpenHistory(path string) (*History, error) {
	return store.Open(path)
}

// Catalog maps user-facing court, bench and case type names to portal codes.
type Catalog = catalog.Catalog

// CaseType is one option of the portal's case type select.
type CaseType = catalog.CaseType

// Court is a High Court as listed by the portal.
type Court = catalog.Court

// Bench is a court complex within a High Court.
type Bench = catalog.Bench

// DefaultCourt is the court used when a row names none.
const DefaultCourt = catalog.DefaultCourt

// Row validation errors returned by Catalog.Resolve.
var (
	ErrUnknownCourt    = catalog.ErrUnknownCourt
	ErrUnknownBench    = catalog.ErrUnknownBench
	ErrUnknownCaseType = catalog.ErrUnknownCaseType
	ErrIncompleteRow   = catalog.ErrIncompleteRow
)

// NewCatalog builds a catalog from a bench → case types table.
func NewCatalog(caseTypes map[string][]CaseType) *Catalog {
	return catalog.New(caseTypes)
}

// LoadCatalog reads the bench → case types JSON file. A missing file
// yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	return catalog.Load(path)
}

// Courts lists every known High Court.
func Courts() []Court { return catalog.Courts() }

// Benches lists the benches of a court code; nil when none are configured.
func Benches(courtCode string) []Bench { return catalog.Benches(courtCode) }

// CourtCode returns the portal code for a court name.
func CourtCode(name string) (string, bool) { return catalog.CourtCode(name) }

// WriteReport renders a run summary as Markdown.
func WriteReport(w io.Writer, sum *RunSummary) error {
	return report.Write(w, sum)
}

// WriteHistory renders a list of past runs as a Markdown table.
func WriteHistory(w io.Writer, runs []*RunSummary) error {
	return report.WriteHistory(w, runs)
}
