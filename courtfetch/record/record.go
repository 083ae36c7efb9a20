// Package record defines the values that flow in and out of a courtfetch
// run. These are the public contract: the CLI, the HTTP front end, sinks
// and the history store all exchange these types.
package record

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// SearchMode selects which lookup form the portal is driven through.
type SearchMode string

const (
	ModeCaseNumber   SearchMode = "case_number"   // case type + case number + year
	ModeFilingNumber SearchMode = "filing_number" // filing number + year, no case type
)

// CaseRequest identifies one unit of work. Values are immutable once built.
type CaseRequest struct {
	Court         string     `json:"court" yaml:"court"` // sess_state_code
	Bench         string     `json:"bench" yaml:"bench"` // court_complex_code
	Mode          SearchMode `json:"mode" yaml:"mode"`
	CaseType      string     `json:"case_type,omitempty" yaml:"case_type,omitempty"` // option value, case-number mode only
	CaseTypeLabel string     `json:"case_type_label,omitempty" yaml:"case_type_label,omitempty"`
	Number        string     `json:"number" yaml:"number"`
	Year          string     `json:"year" yaml:"year"`
}

// Label is the short "<no>/<year>" form used for result names.
func (c CaseRequest) Label() string {
	return c.Number + "/" + c.Year
}

// Title is the transcript form: "<case type> <no>/<year>".
func (c CaseRequest) Title() string {
	name := c.CaseTypeLabel
	if name == "" {
		name = c.CaseType
	}
	if c.Mode == ModeFilingNumber {
		name = "Filing"
	}
	if name == "" {
		return c.Label()
	}
	return name + " " + c.Label()
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Slug is a filesystem-safe identifier for diagnostics file names.
func (c CaseRequest) Slug() string {
	name := c.CaseTypeLabel
	if name == "" {
		name = c.CaseType
	}
	if c.Mode == ModeFilingNumber {
		name = "filing"
	}
	return unsafeChars.ReplaceAllString(name+"_"+c.Number+"_"+c.Year, "_")
}

// Validate checks that every field the selected mode needs is present.
func (c CaseRequest) Validate() error {
	var missing []string
	if c.Court == "" {
		missing = append(missing, "court")
	}
	if c.Bench == "" {
		missing = append(missing, "bench")
	}
	if c.Number == "" {
		missing = append(missing, "number")
	}
	if c.Year == "" {
		missing = append(missing, "year")
	}
	switch c.Mode {
	case ModeCaseNumber:
		if c.CaseType == "" {
			missing = append(missing, "case_type")
		}
	case ModeFilingNumber:
	default:
		return fmt.Errorf("%w: unknown search mode %q", ErrInvalidRequest, c.Mode)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// FetchResult is a validated order document obtained for a case.
type FetchResult struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	OrderDate   string `json:"order_date"`
	Pages       int    `json:"pages,omitempty"` // 0 when the document could not be inspected
	Data        []byte `json:"-"`
}

// FileName is the download name for the document: the label with "/"
// replaced so it is a single path element.
func (r FetchResult) FileName() string {
	return strings.ReplaceAll(r.Label, "/", "_") + ".pdf"
}

// Outcome reasons.
const (
	ReasonFetched       = "Fetched"
	ReasonNoHistory     = "No history"
	ReasonNoOrders      = "No recent orders"
	ReasonFileMissing   = "Order file missing"
	ReasonRetriesFailed = "Failed after retries"
	ReasonCancelled     = "Cancelled"
	ReasonNoBrowser     = "Browser unavailable"
)

// CaseOutcome reports how one case ended. TerminalReached means the portal
// gave a definitive answer; DocumentFetched means a PDF was obtained. A case
// with no history is terminal without a document.
type CaseOutcome struct {
	Case            string `json:"case"`
	TerminalReached bool   `json:"terminal_reached"`
	DocumentFetched bool   `json:"document_fetched"`
	Reason          string `json:"reason"`
	Attempts        int    `json:"attempts"`
}

// Status collapses an outcome into the three summary buckets shown to users.
func (o CaseOutcome) Status() string {
	switch {
	case o.DocumentFetched:
		return "fetched"
	case o.TerminalReached:
		return "no document"
	default:
		return "undetermined"
	}
}

// ErrInvalidRequest wraps every CaseRequest validation failure.
var ErrInvalidRequest = errors.New("invalid case request")
