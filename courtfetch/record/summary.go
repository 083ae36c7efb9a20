package record

import (
	"encoding/json"
	"time"
)

// CaseRow is the user-facing form of a case as it was entered, kept in the
// history so a past run can be resubmitted.
type CaseRow struct {
	Court    string `json:"court,omitempty" yaml:"court,omitempty"`
	Bench    string `json:"bench" yaml:"bench"`
	CaseType string `json:"case_type,omitempty" yaml:"case_type,omitempty"`
	Mode     string `json:"mode,omitempty" yaml:"mode,omitempty"`
	No       string `json:"no" yaml:"no"`
	Year     string `json:"year" yaml:"year"`

	// Raw portal codes; when set they bypass catalog lookup.
	CourtCode    string `json:"court_code,omitempty" yaml:"court_code,omitempty"`
	BenchCode    string `json:"bench_code,omitempty" yaml:"bench_code,omitempty"`
	CaseTypeCode string `json:"case_type_code,omitempty" yaml:"case_type_code,omitempty"`
}

// Blank reports whether the row has no user input at all.
func (r CaseRow) Blank() bool {
	return r.Bench == "" && r.CaseType == "" && r.No == "" && r.Year == "" &&
		r.BenchCode == "" && r.CaseTypeCode == ""
}

// RunSummary is the persisted record of a finished run.
type RunSummary struct {
	ID         string        `json:"id"`
	Label      string        `json:"label"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Total      int           `json:"total"`
	Fetched    int           `json:"fetched"`
	NoDocument int           `json:"no_document"`
	Failed     int           `json:"failed"`
	Outcomes   []CaseOutcome `json:"outcomes"`
	Results    []FetchResult `json:"results,omitempty"` // metadata only, Data is never serialised
	Cases      []CaseRow     `json:"cases,omitempty"`
}

// Tally recomputes the counters from Outcomes.
func (s *RunSummary) Tally() {
	s.Total = len(s.Outcomes)
	s.Fetched, s.NoDocument, s.Failed = 0, 0, 0
	for _, o := range s.Outcomes {
		switch o.Status() {
		case "fetched":
			s.Fetched++
		case "no document":
			s.NoDocument++
		default:
			s.Failed++
		}
	}
}

// MarshalSummary serialises a RunSummary to JSON.
func MarshalSummary(s *RunSummary) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSummary deserialises a RunSummary from JSON.
func UnmarshalSummary(data []byte) (*RunSummary, error) {
	var s RunSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
