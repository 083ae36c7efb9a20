// Package catalog turns user-entered case rows into portal case requests:
// court and bench names to codes, case-type labels to option values.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"

	"github.com/hazyhaar/hcbot/courtfetch/record"
)

var (
	ErrUnknownCourt    = errors.New("catalog: unknown court")
	ErrUnknownBench    = errors.New("catalog: unknown bench")
	ErrUnknownCaseType = errors.New("catalog: unknown case type")
	ErrIncompleteRow   = errors.New("catalog: incomplete row")
)

// CaseType is one option of the portal's case type select.
type CaseType struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Catalog holds the bench → case types table.
type Catalog struct {
	caseTypes map[string][]CaseType
}

// New wraps an in-memory table keyed by bench name.
func New(caseTypes map[string][]CaseType) *Catalog {
	if caseTypes == nil {
		caseTypes = map[string][]CaseType{}
	}
	return &Catalog{caseTypes: caseTypes}
}

// Load reads a {"bench": [{"label", "value"}]} JSON file. A missing file
// yields an empty catalog: rows must then carry raw codes.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return New(nil), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes the case types JSON.
func Parse(data []byte) (*Catalog, error) {
	var m map[string][]CaseType
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("catalog: parse case types: %w", err)
	}
	for bench, list := range m {
		kept := list[:0]
		for _, ct := range list {
			ct.Label = strings.TrimSpace(ct.Label)
			if ct.Label != "" {
				kept = append(kept, ct)
			}
		}
		m[bench] = kept
	}
	return New(m), nil
}

// CaseTypes returns the case types of a bench in file order.
func (c *Catalog) CaseTypes(bench string) []CaseType {
	return c.caseTypes[bench]
}

// FilterCaseTypes keeps the case types whose label contains query,
// ignoring case. When nothing matches, the full list comes back so the
// caller always has something to choose from.
func (c *Catalog) FilterCaseTypes(bench, query string) []CaseType {
	all := c.caseTypes[bench]
	query = strings.TrimSpace(query)
	if query == "" {
		return all
	}
	fold := cases.Fold()
	q := fold.String(query)
	var out []CaseType
	for _, ct := range all {
		if strings.Contains(fold.String(ct.Label), q) {
			out = append(out, ct)
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}

// caseTypeValue looks a label up in a bench's list.
func (c *Catalog) caseTypeValue(bench, label string) (string, bool) {
	for _, ct := range c.caseTypes[bench] {
		if ct.Label == label && ct.Value != "" {
			return ct.Value, true
		}
	}
	return "", false
}

// RowError ties a validation failure to its 1-based row number.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// Resolve converts rows into case requests. Fully blank rows are skipped.
// Every bad row is reported; the joined error matches each sentinel that
// occurred. courtName is used for rows that name no court.
func (c *Catalog) Resolve(courtName string, rows []record.CaseRow) ([]record.CaseRequest, error) {
	var reqs []record.CaseRequest
	var errs []error
	for i, row := range rows {
		if row.Blank() {
			continue
		}
		req, err := c.resolveRow(courtName, trimRow(row))
		if err != nil {
			errs = append(errs, &RowError{Row: i + 1, Err: err})
			continue
		}
		reqs = append(reqs, req)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return reqs, nil
}

func (c *Catalog) resolveRow(courtName string, row record.CaseRow) (record.CaseRequest, error) {
	mode := record.ModeCaseNumber
	switch row.Mode {
	case "", string(record.ModeCaseNumber):
	case string(record.ModeFilingNumber):
		mode = record.ModeFilingNumber
	default:
		return record.CaseRequest{}, fmt.Errorf("%w: unknown mode %q", ErrIncompleteRow, row.Mode)
	}

	hasBench := row.Bench != "" || row.BenchCode != ""
	hasType := row.CaseType != "" || row.CaseTypeCode != "" || mode == record.ModeFilingNumber
	if !hasBench || !hasType || row.No == "" || row.Year == "" {
		return record.CaseRequest{}, fmt.Errorf("%w: fill all columns (bench, case_type, no, year)", ErrIncompleteRow)
	}

	court := row.CourtCode
	if court == "" {
		name := row.Court
		if name == "" {
			name = courtName
		}
		code, ok := CourtCode(name)
		if !ok {
			return record.CaseRequest{}, fmt.Errorf("%w: %q", ErrUnknownCourt, name)
		}
		court = code
	}

	bench := row.BenchCode
	if bench == "" {
		if m, ok := benchesByCourt[court]; ok {
			code, ok := m[row.Bench]
			if !ok {
				return record.CaseRequest{}, fmt.Errorf("%w: %q for selected High Court", ErrUnknownBench, row.Bench)
			}
			bench = code
		} else {
			bench = row.Bench
		}
	}

	req := record.CaseRequest{Court: court, Bench: bench, Mode: mode, Number: row.No, Year: row.Year}
	if mode == record.ModeCaseNumber {
		req.CaseTypeLabel = row.CaseType
		req.CaseType = row.CaseTypeCode
		if req.CaseType == "" {
			value, ok := c.caseTypeValue(row.Bench, row.CaseType)
			if !ok {
				return record.CaseRequest{}, fmt.Errorf("%w: %q is not valid for bench %q", ErrUnknownCaseType, row.CaseType, row.Bench)
			}
			req.CaseType = value
		}
	}
	return req, req.Validate()
}

func trimRow(r record.CaseRow) record.CaseRow {
	for _, f := range []*string{&r.Court, &r.Bench, &r.CaseType, &r.Mode, &r.No, &r.Year, &r.CourtCode, &r.BenchCode, &r.CaseTypeCode} {
		*f = strings.TrimSpace(*f)
	}
	return r
}
