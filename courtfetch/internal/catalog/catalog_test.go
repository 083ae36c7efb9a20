package catalog

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/hcbot/courtfetch/record"
)

func loadTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load(filepath.Join("testdata", "case_types.json"))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.CaseTypes("Appellate Side,Bombay")) != 0 {
		t.Fatal("expected empty catalog")
	}
}

func TestParseDropsBlankLabels(t *testing.T) {
	c := loadTestCatalog(t)
	if got := c.CaseTypes("Bombay High Court,Bench at Kolhapur"); len(got) != 1 {
		t.Fatalf("case types = %v", got)
	}
}

func TestFilterCaseTypes(t *testing.T) {
	c := loadTestCatalog(t)
	bench := "Appellate Side,Bombay"
	tests := []struct {
		query string
		want  int
	}{
		{"", 4},
		{"wp", 1},
		{"CONTEMPT", 1},
		{"pe", 3}, // appeal, petition, petition
		{"zzz", 4},
	}
	for _, tt := range tests {
		got := c.FilterCaseTypes(bench, tt.query)
		if len(got) != tt.want {
			t.Errorf("FilterCaseTypes(%q) = %d items, want %d", tt.query, len(got), tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	c := loadTestCatalog(t)
	rows := []record.CaseRow{
		{Bench: "Appellate Side,Bombay", CaseType: "SA(Second Appeal)-4", No: "508", Year: "1999"},
		{},
		{Bench: " Bombay High Court,Bench at Kolhapur ", CaseType: "WP(Writ Petition)-1", No: "11311", Year: "2025"},
		{Bench: "Bench at Nagpur", Mode: "filing_number", No: "77", Year: "2023"},
		{BenchCode: "9", CaseTypeCode: "42", CaseType: "Custom", No: "1", Year: "2020"},
	}
	reqs, err := c.Resolve(DefaultCourt, rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 4 {
		t.Fatalf("reqs = %d", len(reqs))
	}
	want := []record.CaseRequest{
		{Court: "1", Bench: "1", Mode: record.ModeCaseNumber, CaseType: "4", CaseTypeLabel: "SA(Second Appeal)-4", Number: "508", Year: "1999"},
		{Court: "1", Bench: "7", Mode: record.ModeCaseNumber, CaseType: "1", CaseTypeLabel: "WP(Writ Petition)-1", Number: "11311", Year: "2025"},
		{Court: "1", Bench: "4", Mode: record.ModeFilingNumber, Number: "77", Year: "2023"},
		{Court: "1", Bench: "9", Mode: record.ModeCaseNumber, CaseType: "42", CaseTypeLabel: "Custom", Number: "1", Year: "2020"},
	}
	for i := range want {
		if reqs[i] != want[i] {
			t.Errorf("reqs[%d] = %+v, want %+v", i, reqs[i], want[i])
		}
	}
}

func TestResolveErrors(t *testing.T) {
	c := loadTestCatalog(t)
	rows := []record.CaseRow{
		{Bench: "Appellate Side,Bombay", CaseType: "SA(Second Appeal)-4", No: "508"},
		{Bench: "Nowhere", CaseType: "SA(Second Appeal)-4", No: "1", Year: "2000"},
		{Bench: "Appellate Side,Bombay", CaseType: "XX(Unknown)", No: "1", Year: "2000"},
		{Court: "Moon High Court", Bench: "A", CaseType: "B", No: "1", Year: "2000"},
	}
	_, err := c.Resolve(DefaultCourt, rows)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, sentinel := range []error{ErrIncompleteRow, ErrUnknownBench, ErrUnknownCaseType, ErrUnknownCourt} {
		if !errors.Is(err, sentinel) {
			t.Errorf("error does not match %v: %v", sentinel, err)
		}
	}
	var rowErr *RowError
	if !errors.As(err, &rowErr) || rowErr.Row != 1 {
		t.Fatalf("first row error = %+v", rowErr)
	}
}

func TestResolveCourtWithoutBenchTable(t *testing.T) {
	c := New(map[string][]CaseType{"Principal Bench": {{Label: "W.P.(C)", Value: "134"}}})
	reqs, err := c.Resolve("High Court of Delhi", []record.CaseRow{
		{Bench: "Principal Bench", CaseType: "W.P.(C)", No: "5", Year: "2024"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if reqs[0].Court != "26" || reqs[0].Bench != "Principal Bench" || reqs[0].CaseType != "134" {
		t.Fatalf("req = %+v", reqs[0])
	}
}

func TestCourtsAndBenches(t *testing.T) {
	courts := Courts()
	if len(courts) != 25 {
		t.Fatalf("courts = %d", len(courts))
	}
	for i := 1; i < len(courts); i++ {
		if courts[i-1].Name > courts[i].Name {
			t.Fatal("courts not sorted")
		}
	}
	if len(Benches("1")) != 7 || Benches("26") != nil {
		t.Fatal("bench tables")
	}
}
