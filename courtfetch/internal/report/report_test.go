package report

import (
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/hcbot/courtfetch/record"
)

func TestStringRendersRun(t *testing.T) {
	start := time.Date(2026, 4, 18, 9, 30, 12, 0, time.UTC)
	sum := &record.RunSummary{
		ID:         "0190-abc",
		Label:      "R-260418-093012",
		StartedAt:  start,
		FinishedAt: start.Add(95 * time.Second),
		Outcomes: []record.CaseOutcome{
			{Case: "508/1999", TerminalReached: true, DocumentFetched: true, Reason: record.ReasonFetched, Attempts: 2},
			{Case: "1/2020", Reason: record.ReasonRetriesFailed, Attempts: 5},
		},
		Results: []record.FetchResult{
			{Label: "508/1999", Description: "SA(Second Appeal)-4 (Order: 15-03-2024)", Pages: 3},
		},
	}
	sum.Tally()

	out, err := String(sum)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"# Order Fetch Run R-260418-093012",
		"| 508/1999 | yes",
		"Failed after retries",
		"508_1999.pdf",
		"(3 pages)",
		"[!WARNING]",
		"1m35s",
		"mermaid",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n%s", want, out)
		}
	}
}

func TestStringEmptyRun(t *testing.T) {
	out, err := String(&record.RunSummary{ID: "x", Label: "R-1"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No cases were processed.") || strings.Contains(out, "mermaid") {
		t.Fatalf("unexpected report:\n%s", out)
	}
}

func TestWriteHistory(t *testing.T) {
	var buf strings.Builder
	if err := WriteHistory(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No runs recorded.") {
		t.Fatalf("empty history:\n%s", buf.String())
	}

	buf.Reset()
	runs := []*record.RunSummary{
		{ID: "b", Label: "R-260418-100000", StartedAt: time.Date(2026, 4, 18, 10, 0, 0, 0, time.UTC), Total: 3, Fetched: 2, Failed: 1},
		{ID: "a", Label: "R-260417-090000", StartedAt: time.Date(2026, 4, 17, 9, 0, 0, 0, time.UTC), Total: 1, NoDocument: 1},
	}
	if err := WriteHistory(&buf, runs); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	first := strings.Index(out, "R-260418-100000")
	second := strings.Index(out, "R-260417-090000")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("order wrong:\n%s", out)
	}
	if !strings.Contains(out, "2026-04-18 10:00") {
		t.Fatalf("missing start time:\n%s", out)
	}
}
