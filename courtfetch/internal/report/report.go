// Package report renders a finished run as Markdown.
package report

import (
	"bytes"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/hazyhaar/hcbot/courtfetch/record"
)

// Write renders sum to w.
func Write(w io.Writer, sum *record.RunSummary) error {
	md := markdown.NewMarkdown(w)

	writeHeader(md, sum)
	writeOutcomes(md, sum)
	writeResults(md, sum)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Run %s, %d case(s)*", sum.ID, sum.Total)
	return md.Build()
}

// String renders sum and returns the Markdown.
func String(sum *record.RunSummary) (string, error) {
	var buf bytes.Buffer
	if err := Write(&buf, sum); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeHeader(md *markdown.Markdown, sum *record.RunSummary) {
	md.H1("Order Fetch Run " + sum.Label)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", sum.StartedAt.Format("2006-01-02 15:04:05")},
			{"Finished", sum.FinishedAt.Format("2006-01-02 15:04:05")},
			{"Duration", sum.FinishedAt.Sub(sum.StartedAt).Round(time.Second).String()},
			{"Cases", strconv.Itoa(sum.Total)},
			{"Fetched", strconv.Itoa(sum.Fetched)},
			{"No document", strconv.Itoa(sum.NoDocument)},
			{"Failed", strconv.Itoa(sum.Failed)},
		},
	})
	md.PlainText("")

	if sum.Total > 0 {
		chart := piechart.NewPieChart(io.Discard,
			piechart.WithTitle("Case outcomes"),
			piechart.WithShowData(true),
		)
		if sum.Fetched > 0 {
			chart.LabelAndIntValue("Fetched", uint64(sum.Fetched))
		}
		if sum.NoDocument > 0 {
			chart.LabelAndIntValue("No document", uint64(sum.NoDocument))
		}
		if sum.Failed > 0 {
			chart.LabelAndIntValue("Failed", uint64(sum.Failed))
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case sum.Failed > 0:
		md.Warningf("%d case(s) failed after retries or were cancelled. Check the run log and diagnostics.", sum.Failed)
	case sum.Total > 0 && sum.Fetched == 0:
		md.Note("Run finished, but no orders were fetched.")
	case sum.Total > 0:
		md.Tip("Every case reached a definitive answer.")
	}
	md.PlainText("")
}

func writeOutcomes(md *markdown.Markdown, sum *record.RunSummary) {
	md.H2("Cases")
	md.PlainText("")
	if len(sum.Outcomes) == 0 {
		md.PlainText("No cases were processed.")
		md.PlainText("")
		return
	}
	rows := make([][]string, len(sum.Outcomes))
	for i, o := range sum.Outcomes {
		rows[i] = []string{o.Case, yesNo(o.DocumentFetched), yesNo(o.TerminalReached), o.Reason, strconv.Itoa(o.Attempts)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Case", "Fetched", "Terminal", "Reason", "Attempts"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeResults(md *markdown.Markdown, sum *record.RunSummary) {
	md.H2("Documents")
	md.PlainText("")
	if len(sum.Results) == 0 {
		md.PlainText("No documents.")
		md.PlainText("")
		return
	}
	items := make([]string, len(sum.Results))
	for i, r := range sum.Results {
		item := r.Description + " → `" + r.FileName() + "`"
		if r.Pages > 0 {
			item += " (" + strconv.Itoa(r.Pages) + " pages)"
		}
		items[i] = item
	}
	md.BulletList(items...)
	md.PlainText("")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// WriteHistory renders a list of past runs as one table, newest first as
// given.
func WriteHistory(w io.Writer, runs []*record.RunSummary) error {
	md := markdown.NewMarkdown(w)
	md.H2("Run history")
	md.PlainText("")
	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		return md.Build()
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.Label,
			r.StartedAt.Format("2006-01-02 15:04"),
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Fetched),
			strconv.Itoa(r.NoDocument),
			strconv.Itoa(r.Failed),
			r.ID,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Run", "Started", "Cases", "Fetched", "No document", "Failed", "ID"},
		Rows:   rows,
	})
	return md.Build()
}
