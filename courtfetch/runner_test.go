package courtfetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/hcbot/courtfetch/internal/browser"
	"github.com/hazyhaar/hcbot/courtfetch/internal/navigate"
	"github.com/hazyhaar/hcbot/courtfetch/record"
)

const portal = "https://hc.example/hcservices/main.php"

// scriptedPage answers like the portal would for whichever case number
// was last typed into the form.
type scriptedPage struct {
	mu        sync.Mutex
	number    string
	navs      int
	panicNav  int
	invalid   bool
	noHistory map[string]bool
	html      string
	docs      map[string]*browser.Response
}

func newScriptedPage() *scriptedPage {
	return &scriptedPage{
		noHistory: map[string]bool{},
		html: `<table class="order_table"><tr><th>Sr</th><th>J</th><th>No</th><th>Date</th><th>Order</th></tr>` +
			`<tr><td>1</td><td>J</td><td>1</td><td>15-03-2024</td><td><a href="o.pdf">view</a></td></tr></table>`,
		docs: map[string]*browser.Response{
			"https://hc.example/hcservices/o.pdf": {Status: 200, ContentType: "application/pdf", Body: []byte("%PDF-1.4 stub")},
		},
	}
}

func (p *scriptedPage) URL() string { return portal }

func (p *scriptedPage) Navigate(context.Context, string) error {
	p.mu.Lock()
	p.navs++
	n := p.navs
	p.mu.Unlock()
	if n == p.panicNav {
		panic("boom")
	}
	return nil
}

func (p *scriptedPage) Reload(context.Context) error                        { return nil }
func (p *scriptedPage) RemoveElements(context.Context, string) (int, error) { return 0, nil }
func (p *scriptedPage) Click(context.Context, string) error                 { return nil }
func (p *scriptedPage) ClickScript(context.Context, string) error           { return nil }
func (p *scriptedPage) Select(context.Context, string, string) error        { return nil }
func (p *scriptedPage) SelectScript(context.Context, string, string) error {
	return nil
}

func (p *scriptedPage) Fill(_ context.Context, sel, value string) error {
	if sel == "#search_case_no" || sel == "#filing_no" {
		p.mu.Lock()
		p.number = value
		p.mu.Unlock()
	}
	return nil
}

func (p *scriptedPage) FillScript(ctx context.Context, sel, value string) error {
	return p.Fill(ctx, sel, value)
}

func (p *scriptedPage) Visible(context.Context, string) (bool, error) { return true, nil }

func (p *scriptedPage) WaitVisible(_ context.Context, sel string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sel == "#dispTable a[onclick*='viewHistory']" && p.noHistory[p.number] {
		return browser.ErrWaitTimeout
	}
	return nil
}

func (p *scriptedPage) WaitText(context.Context, string, time.Duration) error {
	if p.invalid {
		return nil
	}
	return browser.ErrWaitTimeout
}

func (p *scriptedPage) Attribute(_ context.Context, _, name string) (string, bool, error) {
	if name != "src" {
		return "", false, nil
	}
	return captchaURI, true, nil
}

func (p *scriptedPage) Get(_ context.Context, url string, _ time.Duration) (*browser.Response, error) {
	if r, ok := p.docs[url]; ok {
		return r, nil
	}
	return &browser.Response{Status: 404, ContentType: "text/html"}, nil
}

func (p *scriptedPage) ElementScreenshot(context.Context, string) ([]byte, error) {
	return nil, errors.New("no screenshot")
}
func (p *scriptedPage) Screenshot(context.Context) ([]byte, error) { return []byte("png"), nil }
func (p *scriptedPage) HTML(context.Context) (string, error)       { return p.html, nil }

var captchaURI = func() string {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 12, 4))); err != nil {
		panic(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}()

type fakeSession struct {
	page   navigate.Page
	closed bool
}

func (s *fakeSession) Page() navigate.Page { return s.page }
func (s *fakeSession) Close() error        { s.closed = true; return nil }

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Portal.URL = portal
	cfg.Delays = DelayConfig{AfterLoad: -1, AfterSelect: -1, BeforeCaptcha: -1, RetryBackoff: -1, BetweenCases: -1}
	return cfg
}

func fixedCode(code string) Recognizer {
	return RecognizerFunc(func(context.Context, []byte) (string, error) { return code, nil })
}

func newTestRunner(t *testing.T, page navigate.Page, opts ...Option) (*Runner, *fakeSession) {
	t.Helper()
	sess := &fakeSession{page: page}
	opts = append([]Option{
		WithRecognizer(fixedCode("aB3x9Z")),
		withSessionOpener(func(context.Context, *Config, *slog.Logger) (session, error) { return sess, nil }),
	}, opts...)
	return NewRunner(testConfig(), slog.New(slog.DiscardHandler), opts...), sess
}

func wp(number string) CaseRequest {
	return CaseRequest{Court: "1", Bench: "1", Mode: ModeCaseNumber, CaseType: "1",
		CaseTypeLabel: "WP(Writ Petition)", Number: number, Year: "2025"}
}

func TestRunOneOutcomePerCase(t *testing.T) {
	page := newScriptedPage()
	page.noHistory["2"] = true
	out := t.TempDir()
	runner, sess := newTestRunner(t, page, WithSinks(NewDirSink(out)))

	run := NewRun()
	if err := runner.Run(context.Background(), run, []CaseRequest{wp("1"), wp("2")}); err != nil {
		t.Fatal(err)
	}
	if !sess.closed {
		t.Fatal("session not closed")
	}

	outcomes := run.Outcomes()
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d", len(outcomes))
	}
	if o := outcomes[0]; !o.DocumentFetched || !o.TerminalReached || o.Reason != ReasonFetched || o.Attempts != 1 {
		t.Fatalf("first = %+v", o)
	}
	if o := outcomes[1]; o.DocumentFetched || !o.TerminalReached || o.Reason != ReasonNoHistory {
		t.Fatalf("second = %+v", o)
	}
	if res := run.Results(); len(res) != 1 || res[0].Label != "1/2025" {
		t.Fatalf("results = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(out, "1_2025.pdf")); err != nil {
		t.Fatal(err)
	}

	sum := run.Summary()
	if sum.Total != 2 || sum.Fetched != 1 || sum.NoDocument != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sum.Cases) != 2 || sum.Cases[0].CaseTypeCode != "1" {
		t.Fatalf("cases = %+v", sum.Cases)
	}
	if !run.Done() {
		t.Fatal("run not marked done")
	}
	text := run.Transcript()
	for _, want := range []string{"[case] WP(Writ Petition) 1/2025", "[attempt 1/5] open page", "[done] finished"} {
		if !strings.Contains(text, want) {
			t.Errorf("transcript missing %q:\n%s", want, text)
		}
	}
}

func TestRunExhaustsAttempts(t *testing.T) {
	page := newScriptedPage()
	page.invalid = true
	runner, _ := newTestRunner(t, page)

	run := NewRun()
	if err := runner.Run(context.Background(), run, []CaseRequest{wp("9")}); err != nil {
		t.Fatal(err)
	}
	o := run.Outcomes()[0]
	if o.Attempts != 5 || o.TerminalReached || o.Reason != ReasonRetriesFailed {
		t.Fatalf("outcome = %+v", o)
	}
	if page.navs != 5 {
		t.Fatalf("navigations = %d", page.navs)
	}
	text := run.Transcript()
	if !strings.Contains(text, "[attempt 5/5] open page") || !strings.Contains(text, "[error] failed after retries") {
		t.Fatalf("transcript:\n%s", text)
	}
	if strings.Contains(text, "[attempt 6/5]") {
		t.Fatal("attempt limit exceeded")
	}
}

func TestRunExhaustsExceptionsThenContinues(t *testing.T) {
	page := newScriptedPage()
	var calls int
	rec := RecognizerFunc(func(context.Context, []byte) (string, error) {
		calls++
		if calls <= 5 {
			panic("ocr crashed")
		}
		return "aB3x9Z", nil
	})
	runner, _ := newTestRunner(t, page, WithRecognizer(rec))

	run := NewRun()
	if err := runner.Run(context.Background(), run, []CaseRequest{wp("1"), wp("2")}); err != nil {
		t.Fatal(err)
	}
	outcomes := run.Outcomes()
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d", len(outcomes))
	}
	if o := outcomes[0]; o.Attempts != 5 || o.TerminalReached || o.DocumentFetched || o.Reason != ReasonRetriesFailed {
		t.Fatalf("first = %+v", o)
	}
	if o := outcomes[1]; !o.DocumentFetched || o.Reason != ReasonFetched || o.Attempts != 1 {
		t.Fatalf("second = %+v", o)
	}
	if res := run.Results(); len(res) != 1 || res[0].Label != "2/2025" {
		t.Fatalf("results = %+v", res)
	}
	text := run.Transcript()
	for n := 1; n <= 5; n++ {
		want := fmt.Sprintf("[warn] retry %d exception: courtfetch: attempt panicked: ocr crashed", n)
		if !strings.Contains(text, want) {
			t.Errorf("transcript missing %q", want)
		}
	}
	if !strings.Contains(text, "[error] failed after retries") {
		t.Fatalf("transcript:\n%s", text)
	}
}

type namedRecognizer struct{ Recognizer }

func (namedRecognizer) Name() string { return "named" }

func TestRecognizerName(t *testing.T) {
	if got := recognizerName(namedRecognizer{fixedCode("x")}); got != "named" {
		t.Fatalf("named = %q", got)
	}
	if got := recognizerName(fixedCode("x")); !strings.Contains(got, "RecognizerFunc") {
		t.Fatalf("func = %q", got)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	page := newScriptedPage()
	page.panicNav = 1
	runner, _ := newTestRunner(t, page)

	run := NewRun()
	if err := runner.Run(context.Background(), run, []CaseRequest{wp("1")}); err != nil {
		t.Fatal(err)
	}
	o := run.Outcomes()[0]
	if !o.DocumentFetched || o.Attempts != 2 {
		t.Fatalf("outcome = %+v", o)
	}
	if !strings.Contains(run.Transcript(), "[warn] retry 1 exception: courtfetch: attempt panicked: boom") {
		t.Fatalf("transcript:\n%s", run.Transcript())
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := NewCallbackSink(Callbacks{
		OnOutcome: func(context.Context, CaseOutcome) error {
			cancel()
			return nil
		},
	})
	runner, _ := newTestRunner(t, newScriptedPage(), WithSinks(stop))

	run := NewRun()
	err := runner.Run(ctx, run, []CaseRequest{wp("1"), wp("2"), wp("3")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	outcomes := run.Outcomes()
	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d", len(outcomes))
	}
	if outcomes[0].Reason != ReasonFetched {
		t.Fatalf("first = %+v", outcomes[0])
	}
	for _, o := range outcomes[1:] {
		if o.Reason != ReasonCancelled || o.Attempts != 0 {
			t.Fatalf("outcome = %+v", o)
		}
	}
}

func TestRunBrowserUnavailable(t *testing.T) {
	boom := errors.New("no chrome")
	runner := NewRunner(testConfig(), slog.New(slog.DiscardHandler),
		WithRecognizer(fixedCode("aB3x9Z")),
		withSessionOpener(func(context.Context, *Config, *slog.Logger) (session, error) { return nil, boom }))

	run := NewRun()
	err := runner.Run(context.Background(), run, []CaseRequest{wp("1"), wp("2")})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	for _, o := range run.Outcomes() {
		if o.Reason != ReasonNoBrowser || o.TerminalReached {
			t.Fatalf("outcome = %+v", o)
		}
	}
	if len(run.Outcomes()) != 2 {
		t.Fatalf("outcomes = %d", len(run.Outcomes()))
	}
}

func TestRunSavesHistory(t *testing.T) {
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	runner, _ := newTestRunner(t, newScriptedPage(), WithHistory(h))
	run := NewRun()
	if err := runner.Run(context.Background(), run, []CaseRequest{wp("1")}); err != nil {
		t.Fatal(err)
	}
	got, err := h.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Label != run.Label || got.Fetched != 1 || len(got.Outcomes) != 1 || len(got.Results) != 1 {
		t.Fatalf("saved = %+v", got)
	}
	if runner.Current() != run {
		t.Fatal("current run not tracked")
	}
}

func TestRunForwardsLines(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	lineSink := NewCallbackSink(Callbacks{
		OnLine: func(_ context.Context, line string) error {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
			return nil
		},
	})
	runner, _ := newTestRunner(t, newScriptedPage(), WithSinks(lineSink))
	run := NewRun()
	if err := runner.Run(context.Background(), run, []CaseRequest{wp("1")}); err != nil {
		t.Fatal(err)
	}
	if len(lines) == 0 || len(lines) != len(run.Lines()) {
		t.Fatalf("forwarded %d of %d lines", len(lines), len(run.Lines()))
	}
}

func TestRunRejects(t *testing.T) {
	runner, _ := newTestRunner(t, newScriptedPage())

	if err := runner.Run(context.Background(), NewRun(), nil); !errors.Is(err, record.ErrInvalidRequest) {
		t.Fatalf("empty batch: %v", err)
	}
	bad := wp("1")
	bad.Year = ""
	if err := runner.Run(context.Background(), NewRun(), []CaseRequest{bad}); !errors.Is(err, record.ErrInvalidRequest) {
		t.Fatalf("invalid case: %v", err)
	}

	runner.mu.Lock()
	err := runner.Run(context.Background(), NewRun(), []CaseRequest{wp("1")})
	runner.mu.Unlock()
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("busy: %v", err)
	}

	bare := NewRunner(testConfig(), nil)
	if err := bare.Run(context.Background(), NewRun(), []CaseRequest{wp("1")}); !errors.Is(err, ErrNoRecognizer) {
		t.Fatalf("no recognizer: %v", err)
	}
}
