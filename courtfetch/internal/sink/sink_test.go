package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/hcbot/courtfetch/record"
)

func TestStdoutEnvelopes(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	ctx := context.Background()
	s.Line(ctx, "[10:00:00] [case] WP 1/2024")
	s.Result(ctx, record.FetchResult{Label: "1/2024", Data: []byte("%PDF-secret")})
	s.Outcome(ctx, record.CaseOutcome{Case: "1/2024", TerminalReached: true, DocumentFetched: true, Reason: record.ReasonFetched, Attempts: 1})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d: %q", len(lines), buf.String())
	}
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	for i, want := range []string{"line", "result", "outcome"} {
		if err := json.Unmarshal([]byte(lines[i]), &env); err != nil {
			t.Fatal(err)
		}
		if env.Type != want {
			t.Errorf("line %d type = %q, want %q", i, env.Type, want)
		}
	}
	if strings.Contains(buf.String(), "secret") {
		t.Fatal("document bytes leaked to stdout")
	}
}

type failing struct{ Callback }

func (failing) Outcome(context.Context, record.CaseOutcome) error { return errors.New("down") }

func TestRouterFansOutPastErrors(t *testing.T) {
	var got int
	ok := NewCallback(Callbacks{OnOutcome: func(context.Context, record.CaseOutcome) error {
		got++
		return nil
	}})
	r := NewRouter(nil, &failing{}, ok)
	err := r.Outcome(context.Background(), record.CaseOutcome{Case: "1/2024"})
	if err == nil || err.Error() != "down" {
		t.Fatalf("err = %v", err)
	}
	if got != 1 {
		t.Fatalf("second sink called %d times", got)
	}
	if r.Len() != 2 {
		t.Fatalf("len = %d", r.Len())
	}
}

func TestWebhookRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	var lastBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastBody, _ = io.ReadAll(r.Body)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	sum := &record.RunSummary{ID: "r1", Label: "R-260418-093012"}
	if err := w.Summary(context.Background(), sum); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d", calls.Load())
	}
	if !bytes.Contains(lastBody, []byte(`"type":"summary"`)) || !bytes.Contains(lastBody, []byte(`"R-260418-093012"`)) {
		t.Fatalf("body = %s", lastBody)
	}
}

func TestWebhookExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookRetries(1), WithWebhookBackoff(time.Millisecond))
	err := w.Outcome(context.Background(), record.CaseOutcome{Case: "1/2024"})
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d", calls.Load())
	}
	// Lines are not posted.
	if err := w.Line(context.Background(), "x"); err != nil || calls.Load() != 2 {
		t.Fatal("line reached the webhook")
	}
}

func TestWebhookDoesNotRetryRejection(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("User-Agent") != "hcbot" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	err := w.Outcome(context.Background(), record.CaseOutcome{Case: "1/2024"})
	if err == nil || !strings.Contains(err.Error(), "outcome rejected: status 422") {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestDirSuffixesDuplicates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "orders")
	d := NewDir(dir)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		res := record.FetchResult{Label: "508/1999", Data: []byte{'%', 'P', 'D', 'F', byte('0' + i)}}
		if err := d.Result(ctx, res); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{"508_1999.pdf", "508_1999_2.pdf", "508_1999_3.pdf"}
	saved := d.Saved()
	if len(saved) != len(want) {
		t.Fatalf("saved = %v", saved)
	}
	for i, name := range want {
		if filepath.Base(saved[i]) != name {
			t.Errorf("saved[%d] = %s, want %s", i, saved[i], name)
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if data[4] != byte('0'+i) {
			t.Errorf("%s has wrong content", name)
		}
	}
}
