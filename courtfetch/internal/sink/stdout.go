package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/hcbot/courtfetch/record"
)

// Stdout writes JSON lines to an io.Writer (default os.Stdout). Document
// bytes are never written, only their metadata.
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

func (s *Stdout) write(typ string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: typ, Data: data})
}

func (s *Stdout) Line(_ context.Context, line string) error {
	return s.write("line", line)
}

func (s *Stdout) Result(_ context.Context, res record.FetchResult) error {
	return s.write("result", res)
}

func (s *Stdout) Outcome(_ context.Context, out record.CaseOutcome) error {
	return s.write("outcome", out)
}

func (s *Stdout) Summary(_ context.Context, sum *record.RunSummary) error {
	return s.write("summary", sum)
}

func (s *Stdout) Close() error { return nil }
