package courtfetch

import (
	"io"
	"log/slog"

	"github.com/hazyhaar/hcbot/courtfetch/internal/sink"
)

// Sink is the output interface for a run.
type Sink = sink.Sink

// Callbacks groups in-process handlers; any may be nil.
type Callbacks = sink.Callbacks

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process callback sink.
func NewCallbackSink(fns Callbacks) Sink {
	return sink.NewCallback(fns)
}

// NewDirSink writes every fetched document under dir.
func NewDirSink(dir string) Sink {
	return sink.NewDir(dir)
}

// SinksFromConfig builds the sinks listed in cfg.Sinks.
func SinksFromConfig(cfg *Config, w io.Writer, logger *slog.Logger) []Sink {
	var out []Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			out = append(out, NewStdoutSink(w))
		case "webhook":
			out = append(out, NewWebhookSink(sc.URL, logger))
		}
	}
	return out
}
