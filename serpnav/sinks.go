package serpnav

import (
	"context"
	"io"
	"log/slog"

	"github.com/hazyhaar/navkit/serpnav/internal/sink"
)

// Sink is the output interface for diagnostic events.
type Sink = sink.Sink

// Event is one diagnostic record.
type Event = sink.Event

// Event types.
const (
	EventScan    = sink.TypeScan
	EventFocus   = sink.TypeFocus
	EventCommand = sink.TypeCommand
)

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process callback sink.
func NewCallbackSink(fn func(ctx context.Context, ev Event) error) Sink {
	return sink.NewCallback(fn)
}

// BuildSinks creates the sinks named in cfg, falling back to stdout when
// none is configured.
func BuildSinks(cfg []SinkConfig, logger *slog.Logger) []Sink {
	var sinks []Sink
	for _, sc := range cfg {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, NewStdoutSink(nil))
		case "webhook":
			sinks = append(sinks, NewWebhookSink(sc.URL, logger))
		default:
			logger.Warn("serpnav: unknown sink type", "type", sc.Type)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, NewStdoutSink(nil))
	}
	return sinks
}

// ScanData is the payload of a scan event.
type ScanData struct {
	Reason   string         `json:"reason"`
	Attempt  int            `json:"attempt"`
	Ready    bool           `json:"ready"`
	Entries  int            `json:"entries"`
	Counts   map[string]int `json:"counts,omitempty"`
	Index    int            `json:"index"`
	Failures []string       `json:"failures,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// FocusData is the payload of a focus event.
type FocusData struct {
	Index    int    `json:"index"`
	Href     string `json:"href,omitempty"`
	Category string `json:"category,omitempty"`
}

// CommandData is the payload of a command event.
type CommandData struct {
	Command string `json:"command"`
	Key     string `json:"key"`
	// Handled is false when the command found nothing to act on.
	Handled bool `json:"handled"`
}
