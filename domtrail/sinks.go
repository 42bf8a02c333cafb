package domtrail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hazyhaar/domtrail/domtrail/internal/sink"
	"github.com/hazyhaar/domtrail/domtrail/result"
)

// Sink is the output interface for domtrail results.
type Sink = sink.Sink

// NewStdoutSink creates a JSON-lines sink on w (stdout when nil).
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewFileSink creates a JSON-lines sink appending to path.
func NewFileSink(path string) (Sink, error) {
	return sink.NewFile(path)
}

// NewCallbackSink creates an in-process sink. Any handler may be nil.
func NewCallbackSink(
	onDelivery func(ctx context.Context, d result.Delivery) error,
	onLocated func(ctx context.Context, l result.Located) error,
	onFailure func(ctx context.Context, f result.Failure) error,
) Sink {
	return sink.NewCallback(onDelivery, onLocated, onFailure)
}

// History is the SQLite sink recording every result.
type History = sink.History

// HistoryFilter narrows History.Query.
type HistoryFilter = sink.HistoryFilter

// HistoryEntry is one recorded result.
type HistoryEntry = sink.HistoryEntry

// OpenHistory opens the history database at path. Entries older than
// retention are dropped on open; 0 keeps everything.
func OpenHistory(path string, retention time.Duration, logger *slog.Logger) (*History, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return sink.OpenHistory(path, sink.WithHistoryLogger(logger), sink.WithRetention(retention))
}

func buildSinks(cfgs []SinkConfig, logger *slog.Logger) ([]Sink, error) {
	var out []Sink
	fail := func(err error) ([]Sink, error) {
		for _, s := range out {
			s.Close()
		}
		return nil, fmt.Errorf("domtrail: %w", err)
	}
	for _, c := range cfgs {
		switch c.Type {
		case "stdout":
			out = append(out, sink.NewStdout(nil))
		case "file":
			f, err := sink.NewFile(c.Path)
			if err != nil {
				return fail(err)
			}
			out = append(out, f)
		case "history":
			h, err := OpenHistory(c.Path, c.Retention, logger)
			if err != nil {
				return fail(err)
			}
			out = append(out, h)
		default:
			return fail(fmt.Errorf("unknown sink type %q", c.Type))
		}
	}
	return out, nil
}
