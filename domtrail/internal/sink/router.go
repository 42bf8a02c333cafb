package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/domtrail/domtrail/result"
)

// Router fans results out to every sink. One failing sink does not stop
// the others; errors are logged and the first one is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) Send(ctx context.Context, d result.Delivery) error {
	return r.each("delivery", func(s Sink) error { return s.Send(ctx, d) })
}

func (r *Router) SendLocated(ctx context.Context, l result.Located) error {
	return r.each("located", func(s Sink) error { return s.SendLocated(ctx, l) })
}

func (r *Router) SendFailure(ctx context.Context, f result.Failure) error {
	return r.each("failure", func(s Sink) error { return s.SendFailure(ctx, f) })
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) each(kind string, send func(Sink) error) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := send(s); err != nil {
			r.logger.Warn("sink: send failed", "kind", kind, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
