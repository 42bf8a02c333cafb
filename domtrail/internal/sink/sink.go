// Package sink defines output backends for domtrail results.
package sink

import (
	"context"

	"github.com/hazyhaar/domtrail/domtrail/result"
)

// Sink is the output interface. Implementations deliver results to a
// backend (stdout, a JSON-lines file, an in-process callback).
type Sink interface {
	Send(ctx context.Context, d result.Delivery) error
	SendLocated(ctx context.Context, l result.Located) error
	SendFailure(ctx context.Context, f result.Failure) error
	Close() error
}
