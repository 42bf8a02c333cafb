package sink

import (
	"context"

	"github.com/hazyhaar/domtrail/domtrail/result"
)

// DeliveryFunc is called for each delivery.
type DeliveryFunc func(ctx context.Context, d result.Delivery) error

// LocatedFunc is called for each locate pass.
type LocatedFunc func(ctx context.Context, l result.Located) error

// FailureFunc is called for each failed job.
type FailureFunc func(ctx context.Context, f result.Failure) error

// Callback delivers results through Go function calls, for hosts that embed
// the runner in the same binary.
type Callback struct {
	onDelivery DeliveryFunc
	onLocated  LocatedFunc
	onFailure  FailureFunc
}

// NewCallback creates a Callback sink. Any handler may be nil.
func NewCallback(onDelivery DeliveryFunc, onLocated LocatedFunc, onFailure FailureFunc) *Callback {
	return &Callback{onDelivery: onDelivery, onLocated: onLocated, onFailure: onFailure}
}

func (c *Callback) Send(ctx context.Context, d result.Delivery) error {
	if c.onDelivery != nil {
		return c.onDelivery(ctx, d)
	}
	return nil
}

func (c *Callback) SendLocated(ctx context.Context, l result.Located) error {
	if c.onLocated != nil {
		return c.onLocated(ctx, l)
	}
	return nil
}

func (c *Callback) SendFailure(ctx context.Context, f result.Failure) error {
	if c.onFailure != nil {
		return c.onFailure(ctx, f)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
