// Package store keeps located anchors so a job can skip the locate pass on
// later runs and fall back through several candidates in order.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/hazyhaar/domtrail/domtrail/locate"
	"github.com/hazyhaar/domtrail/domtrail/tree"
	"github.com/hazyhaar/domtrail/idgen"
)

// ErrNoAnchor is returned by Get for an unknown id.
var ErrNoAnchor = errors.New("store: no such anchor")

// Anchor is a stored fork for a named job.
type Anchor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Upper     tree.Path `json:"upper_idx"`
	Lower     tree.Path `json:"lower_idx"`
	CreatedAt int64     `json:"created_at"` // epoch milliseconds
}

// FromFork builds an unsaved anchor.
func FromFork(name string, f locate.Fork) Anchor {
	return Anchor{Name: name, Upper: f.Upper.Clone(), Lower: f.Lower.Clone()}
}

// Store persists anchors. List returns the anchors of one job, newest
// first, which is the order a runner tries them in.
type Store interface {
	Put(ctx context.Context, a Anchor) (Anchor, error)
	List(ctx context.Context, name string) ([]Anchor, error)
	Get(ctx context.Context, id string) (Anchor, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// stamp fills ID and CreatedAt when they are unset.
func stamp(a Anchor, newID idgen.Generator, now func() time.Time) Anchor {
	if a.ID == "" {
		a.ID = newID()
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = now().UnixMilli()
	}
	if a.Upper == nil {
		a.Upper = tree.Path{}
	}
	if a.Lower == nil {
		a.Lower = tree.Path{}
	}
	return a
}
