// Package result defines what domtrail emits. These types are the public
// contract: sinks serialise them and downstream consumers import this
// package to read them back.
package result

import (
	"github.com/hazyhaar/domtrail/domtrail/extract"
	"github.com/hazyhaar/domtrail/domtrail/locate"
	"github.com/hazyhaar/domtrail/domtrail/tree"
)

// Delivery is the outcome of one successful polling extraction.
type Delivery struct {
	ID        string           `json:"id"` // UUIDv7
	Job       string           `json:"job"`
	PageURL   string           `json:"page_url"`
	AnchorID  string           `json:"anchor_id,omitempty"`
	Upper     tree.Path        `json:"upper_idx"`
	Records   []extract.Record `json:"records"`
	Lines     []string         `json:"lines"` // records rendered with the job's placeholder
	Attempts  int              `json:"attempts"`
	Hash      string           `json:"hash"`      // SHA-256 of Lines
	Partial   bool             `json:"partial"`   // earlier anchors gave up before this one
	Timestamp int64            `json:"timestamp"` // epoch milliseconds
}

// Located is the outcome of a locate pass: the raw paths of every target
// and, for two targets, the fork computed from them.
type Located struct {
	Job       string       `json:"job"`
	PageURL   string       `json:"page_url"`
	Texts     []string     `json:"texts"`
	Paths     []tree.Path  `json:"paths"`
	Fork      *locate.Fork `json:"fork,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// Failure reports a job that produced nothing.
type Failure struct {
	Job       string `json:"job"`
	PageURL   string `json:"page_url"`
	Stage     string `json:"stage"` // "locate" or "extract"
	Error     string `json:"error"`
	Anchors   int    `json:"anchors"` // how many anchors were tried
	Timestamp int64  `json:"timestamp"`
}
