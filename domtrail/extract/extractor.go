// Package extract turns the ready children of an anchored container into
// records.
//
// An Extractor is the pure per-tick step of a polling extraction: given the
// node an anchor resolves to right now, it either reports "not ready" or
// returns every record the node currently offers. It keeps no state between
// calls.
package extract

import (
	"fmt"

	"github.com/hazyhaar/domtrail/domtrail/gate"
	"github.com/hazyhaar/domtrail/domtrail/tree"
)

// Mode selects which children of the anchor become records.
type Mode string

const (
	// ModePrefix takes the contiguous ready prefix counted by gate.CountReady.
	ModePrefix Mode = "prefix"
	// ModeElements takes every child with rendered text, skipping the
	// others, and is ready as soon as the anchor has children.
	ModeElements Mode = "elements"
)

// Extractor configures record extraction. The zero value is usable and
// behaves like the timeline flow without a tag.
type Extractor struct {
	Tag string
	// IDPattern is a regexp with one capture group run over each child's
	// markup. Empty means DefaultIDPattern.
	IDPattern string
	// UnknownID replaces a missing identifier in the text form. Empty means
	// the package placeholder.
	UnknownID string
	// Focus, when set, narrows the anchor to its first child whose text
	// contains this substring before extracting.
	Focus string
	Mode  Mode

	ids *IDMatcher
}

// New validates the configuration and compiles the identifier pattern.
func New(tag, idPattern string, mode Mode) (*Extractor, error) {
	ex := &Extractor{Tag: tag, IDPattern: idPattern, Mode: mode}
	if err := ex.Compile(); err != nil {
		return nil, err
	}
	return ex, nil
}

// Compile prepares the extractor. Attempt calls it lazily, but calling it
// up front surfaces a bad pattern at configuration time.
func (e *Extractor) Compile() error {
	switch e.Mode {
	case "", ModePrefix, ModeElements:
	default:
		return fmt.Errorf("extract: unknown mode %q", e.Mode)
	}
	if e.ids != nil {
		return nil
	}
	m, err := NewIDMatcher(e.IDPattern)
	if err != nil {
		return err
	}
	e.ids = m
	return nil
}

// Attempt runs one extraction over n. ok is false when n is absent or
// nothing is ready yet; the caller retries on a later tick.
func (e *Extractor) Attempt(n tree.Node) (recs []Record, ok bool) {
	if tree.IsNil(n) {
		return nil, false
	}
	if e.ids == nil {
		if err := e.Compile(); err != nil {
			return nil, false
		}
	}
	if e.Focus != "" {
		n = gate.Focus(n, e.Focus)
	}

	if e.Mode == ModeElements {
		return e.elements(n)
	}

	ready := gate.CountReady(n)
	if ready == 0 {
		return nil, false
	}
	recs = make([]Record, 0, ready)
	for i := 0; i < ready; i++ {
		recs = append(recs, e.record(n.Child(i), i))
	}
	return recs, true
}

func (e *Extractor) elements(n tree.Node) ([]Record, bool) {
	cnt := n.Len()
	if cnt == 0 {
		return nil, false
	}
	recs := make([]Record, 0, cnt)
	for i := 0; i < cnt; i++ {
		c := n.Child(i)
		if !tree.HasText(c) {
			continue
		}
		recs = append(recs, e.record(c, i))
	}
	return recs, true
}

func (e *Extractor) record(c tree.Node, idx int) Record {
	text, _ := c.Text()
	r := Record{Tag: e.Tag, Text: text, Index: idx}
	if id, ok := e.ids.Match(c.Markup()); ok {
		r.ID, r.HasID = id, true
	}
	return r
}

// Lines renders every record with Render.
func (e *Extractor) Lines(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = e.Render(r)
	}
	return out
}

// Render is Record.String with this extractor's placeholder.
func (e *Extractor) Render(r Record) string {
	if !r.HasID && e.UnknownID != "" {
		return r.Tag + Sep + e.UnknownID + Sep + r.Text
	}
	return r.String()
}
