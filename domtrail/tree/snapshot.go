package tree

import (
	"encoding/json"
	"fmt"
)

// Decode parses a serialised subtree into Mem nodes. The format is the one
// produced by the browser walker:
//
//	{"t": "rendered text" | null, "h": "inner markup", "c": [child | null, ...]}
//
// A JSON null at the top level decodes to a nil *Mem (absent node).
func Decode(data []byte) (*Mem, error) {
	var m *Mem
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("tree: decode snapshot: %w", err)
	}
	return m, nil
}

// Encode serialises a Mem subtree into the snapshot format.
func Encode(m *Mem) ([]byte, error) {
	return json.Marshal(m)
}

// Copy deep-copies any Node into a Mem tree, up to depth levels below n
// (depth < 0 means unlimited). Useful to freeze a live view for diagnostics.
func Copy(n Node, depth int) *Mem {
	if isNil(n) {
		return nil
	}
	out := &Mem{HTML: n.Markup()}
	if t, ok := n.Text(); ok {
		out.Txt = &t
	}
	if depth == 0 {
		return out
	}
	cnt := n.Len()
	out.Kids = make([]*Mem, cnt)
	for i := 0; i < cnt; i++ {
		out.Kids[i] = Copy(n.Child(i), depth-1)
	}
	return out
}
