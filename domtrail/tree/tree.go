// Package tree defines the read-only view of a rendered document that the
// locator, the gate and the poller operate on.
//
// A tree is owned by someone else (a browser tab, a parsed HTML file, a test
// fixture) and may grow between two reads. Nothing in domtrail mutates it or
// keeps node references across reads.
package tree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Node is one node of an external tree.
type Node interface {
	// Len is the number of child slots, including absent ones.
	Len() int
	// Child returns the i-th child, or nil when the slot is out of range or
	// empty.
	Child(i int) Node
	// Text returns the rendered text. ok is false when the node has no
	// renderable text (text nodes, comments, detached containers).
	Text() (text string, ok bool)
	// Markup returns the raw inner markup of the node, "" when unknown.
	Markup() string
}

// ErrBadPath is returned when a textual path cannot be parsed.
var ErrBadPath = errors.New("tree: bad path")

// Path is a sequence of child indices from a designated root.
type Path []int

// Clone returns an independent copy of p. A nil path stays nil.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Equal reports whether p and o hold the same indices.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders the path as "2,0,1".
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ",")
}

// Expr renders the path as the equivalent DOM expression, e.g.
// "document.body.childNodes[2].childNodes[0]". Useful in logs.
func (p Path) Expr() string {
	var b strings.Builder
	b.WriteString("document.body")
	for _, idx := range p {
		fmt.Fprintf(&b, ".childNodes[%d]", idx)
	}
	return b.String()
}

// ParsePath parses "2,0,1" (spaces and surrounding brackets allowed).
// The empty string yields an empty, non-nil path.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	p := Path{}
	if strings.TrimSpace(s) == "" {
		return p, nil
	}
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %q", ErrBadPath, s)
		}
		p = append(p, n)
	}
	return p, nil
}

// Resolve walks p from root. It stops and returns ok=false as soon as an
// index is out of range or a slot along the way is empty; it never panics.
// The empty path resolves to root itself.
func Resolve(root Node, p Path) (Node, bool) {
	cur := root
	for _, idx := range p {
		if isNil(cur) {
			return nil, false
		}
		if idx < 0 || idx >= cur.Len() {
			return nil, false
		}
		cur = cur.Child(idx)
	}
	if isNil(cur) {
		return nil, false
	}
	return cur, true
}

// HasText is shorthand for the presence half of Node.Text.
func HasText(n Node) bool {
	if isNil(n) {
		return false
	}
	_, ok := n.Text()
	return ok
}

// isNil catches both a nil interface and a typed nil pointer hidden in one.
func isNil(n Node) bool {
	if n == nil {
		return true
	}
	if z, ok := n.(interface{ isZero() bool }); ok {
		return z.isZero()
	}
	return false
}

// IsNil reports whether n is absent, including typed nil nodes from this
// package.
func IsNil(n Node) bool { return isNil(n) }
