// Package gate decides how much of an incrementally rendered container is
// usable right now.
//
// Rendering is assumed to append children in order, so readiness is a
// contiguous prefix: children are counted from index 0 while they carry
// rendered text, and counting stops at the first one that does not. A ready
// child after a gap is never seen.
package gate

import (
	"strings"

	"github.com/hazyhaar/domtrail/domtrail/tree"
)

// CountReady returns the number of leading children of n that have rendered
// text. A nil or childless n is not ready (0). An empty child slot inside the
// prefix means the container is being rebuilt and also yields 0.
func CountReady(n tree.Node) int {
	if tree.IsNil(n) {
		return 0
	}
	cnt := n.Len()
	ready := 0
	for i := 0; i < cnt; i++ {
		c := n.Child(i)
		if tree.IsNil(c) {
			return 0
		}
		if _, ok := c.Text(); !ok {
			return ready
		}
		ready++
	}
	return ready
}

// Focus returns the first child of n whose rendered text contains needle,
// or n itself when needle is empty or no child matches.
func Focus(n tree.Node, needle string) tree.Node {
	if needle == "" || tree.IsNil(n) {
		return n
	}
	for i := 0; i < n.Len(); i++ {
		c := n.Child(i)
		if tree.IsNil(c) {
			continue
		}
		if t, ok := c.Text(); ok && strings.Contains(t, needle) {
			return c
		}
	}
	return n
}
