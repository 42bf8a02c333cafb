// Package locate finds nodes by their rendered text and turns their
// positions into replayable index paths.
//
// Matching is exact equality on the whole rendered text of a node. The walk
// is depth-first, pre-order, index-ascending; the root itself is never
// compared, so every returned path has at least one element.
package locate

import (
	"errors"

	"github.com/hazyhaar/domtrail/domtrail/tree"
)

var (
	// ErrNotFound means no node in the tree renders the target text.
	ErrNotFound = errors.New("locate: not found")
	// ErrIncompatible means two paths of different depth were given to Split.
	ErrIncompatible = errors.New("locate: paths have different lengths")
	// ErrSuffixMismatch means the residual suffixes after the fork differ.
	ErrSuffixMismatch = errors.New("locate: lower suffixes differ")
)

// Locate returns the path of the first node whose text equals text.
func Locate(root tree.Node, text string) (tree.Path, error) {
	paths := LocateAll(root, text)
	if paths[0] == nil {
		return nil, ErrNotFound
	}
	return paths[0], nil
}

// LocatePair searches for two texts in one pass. Either side may be nil when
// its text was not found; ErrNotFound is returned only when both are missing.
func LocatePair(root tree.Node, text1, text2 string) (p1, p2 tree.Path, err error) {
	paths := LocateAll(root, text1, text2)
	if paths[0] == nil && paths[1] == nil {
		return nil, nil, ErrNotFound
	}
	return paths[0], paths[1], nil
}

// LocateAll searches for every text in a single traversal and returns one
// path per text, in argument order; nil marks a text that was not found.
// Each target keeps its first match. A matched node is still descended into
// while other targets are pending.
func LocateAll(root tree.Node, texts ...string) []tree.Path {
	s := &search{
		texts: texts,
		found: make([]tree.Path, len(texts)),
		left:  len(texts),
	}
	if s.left == 0 || tree.IsNil(root) {
		return s.found
	}
	s.walk(root, make(tree.Path, 0, 16))
	return s.found
}

type search struct {
	texts []string
	found []tree.Path
	left  int
}

// walk visits the children of n. route is the path to n and is reused as a
// stack; matches are cloned out of it.
func (s *search) walk(n tree.Node, route tree.Path) {
	cnt := n.Len()
	for i := 0; i < cnt && s.left > 0; i++ {
		c := n.Child(i)
		if tree.IsNil(c) {
			continue
		}
		route = append(route, i)
		if txt, ok := c.Text(); ok {
			s.match(txt, route)
		}
		if s.left > 0 {
			s.walk(c, route)
		}
		route = route[:len(route)-1]
	}
}

func (s *search) match(txt string, route tree.Path) {
	for k, want := range s.texts {
		if s.found[k] != nil || txt != want {
			continue
		}
		s.found[k] = route.Clone()
		s.left--
	}
}
