package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/domtrail/domtrail/tree"
)

// snapshotJS serialises the subtree of document.body at a path into the
// tree.Decode format: t is innerText (null when the node has none), h is
// the innerHTML of elements when markup is requested, c holds childNodes
// down to a depth (-1 = all). It returns null when the path does not
// resolve. The file must start with the function itself, Rod detects
// function expressions by their first token.
//
//go:embed snapshot.js
var snapshotJS string

// locateJS searches document.body for elements whose innerText equals one
// of the texts, in pre-order, first match per text, body itself excluded.
// It returns the JSON array of paths (null per missing text), or null while
// the body text does not contain awaitText.
//
//go:embed locate.js
var locateJS string

// DefaultResolveDepth covers an anchor, its items, and one level below the
// items, which is what a focus step followed by element extraction reads.
const DefaultResolveDepth = 2

type evalFunc func(ctx context.Context, js string, args ...any) (string, bool, error)

// Source reads the live document of a tab. Every call re-serialises the
// page; nothing is cached between calls.
type Source struct {
	eval evalFunc
	// ResolveDepth is how many levels below a resolved path are copied.
	ResolveDepth int
}

// LocateTexts runs the marker search inside the page, so a locate tick
// transfers paths instead of the whole tree. ok is false while awaitText
// has not rendered.
func (s *Source) LocateTexts(ctx context.Context, texts []string, awaitText string) ([]tree.Path, bool, error) {
	raw, ok, err := s.eval(ctx, locateJS, texts, awaitText)
	if err != nil {
		return nil, false, err
	}
	if !ok || raw == "" || raw == "null" {
		return nil, false, nil
	}
	var paths []tree.Path
	if err := json.Unmarshal([]byte(raw), &paths); err != nil {
		return nil, false, fmt.Errorf("browser: locate: %w", err)
	}
	if len(paths) != len(texts) {
		return nil, false, fmt.Errorf("browser: locate: got %d paths for %d texts", len(paths), len(texts))
	}
	return paths, true, nil
}

// Root serialises the whole body, without markup. It is what diagnostics
// read; locating goes through LocateTexts.
func (s *Source) Root(ctx context.Context) (tree.Node, error) {
	n, ok, err := s.snapshot(ctx, tree.Path{}, -1, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return n, nil
}

// ResolvePath walks p inside the page and returns the subtree found there,
// with markup, ResolveDepth levels deep.
func (s *Source) ResolvePath(ctx context.Context, p tree.Path) (tree.Node, bool, error) {
	n, ok, err := s.snapshot(ctx, p, s.ResolveDepth, true)
	if err != nil || !ok {
		return nil, false, err
	}
	return n, true, nil
}

func (s *Source) snapshot(ctx context.Context, p tree.Path, depth int, markup bool) (*tree.Mem, bool, error) {
	if p == nil {
		p = tree.Path{}
	}
	raw, ok, err := s.eval(ctx, snapshotJS, []int(p), depth, markup)
	if err != nil {
		return nil, false, err
	}
	if !ok || raw == "" {
		return nil, false, nil
	}
	n, err := tree.Decode([]byte(raw))
	if err != nil {
		return nil, false, fmt.Errorf("browser: %w", err)
	}
	if n == nil {
		return nil, false, nil
	}
	return n, true, nil
}
