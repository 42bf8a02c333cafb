package poll

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/domtrail/domtrail/extract"
	"github.com/hazyhaar/domtrail/domtrail/locate"
	"github.com/hazyhaar/domtrail/domtrail/tree"
)

// Source yields the current root of a live tree. It is called on every
// attempt; implementations must not hand back a cached tree.
type Source interface {
	Root(ctx context.Context) (tree.Node, error)
}

// PathResolver is implemented by sources that can resolve a path on their
// side, without materialising the whole tree.
type PathResolver interface {
	ResolvePath(ctx context.Context, p tree.Path) (tree.Node, bool, error)
}

// TextLocator is implemented by sources that can search for texts on their
// side. It follows locate.LocateAll: one path per text in argument order,
// nil when missing. ok is false while awaitText has not rendered.
type TextLocator interface {
	LocateTexts(ctx context.Context, texts []string, awaitText string) ([]tree.Path, bool, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (tree.Node, error)

func (f SourceFunc) Root(ctx context.Context) (tree.Node, error) { return f(ctx) }

// Static is a Source over a tree that does not change, such as a parsed
// HTML file.
func Static(root tree.Node) Source {
	return SourceFunc(func(context.Context) (tree.Node, error) { return root, nil })
}

// Resolve resolves p against src, preferring PathResolver.
func Resolve(ctx context.Context, src Source, p tree.Path) (tree.Node, bool, error) {
	if r, ok := src.(PathResolver); ok {
		return r.ResolvePath(ctx, p)
	}
	root, err := src.Root(ctx)
	if err != nil {
		return nil, false, err
	}
	n, ok := tree.Resolve(root, p)
	return n, ok, nil
}

// Extraction resolves anchor on every attempt and hands the extractor's
// records to onReady once something is ready.
func Extraction(src Source, anchor tree.Path, ex *extract.Extractor, onReady func([]extract.Record)) Job {
	anchor = anchor.Clone()
	return func(ctx context.Context) (func(), error) {
		n, ok, err := Resolve(ctx, src, anchor)
		if err != nil {
			return nil, fmt.Errorf("poll: resolve %s: %w", anchor, err)
		}
		if !ok {
			return nil, nil
		}
		recs, ready := ex.Attempt(n)
		if !ready {
			return nil, nil
		}
		return func() { onReady(recs) }, nil
	}
}

// Locating waits until the root's rendered text contains await (skipped
// when await is empty), then searches for every text in one pass. It
// delivers only once all texts were found, paths in argument order.
// Sources implementing TextLocator do the search themselves.
func Locating(src Source, texts []string, await string, onFound func([]tree.Path)) Job {
	texts = append([]string(nil), texts...)
	return func(ctx context.Context) (func(), error) {
		var paths []tree.Path
		if tl, ok := src.(TextLocator); ok {
			found, ready, err := tl.LocateTexts(ctx, texts, await)
			if err != nil {
				return nil, fmt.Errorf("poll: locate: %w", err)
			}
			if !ready {
				return nil, nil
			}
			paths = found
		} else {
			found, err := locateIn(ctx, src, texts, await)
			if err != nil || found == nil {
				return nil, err
			}
			paths = found
		}
		for _, p := range paths {
			if p == nil {
				return nil, nil
			}
		}
		return func() { onFound(paths) }, nil
	}
}

func locateIn(ctx context.Context, src Source, texts []string, await string) ([]tree.Path, error) {
	root, err := src.Root(ctx)
	if err != nil {
		return nil, fmt.Errorf("poll: read root: %w", err)
	}
	if tree.IsNil(root) {
		return nil, nil
	}
	if await != "" {
		txt, ok := root.Text()
		if !ok || !strings.Contains(txt, await) {
			return nil, nil
		}
	}
	return locate.LocateAll(root, texts...), nil
}
