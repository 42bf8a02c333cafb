package locate

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/hazyhaar/domtrail/domtrail/tree"
)

// maxCandidateLen skips container texts; a near miss on a whole page body
// is not useful in a log line.
const maxCandidateLen = 512

// Nearest returns the rendered text closest to target by edit distance,
// with its distance. It is a diagnostic for "not found": callers log it so
// an operator can see that, say, the page renders "Follow " instead of
// "Follow". ok is false when the tree has no candidate text.
func Nearest(root tree.Node, target string) (text string, dist int, ok bool) {
	if tree.IsNil(root) {
		return "", 0, false
	}
	best := -1
	var walk func(n tree.Node)
	walk = func(n tree.Node) {
		for i := 0; i < n.Len() && best != 0; i++ {
			c := n.Child(i)
			if tree.IsNil(c) {
				continue
			}
			if t, has := c.Text(); has && t != "" && len(t) <= maxCandidateLen {
				d := levenshtein.ComputeDistance(strings.TrimSpace(t), strings.TrimSpace(target))
				if best < 0 || d < best {
					best, text = d, t
				}
			}
			walk(c)
		}
	}
	walk(root)
	if best < 0 {
		return "", 0, false
	}
	return text, best, true
}
