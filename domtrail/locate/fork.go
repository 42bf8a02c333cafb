package locate

import "github.com/hazyhaar/domtrail/domtrail/tree"

// Fork is the split of two equal-length paths at their first divergence.
//
// Upper addresses the container both targets share. Lower is the residual
// suffix of the first path after the fork index; it is kept as a template
// for walking sibling items under Upper, not for resolving the first target.
// The index at the fork itself belongs to neither part.
type Fork struct {
	Upper tree.Path `json:"upper_idx"`
	Lower tree.Path `json:"lower_idx"`
	// Index is the fork position, -1 when both paths are identical.
	Index int `json:"fork_idx"`
	// Agree reports whether the second path's suffix equals Lower.
	Agree bool `json:"agree"`
}

// Split finds the first index at which p1 and p2 differ and splits around
// it. Paths of different lengths return ErrIncompatible. Identical paths
// give Upper = p1, empty Lower and Index = -1.
func Split(p1, p2 tree.Path) (Fork, error) {
	if len(p1) != len(p2) {
		return Fork{}, ErrIncompatible
	}

	at := -1
	for i := range p1 {
		if p1[i] != p2[i] {
			at = i
			break
		}
	}

	if at == -1 {
		return Fork{Upper: p1.Clone(), Lower: tree.Path{}, Index: -1, Agree: true}, nil
	}

	lower := append(tree.Path{}, p1[at+1:]...)
	return Fork{
		Upper: append(tree.Path{}, p1[:at]...),
		Lower: lower,
		Index: at,
		Agree: lower.Equal(p2[at+1:]),
	}, nil
}

// SplitStrict is Split, but refuses forks whose two lower suffixes differ.
func SplitStrict(p1, p2 tree.Path) (Fork, error) {
	f, err := Split(p1, p2)
	if err != nil {
		return f, err
	}
	if !f.Agree {
		return f, ErrSuffixMismatch
	}
	return f, nil
}
