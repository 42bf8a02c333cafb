package extract

import (
	"fmt"
	"regexp"
)

// DefaultIDPattern matches a numeric id inside a link such as
// href="/someone/status/1712345678901234567/photo/1".
const DefaultIDPattern = `/status/([0-9]+)/`

// IDMatcher pulls one identifier out of raw markup. The pattern must have
// exactly one capture group; the captured text is the identifier.
type IDMatcher struct {
	re *regexp.Regexp
}

// NewIDMatcher compiles pattern. An empty pattern uses DefaultIDPattern.
func NewIDMatcher(pattern string) (*IDMatcher, error) {
	if pattern == "" {
		pattern = DefaultIDPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("extract: id pattern: %w", err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("extract: id pattern %q: want 1 capture group, got %d", pattern, re.NumSubexp())
	}
	return &IDMatcher{re: re}, nil
}

// MustIDMatcher is NewIDMatcher for patterns known at compile time.
func MustIDMatcher(pattern string) *IDMatcher {
	m, err := NewIDMatcher(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Match returns the first identifier found in markup. ok is false when the
// shape is absent or the capture is empty.
func (m *IDMatcher) Match(markup string) (id string, ok bool) {
	if m == nil || markup == "" {
		return "", false
	}
	sub := m.re.FindStringSubmatch(markup)
	if len(sub) != 2 || sub[1] == "" {
		return "", false
	}
	return sub[1], true
}

// String returns the pattern.
func (m *IDMatcher) String() string {
	if m == nil {
		return ""
	}
	return m.re.String()
}
