package tree

// Mem is an in-memory node, used for fixtures and for trees decoded from a
// snapshot. A nil *Mem is an absent node.
type Mem struct {
	// Txt is the rendered text; nil means "no renderable text".
	Txt  *string `json:"t"`
	HTML string  `json:"h,omitempty"`
	Kids []*Mem  `json:"c,omitempty"`
}

// Elem builds a node with rendered text.
func Elem(text string, kids ...*Mem) *Mem {
	return &Mem{Txt: &text, Kids: kids}
}

// Blank builds a node without renderable text.
func Blank(kids ...*Mem) *Mem {
	return &Mem{Kids: kids}
}

// WithHTML sets the markup and returns m.
func (m *Mem) WithHTML(h string) *Mem {
	m.HTML = h
	return m
}

func (m *Mem) isZero() bool { return m == nil }

func (m *Mem) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Kids)
}

func (m *Mem) Child(i int) Node {
	if m == nil || i < 0 || i >= len(m.Kids) || m.Kids[i] == nil {
		return nil
	}
	return m.Kids[i]
}

func (m *Mem) Text() (string, bool) {
	if m == nil || m.Txt == nil {
		return "", false
	}
	return *m.Txt, true
}

func (m *Mem) Markup() string {
	if m == nil {
		return ""
	}
	return m.HTML
}
