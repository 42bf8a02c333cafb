package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/domtrail/domtrail/tree"
)

func item(text, href string) *tree.Mem {
	n := tree.Elem(text)
	if href != "" {
		n.WithHTML(`<div><a href="` + href + `">link</a></div>`)
	}
	return n
}

func TestIDMatcher(t *testing.T) {
	m := MustIDMatcher("")
	cases := []struct {
		markup string
		id     string
		ok     bool
	}{
		{`<a href="/bob/status/1234567/photo/1">`, "1234567", true},
		{`<a href="/bob/status/12/">x</a><a href="/ann/status/99/">`, "12", true},
		{`<a href="/bob/status/abc/">`, "", false},
		{`<a href="/bob/status/123">`, "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		id, ok := m.Match(tc.markup)
		if id != tc.id || ok != tc.ok {
			t.Errorf("Match(%q): got (%q, %v), want (%q, %v)", tc.markup, id, ok, tc.id, tc.ok)
		}
	}
}

func TestNewIDMatcher_Groups(t *testing.T) {
	if _, err := NewIDMatcher(`/status/[0-9]+/`); err == nil {
		t.Error("pattern without group: want error")
	}
	if _, err := NewIDMatcher(`(a)(b)`); err == nil {
		t.Error("pattern with two groups: want error")
	}
	if _, err := NewIDMatcher(`(`); err == nil {
		t.Error("invalid pattern: want error")
	}
	m, err := NewIDMatcher(`data-id="(\w+)"`)
	if err != nil {
		t.Fatal(err)
	}
	if id, ok := m.Match(`<li data-id="k9">`); !ok || id != "k9" {
		t.Errorf("got (%q, %v)", id, ok)
	}
}

func TestRecordString(t *testing.T) {
	r := Record{Tag: "twtl_v1", ID: "42", HasID: true, Text: "hello\nworld"}
	if got, want := r.String(), "twtl_v1\n42\nhello\nworld"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	r = Record{Tag: "twtl_v1", Text: "no link"}
	if got, want := r.String(), "twtl_v1\nUNKNOWNID\nno link"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseRecord(t *testing.T) {
	r, err := ParseRecord("twtl_v1\n42\nline one\nline two")
	if err != nil {
		t.Fatal(err)
	}
	if r.Tag != "twtl_v1" || r.ID != "42" || !r.HasID || r.Text != "line one\nline two" {
		t.Errorf("got %+v", r)
	}

	r, err = ParseRecord("twtl_v1\nUNKNOWNID\n")
	if err != nil {
		t.Fatal(err)
	}
	if r.HasID || r.ID != "" || r.Text != "" {
		t.Errorf("placeholder: got %+v", r)
	}

	for _, bad := range []string{"", "only-tag", "tag\nid-without-text", "\n1\nx"} {
		if _, err := ParseRecord(bad); !errors.Is(err, ErrBadRecord) {
			t.Errorf("ParseRecord(%q): got %v, want ErrBadRecord", bad, err)
		}
	}
}

func TestAttempt_Prefix(t *testing.T) {
	a := item("A", "/x/status/1/")
	b := item("B", "")
	anchor := tree.Blank(a, b, tree.Blank())

	ex, err := New("twtl_v1", "", ModePrefix)
	if err != nil {
		t.Fatal(err)
	}
	recs, ok := ex.Attempt(anchor)
	if !ok {
		t.Fatal("Attempt: not ready")
	}
	got := Strings(recs)
	want := []string{"twtl_v1\n1\nA", "twtl_v1\nUNKNOWNID\nB"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", got, want)
	}

	// C renders into the third slot.
	anchor.Kids[2] = item("C", "/x/status/3/")
	recs, ok = ex.Attempt(anchor)
	if !ok || len(recs) != 3 {
		t.Fatalf("after render: got %d records, ok=%v", len(recs), ok)
	}
	if recs[2].ID != "3" || recs[2].Index != 2 {
		t.Errorf("third record: got %+v", recs[2])
	}
}

func TestAttempt_NotReady(t *testing.T) {
	var ex Extractor
	if _, ok := ex.Attempt(nil); ok {
		t.Error("nil node: want not ready")
	}
	if _, ok := ex.Attempt(tree.Blank()); ok {
		t.Error("no children: want not ready")
	}
	if _, ok := ex.Attempt(tree.Blank(tree.Blank(), tree.Elem("late"))); ok {
		t.Error("leading gap: want not ready")
	}
}

func TestAttempt_Elements(t *testing.T) {
	anchor := tree.Blank(
		tree.Elem("header"),
		tree.Blank(),
		tree.Elem("sense one"),
		nil,
		tree.Elem("sense two"),
	)
	ex := &Extractor{Mode: ModeElements}
	recs, ok := ex.Attempt(anchor)
	if !ok {
		t.Fatal("not ready")
	}
	if got, want := Join(recs, "______"), "______header______sense one______sense two"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if recs[1].Index != 2 {
		t.Errorf("index: got %d, want 2", recs[1].Index)
	}
}

func TestAttempt_Focus(t *testing.T) {
	entry := tree.Blank(
		tree.Elem("ad"),
		tree.Elem("run\nAdd to word list \nto move fast", tree.Elem("to move fast"), tree.Elem("a run")),
	)
	ex := &Extractor{Mode: ModeElements, Focus: "\nAdd to word list \n"}
	recs, ok := ex.Attempt(entry)
	if !ok {
		t.Fatal("not ready")
	}
	if len(recs) != 2 || recs[0].Text != "to move fast" {
		t.Errorf("got %+v", recs)
	}
}

func TestExtractor_BadConfig(t *testing.T) {
	if _, err := New("t", "", "sideways"); err == nil {
		t.Error("unknown mode: want error")
	}
	if _, err := New("t", "no-group", ModePrefix); err == nil {
		t.Error("pattern without group: want error")
	}
}

func TestLines(t *testing.T) {
	ex := &Extractor{UnknownID: "NOID"}
	got := ex.Lines([]Record{{Tag: "t", Text: "a"}, {Tag: "t", ID: "2", HasID: true, Text: "b"}})
	if len(got) != 2 || got[0] != "t\nNOID\na" || got[1] != "t\n2\nb" {
		t.Errorf("got %q", got)
	}
}

func TestRender_CustomPlaceholder(t *testing.T) {
	ex := &Extractor{UnknownID: "-"}
	if got := ex.Render(Record{Tag: "t", Text: "x"}); got != "t\n-\nx" {
		t.Errorf("got %q", got)
	}
	if got := ex.Render(Record{Tag: "t", ID: "7", HasID: true, Text: "x"}); got != "t\n7\nx" {
		t.Errorf("got %q", got)
	}
}
