package htmltree

import (
	"strings"
	"testing"

	"github.com/hazyhaar/domtrail/domtrail/extract"
	"github.com/hazyhaar/domtrail/domtrail/locate"
	"github.com/hazyhaar/domtrail/domtrail/tree"
)

const timeline = `<!DOCTYPE html>
<html><head><title>t</title><script>var x = "__________1__________";</script></head>
<body><nav>Home</nav><main><section>` +
	`<article><a href="/ann/status/101/">Ann</a><p>first post</p></article>` +
	`<article><span>__________1__________</span></article>` +
	`<article><a href="/bob/status/102/">Bob</a><p>second post</p></article>` +
	`<article><span>__________0__________</span></article>` +
	`</section></main></body></html>`

func TestParse_ChildNodesIncludeText(t *testing.T) {
	root, err := ParseString(`<html><body><div>x</div>
<div>y</div><!-- c --></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	if root.Len() != 4 {
		t.Fatalf("body childNodes: got %d, want 4", root.Len())
	}
	if _, ok := root.Child(1).Text(); ok {
		t.Error("text node must have no rendered text")
	}
	if _, ok := root.Child(3).Text(); ok {
		t.Error("comment node must have no rendered text")
	}
	if txt, ok := root.Child(2).Text(); !ok || txt != "y" {
		t.Errorf("Child(2): got (%q, %v), want (y, true)", txt, ok)
	}
	if root.Child(4) != nil || root.Child(-1) != nil {
		t.Error("out of range child must be nil")
	}
}

func TestInnerText(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"inline collapse", `<div>  hello   <b>big</b>
  world </div>`, "hello big world"},
		{"blocks break lines", `<div><p>one</p><p>two</p></div>`, "one\ntwo"},
		{"br", `<div>a<br>b</div>`, "a\nb"},
		{"script dropped", `<div>a<script>nope()</script><style>p{}</style>b</div>`, "ab"},
		{"hidden dropped", `<div>a<span hidden>x</span><span style="display: none">y</span>b</div>`, "ab"},
		{"trailing space kept before break", `<div><span>Add to word list </span><div>x</div></div>`, "Add to word list \nx"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root, err := ParseString("<body>" + tc.body + "</body>")
			if err != nil {
				t.Fatal(err)
			}
			got, _ := root.Child(0).Text()
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMarkup(t *testing.T) {
	root, err := ParseString(`<body><div id="a"><a href="/x/status/7/">l</a> t</div></body>`)
	if err != nil {
		t.Fatal(err)
	}
	got := root.Child(0).Markup()
	if got != `<a href="/x/status/7/">l</a> t` {
		t.Errorf("got %q", got)
	}
}

func TestTimeline_LocateSplitExtract(t *testing.T) {
	root, err := ParseString(timeline)
	if err != nil {
		t.Fatal(err)
	}
	if txt, _ := root.Text(); !strings.Contains(txt, "__________0__________") {
		t.Fatalf("body text misses the marker: %q", txt)
	}

	p1, p0, err := locate.LocatePair(root, "__________1__________", "__________0__________")
	if err != nil {
		t.Fatal(err)
	}
	if !p1.Equal(tree.Path{1, 0, 1}) || !p0.Equal(tree.Path{1, 0, 3}) {
		t.Fatalf("located %v and %v", p1, p0)
	}

	fork, err := locate.Split(p1, p0)
	if err != nil {
		t.Fatal(err)
	}
	if !fork.Upper.Equal(tree.Path{1, 0}) {
		t.Fatalf("upper: got %v", fork.Upper)
	}

	anchor, ok := tree.Resolve(root, fork.Upper)
	if !ok {
		t.Fatal("anchor does not resolve")
	}
	ex, err := extract.New("twtl_v1", "", extract.ModePrefix)
	if err != nil {
		t.Fatal(err)
	}
	recs, ok := ex.Attempt(anchor)
	if !ok || len(recs) != 4 {
		t.Fatalf("got %d records, ok=%v", len(recs), ok)
	}
	if got := recs[0].String(); got != "twtl_v1\n101\nAnn\nfirst post" {
		t.Errorf("record 0: got %q", got)
	}
	if got := recs[1].String(); got != "twtl_v1\nUNKNOWNID\n__________1__________" {
		t.Errorf("record 1: got %q", got)
	}
}
