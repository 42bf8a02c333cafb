package browser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/domtrail/domtrail/extract"
	"github.com/hazyhaar/domtrail/domtrail/poll"
	"github.com/hazyhaar/domtrail/domtrail/tree"
)

func TestParseStealth(t *testing.T) {
	cases := map[string]StealthLevel{"": LevelHeadless, "plain": LevelPlain, "headless": LevelHeadless, "headful": LevelHeadful}
	for in, want := range cases {
		got, err := ParseStealth(in)
		if err != nil || got != want {
			t.Errorf("ParseStealth(%q): got (%v, %v), want %v", in, got, err, want)
		}
	}
	if _, err := ParseStealth("ghost"); err == nil {
		t.Error("unknown mode: want error")
	}
}

func TestResourceName(t *testing.T) {
	block := blockSet([]string{"Images", " fonts", "media"})
	cases := []struct {
		typ  proto.NetworkResourceType
		want bool
	}{
		{proto.NetworkResourceTypeImage, true},
		{proto.NetworkResourceTypeFont, true},
		{proto.NetworkResourceTypeMedia, true},
		{proto.NetworkResourceTypeStylesheet, false},
		{proto.NetworkResourceTypeDocument, false},
		{proto.NetworkResourceTypeXHR, false},
	}
	for _, tc := range cases {
		if got := block[resourceName(tc.typ)]; got != tc.want {
			t.Errorf("%s: blocked=%v, want %v", tc.typ, got, tc.want)
		}
	}
}

func TestSnapshotScript(t *testing.T) {
	for _, want := range []string{"document.body", "innerText", "innerHTML", "childNodes", "JSON.stringify"} {
		if !strings.Contains(snapshotJS, want) {
			t.Errorf("snapshot.js does not reference %s", want)
		}
	}
	for _, want := range []string{"document.body", "innerText", "childNodes", "awaitText", "JSON.stringify"} {
		if !strings.Contains(locateJS, want) {
			t.Errorf("locate.js does not reference %s", want)
		}
	}
	if strings.Contains(locateJS, "innerHTML") {
		t.Error("locate.js must not ship markup")
	}
	for name, js := range map[string]string{"snapshot.js": snapshotJS, "locate.js": locateJS} {
		if !strings.HasPrefix(js, "(") {
			t.Errorf("%s must start with the function expression", name)
		}
	}
}

func TestSource_LocateTexts(t *testing.T) {
	var gotArgs []any
	answer := `[[1,0,1],null]`
	src := &Source{eval: func(_ context.Context, js string, args ...any) (string, bool, error) {
		if js != locateJS {
			t.Fatal("LocateTexts must evaluate locate.js")
		}
		gotArgs = args
		return answer, true, nil
	}}
	ctx := context.Background()

	paths, ok, err := src.LocateTexts(ctx, []string{"m1", "m0"}, "m0")
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
	if !paths[0].Equal(tree.Path{1, 0, 1}) || paths[1] != nil {
		t.Errorf("paths: got %v", paths)
	}
	if texts := gotArgs[0].([]string); len(texts) != 2 || gotArgs[1].(string) != "m0" {
		t.Errorf("args: got %v", gotArgs)
	}

	answer = "null"
	if _, ok, err := src.LocateTexts(ctx, []string{"m1", "m0"}, "m0"); ok || err != nil {
		t.Errorf("await not rendered: got ok=%v err=%v", ok, err)
	}

	answer = `[[0]]`
	if _, _, err := src.LocateTexts(ctx, []string{"m1", "m0"}, ""); err == nil {
		t.Error("path count mismatch: want error")
	}
}

func TestSource_LocatingTicksSkipRoot(t *testing.T) {
	src := &Source{eval: func(_ context.Context, js string, _ ...any) (string, bool, error) {
		if js != locateJS {
			return "", false, errors.New("whole-body snapshot requested")
		}
		return `[[0,1],[0,3]]`, true, nil
	}}
	reg := poll.NewRegistry(nil)
	defer reg.Close()

	found := make(chan []tree.Path, 1)
	task := reg.Start("locate", poll.Locating(src, []string{"m1", "m0"}, "m0", func(p []tree.Path) { found <- p }), poll.Options{Immediate: true})
	if err := task.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p := <-found; !p[0].Equal(tree.Path{0, 1}) {
		t.Errorf("got %v", p)
	}
}

// page fakes the evaluation side: it answers with canned snapshots keyed by
// path and records the arguments it was called with.
type page struct {
	snapshots map[string]string
	calls     []string
	err       error
}

func (p *page) eval(_ context.Context, _ string, args ...any) (string, bool, error) {
	if p.err != nil {
		return "", false, p.err
	}
	path := tree.Path(args[0].([]int))
	p.calls = append(p.calls, path.String())
	raw, ok := p.snapshots[path.String()]
	if !ok {
		return "", false, nil
	}
	return raw, true, nil
}

func TestSource_Root(t *testing.T) {
	p := &page{snapshots: map[string]string{
		"": `{"t":"a\nb","c":[{"t":null},{"t":"a","c":[{"t":null}]},{"t":"b"}]}`,
	}}
	src := &Source{eval: p.eval}
	root, err := src.Root(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if root.Len() != 3 {
		t.Fatalf("Len: got %d", root.Len())
	}
	if _, ok := root.Child(0).Text(); ok {
		t.Error("text node must have no rendered text")
	}
}

func TestSource_ResolvePath(t *testing.T) {
	p := &page{snapshots: map[string]string{
		"2,0": `{"t":"A\nB","h":"...","c":[` +
			`{"t":"A","h":"<a href=\"/x/status/11/\">A</a>"},` +
			`{"t":"B","h":"<a href=\"/x/status/12/\">B</a>"},` +
			`{"t":null}]}`,
	}}
	src := &Source{eval: p.eval, ResolveDepth: DefaultResolveDepth}

	if _, ok, err := src.ResolvePath(context.Background(), tree.Path{9}); ok || err != nil {
		t.Errorf("unresolved path: got ok=%v err=%v", ok, err)
	}

	got := make(chan []extract.Record, 1)
	reg := poll.NewRegistry(nil)
	defer reg.Close()
	task := reg.Start("tab", poll.Extraction(src, tree.Path{2, 0}, &extract.Extractor{Tag: "twtl_v1"}, func(r []extract.Record) { got <- r }), poll.Options{Immediate: true})
	if err := task.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	recs := <-got
	if len(recs) != 2 || recs[0].ID != "11" || recs[1].ID != "12" {
		t.Errorf("records: got %+v", recs)
	}
}

func TestSource_Errors(t *testing.T) {
	boom := errors.New("target closed")
	src := &Source{eval: (&page{err: boom}).eval}
	if _, err := src.Root(context.Background()); !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}

	bad := &Source{eval: (&page{snapshots: map[string]string{"": "{"}}).eval}
	if _, err := bad.Root(context.Background()); err == nil {
		t.Error("malformed snapshot: want error")
	}

	null := &Source{eval: (&page{snapshots: map[string]string{"": "null"}}).eval}
	if n, err := null.Root(context.Background()); err != nil || n != nil {
		t.Errorf("null snapshot: got (%v, %v)", n, err)
	}
}

type closeRecorder struct{ closed int }

func (c *closeRecorder) Close() error { c.closed++; return nil }

func TestManager_CloseDropsRemoteConnection(t *testing.T) {
	conn := &closeRecorder{}
	m := NewManager(Config{RemoteURL: "ws://127.0.0.1:9222/devtools/browser/x"})
	m.conn = conn
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if conn.closed != 1 {
		t.Errorf("connection closed %d times, want 1", conn.closed)
	}
	if _, err := m.Start(context.Background()); err == nil {
		t.Error("Start after Close: want error")
	}
}

func TestManager_UnreachableRemote(t *testing.T) {
	m := NewManager(Config{RemoteURL: "ws://127.0.0.1:1/devtools/browser/x"})
	defer m.Close()
	if _, err := m.Start(context.Background()); err == nil {
		t.Fatal("want connect error")
	}
	if m.Browser() != nil || m.conn != nil {
		t.Error("failed start must leave nothing open")
	}
}
