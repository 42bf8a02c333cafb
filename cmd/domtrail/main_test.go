package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/domtrail/domtrail"
	"github.com/hazyhaar/domtrail/domtrail/locate"
	"github.com/hazyhaar/domtrail/domtrail/result"
	"github.com/hazyhaar/domtrail/domtrail/tree"
)

const page = `<html><body><main><div>` +
	`<article><a href="/a/status/1/">Ann</a></article>` +
	`<article>__________1__________</article>` +
	`<article><a href="/b/status/2/">Bob</a></article>` +
	`<article>__________0__________</article>` +
	`</div></main></body></html>`

func writePage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func decode(t *testing.T, out []byte) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("output %q: %v", out, err)
	}
	return env
}

func TestRunFind(t *testing.T) {
	var out bytes.Buffer
	o := options{htmlPath: writePage(t), find: texts{"__________1__________", "__________0__________"}}
	if err := run(context.Background(), quiet(), &out, o); err != nil {
		t.Fatal(err)
	}
	env := decode(t, out.Bytes())
	if env.Type != "located" {
		t.Fatalf("type: got %q, want located", env.Type)
	}
	loc, err := result.UnmarshalLocated(env.Data)
	if err != nil {
		t.Fatal(err)
	}
	if !loc.Paths[0].Equal(tree.Path{0, 0, 1}) || !loc.Paths[1].Equal(tree.Path{0, 0, 3}) {
		t.Errorf("paths: got %v", loc.Paths)
	}
	if loc.Fork == nil || !loc.Fork.Upper.Equal(tree.Path{0, 0}) {
		t.Errorf("fork: got %+v", loc.Fork)
	}
}

func TestRunFind_Missing(t *testing.T) {
	o := options{htmlPath: writePage(t), find: texts{"Anne"}}
	err := run(context.Background(), quiet(), io.Discard, o)
	if !errors.Is(err, locate.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestRunPath(t *testing.T) {
	var out bytes.Buffer
	o := options{htmlPath: writePage(t), path: "0,0", tag: "twtl_v1", mode: "prefix"}
	if err := run(context.Background(), quiet(), &out, o); err != nil {
		t.Fatal(err)
	}
	env := decode(t, out.Bytes())
	if env.Type != "delivery" {
		t.Fatalf("type: got %q, want delivery", env.Type)
	}
	d, err := result.UnmarshalDelivery(env.Data)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Records) != 4 {
		t.Fatalf("records: got %d, want 4", len(d.Records))
	}
	if got := d.Records[2].String(); got != "twtl_v1\n2\nBob" {
		t.Errorf("record 2: got %q", got)
	}
	if d.Hash != result.HashLines(d.Lines) || d.Lines[2] != "twtl_v1\n2\nBob" {
		t.Error("hash does not match records")
	}
}

func TestRunPath_UnknownID(t *testing.T) {
	var out bytes.Buffer
	o := options{htmlPath: writePage(t), path: "0,0", tag: "t", unknownID: "-", mode: "prefix"}
	if err := run(context.Background(), quiet(), &out, o); err != nil {
		t.Fatal(err)
	}
	d, err := result.UnmarshalDelivery(decode(t, out.Bytes()).Data)
	if err != nil {
		t.Fatal(err)
	}
	if d.Lines[1] != "t\n-\n__________1__________" {
		t.Errorf("line 1: got %q", d.Lines[1])
	}
}

func TestRunPath_Errors(t *testing.T) {
	path := writePage(t)
	cases := map[string]options{
		"bad path":     {htmlPath: path, path: "x,1"},
		"unresolved":   {htmlPath: path, path: "7"},
		"bad mode":     {htmlPath: path, path: "0", mode: "sideways"},
		"missing file": {htmlPath: filepath.Join(t.TempDir(), "missing.html"), path: "0"},
	}
	for name, o := range cases {
		if err := run(context.Background(), quiet(), io.Discard, o); err == nil {
			t.Errorf("%s: want error", name)
		}
	}
}

func TestRunHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := domtrail.OpenHistory(path, 0, quiet())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	now := time.Now().UnixMilli()
	_ = h.Send(ctx, result.Delivery{Job: "feed", Lines: []string{"t\n1\nA"}, Timestamp: now - 2})
	_ = h.SendFailure(ctx, result.Failure{Job: "feed", Stage: "locate", Timestamp: now - 1})
	_ = h.Send(ctx, result.Delivery{Job: "other", Timestamp: now})
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := run(ctx, quiet(), &out, options{historyPath: path, job: "feed", limit: 10}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), out.String())
	}
	if env := decode(t, []byte(lines[0])); env.Type != "failure" {
		t.Errorf("newest first: got %q", env.Type)
	}
	env := decode(t, []byte(lines[1]))
	d, err := result.UnmarshalDelivery(env.Data)
	if err != nil {
		t.Fatal(err)
	}
	if env.Type != "delivery" || d.Lines[0] != "t\n1\nA" {
		t.Errorf("got %s %+v", env.Type, d)
	}

	out.Reset()
	if err := run(ctx, quiet(), &out, options{historyPath: path, kind: "delivery", limit: 1}); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out.String(), "\n"); n != 1 {
		t.Errorf("limit 1: got %d lines", n)
	}
}

func TestRunHistory_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.db")
	if err := run(context.Background(), quiet(), io.Discard, options{historyPath: path}); err == nil {
		t.Error("want error for a missing database")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("querying must not create the database")
	}
}

func TestRun_Usage(t *testing.T) {
	if err := run(context.Background(), quiet(), io.Discard, options{}); !errors.Is(err, errUsage) {
		t.Errorf("got %v, want usage error", err)
	}
}

func TestTextsFlag(t *testing.T) {
	var f texts
	_ = f.Set("a")
	_ = f.Set("b c")
	if len(f) != 2 || f.String() != "a,b c" {
		t.Errorf("got %v", f)
	}
}
