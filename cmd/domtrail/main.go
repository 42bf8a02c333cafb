// Command domtrail locates content in rendered pages and extracts it.
//
// Usage:
//
//	domtrail -config domtrail.yaml                      # run every configured job
//	domtrail -url https://example.com/feed -tag twtl_v1 # one job, default markers
//	domtrail -html page.html -find "text" [-find "text2"]
//	domtrail -html page.html -path 2,0,1 [-tag t] [-id-pattern re] [-mode elements] [-focus s]
//	domtrail -history history.db [-job name] [-kind delivery] [-since 24h] [-limit 20]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hazyhaar/domtrail/domtrail"
	"github.com/hazyhaar/domtrail/domtrail/extract"
	"github.com/hazyhaar/domtrail/domtrail/htmltree"
	"github.com/hazyhaar/domtrail/domtrail/locate"
	"github.com/hazyhaar/domtrail/domtrail/result"
	"github.com/hazyhaar/domtrail/domtrail/tree"
	"github.com/hazyhaar/domtrail/idgen"
)

// texts collects repeated -find flags.
type texts []string

func (t *texts) String() string     { return strings.Join(*t, ",") }
func (t *texts) Set(v string) error { *t = append(*t, v); return nil }

type options struct {
	configPath string
	url        string
	htmlPath   string
	find       texts
	path       string
	tag        string
	idPattern  string
	unknownID  string
	mode       string
	focus      string

	historyPath string
	job         string
	kind        string
	since       time.Duration
	limit       int
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to domtrail.yaml config file")
	flag.StringVar(&o.url, "url", "", "run a single job on this URL with the default markers")
	flag.StringVar(&o.htmlPath, "html", "", "work on a saved HTML file instead of a live page")
	flag.Var(&o.find, "find", "text to locate (repeatable; two texts also print their fork)")
	flag.StringVar(&o.path, "path", "", "anchor path to extract from, e.g. 2,0,1")
	flag.StringVar(&o.tag, "tag", "", "record tag")
	flag.StringVar(&o.idPattern, "id-pattern", "", "identifier regexp with one capture group")
	flag.StringVar(&o.unknownID, "unknown-id", "", "placeholder for records without an identifier (default UNKNOWNID)")
	flag.StringVar(&o.mode, "mode", "prefix", "extraction mode: prefix or elements")
	flag.StringVar(&o.focus, "focus", "", "narrow the anchor to its first child containing this text")
	flag.StringVar(&o.historyPath, "history", "", "query a history database instead of running jobs")
	flag.StringVar(&o.job, "job", "", "history: only this job")
	flag.StringVar(&o.kind, "kind", "", "history: delivery, located or failure")
	flag.DurationVar(&o.since, "since", 0, "history: only entries newer than this")
	flag.IntVar(&o.limit, "limit", 100, "history: maximum entries")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, os.Stdout, o); err != nil {
		logger.Error("domtrail: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, w io.Writer, o options) error {
	switch {
	case o.historyPath != "":
		return runHistory(ctx, logger, w, o)
	case o.htmlPath != "" && len(o.find) > 0:
		return runFind(ctx, logger, w, o)
	case o.htmlPath != "" && o.path != "":
		return runPath(ctx, w, o)
	case o.url != "":
		return runURL(ctx, logger, o)
	case o.configPath != "":
		return runConfig(ctx, logger, o.configPath)
	}
	return errUsage
}

var errUsage = errors.New("usage: domtrail -config <file> | -url <url> | -html <file> (-find <text> | -path <p>) | -history <db>")

func loadHTML(path string) (*htmltree.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return htmltree.Parse(f)
}

func runFind(ctx context.Context, logger *slog.Logger, w io.Writer, o options) error {
	root, err := loadHTML(o.htmlPath)
	if err != nil {
		return err
	}

	paths := locate.LocateAll(root, o.find...)
	var missing []string
	for i, p := range paths {
		if p != nil {
			continue
		}
		missing = append(missing, o.find[i])
		if near, dist, ok := locate.Nearest(root, o.find[i]); ok {
			logger.Warn("domtrail: text not found", "text", o.find[i], "nearest", near, "distance", dist)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %q", locate.ErrNotFound, missing)
	}

	loc := result.Located{
		Job:       "html",
		PageURL:   o.htmlPath,
		Texts:     o.find,
		Paths:     paths,
		Timestamp: time.Now().UnixMilli(),
	}
	if len(paths) == 2 {
		fork, err := locate.Split(paths[0], paths[1])
		if err != nil {
			return err
		}
		loc.Fork = &fork
	}
	return domtrail.NewStdoutSink(w).SendLocated(ctx, loc)
}

func runPath(ctx context.Context, w io.Writer, o options) error {
	p, err := tree.ParsePath(o.path)
	if err != nil {
		return err
	}
	root, err := loadHTML(o.htmlPath)
	if err != nil {
		return err
	}
	ex := &extract.Extractor{Tag: o.tag, IDPattern: o.idPattern, UnknownID: o.unknownID, Focus: o.focus, Mode: extract.Mode(o.mode)}
	if err := ex.Compile(); err != nil {
		return err
	}

	anchor, ok := tree.Resolve(root, p)
	if !ok {
		return fmt.Errorf("domtrail: path %s does not resolve", p)
	}
	recs, ok := ex.Attempt(anchor)
	if !ok {
		return fmt.Errorf("domtrail: nothing ready under %s", p.Expr())
	}
	d := result.Delivery{
		ID:        idgen.New(),
		Job:       "html",
		PageURL:   o.htmlPath,
		Upper:     p,
		Records:   recs,
		Lines:     ex.Lines(recs),
		Attempts:  1,
		Timestamp: time.Now().UnixMilli(),
	}
	d.Hash = result.HashLines(d.Lines)
	return domtrail.NewStdoutSink(w).Send(ctx, d)
}

func runURL(ctx context.Context, logger *slog.Logger, o options) error {
	cfg, err := domtrail.ParseConfig([]byte(fmt.Sprintf("jobs: [{name: single, url: %q}]", o.url)))
	if err != nil {
		return err
	}
	j := &cfg.Jobs[0].Extract
	j.Tag, j.IDPattern, j.Focus = o.tag, o.idPattern, o.focus
	if o.unknownID != "" {
		j.UnknownID = o.unknownID
	}
	if o.mode != "" {
		j.Mode = o.mode
	}
	return runJobs(ctx, logger, cfg)
}

func runConfig(ctx context.Context, logger *slog.Logger, path string) error {
	cfg, err := domtrail.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return runJobs(ctx, logger, cfg)
}

func runJobs(ctx context.Context, logger *slog.Logger, cfg *domtrail.Config) error {
	r, err := domtrail.New(cfg, domtrail.WithLogger(logger))
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Run(ctx)
}

// runHistory prints recorded results, newest first, in the same envelope
// the stdout sink writes.
func runHistory(ctx context.Context, logger *slog.Logger, w io.Writer, o options) error {
	if _, err := os.Stat(o.historyPath); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	h, err := domtrail.OpenHistory(o.historyPath, 0, logger)
	if err != nil {
		return err
	}
	defer h.Close()

	f := domtrail.HistoryFilter{Job: o.job, Kind: o.kind, Limit: o.limit}
	if o.since > 0 {
		f.Since = time.Now().Add(-o.since)
	}
	entries, err := h.Query(ctx, f)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, e := range entries {
		line := struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}{e.Kind, json.RawMessage(e.Payload)}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}
