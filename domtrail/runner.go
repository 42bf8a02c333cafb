// Package domtrail finds content in pages that render incrementally and
// keeps finding it after the page changes.
//
// A job locates two marker texts in the rendered tree, splits their paths
// into an anchor (the container both share), stores the anchor, and then
// polls the anchor until its children have rendered, delivering one record
// per ready child. Later runs reuse stored anchors and fall back through
// them in order before locating afresh.
package domtrail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/domtrail/domtrail/extract"
	"github.com/hazyhaar/domtrail/domtrail/internal/browser"
	"github.com/hazyhaar/domtrail/domtrail/internal/config"
	"github.com/hazyhaar/domtrail/domtrail/internal/sink"
	"github.com/hazyhaar/domtrail/domtrail/internal/store"
	"github.com/hazyhaar/domtrail/domtrail/locate"
	"github.com/hazyhaar/domtrail/domtrail/poll"
	"github.com/hazyhaar/domtrail/domtrail/result"
	"github.com/hazyhaar/domtrail/domtrail/tree"
	"github.com/hazyhaar/domtrail/idgen"
)

var (
	// ErrAllAnchorsFailed means every candidate anchor of a job gave up.
	ErrAllAnchorsFailed = errors.New("domtrail: all anchors failed")
	// ErrNoAnchor means a job has neither anchors nor texts to locate.
	ErrNoAnchor = errors.New("domtrail: no anchor and nothing to locate")
)

// Page is an opened job page: a live source that must be closed.
type Page interface {
	poll.Source
	Close() error
}

// Opener opens the page of a job.
type Opener func(ctx context.Context, job JobConfig) (Page, error)

// Runner executes jobs. Create one per process.
type Runner struct {
	cfg    *config.Config
	mgr    *browser.Manager
	open   Opener
	store  store.Store
	reg    *poll.Registry
	sinkR  *sink.Router
	logger *slog.Logger
	newID  idgen.Generator
	now    func() time.Time
	extra  []Sink
}

// Option customises New.
type Option func(*Runner)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithSinks adds sinks on top of the configured ones.
func WithSinks(s ...Sink) Option {
	return func(r *Runner) { r.extra = append(r.extra, s...) }
}

// WithOpener replaces the browser. Used to run jobs against something else
// than Chrome, such as parsed HTML.
func WithOpener(o Opener) Option { return func(r *Runner) { r.open = o } }

// WithStore replaces the configured anchor store.
func WithStore(s store.Store) Option { return func(r *Runner) { r.store = s } }

// New builds a Runner from configuration. Without WithOpener the runner
// drives Chrome as configured under browser.
func New(cfg *Config, opts ...Option) (*Runner, error) {
	r := &Runner{cfg: cfg, newID: idgen.Prefixed("dlv_", idgen.Default), now: time.Now}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	sinks, err := buildSinks(cfg.Sinks, r.logger)
	if err != nil {
		return nil, err
	}
	sinks = append(sinks, r.extra...)

	if r.store == nil {
		s, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			sink.NewRouter(r.logger, sinks...).Close()
			return nil, fmt.Errorf("domtrail: %w", err)
		}
		r.store = s
	}

	if r.open == nil {
		level, err := browser.ParseStealth(cfg.Browser.Stealth)
		if err != nil {
			sink.NewRouter(r.logger, sinks...).Close()
			r.store.Close()
			return nil, err
		}
		r.mgr = browser.NewManager(browser.Config{
			RemoteURL:        cfg.Browser.Remote,
			ResourceBlocking: cfg.Browser.ResourceBlocking,
			Stealth:          level,
			NavigateTimeout:  cfg.Browser.NavigateTimeout,
			XvfbDisplay:      cfg.Browser.XvfbDisplay,
			Logger:           r.logger,
		})
		r.open = r.openTab
	}

	r.reg = poll.NewRegistry(r.logger)
	r.sinkR = sink.NewRouter(r.logger, sinks...)
	return r, nil
}

type tabPage struct {
	*browser.Source
	tab *browser.Tab
}

func (p *tabPage) Close() error { return p.tab.Close() }

func (r *Runner) openTab(ctx context.Context, job JobConfig) (Page, error) {
	if _, err := r.mgr.Start(ctx); err != nil {
		return nil, err
	}
	tab, err := browser.OpenTab(ctx, r.mgr, job.URL, job.Name)
	if err != nil {
		return nil, err
	}
	return &tabPage{Source: tab.Source(), tab: tab}, nil
}

// Close stops every poll task and releases the browser, sinks and store.
func (r *Runner) Close() error {
	r.reg.Close()
	var errs []error
	errs = append(errs, r.sinkR.Close(), r.store.Close())
	if r.mgr != nil {
		errs = append(errs, r.mgr.Close())
	}
	return errors.Join(errs...)
}

// Run executes every configured job concurrently and waits for all of
// them. Job errors are logged and joined.
func (r *Runner) Run(ctx context.Context) error {
	if r.mgr != nil {
		if _, err := r.mgr.Start(ctx); err != nil {
			return fmt.Errorf("domtrail: start browser: %w", err)
		}
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, job := range r.cfg.Jobs {
		wg.Add(1)
		go func(job JobConfig) {
			defer wg.Done()
			if _, err := r.RunJob(ctx, job); err != nil {
				r.logger.Error("domtrail: job failed", "job", job.Name, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(job)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// RunJob opens the job's page and runs it to a delivery or a failure.
func (r *Runner) RunJob(ctx context.Context, job JobConfig) (*result.Delivery, error) {
	log := r.logger.With("job", job.Name)

	if err := config.CheckJobName(job.Name); err != nil {
		return nil, fmt.Errorf("domtrail: %w", err)
	}
	ex, err := job.Extract.Extractor()
	if err != nil {
		return nil, fmt.Errorf("domtrail: job %q: %w", job.Name, err)
	}

	page, err := r.open(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("domtrail: job %q: open: %w", job.Name, err)
	}
	defer page.Close()

	anchors, err := r.candidates(ctx, job)
	if err != nil {
		return nil, err
	}
	located := false
	if len(anchors) == 0 {
		a, err := r.locate(ctx, job, page)
		if err != nil {
			r.fail(ctx, job, "locate", err, 0)
			return nil, err
		}
		anchors, located = []store.Anchor{a}, true
	}

	d, dead, err := r.extract(ctx, job, page, ex, anchors, 0)
	if errors.Is(err, ErrAllAnchorsFailed) && !located && len(job.Locate.Texts) > 0 {
		log.Info("domtrail: known anchors failed, locating again", "tried", len(anchors))
		a, lerr := r.locate(ctx, job, page)
		if lerr != nil {
			r.fail(ctx, job, "locate", lerr, len(anchors))
			return nil, lerr
		}
		d, _, err = r.extract(ctx, job, page, ex, []store.Anchor{a}, len(anchors))
		anchors = append(anchors, a)
	}
	if err != nil {
		if errors.Is(err, ErrAllAnchorsFailed) {
			r.fail(ctx, job, "extract", err, len(anchors))
		}
		return nil, err
	}
	r.prune(ctx, job, dead)
	return d, nil
}

// prune deletes the stored anchors that gave up during a run that then
// delivered from a later anchor. Configured anchors are not in the store
// and are left alone.
func (r *Runner) prune(ctx context.Context, job JobConfig, dead []store.Anchor) {
	for _, a := range dead {
		stored, err := r.store.Get(ctx, a.ID)
		if errors.Is(err, store.ErrNoAnchor) {
			continue
		}
		if err == nil && stored.Name == job.Name {
			err = r.store.Delete(ctx, a.ID)
		}
		if err != nil {
			r.logger.Warn("domtrail: prune anchor failed", "job", job.Name, "anchor", a.ID, "error", err)
			continue
		}
		r.logger.Info("domtrail: stale anchor removed", "job", job.Name, "anchor", a.ID, "upper", a.Upper.String())
	}
}

// candidates lists the anchors to try: configured ones first, then the
// stored ones, newest first.
func (r *Runner) candidates(ctx context.Context, job JobConfig) ([]store.Anchor, error) {
	var out []store.Anchor
	for i, a := range job.Anchors {
		out = append(out, store.Anchor{
			ID:    fmt.Sprintf("config:%s:%d", job.Name, i),
			Name:  job.Name,
			Upper: a.Upper,
			Lower: a.Lower,
		})
	}
	stored, err := r.store.List(ctx, job.Name)
	if err != nil {
		return nil, fmt.Errorf("domtrail: job %q: %w", job.Name, err)
	}
	return append(out, stored...), nil
}

// locate polls the page until both texts render, splits their paths and
// stores the resulting anchor.
func (r *Runner) locate(ctx context.Context, job JobConfig, page Page) (store.Anchor, error) {
	log := r.logger.With("job", job.Name)
	if len(job.Locate.Texts) != 2 {
		return store.Anchor{}, fmt.Errorf("%w: job %q", ErrNoAnchor, job.Name)
	}

	found := make(chan []tree.Path, 1)
	task := r.reg.Start(job.Name+config.TaskSep+"locate",
		poll.Locating(page, job.Locate.Texts, job.Locate.Await, func(p []tree.Path) { found <- p }),
		r.pollOptions(job))
	if err := task.Wait(ctx); err != nil {
		task.Cancel()
		if errors.Is(err, poll.ErrGaveUp) {
			r.logNearest(ctx, job, page)
		}
		return store.Anchor{}, fmt.Errorf("domtrail: job %q: locate: %w", job.Name, err)
	}
	paths := <-found

	split := locate.Split
	if job.Locate.Strict {
		split = locate.SplitStrict
	}
	fork, err := split(paths[0], paths[1])
	if err != nil {
		return store.Anchor{}, fmt.Errorf("domtrail: job %q: split %s / %s: %w", job.Name, paths[0], paths[1], err)
	}
	if !fork.Agree {
		log.Warn("domtrail: marker suffixes differ", "upper", fork.Upper.String(), "lower", fork.Lower.String(), "second", paths[1].String())
	}

	a, err := r.store.Put(ctx, store.FromFork(job.Name, fork))
	if err != nil {
		return store.Anchor{}, fmt.Errorf("domtrail: job %q: %w", job.Name, err)
	}
	log.Info("domtrail: anchor located", "anchor", a.ID, "upper", a.Upper.String(), "fork", fork.Index, "attempts", task.Attempts())

	loc := result.Located{
		Job:       job.Name,
		PageURL:   job.URL,
		Texts:     job.Locate.Texts,
		Paths:     paths,
		Fork:      &fork,
		Timestamp: r.now().UnixMilli(),
	}
	if err := r.sinkR.SendLocated(ctx, loc); err != nil {
		log.Error("domtrail: send located failed", "error", err)
	}
	return a, nil
}

// extract tries each anchor in order until one delivers. skipped is the
// number of anchors that already failed before this call. dead lists the
// anchors that gave up.
func (r *Runner) extract(ctx context.Context, job JobConfig, page Page, ex *extract.Extractor, anchors []store.Anchor, skipped int) (*result.Delivery, []store.Anchor, error) {
	log := r.logger.With("job", job.Name)

	var dead []store.Anchor
	for i, a := range anchors {
		got := make(chan []extract.Record, 1)
		task := r.reg.Start(job.Name, poll.Extraction(page, a.Upper, ex, func(recs []extract.Record) { got <- recs }), r.pollOptions(job))
		err := task.Wait(ctx)
		switch {
		case err == nil:
			recs := <-got
			lines := ex.Lines(recs)
			out := result.Delivery{
				ID:        r.newID(),
				Job:       job.Name,
				PageURL:   job.URL,
				AnchorID:  a.ID,
				Upper:     a.Upper,
				Records:   recs,
				Lines:     lines,
				Attempts:  task.Attempts(),
				Hash:      result.HashLines(lines),
				Partial:   skipped+i > 0,
				Timestamp: r.now().UnixMilli(),
			}
			log.Info("domtrail: delivered", "anchor", a.ID, "records", len(recs), "attempts", out.Attempts)
			if err := r.sinkR.Send(ctx, out); err != nil {
				log.Error("domtrail: send delivery failed", "error", err)
			}
			return &out, dead, nil
		case errors.Is(err, poll.ErrGaveUp):
			log.Warn("domtrail: anchor gave up", "anchor", a.ID, "upper", a.Upper.String(), "attempts", task.Attempts())
			dead = append(dead, a)
		default:
			task.Cancel()
			return nil, dead, fmt.Errorf("domtrail: job %q: %w", job.Name, err)
		}
	}
	return nil, dead, fmt.Errorf("%w: job %q, %d tried", ErrAllAnchorsFailed, job.Name, skipped+len(anchors))
}

func (r *Runner) fail(ctx context.Context, job JobConfig, stage string, err error, tried int) {
	f := result.Failure{
		Job:       job.Name,
		PageURL:   job.URL,
		Stage:     stage,
		Error:     err.Error(),
		Anchors:   tried,
		Timestamp: r.now().UnixMilli(),
	}
	if serr := r.sinkR.SendFailure(ctx, f); serr != nil {
		r.logger.Error("domtrail: send failure failed", "job", job.Name, "error", serr)
	}
}

// logNearest names the closest rendered text of each missing marker, which
// is usually enough to spot a changed label.
func (r *Runner) logNearest(ctx context.Context, job JobConfig, page Page) {
	root, err := page.Root(ctx)
	if err != nil || tree.IsNil(root) {
		return
	}
	for _, text := range job.Locate.Texts {
		if _, err := locate.Locate(root, text); err == nil {
			continue
		}
		if near, dist, ok := locate.Nearest(root, text); ok {
			r.logger.Warn("domtrail: marker not found", "job", job.Name, "text", text, "nearest", near, "distance", dist)
		}
	}
}

func (r *Runner) pollOptions(job JobConfig) poll.Options {
	p := r.cfg.PollFor(job)
	limit := p.MaxAttempts
	if limit < 0 {
		limit = 0
	}
	// A job restarts a task name only after the previous task under that
	// name has ended.
	return poll.Options{
		Immediate:   true,
		Interval:    p.Interval,
		MaxAttempts: limit,
		Timeout:     p.Timeout,
		Logger:      r.logger,
	}
}
