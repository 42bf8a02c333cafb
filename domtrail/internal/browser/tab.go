package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab is one page opened for a job.
type Tab struct {
	Page    *rod.Page
	PageURL string
	Job     string
	mgr     *Manager
}

// OpenTab creates a tab, applies stealth and resource blocking, and
// navigates to pageURL. A load that does not settle within the navigate
// timeout is logged, not fatal: the pollers wait for content anyway.
func OpenTab(ctx context.Context, mgr *Manager, pageURL, job string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	log := mgr.cfg.Logger

	var page *rod.Page
	var err error
	if mgr.cfg.Stealth >= LevelHeadless {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, mgr.cfg.ResourceBlocking); err != nil {
			log.Warn("browser: resource blocking failed", "job", job, "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, mgr.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("browser: wait load timeout", "job", job, "url", pageURL, "error", err)
	}
	log.Debug("browser: tab ready", "job", job, "url", pageURL)

	return &Tab{Page: page, PageURL: pageURL, Job: job, mgr: mgr}, nil
}

// Source exposes the tab's document.body as a poll source.
func (t *Tab) Source() *Source {
	return &Source{eval: t.eval, ResolveDepth: DefaultResolveDepth}
}

func (t *Tab) eval(ctx context.Context, js string, args ...any) (string, bool, error) {
	res, err := t.Page.Context(ctx).Eval(js, args...)
	if err != nil {
		return "", false, fmt.Errorf("browser: eval: %w", err)
	}
	if res.Value.Nil() {
		return "", false, nil
	}
	return res.Value.Str(), true, nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
