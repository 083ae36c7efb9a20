package courtfetch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hazyhaar/hcbot/courtfetch/internal/browser"
	"github.com/hazyhaar/hcbot/courtfetch/internal/navigate"
)

var _ navigate.Page = (*browser.Tab)(nil)

// session is the browser a run drives: one page for the whole batch.
type session interface {
	Page() navigate.Page
	Close() error
}

type sessionOpener func(ctx context.Context, cfg *Config, logger *slog.Logger) (session, error)

type chromeSession struct {
	mgr *browser.Manager
	tab *browser.Tab
}

func (s *chromeSession) Page() navigate.Page { return s.tab }

func (s *chromeSession) Close() error {
	var errs []error
	if s.tab != nil {
		errs = append(errs, s.tab.Close())
	}
	errs = append(errs, s.mgr.Close())
	return errors.Join(errs...)
}

// openChrome starts Chrome per cfg.Browser and opens the run's tab.
func openChrome(ctx context.Context, cfg *Config, logger *slog.Logger) (session, error) {
	mgr := browser.NewManager(browser.Config{
		RemoteURL:         cfg.Browser.Remote,
		Stealth:           browser.ParseStealth(cfg.Browser.Stealth),
		XvfbDisplay:       cfg.Browser.XvfbDisplay,
		UserAgent:         cfg.Browser.UserAgent,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		DeviceScaleFactor: cfg.Browser.DeviceScaleFactor,
		ResourceBlocking:  cfg.Browser.ResourceBlocking,
		PageTimeout:       cfg.Timeouts.Page,
		Logger:            logger,
	})
	tab, err := mgr.OpenTab(ctx)
	if err != nil {
		return nil, errors.Join(err, mgr.Close())
	}
	return &chromeSession{mgr: mgr, tab: tab}, nil
}
