package serpnav

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/hazyhaar/navkit/serpnav/internal/browser"
	"github.com/hazyhaar/navkit/serpnav/internal/input"
	"github.com/hazyhaar/navkit/serpnav/internal/rodhost"
	"github.com/hazyhaar/navkit/serpnav/internal/sink"
)

// Navigator is the top-level orchestrator. It manages the browser, one
// Session per page and the event sinks. Pages are independent: nothing is
// shared between their Sessions.
type Navigator struct {
	cfg    *Config
	mgr    *browser.Manager
	events *sink.Async
	logger *slog.Logger

	mu    sync.Mutex
	pages map[string]*livePage
}

type livePage struct {
	cfg     PageConfig
	tab     *browser.Tab
	bridge  *rodhost.Page
	session *Session
}

// New creates a Navigator from configuration. Events are delivered to all
// sinks through a non-blocking dispatcher.
func New(cfg *Config, logger *slog.Logger, sinks ...Sink) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	mgr := browser.NewManager(browser.Config{
		RemoteURL: cfg.Browser.Remote,
		Headless:  cfg.Browser.Headless,
		Bin:       cfg.Browser.Bin,
		Stealth:   cfg.Browser.StealthEnabled(),
		Logger:    logger,
	})
	return &Navigator{
		cfg:    cfg,
		mgr:    mgr,
		events: sink.NewAsync(sink.NewRouter(logger, sinks...), 0, logger),
		logger: logger,
		pages:  make(map[string]*livePage),
	}
}

// Start launches the browser and opens every configured page.
func (n *Navigator) Start(ctx context.Context) error {
	if _, err := n.mgr.Start(ctx); err != nil {
		return fmt.Errorf("serpnav: start browser: %w", err)
	}
	for _, p := range n.cfg.Pages {
		if err := n.OpenPage(ctx, p); err != nil {
			n.logger.Error("serpnav: failed to open page", "url", p.URL, "error", err)
		}
	}
	return nil
}

// OpenPage opens a tab, installs the page bridge, starts a Session on it
// and loads the page.
func (n *Navigator) OpenPage(ctx context.Context, pc PageConfig) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.pages[pc.ID]; ok {
		return fmt.Errorf("serpnav: page %q already open", pc.ID)
	}

	tab, err := browser.OpenTab(n.mgr, pc.ID)
	if err != nil {
		return fmt.Errorf("serpnav: open tab: %w", err)
	}

	bridge := rodhost.New(rodhost.Config{
		Page:   tab.Page,
		Policy: input.New(nil).Policy(),
		Logger: n.logger,
	})
	if err := bridge.Install(ctx); err != nil {
		tab.Close()
		return fmt.Errorf("serpnav: install bridge: %w", err)
	}

	sess := NewSession(bridge, bridge, Options{
		PageID:     pc.ID,
		Navigation: n.cfg.Navigation,
		Sink:       n.events,
		Logger:     n.logger,
	})
	if err := sess.Start(ctx); err != nil {
		bridge.Uninstall()
		tab.Close()
		return err
	}

	if err := tab.Navigate(ctx, pc.URL); err != nil {
		sess.Stop()
		bridge.Uninstall()
		tab.Close()
		return err
	}

	n.pages[pc.ID] = &livePage{cfg: pc, tab: tab, bridge: bridge, session: sess}
	n.logger.Info("serpnav: navigating page", "url", pc.URL, "id", pc.ID)
	return nil
}

// ClosePage stops the Session of a page and closes its tab.
func (n *Navigator) ClosePage(id string) {
	n.mu.Lock()
	lp, ok := n.pages[id]
	delete(n.pages, id)
	n.mu.Unlock()
	if ok {
		n.closePage(lp)
	}
}

// Sync opens pages that are not open yet and closes open pages missing
// from want. A page whose URL changed is reopened.
func (n *Navigator) Sync(ctx context.Context, want []PageConfig) error {
	wanted := make(map[string]PageConfig, len(want))
	for _, p := range want {
		wanted[p.ID] = p
	}

	n.mu.Lock()
	var stale []*livePage
	for id, lp := range n.pages {
		if p, ok := wanted[id]; !ok || p.URL != lp.cfg.URL {
			stale = append(stale, lp)
			delete(n.pages, id)
		}
	}
	open := make(map[string]bool, len(n.pages))
	for id := range n.pages {
		open[id] = true
	}
	n.mu.Unlock()

	for _, lp := range stale {
		n.closePage(lp)
	}

	var firstErr error
	for _, p := range want {
		if open[p.ID] {
			continue
		}
		if err := n.OpenPage(ctx, p); err != nil {
			n.logger.Error("serpnav: failed to open page", "url", p.URL, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Pages returns the ids of the open pages, sorted.
func (n *Navigator) Pages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]string, 0, len(n.pages))
	for id := range n.pages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stop gracefully shuts down every Session, the sinks and the browser.
func (n *Navigator) Stop() {
	n.mu.Lock()
	pages := n.pages
	n.pages = make(map[string]*livePage)
	n.mu.Unlock()

	for _, lp := range pages {
		n.closePage(lp)
	}
	if err := n.events.Close(); err != nil {
		n.logger.Warn("serpnav: close sinks", "error", err)
	}
	if err := n.mgr.Close(); err != nil {
		n.logger.Warn("serpnav: close browser", "error", err)
	}
}

func (n *Navigator) closePage(lp *livePage) {
	lp.session.Stop()
	if err := lp.bridge.Uninstall(); err != nil {
		n.logger.Debug("serpnav: uninstall bridge", "id", lp.cfg.ID, "error", err)
	}
	if err := lp.tab.Close(); err != nil {
		n.logger.Debug("serpnav: close tab", "id", lp.cfg.ID, "error", err)
	}
	n.logger.Info("serpnav: stopped page", "id", lp.cfg.ID)
}
