// Package serpnav provides keyboard navigation over a live search-results
// page: j/k move a highlighted cursor across the organic results, h/l
// change result page and Enter opens the selected result.
//
// A Session drives one page through the host contract in serpnav/host.
// A Navigator owns the Chrome instance and runs one Session per
// configured page.
package serpnav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/navkit/serpnav/host"
	"github.com/hazyhaar/navkit/serpnav/internal/cursor"
	"github.com/hazyhaar/navkit/serpnav/internal/focus"
	"github.com/hazyhaar/navkit/serpnav/internal/input"
	"github.com/hazyhaar/navkit/serpnav/internal/locator"
	"github.com/hazyhaar/navkit/serpnav/internal/loop"
	"github.com/hazyhaar/navkit/serpnav/internal/pager"
	"github.com/hazyhaar/navkit/serpnav/internal/resync"
	"github.com/hazyhaar/navkit/serpnav/internal/sink"
)

// stopTimeout bounds how long Stop waits for the loop to run teardown.
const stopTimeout = 2 * time.Second

// Options configures a Session.
type Options struct {
	PageID     string
	Navigation NavigationConfig
	// Sink receives diagnostic events. Send is called on the loop
	// goroutine, so it must not block (wrap slow sinks with an async
	// dispatcher, as the Navigator does).
	Sink   Sink
	Logger *slog.Logger

	// sched replaces the loop, for tests.
	sched loop.Scheduler
}

// selection is implemented by hosts that need to know whether an entry is
// selected outside the loop (the Chrome bridge decides preventDefault for
// Enter synchronously in the page).
type selection interface {
	SetSelected(bool) error
}

// Session navigates one page. All state lives on its loop; host callbacks
// are posted there.
type Session struct {
	pageID string
	doc    host.Document
	feed   host.Feed
	events Sink
	logger *slog.Logger

	sched loop.Scheduler
	lp    *loop.Loop

	focus  *focus.Presenter
	cur    *cursor.Cursor
	ctl    *resync.Controller
	router *input.Router
	pager  *pager.Pager

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	stopped bool
}

// NewSession wires a Session over doc and feed. Call Start to begin.
func NewSession(doc host.Document, feed host.Feed, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("page_id", opts.PageID)

	s := &Session{
		pageID: opts.PageID,
		doc:    doc,
		feed:   feed,
		events: opts.Sink,
		logger: logger,
		sched:  opts.sched,
		router: input.New(nil),
		pager:  pager.New(doc, logger),
	}
	if s.sched == nil {
		s.lp = loop.New(logger)
		s.sched = s.lp
	}

	nav := opts.Navigation
	s.focus = focus.New(doc, focus.WithMargin(nav.RevealMargin), focus.WithLogger(logger))
	s.cur = cursor.New(doc, s.focus, cursor.WithLogger(logger))
	s.ctl = resync.New(doc, locator.New(locator.WithLogger(logger)), s.cur, s.focus, s.sched, resync.Options{
		Debounce:  nav.Debounce,
		RetryMax:  nav.RetryMax,
		RetryBase: nav.RetryBase,
		Settle:    nav.Settle,
		OnScan:    s.onScan,
		Logger:    logger,
	})
	return s
}

// PageID returns the page id the Session was created with.
func (s *Session) PageID() string { return s.pageID }

// Start runs the loop and subscribes to the feed. Scanning begins with the
// next document-ready event.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("serpnav: session %s already started", s.pageID)
	}

	ctx, cancel := context.WithCancel(ctx)
	if s.lp != nil {
		go s.lp.Run(ctx)
	}

	err := s.feed.Subscribe(ctx, host.Handlers{
		Ready: func(url string) {
			s.sched.Post(func() { s.ready(url) })
		},
		Mutations: func(b host.Batch) {
			s.sched.Post(func() { s.ctl.Observe(b) })
		},
		Key: func(ev host.KeyEvent) {
			s.sched.Post(func() { s.key(ev) })
		},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("serpnav: subscribe: %w", err)
	}

	s.cancel = cancel
	s.started = true
	s.logger.Info("serpnav: session started")
	return nil
}

// Stop removes every highlight, drops the ResultSet, cancels pending timers
// and ends the feed subscription. It is safe to call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	done := make(chan struct{})
	s.sched.Post(func() {
		s.ctl.Stop()
		s.focus.Clear()
		s.cur.Reset()
		s.syncSelection()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(stopTimeout):
		s.logger.Warn("serpnav: teardown timed out")
	}
	cancel()
	s.logger.Info("serpnav: session stopped")
}

// Do runs fn on the session loop with the cursor state and returns once fn
// has run. It must not be called after Stop.
func (s *Session) Do(fn func(index, size int)) {
	done := make(chan struct{})
	s.sched.Post(func() {
		fn(s.cur.Index(), s.cur.Len())
		close(done)
	})
	<-done
}

func (s *Session) ready(url string) {
	if err := s.focus.Install(); err != nil {
		s.logger.Warn("serpnav: style sheet install failed", "error", err)
	}
	s.ctl.Start(url)
}

func (s *Session) key(ev host.KeyEvent) {
	_, selected := s.cur.Current()
	d := s.router.Route(ev, selected)
	if d.Command == input.None {
		return
	}

	before := s.cur.Index()
	handled := true
	switch d.Command {
	case input.Down:
		s.cur.Advance()
	case input.Up:
		s.cur.Retreat()
	case input.Activate:
		handled = s.cur.Activate()
	case input.PrevPage:
		handled = s.page(s.pager.Prev)
	case input.NextPage:
		handled = s.page(s.pager.Next)
	}

	s.emit(sink.TypeCommand, CommandData{Command: d.Command.String(), Key: ev.Code, Handled: handled})
	if s.cur.Index() != before {
		s.emitFocus()
	}
	s.syncSelection()
}

func (s *Session) page(follow func() error) bool {
	if err := follow(); err != nil {
		if !errors.Is(err, pager.ErrNoControl) {
			s.logger.Warn("serpnav: page change failed", "error", err)
		}
		return false
	}
	return true
}

func (s *Session) onScan(r resync.Report) {
	data := ScanData{
		Reason:   r.Reason,
		Attempt:  r.Attempt,
		Ready:    r.Ready,
		Entries:  r.Entries,
		Index:    r.Index,
		Failures: r.Failures,
	}
	if len(r.Counts) > 0 {
		data.Counts = make(map[string]int, len(r.Counts))
		for c, n := range r.Counts {
			data.Counts[string(c)] = n
		}
	}
	if r.Err != nil {
		data.Error = r.Err.Error()
	}
	s.emit(sink.TypeScan, data)
	s.syncSelection()
}

func (s *Session) emitFocus() {
	data := FocusData{Index: s.cur.Index()}
	if e, ok := s.cur.Current(); ok {
		data.Href = e.Href
		data.Category = string(e.Category)
	}
	s.emit(sink.TypeFocus, data)
}

func (s *Session) emit(typ string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Send(context.Background(), sink.NewEvent(typ, s.pageID, data)); err != nil {
		s.logger.Debug("serpnav: event not delivered", "type", typ, "error", err)
	}
}

func (s *Session) syncSelection() {
	sel, ok := s.doc.(selection)
	if !ok {
		return
	}
	_, selected := s.cur.Current()
	if err := sel.SetSelected(selected); err != nil {
		s.logger.Debug("serpnav: selection state not pushed", "error", err)
	}
}
