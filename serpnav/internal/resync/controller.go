// Package resync decides when the result locator runs and carries the
// cursor across each ResultSet replacement.
//
// State machine:
//
//	Idle ──ready──▶ Scanning ──empty, budget left──▶ AwaitingRetry ──delay──▶ Scanning
//	Idle ──qualifying mutation──▶ Debouncing ──window──▶ Scanning
//
// At most one scan cycle is in flight. Triggers that arrive while a cycle
// runs, while a retry is pending, or inside the settle window that follows
// a mutation-triggered scan are dropped, not queued. Every method must be
// called from the scheduler's goroutine.
package resync

import (
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/navkit/serpnav/host"
	"github.com/hazyhaar/navkit/serpnav/internal/cursor"
	"github.com/hazyhaar/navkit/serpnav/internal/locator"
	"github.com/hazyhaar/navkit/serpnav/internal/loop"
)

// ErrEmptyResult is reported when a cycle exhausts its retry budget
// without finding any entry. It is terminal for the cycle only.
var ErrEmptyResult = errors.New("resync: no results after retry budget")

// State of the controller.
type State int

const (
	Idle State = iota
	Scanning
	AwaitingRetry
	Debouncing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case AwaitingRetry:
		return "awaiting_retry"
	case Debouncing:
		return "debouncing"
	}
	return "unknown"
}

// Reasons carried by Report.
const (
	ReasonStartup  = "startup"
	ReasonRetry    = "retry"
	ReasonMutation = "mutation"
	ReasonRefresh  = "refresh"
)

// Locator produces a Scan from the document.
type Locator interface {
	Locate(doc host.Document) locator.Scan
}

// Focus is the part of the presenter the controller drives after a
// replacement.
type Focus interface {
	Clear()
	Mark(locator.Entry)
}

// Report describes one completed scan.
type Report struct {
	Reason   string
	Attempt  int
	Ready    bool
	Entries  int
	Counts   map[locator.Category]int
	Index    int
	Failures []string
	// Err is ErrEmptyResult when this scan exhausted the retry budget.
	Err error
}

// Options configures a Controller.
type Options struct {
	Debounce  time.Duration // mutation coalescing window (default 800ms)
	RetryMax  int           // retries after an empty scan (default 3)
	RetryBase time.Duration // delay = RetryBase * attempt (default 500ms)
	Settle    time.Duration // triggers dropped after a mutation scan (default 1s)

	// AnchorIDs and AnchorClasses identify result-container mutation
	// targets (defaults "search", "rso" and "srg").
	AnchorIDs     []string
	AnchorClasses []string

	// OnScan is called after every scan, on the scheduler goroutine.
	OnScan func(Report)

	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Debounce <= 0 {
		o.Debounce = 800 * time.Millisecond
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 3
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	if o.Settle <= 0 {
		o.Settle = time.Second
	}
	if len(o.AnchorIDs) == 0 {
		o.AnchorIDs = []string{"search", "rso"}
	}
	if len(o.AnchorClasses) == 0 {
		o.AnchorClasses = []string{"srg"}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Controller owns every piece of mutable session state: the cycle state,
// the retry attempt, the pending timer, the settle window and the last
// observed address.
type Controller struct {
	doc   host.Document
	loc   Locator
	cur   *cursor.Cursor
	focus Focus
	sched loop.Scheduler
	opts  Options

	state    State
	attempt  int
	timer    loop.Timer
	settling bool
	settle   loop.Timer
	lastURL  string
	stopped  bool
}

// New creates a Controller. The cursor's lazy refresh hook is bound to
// Refresh.
func New(doc host.Document, loc Locator, cur *cursor.Cursor, focus Focus, sched loop.Scheduler, opts Options) *Controller {
	opts.defaults()
	c := &Controller{
		doc:     doc,
		loc:     loc,
		cur:     cur,
		focus:   focus,
		sched:   sched,
		opts:    opts,
		lastURL: doc.URL(),
	}
	cur.SetRefresh(func() { c.Refresh() })
	return c
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Attempt returns the retry attempt of the current cycle.
func (c *Controller) Attempt() int { return c.attempt }

// Start begins a startup cycle for a freshly loaded document, superseding
// anything pending.
func (c *Controller) Start(url string) {
	if c.stopped {
		return
	}
	c.cancelTimer()
	c.endSettle()
	if url != "" {
		c.lastURL = url
	}
	c.opts.Logger.Info("resync: document ready", "url", c.lastURL)
	c.beginCycle(ReasonStartup)
}

// Observe handles one mutation batch.
func (c *Controller) Observe(b host.Batch) {
	if c.stopped {
		return
	}
	switch {
	case c.state == Scanning, c.state == AwaitingRetry:
		c.opts.Logger.Debug("resync: trigger dropped, cycle in flight", "state", c.state.String())
		return
	case c.settling:
		c.opts.Logger.Debug("resync: trigger dropped, settling")
		return
	}

	urlChanged := b.URL != "" && b.URL != c.lastURL
	if !urlChanged && !c.qualifies(b.Records) {
		return
	}
	if b.URL != "" {
		c.lastURL = b.URL
	}

	c.cancelTimer()
	c.state = Debouncing
	c.timer = c.sched.After(c.opts.Debounce, c.debounced)
	c.opts.Logger.Debug("resync: qualifying change, debouncing", "url_changed", urlChanged)
}

// Refresh runs a single scan immediately, outside the retry budget. It is
// a no-op while a scan is running. A refresh that finds entries while a
// retry is pending ends that cycle.
func (c *Controller) Refresh() {
	if c.stopped || c.state == Scanning {
		return
	}
	prev := c.state
	c.state = Scanning
	n := c.scan(ReasonRefresh, 0, false)

	switch {
	case prev == AwaitingRetry && n > 0:
		c.cancelTimer()
		c.state = Idle
	default:
		c.state = prev
	}
}

// Stop cancels every pending timer and ignores further triggers.
func (c *Controller) Stop() {
	c.stopped = true
	c.cancelTimer()
	c.endSettle()
	c.state = Idle
}

func (c *Controller) debounced() {
	c.timer = nil
	c.settling = true
	c.settle = c.sched.After(c.opts.Settle, func() {
		c.settle = nil
		c.settling = false
	})
	c.opts.Logger.Info("resync: page change detected, rescanning")
	c.beginCycle(ReasonMutation)
}

func (c *Controller) beginCycle(reason string) {
	c.attempt = 0
	c.runScan(reason)
}

func (c *Controller) runScan(reason string) {
	c.timer = nil
	c.state = Scanning

	budgetLeft := c.attempt < c.opts.RetryMax
	n := c.scan(reason, c.attempt, !budgetLeft)
	if n > 0 || !budgetLeft {
		c.state = Idle
		return
	}

	c.attempt++
	delay := c.opts.RetryBase * time.Duration(c.attempt)
	c.state = AwaitingRetry
	c.timer = c.sched.After(delay, func() { c.runScan(ReasonRetry) })
	c.opts.Logger.Info("resync: no results, retrying",
		"attempt", c.attempt, "max", c.opts.RetryMax, "delay", delay)
}

// scan runs the locator, replaces the cursor's set and reports. last marks
// the final scan of a cycle.
func (c *Controller) scan(reason string, attempt int, last bool) int {
	res := c.loc.Locate(c.doc)
	c.relocate(res.Set)

	rep := Report{
		Reason:  reason,
		Attempt: attempt,
		Ready:   res.Ready,
		Entries: len(res.Set),
		Counts:  res.Counts,
		Index:   c.cur.Index(),
	}
	for _, f := range res.Failures {
		rep.Failures = append(rep.Failures, f.Rule)
	}
	if len(res.Set) == 0 && last {
		rep.Err = ErrEmptyResult
		c.opts.Logger.Warn("resync: giving up for this cycle",
			"error", ErrEmptyResult, "attempts", attempt+1, "ready", res.Ready)
	}
	c.opts.Logger.Debug("resync: scan complete",
		"reason", reason, "entries", rep.Entries, "index", rep.Index, "ready", res.Ready)

	if c.opts.OnScan != nil {
		c.opts.OnScan(rep)
	}
	return len(res.Set)
}

// relocate installs set and moves the cursor to the entry with the
// previous address, else to the clamped previous index, else to no
// selection. The surviving selection is re-marked.
func (c *Controller) relocate(set locator.ResultSet) {
	prev, had := c.cur.Current()
	index := -1
	if had {
		index = c.cur.Index()
		if i := set.IndexOf(prev.Href); i >= 0 {
			index = i
		}
	}

	c.focus.Clear()
	c.cur.Replace(set, index)
	if e, ok := c.cur.Current(); ok {
		c.focus.Mark(e)
		if had && e.Href != prev.Href {
			c.opts.Logger.Debug("resync: address lost, index clamped", "href", prev.Href, "index", c.cur.Index())
		}
	}
}

func (c *Controller) qualifies(records []host.Mutation) bool {
	for _, m := range records {
		if m.Type != host.ChildList {
			continue
		}
		for _, id := range c.opts.AnchorIDs {
			if m.TargetID == id {
				return true
			}
		}
		for _, cls := range c.opts.AnchorClasses {
			if m.HasClass(cls) {
				return true
			}
		}
	}
	return false
}

func (c *Controller) cancelTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.state == Debouncing || c.state == AwaitingRetry {
		c.state = Idle
	}
}

func (c *Controller) endSettle() {
	if c.settle != nil {
		c.settle.Stop()
		c.settle = nil
	}
	c.settling = false
}
