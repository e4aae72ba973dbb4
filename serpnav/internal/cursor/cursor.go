// Package cursor holds the current ResultSet and the selected index.
//
// The index ranges over [-1, len-1]; -1 means no selection. Moves clamp at
// both ends, so repeating a move at a boundary leaves the index unchanged.
// A Cursor is owned by one loop and is not safe for concurrent use.
package cursor

import (
	"log/slog"

	"github.com/hazyhaar/navkit/serpnav/host"
	"github.com/hazyhaar/navkit/serpnav/internal/locator"
)

// Focus is the visual side of a selection change.
type Focus interface {
	Clear()
	Mark(locator.Entry)
	Reveal(locator.Entry)
}

// Navigator performs the host-page navigation behind Activate.
type Navigator interface {
	Alive(n host.Node) bool
	Navigate(url string) error
}

// Cursor is the navigation cursor over one page.
type Cursor struct {
	set     locator.ResultSet
	index   int
	focus   Focus
	nav     Navigator
	refresh func()
	logger  *slog.Logger
}

// Option configures a Cursor.
type Option func(*Cursor)

// WithRefresh sets the hook run by Advance and Retreat when the set is
// empty. The hook is expected to Replace the set synchronously.
func WithRefresh(fn func()) Option {
	return func(c *Cursor) { c.refresh = fn }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cursor) { c.logger = logger }
}

// New creates an empty Cursor.
func New(nav Navigator, focus Focus, opts ...Option) *Cursor {
	c := &Cursor{index: -1, nav: nav, focus: focus, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetRefresh replaces the lazy refresh hook.
func (c *Cursor) SetRefresh(fn func()) { c.refresh = fn }

// Advance moves forward one entry. From no selection it selects the first.
func (c *Cursor) Advance() {
	if !c.ensure() {
		return
	}
	c.move(min(c.index+1, len(c.set)-1))
}

// Retreat moves back one entry, stopping at the first.
func (c *Cursor) Retreat() {
	if !c.ensure() {
		return
	}
	c.move(max(c.index-1, 0))
}

// Current returns the selected entry.
func (c *Cursor) Current() (locator.Entry, bool) {
	if c.index < 0 || c.index >= len(c.set) {
		return locator.Entry{}, false
	}
	return c.set[c.index], true
}

// Activate navigates the browsing context to the selected entry's address.
// It reports whether a navigation was dispatched; no selection and a stale
// entry are both no-ops.
func (c *Cursor) Activate() bool {
	e, ok := c.Current()
	if !ok {
		return false
	}
	if !c.nav.Alive(e.Node) {
		c.logger.Debug("cursor: activate on stale entry", "href", e.Href)
		return false
	}
	if err := c.nav.Navigate(e.Href); err != nil {
		c.logger.Warn("cursor: navigate failed", "href", e.Href, "error", err)
		return false
	}
	c.logger.Info("cursor: activated", "index", c.index, "href", e.Href)
	return true
}

// Replace installs a new set wholesale. index is clamped into [-1, len-1].
func (c *Cursor) Replace(set locator.ResultSet, index int) {
	c.set = set
	c.index = max(-1, min(index, len(set)-1))
}

// Reset drops the set and the selection.
func (c *Cursor) Reset() {
	c.set = nil
	c.index = -1
}

// Index returns the selected index, or -1.
func (c *Cursor) Index() int { return c.index }

// Len returns the size of the current set.
func (c *Cursor) Len() int { return len(c.set) }

// Set returns the current set. Callers must not modify it.
func (c *Cursor) Set() locator.ResultSet { return c.set }

func (c *Cursor) ensure() bool {
	if len(c.set) == 0 && c.refresh != nil {
		c.logger.Debug("cursor: empty set, refreshing")
		c.refresh()
	}
	return len(c.set) > 0
}

func (c *Cursor) move(i int) {
	if i == c.index {
		return
	}
	c.index = i
	e := c.set[i]
	c.focus.Clear()
	c.focus.Mark(e)
	c.focus.Reveal(e)
	c.logger.Debug("cursor: moved", "index", i, "href", e.Href)
}
