// Package focus applies and removes the highlight on the entry under the
// cursor. Callers own the clear-then-mark ordering; the presenter itself
// keeps no record of what it marked.
package focus

import (
	"errors"
	"log/slog"

	"github.com/hazyhaar/navkit/serpnav/host"
	"github.com/hazyhaar/navkit/serpnav/internal/locator"
)

// DefaultMargin is the band, in pixels, at the top and bottom of the
// viewport inside which a container is scrolled back to the centre.
const DefaultMargin = 100

// Presenter marks containers on one document.
type Presenter struct {
	doc    host.Document
	margin float64
	logger *slog.Logger
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithMargin overrides DefaultMargin. Non-positive values are ignored.
func WithMargin(px float64) Option {
	return func(p *Presenter) {
		if px > 0 {
			p.margin = px
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Presenter) { p.logger = logger }
}

// New creates a Presenter for doc.
func New(doc host.Document, opts ...Option) *Presenter {
	p := &Presenter{doc: doc, margin: DefaultMargin, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Install injects the highlight style sheet once per document.
func (p *Presenter) Install() error {
	injected, err := p.doc.EnsureStyleSheet(StyleSheetID, styleSheet)
	if err != nil {
		return err
	}
	if injected {
		p.logger.Debug("focus: style sheet installed")
	}
	return nil
}

// Mark highlights the container resolved for e. A stale entry is a no-op.
func (p *Presenter) Mark(e locator.Entry) {
	c, isContainer, err := p.Resolve(e)
	if err != nil {
		p.degrade("mark", e, err)
		return
	}
	if !isContainer {
		if err := p.doc.AddClass(c, FocusedClass); err != nil {
			p.degrade("mark", e, err)
		}
		return
	}
	if err := p.doc.AddClass(c, ResultFocusedClass, FocusedClass); err != nil {
		p.degrade("mark", e, err)
		return
	}
	// Keep the highlight inside the card's padding box.
	if err := p.doc.SetStyleIfUnset(c, "overflow", "hidden"); err != nil {
		p.degrade("mark", e, err)
	}
}

// Clear removes highlight state from every marked node in the document.
func (p *Presenter) Clear() {
	nodes, err := p.doc.QueryAll(markedSelector)
	if err != nil {
		p.logger.Warn("focus: clear query failed", "error", err)
		return
	}
	for _, n := range nodes {
		if err := p.doc.RemoveClass(n, FocusedClass, ResultFocusedClass); err != nil && !errors.Is(err, host.ErrStale) {
			p.logger.Warn("focus: clear failed", "node", n.ID(), "error", err)
		}
	}
}

// Reveal scrolls the marked container of e to the centre of the viewport
// when it sits inside the margin band or outside the viewport. Scrolling
// is best effort.
func (p *Presenter) Reveal(e locator.Entry) {
	if e.Node == nil {
		return
	}
	target, err := p.doc.Closest(e.Node, markedSelector)
	if err != nil {
		p.degrade("reveal", e, err)
		return
	}
	if target == nil {
		target = e.Node
	}
	vp, err := p.doc.Viewport()
	if err != nil {
		p.logger.Debug("focus: viewport unavailable", "error", err)
		return
	}
	r := target.Rect()
	if r.Top >= p.margin && r.Bottom() <= vp.Height-p.margin {
		return
	}
	if err := p.doc.ScrollIntoView(target); err != nil {
		p.degrade("reveal", e, err)
	}
}

// Resolve returns the node that carries the highlight for e: the first
// container role enclosing it, else the nearest block-level ancestor below
// the body, else the entry itself (isContainer false).
func (p *Presenter) Resolve(e locator.Entry) (n host.Node, isContainer bool, err error) {
	if e.Node == nil {
		return nil, false, host.ErrStale
	}
	for _, role := range containerRoles {
		c, err := p.doc.Closest(e.Node, role)
		if err != nil {
			return nil, false, err
		}
		if c != nil {
			return c, true, nil
		}
	}

	cur := e.Node
	for {
		parent, err := p.doc.Parent(cur)
		if err != nil {
			return nil, false, err
		}
		if parent == nil {
			break
		}
		if blockDisplays[parent.Display()] {
			return parent, true, nil
		}
		cur = parent
	}
	return e.Node, false, nil
}

func (p *Presenter) degrade(op string, e locator.Entry, err error) {
	if errors.Is(err, host.ErrStale) {
		p.logger.Debug("focus: stale entry", "op", op, "href", e.Href)
		return
	}
	p.logger.Warn("focus: "+op+" failed", "href", e.Href, "error", err)
}
