// Package pager moves between result pages by clicking the host's own
// previous/next controls.
package pager

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/navkit/serpnav/host"
)

// Control selectors. The aria-label patterns cover English and Japanese
// result pages.
const (
	PrevSelector = `#pnprev, a[aria-label*="Previous"], a[aria-label*="前"]`
	NextSelector = `#pnnext, a[aria-label*="Next"], a[aria-label*="次"]`
)

// ErrNoControl is returned when the page has no usable control in the
// requested direction.
var ErrNoControl = errors.New("pager: no usable control")

// Pager clicks pagination controls.
type Pager struct {
	doc    host.Document
	logger *slog.Logger
}

// New creates a Pager over doc.
func New(doc host.Document, logger *slog.Logger) *Pager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pager{doc: doc, logger: logger}
}

// Prev clicks the previous-page control. A control hidden with an inline
// display:none counts as absent, as on the first page.
func (p *Pager) Prev() error {
	return p.follow("prev", PrevSelector, true)
}

// Next clicks the next-page control.
func (p *Pager) Next() error {
	return p.follow("next", NextSelector, false)
}

// follow considers the first match only: the page lists its own control
// before any aria-labelled lookalike.
func (p *Pager) follow(dir, selector string, checkInline bool) error {
	nodes, err := p.doc.QueryAll(selector)
	if err != nil {
		return fmt.Errorf("pager: %s: %w", dir, err)
	}
	if len(nodes) == 0 {
		p.logger.Debug("pager: control not found", "direction", dir)
		return ErrNoControl
	}
	n := nodes[0]
	if v, _ := n.Attr("aria-disabled"); v != "" {
		p.logger.Debug("pager: control disabled", "direction", dir)
		return ErrNoControl
	}
	if checkInline && inlineHidden(n) {
		p.logger.Debug("pager: control hidden", "direction", dir)
		return ErrNoControl
	}
	if err := p.doc.Click(n); err != nil {
		return fmt.Errorf("pager: %s: click: %w", dir, err)
	}
	p.logger.Info("pager: page change", "direction", dir, "href", n.Href())
	return nil
}

func inlineHidden(n host.Node) bool {
	style, _ := n.Attr("style")
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(k), "display") {
			return strings.EqualFold(strings.TrimSpace(v), "none")
		}
	}
	return false
}
