// Package locator discovers the navigable result entries of a search page.
//
// A scan runs an ordered list of overlapping structural rules, filters each
// candidate, deduplicates by node identity and orders the survivors the
// way they read on screen. "No results" is a valid outcome, not an error.
package locator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hazyhaar/navkit/serpnav/host"
)

// Entry is one cursor stop. It holds a non-owning reference to a host node
// that is only meaningful until the next scan.
type Entry struct {
	Node     host.Node
	Href     string
	Category Category
	Rect     host.Rect
	Pos      host.TreePos
}

// ID is the identity of the underlying node.
func (e Entry) ID() string {
	if e.Node == nil {
		return ""
	}
	return e.Node.ID()
}

// ResultSet is an ordered sequence of entries with distinct identities.
type ResultSet []Entry

// IndexOf returns the index of the first entry pointing at href, or -1.
func (s ResultSet) IndexOf(href string) int {
	for i, e := range s {
		if e.Href == href {
			return i
		}
	}
	return -1
}

// Scan is the outcome of one Locate call.
type Scan struct {
	Set      ResultSet
	Ready    bool
	Failures []*PatternError
	Counts   map[Category]int
}

// Err returns ErrNotReady for a scan that found no result container.
func (s Scan) Err() error {
	if !s.Ready {
		return ErrNotReady
	}
	return nil
}

// Locator runs the rule list against a document.
type Locator struct {
	rules  []Rule
	logger *slog.Logger
}

// Option configures a Locator.
type Option func(*Locator)

// WithRules replaces DefaultRules.
func WithRules(rules []Rule) Option {
	return func(l *Locator) { l.rules = rules }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locator) { l.logger = logger }
}

// New creates a Locator with DefaultRules.
func New(opts ...Option) *Locator {
	l := &Locator{rules: DefaultRules, logger: slog.Default()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Locate scans doc and returns its ResultSet.
func (l *Locator) Locate(doc host.Document) Scan {
	containers, err := doc.QueryAll(ResultContainer)
	if err != nil || len(containers) == 0 {
		l.logger.Debug("locator: result container not ready", "url", doc.URL())
		return Scan{Counts: map[Category]int{}}
	}

	scan := Scan{Ready: true, Counts: make(map[Category]int)}
	pageURL := doc.URL()
	seen := make(map[string]bool)
	rejected := make(map[string]bool)

	for _, r := range l.rules {
		entries, perr := l.applyRule(doc, pageURL, r, seen, rejected)
		if perr != nil {
			l.logger.Warn("locator: rule failed", "rule", r.Name, "error", perr.Cause)
			scan.Failures = append(scan.Failures, perr)
			continue
		}
		for _, e := range entries {
			seen[e.ID()] = true
			scan.Set = append(scan.Set, e)
		}
	}

	Sort(scan.Set)

	for _, e := range scan.Set {
		scan.Counts[e.Category]++
	}
	l.logger.Debug("locator: scan complete",
		"entries", len(scan.Set),
		"video", scan.Counts[Video],
		"image", scan.Counts[Image],
		"news", scan.Counts[News])

	if len(scan.Set) == 0 {
		l.diagnose(doc)
	}
	return scan
}

// applyRule runs one rule inside a fault boundary: a failing rule yields
// no entries at all, never a partial list.
func (l *Locator) applyRule(doc host.Document, pageURL string, r Rule, seen, rejected map[string]bool) (entries []Entry, perr *PatternError) {
	defer func() {
		if rec := recover(); rec != nil {
			entries = nil
			perr = &PatternError{Rule: r.Name, Selector: r.Selector, Cause: fmt.Errorf("panic: %v", rec)}
		}
	}()

	nodes, err := doc.QueryAll(r.Selector)
	if err != nil {
		return nil, &PatternError{Rule: r.Name, Selector: r.Selector, Cause: err}
	}
	if len(nodes) == 0 {
		l.logger.Debug("locator: rule matched nothing", "rule", r.Name)
		return nil, nil
	}

	local := make(map[string]bool)
	for _, n := range nodes {
		id := n.ID()
		if seen[id] || local[id] || rejected[id] {
			continue
		}
		e, ok := accept(doc, n, pageURL)
		if !ok {
			rejected[id] = true
			continue
		}
		local[id] = true
		entries = append(entries, e)
	}
	return entries, nil
}

// accept applies the per-candidate filter and the acceptance rule.
func accept(doc host.Document, n host.Node, pageURL string) (Entry, bool) {
	href := strings.TrimSpace(n.Href())
	raw, _ := n.Attr("href")
	if !navigable(href, raw, pageURL) {
		return Entry{}, false
	}

	inHeading, ok := closest(doc, n, "h3")
	if !ok {
		return Entry{}, false
	}
	inCard, _ := closest(doc, n, cardRoles)
	inImage, _ := closest(doc, n, imageRoles)
	inNews, _ := closest(doc, n, newsRoles)
	isVideo := strings.Contains(href, videoHost)

	cat := Standard
	switch {
	case inImage:
		cat = Image
	case inNews:
		cat = News
	case isVideo:
		cat = Video
	}

	if !(inHeading || inCard || inImage || inNews || isVideo) {
		return Entry{}, false
	}

	rect := n.Rect()
	if rect.Empty() || !n.Visible() {
		return Entry{}, false
	}

	// Media and news tiles may carry no caption; everything else needs
	// a meaningful title.
	if cat == Standard && len([]rune(strings.TrimSpace(n.Text()))) <= 2 {
		return Entry{}, false
	}

	return Entry{Node: n, Href: href, Category: cat, Rect: rect, Pos: n.Pos()}, true
}

// closest reports whether n has an inclusive ancestor matching selector.
// ok is false when the node went stale mid-scan.
func closest(doc host.Document, n host.Node, selector string) (found, ok bool) {
	c, err := doc.Closest(n, selector)
	if err != nil {
		return false, false
	}
	return c != nil, true
}

// navigable rejects empty, internal, map-embed and pseudo addresses, and
// in-page fragments.
func navigable(href, raw, pageURL string) bool {
	if href == "" || strings.HasPrefix(strings.TrimSpace(raw), "#") {
		return false
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	for _, b := range blockedAddresses {
		if strings.Contains(href, b) {
			return false
		}
	}
	if u.Fragment != "" {
		if page, err := url.Parse(pageURL); err == nil {
			page.Fragment = ""
			bare := *u
			bare.Fragment = ""
			if bare.String() == page.String() {
				return false
			}
		}
	}
	return true
}

// diagnose logs how many common anchors exist, to tell a layout change
// apart from a page that simply has no results.
func (l *Locator) diagnose(doc host.Document) {
	if !l.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	for _, sel := range diagnosticAnchors {
		nodes, err := doc.QueryAll(sel)
		if err != nil {
			continue
		}
		l.logger.Debug("locator: empty scan anchor count", "selector", sel, "count", len(nodes))
	}
}
