// Package htmldoc implements host.Document over a parsed HTML tree held in
// memory. It backs the offline dump mode and every core test: the tree can
// be rewritten through SetInnerHTML, which emits the same mutation batches
// a live page would.
//
// There is no layout engine. Geometry comes from a data-rect="left,top,
// width,height" attribute when present, otherwise from a flow
// approximation where each element occupies one line in document order.
// An element carrying data-root="name" starts a separate tree root, the
// way a frame document would: positions below it are relative to it.
// Not safe for concurrent use.
package htmldoc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/navkit/idgen"
	"github.com/hazyhaar/navkit/serpnav/host"
)

// Document is an in-memory host page.
type Document struct {
	doc      *goquery.Document
	base     *url.URL
	viewport host.Rect
	newID    idgen.Generator

	ids   map[*html.Node]string
	order map[*html.Node]int // preorder index, rebuilt after each mutation
	subs  []subscription

	clicks      []string
	navigations []string
	scrolls     []string
}

// Option configures a Document.
type Option func(*Document)

// WithViewport overrides the default 1280x720 viewport.
func WithViewport(r host.Rect) Option {
	return func(d *Document) { d.viewport = r }
}

// Parse reads an HTML document served at pageURL.
func Parse(r io.Reader, pageURL string, opts ...Option) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: base url: %w", err)
	}
	d := &Document{
		doc:      gq,
		base:     base,
		viewport: host.Rect{Width: 1280, Height: 720},
		newID:    idgen.Prefixed("n_", idgen.NanoID(12)),
		ids:      make(map[*html.Node]string),
	}
	for _, o := range opts {
		o(d)
	}
	d.reindex()
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s, pageURL string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), pageURL, opts...)
}

// ---------- host.Document ----------

func (d *Document) URL() string { return d.base.String() }

func (d *Document) QueryAll(selector string) ([]host.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: selector %q: %w", selector, err)
	}
	matches := sel.MatchAll(d.root())
	out := make([]host.Node, 0, len(matches))
	for _, n := range matches {
		out = append(out, d.wrap(n))
	}
	return out, nil
}

func (d *Document) Closest(n host.Node, selector string) (host.Node, error) {
	hn, err := d.live(n)
	if err != nil {
		return nil, err
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: selector %q: %w", selector, err)
	}
	for p := hn; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && sel.Match(p) {
			return d.wrap(p), nil
		}
	}
	return nil, nil
}

func (d *Document) Parent(n host.Node) (host.Node, error) {
	hn, err := d.live(n)
	if err != nil {
		return nil, err
	}
	p := hn.Parent
	if p == nil || p.Type != html.ElementNode || p.DataAtom == atom.Body || p.DataAtom == atom.Html {
		return nil, nil
	}
	return d.wrap(p), nil
}

func (d *Document) Alive(n host.Node) bool {
	_, err := d.live(n)
	return err == nil
}

func (d *Document) AddClass(n host.Node, names ...string) error {
	hn, err := d.live(n)
	if err != nil {
		return err
	}
	classes := strings.Fields(attr(hn, "class"))
	for _, name := range names {
		if !contains(classes, name) {
			classes = append(classes, name)
		}
	}
	setAttr(hn, "class", strings.Join(classes, " "))
	return nil
}

func (d *Document) RemoveClass(n host.Node, names ...string) error {
	hn, err := d.live(n)
	if err != nil {
		return err
	}
	var kept []string
	for _, c := range strings.Fields(attr(hn, "class")) {
		if !contains(names, c) {
			kept = append(kept, c)
		}
	}
	setAttr(hn, "class", strings.Join(kept, " "))
	return nil
}

func (d *Document) SetStyleIfUnset(n host.Node, prop, value string) error {
	hn, err := d.live(n)
	if err != nil {
		return err
	}
	style := attr(hn, "style")
	if _, ok := styleProp(style, prop); ok {
		return nil
	}
	decl := prop + ": " + value
	if strings.TrimSpace(style) != "" {
		decl = strings.TrimRight(strings.TrimSpace(style), ";") + "; " + decl
	}
	setAttr(hn, "style", decl)
	return nil
}

func (d *Document) EnsureStyleSheet(id, css string) (bool, error) {
	if d.doc.Find("#"+id).Length() > 0 {
		return false, nil
	}
	head := d.doc.Find("head").First()
	if head.Length() == 0 {
		return false, fmt.Errorf("htmldoc: no head element")
	}
	style := &html.Node{
		Type:     html.ElementNode,
		Data:     "style",
		DataAtom: atom.Style,
		Attr:     []html.Attribute{{Key: "id", Val: id}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	head.Get(0).AppendChild(style)
	d.reindex()
	return true, nil
}

func (d *Document) Viewport() (host.Rect, error) { return d.viewport, nil }

func (d *Document) ScrollIntoView(n host.Node) error {
	if _, err := d.live(n); err != nil {
		return err
	}
	d.scrolls = append(d.scrolls, n.ID())
	return nil
}

// Click records the click. Anchors with an address navigate.
func (d *Document) Click(n host.Node) error {
	hn, err := d.live(n)
	if err != nil {
		return err
	}
	d.clicks = append(d.clicks, n.ID())
	if hn.DataAtom == atom.A {
		if href := d.resolve(attr(hn, "href")); href != "" {
			return d.Navigate(href)
		}
	}
	return nil
}

func (d *Document) Navigate(rawURL string) error {
	u, err := d.base.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("htmldoc: navigate %q: %w", rawURL, err)
	}
	d.base = u
	d.navigations = append(d.navigations, u.String())
	return nil
}

// ---------- host.Feed ----------

type subscription struct {
	ctx context.Context
	h   host.Handlers
}

// Subscribe registers h until ctx is cancelled. Events are delivered
// synchronously by Ready, SetInnerHTML, SetURL and Key.
func (d *Document) Subscribe(ctx context.Context, h host.Handlers) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.subs = append(d.subs, subscription{ctx: ctx, h: h})
	return nil
}

// subscribers drops subscriptions whose context is done and returns the
// rest.
func (d *Document) subscribers() []host.Handlers {
	kept := d.subs[:0]
	out := make([]host.Handlers, 0, len(d.subs))
	for _, s := range d.subs {
		if s.ctx.Err() != nil {
			continue
		}
		kept = append(kept, s)
		out = append(out, s.h)
	}
	clear(d.subs[len(kept):])
	d.subs = kept
	return out
}

// Ready signals document-ready to subscribers.
func (d *Document) Ready() {
	for _, h := range d.subscribers() {
		if h.Ready != nil {
			h.Ready(d.URL())
		}
	}
}

// Key delivers a key-down event to subscribers.
func (d *Document) Key(ev host.KeyEvent) {
	for _, h := range d.subscribers() {
		if h.Key != nil {
			h.Key(ev)
		}
	}
}

// SetInnerHTML replaces the children of the first element matching
// selector and emits a childList mutation targeting it. Replaced nodes go
// stale.
func (d *Document) SetInnerHTML(selector, fragment string) error {
	target := d.doc.Find(selector).First()
	if target.Length() == 0 {
		return fmt.Errorf("htmldoc: no element matches %q", selector)
	}
	tn := target.Get(0)
	nodes, err := html.ParseFragment(strings.NewReader(fragment), tn)
	if err != nil {
		return fmt.Errorf("htmldoc: parse fragment: %w", err)
	}
	for c := tn.FirstChild; c != nil; {
		next := c.NextSibling
		tn.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		tn.AppendChild(n)
	}
	d.reindex()
	d.emit(host.Batch{URL: d.URL(), Records: []host.Mutation{{
		Type:          host.ChildList,
		TargetID:      attr(tn, "id"),
		TargetClasses: strings.Fields(attr(tn, "class")),
	}}})
	return nil
}

// SetURL changes the address without a document reload (history API
// navigation) and emits an empty batch carrying the new address.
func (d *Document) SetURL(rawURL string) error {
	u, err := d.base.Parse(rawURL)
	if err != nil {
		return err
	}
	d.base = u
	d.emit(host.Batch{URL: d.URL()})
	return nil
}

// Emit delivers an arbitrary batch, for callers simulating noise.
func (d *Document) Emit(b host.Batch) { d.emit(b) }

func (d *Document) emit(b host.Batch) {
	for _, h := range d.subscribers() {
		if h.Mutations != nil {
			h.Mutations(b)
		}
	}
}

// ---------- inspection ----------

// Clicks returns the ids of clicked nodes.
func (d *Document) Clicks() []string { return d.clicks }

// Navigations returns every address assigned through Navigate.
func (d *Document) Navigations() []string { return d.navigations }

// Scrolls returns the ids of nodes scrolled into view.
func (d *Document) Scrolls() []string { return d.scrolls }

// HTML serialises the current tree.
func (d *Document) HTML() string {
	var buf bytes.Buffer
	html.Render(&buf, d.root())
	return buf.String()
}

// ---------- internals ----------

func (d *Document) root() *html.Node { return d.doc.Get(0) }

func (d *Document) wrap(n *html.Node) host.Node {
	id, ok := d.ids[n]
	if !ok {
		id = d.newID()
		d.ids[n] = id
	}
	return &node{doc: d, n: n, id: id}
}

// live resolves a host.Node back to its element, failing for nodes from
// another document or detached by a mutation.
func (d *Document) live(n host.Node) (*html.Node, error) {
	nn, ok := n.(*node)
	if !ok || nn == nil || nn.doc != d {
		return nil, host.ErrStale
	}
	if _, attached := d.order[nn.n]; !attached {
		return nil, host.ErrStale
	}
	return nn.n, nil
}

func (d *Document) reindex() {
	d.order = make(map[*html.Node]int)
	i := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			d.order[n] = i
			i++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root())

	for n := range d.ids {
		if _, ok := d.order[n]; !ok {
			delete(d.ids, n)
		}
	}
}

func (d *Document) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := d.base.Parse(href)
	if err != nil {
		return href
	}
	return u.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
