package htmldoc

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/navkit/serpnav/host"
)

const fixture = `<html><head><title>t</title></head><body>
<div id="search" class="outer">
  <div id="rso">
    <div class="g" id="first"><h3><a href="/url?q=a">Alpha</a></h3></div>
    <div class="g" style="display: none"><h3><a href="https://hidden.example/">Hidden</a></h3></div>
    <div class="g" style="visibility:hidden"><span style="visibility: visible"><a id="shown" href="https://b.example/">Beta</a></span></div>
    <div class="g" data-rect="10, 400, 600, 80"><a id="boxed" href="https://c.example/">Gamma</a></div>
  </div>
</div>
</body></html>`

func load(t *testing.T) *Document {
	t.Helper()
	d, err := ParseString(fixture, "https://www.google.com/search?q=go")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func one(t *testing.T, d *Document, sel string) host.Node {
	t.Helper()
	nodes, err := d.QueryAll(sel)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 {
		t.Fatalf("%s: got %d nodes, want 1", sel, len(nodes))
	}
	return nodes[0]
}

func TestQueryAll_OrderAndIdentity(t *testing.T) {
	d := load(t)
	a, err := d.QueryAll(".g a")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 4 {
		t.Fatalf("anchors: got %d, want 4", len(a))
	}
	if a[0].Href() != "https://www.google.com/url?q=a" {
		t.Errorf("relative href not resolved: %q", a[0].Href())
	}
	if raw, ok := a[0].Attr("href"); !ok || raw != "/url?q=a" {
		t.Errorf("raw attr: %q %v", raw, ok)
	}

	again, _ := d.QueryAll(".g a")
	for i := range a {
		if a[i].ID() != again[i].ID() {
			t.Errorf("identity changed between queries at %d", i)
		}
	}
	if a[0].ID() == a[1].ID() {
		t.Error("distinct elements share an id")
	}

	if _, err := d.QueryAll("a["); err == nil {
		t.Error("invalid selector should fail")
	}
}

func TestVisibilityAndGeometry(t *testing.T) {
	d := load(t)
	nodes, _ := d.QueryAll(".g a")

	if !nodes[0].Visible() || nodes[1].Visible() {
		t.Errorf("display: visible=%v hidden=%v", nodes[0].Visible(), nodes[1].Visible())
	}
	if !one(t, d, "#shown").Visible() {
		t.Error("nearest explicit visibility wins")
	}
	if !nodes[1].Rect().Empty() {
		t.Error("hidden node should have an empty box")
	}

	r := one(t, d, "#boxed").Rect()
	if r.Empty() {
		t.Fatal("flow box should not be empty")
	}
	box := one(t, d, `[data-rect]`).Rect()
	if box.Left != 10 || box.Top != 400 || box.Width != 600 || box.Height != 80 {
		t.Errorf("data-rect: %+v", box)
	}

	if got := one(t, d, "#first").Display(); got != "block" {
		t.Errorf("div display: %q", got)
	}
	if got := one(t, d, "#shown").Display(); got != "inline" {
		t.Errorf("anchor display: %q", got)
	}
}

func TestClosestAndParent(t *testing.T) {
	d := load(t)
	a := one(t, d, "#boxed")

	g, err := d.Closest(a, ".g")
	if err != nil || g == nil {
		t.Fatalf("closest: %v %v", g, err)
	}
	if none, err := d.Closest(a, ".nope"); err != nil || none != nil {
		t.Errorf("closest without match: %v %v", none, err)
	}

	outer := one(t, d, "#search")
	if p, err := d.Parent(outer); err != nil || p != nil {
		t.Errorf("parent above body: %v %v", p, err)
	}
	if p, err := d.Parent(a); err != nil || p == nil || p.ID() != g.ID() {
		t.Errorf("parent: %v %v", p, err)
	}
}

func TestMutationsStaleNodes(t *testing.T) {
	d := load(t)
	var batches []host.Batch
	if err := d.Subscribe(context.Background(), host.Handlers{Mutations: func(b host.Batch) { batches = append(batches, b) }}); err != nil {
		t.Fatal(err)
	}

	old := one(t, d, "#first")
	survivor := one(t, d, "#search")
	if err := d.SetInnerHTML("#rso", `<div class="g"><a href="https://z.example/">Zeta</a></div>`); err != nil {
		t.Fatal(err)
	}

	if d.Alive(old) {
		t.Error("replaced node should be stale")
	}
	if err := d.AddClass(old, "x"); !errors.Is(err, host.ErrStale) {
		t.Errorf("AddClass on stale node: %v", err)
	}
	if !d.Alive(survivor) {
		t.Error("untouched ancestor should stay alive")
	}

	if len(batches) != 1 || batches[0].Records[0].Type != host.ChildList || batches[0].Records[0].TargetID != "rso" {
		t.Fatalf("batches: %+v", batches)
	}

	if err := d.SetURL("/search?q=rust"); err != nil {
		t.Fatal(err)
	}
	if len(batches) != 2 || batches[1].URL != "https://www.google.com/search?q=rust" || len(batches[1].Records) != 0 {
		t.Errorf("url batch: %+v", batches[len(batches)-1])
	}
	if err := d.SetInnerHTML("#missing", ""); err == nil {
		t.Error("missing target should fail")
	}
}

func TestClassesAndStyle(t *testing.T) {
	d := load(t)
	g := one(t, d, "#first")

	if err := d.AddClass(g, "sel", "sel", "box"); err != nil {
		t.Fatal(err)
	}
	if got, _ := g.Attr("class"); got != "g sel box" {
		t.Errorf("after add: %q", got)
	}
	if err := d.RemoveClass(g, "sel", "box"); err != nil {
		t.Fatal(err)
	}
	if got, _ := g.Attr("class"); got != "g" {
		t.Errorf("after remove: %q", got)
	}

	if err := d.SetStyleIfUnset(g, "overflow", "hidden"); err != nil {
		t.Fatal(err)
	}
	if err := d.SetStyleIfUnset(g, "overflow", "scroll"); err != nil {
		t.Fatal(err)
	}
	if got, _ := g.Attr("style"); got != "overflow: hidden" {
		t.Errorf("style: %q", got)
	}

	injected, err := d.EnsureStyleSheet("sheet", ".sel{}")
	if err != nil || !injected {
		t.Fatalf("first inject: %v %v", injected, err)
	}
	injected, err = d.EnsureStyleSheet("sheet", ".sel{}")
	if err != nil || injected {
		t.Fatalf("second inject: %v %v", injected, err)
	}
	if strings.Count(d.HTML(), `id="sheet"`) != 1 {
		t.Error("style sheet duplicated")
	}
}

func TestClickAndNavigate(t *testing.T) {
	d := load(t)
	a := one(t, d, "#boxed")
	if err := d.Click(a); err != nil {
		t.Fatal(err)
	}
	if len(d.Clicks()) != 1 || d.Clicks()[0] != a.ID() {
		t.Errorf("clicks: %v", d.Clicks())
	}
	if d.URL() != "https://c.example/" {
		t.Errorf("url after click: %q", d.URL())
	}
	if navs := d.Navigations(); len(navs) != 1 || navs[0] != "https://c.example/" {
		t.Errorf("navigations: %v", navs)
	}

	if err := d.ScrollIntoView(a); err != nil {
		t.Fatal(err)
	}
	if len(d.Scrolls()) != 1 {
		t.Errorf("scrolls: %v", d.Scrolls())
	}
}

func TestFeedDelivers(t *testing.T) {
	d := load(t)
	var ready string
	var key host.KeyEvent
	err := d.Subscribe(context.Background(), host.Handlers{
		Ready: func(u string) { ready = u },
		Key:   func(ev host.KeyEvent) { key = ev },
	})
	if err != nil {
		t.Fatal(err)
	}
	d.Ready()
	d.Key(host.KeyEvent{Code: "KeyJ"})
	d.Emit(host.Batch{URL: "x"})

	if ready != "https://www.google.com/search?q=go" || key.Code != "KeyJ" {
		t.Errorf("ready %q key %+v", ready, key)
	}
}

func TestPos_DataRoot(t *testing.T) {
	d, err := ParseString(`<html><body><div id="main"><span></span><div data-root="frame-1" id="frame"><p><a id="in" href="https://a.example/">A</a></p></div></div></body></html>`, "https://www.google.com/")
	if err != nil {
		t.Fatal(err)
	}
	main := one(t, d, "#main").Pos()
	if main.Root != "" || len(main.Path) == 0 {
		t.Errorf("main document pos: %+v", main)
	}
	if p := one(t, d, "#frame").Pos(); p.Root != "frame-1" || len(p.Path) != 0 {
		t.Errorf("root element pos: %+v", p)
	}
	if p := one(t, d, "#in").Pos(); p.Root != "frame-1" || len(p.Path) != 2 || p.Path[0] != 0 || p.Path[1] != 0 {
		t.Errorf("nested pos: %+v", p)
	}
}

func TestSubscribe_CancelledContextStopsDelivery(t *testing.T) {
	d := load(t)
	ctx, cancel := context.WithCancel(context.Background())
	var keys, stays int
	if err := d.Subscribe(ctx, host.Handlers{Key: func(host.KeyEvent) { keys++ }}); err != nil {
		t.Fatal(err)
	}
	if err := d.Subscribe(context.Background(), host.Handlers{Key: func(host.KeyEvent) { stays++ }}); err != nil {
		t.Fatal(err)
	}

	d.Key(host.KeyEvent{Code: "KeyJ"})
	cancel()
	d.Key(host.KeyEvent{Code: "KeyJ"})
	d.Ready()

	if keys != 1 {
		t.Errorf("cancelled subscription: got %d keys, want 1", keys)
	}
	if stays != 2 {
		t.Errorf("live subscription: got %d keys, want 2", stays)
	}
	if err := d.Subscribe(ctx, host.Handlers{}); !errors.Is(err, context.Canceled) {
		t.Errorf("subscribe with done context: got %v", err)
	}
}
