package locator

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hazyhaar/navkit/serpnav/host"
	"github.com/hazyhaar/navkit/serpnav/internal/htmldoc"
)

const pageURL = "https://www.google.com/search?q=golang"

const mixedPage = `<!DOCTYPE html>
<html><head><title>golang - Search</title></head>
<body>
<div id="search"><div id="rso">
  <div class="g"><h3><a href="https://a.example/">Alpha result</a></h3></div>
  <div class="MjjYud"><div class="g"><div class="yuRUbf"><a href="https://b.example/"><h3>Beta result</h3></a></div></div></div>
  <div class="g"><div class="yuRUbf"><a href="https://www.youtube.com/watch?v=1"><h3>Gamma video</h3></a></div></div>
  <div class="isv-r"><a href="https://img.example/1"><img src="x.png"></a></div>
  <div class="SoaBEf"><div class="WlydOe"><h3><a href="https://news.example/story">Delta news</a></h3></div></div>
  <div class="kp-blk"><h3><a href="https://wiki.example/">Epsilon panel</a></h3></div>
  <div class="g"><h3><a href="https://a.example/">Alpha, second card</a></h3></div>

  <div class="g"><h3><a href="https://www.google.com/search?q=more">Search more</a></h3></div>
  <div class="g"><h3><a href="https://accounts.google.com/login">Sign in</a></h3></div>
  <div class="g"><h3><a href="https://maps.google.com/maps?q=x">Map embed</a></h3></div>
  <div class="g"><h3><a href="javascript:void(0)">Script link</a></h3></div>
  <div class="g"><h3><a href="#top">Top anchor</a></h3></div>
  <div class="g"><h3><a href="https://hidden.example/" style="display:none">Hidden</a></h3></div>
  <div class="g" style="visibility:hidden"><h3><a href="https://invisible.example/">Invisible</a></h3></div>
  <div class="g"><h3><a href="https://zero.example/" data-rect="0,0,0,0">Zero box</a></h3></div>
  <div class="g"><h3><a href="https://c.example/">ok</a></h3></div>
  <div data-ved="1"><a href="https://more.example/" data-ri="0">More chip</a></div>
</div></div>
</body></html>`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parse(t *testing.T, src string) *htmldoc.Document {
	t.Helper()
	doc, err := htmldoc.ParseString(src, pageURL)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestLocate_MixedCategories(t *testing.T) {
	doc := parse(t, mixedPage)
	scan := New(WithLogger(quietLogger())).Locate(doc)

	if !scan.Ready {
		t.Fatal("expected ready scan")
	}
	if len(scan.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", scan.Failures)
	}

	want := []string{
		"https://a.example/",
		"https://b.example/",
		"https://www.youtube.com/watch?v=1",
		"https://img.example/1",
		"https://news.example/story",
		"https://wiki.example/",
		"https://a.example/",
	}
	if len(scan.Set) != len(want) {
		for _, e := range scan.Set {
			t.Logf("entry: %s %s", e.Href, e.Category)
		}
		t.Fatalf("entries: got %d, want %d", len(scan.Set), len(want))
	}

	ids := make(map[string]bool)
	for i, e := range scan.Set {
		if e.Href != want[i] {
			t.Errorf("entry %d: got %q, want %q", i, e.Href, want[i])
		}
		if ids[e.ID()] {
			t.Errorf("entry %d: duplicate identity %s", i, e.ID())
		}
		ids[e.ID()] = true
		if i > 0 && e.Rect.Top <= scan.Set[i-1].Rect.Top {
			t.Errorf("entry %d: not below entry %d", i, i-1)
		}
	}

	if scan.Counts[Video] != 1 || scan.Counts[Image] != 1 || scan.Counts[News] != 1 {
		t.Errorf("counts: got %v", scan.Counts)
	}
	if scan.Set[3].Category != Image {
		t.Errorf("image entry category: got %s", scan.Set[3].Category)
	}
}

func TestLocate_OtherRootMergedByGeometry(t *testing.T) {
	doc := parse(t, `<html><head></head><body>
<div id="search"><div id="rso">
  <div class="g"><h3><a href="https://a.example/" data-rect="0,900,600,20">Alpha result</a></h3></div>
  <div class="g" data-root="frame-1"><h3><a href="https://framed.example/" data-rect="0,500,600,20">Framed result</a></h3></div>
  <div class="g"><h3><a href="https://b.example/" data-rect="0,5,600,20">Beta result</a></h3></div>
  <div class="g"><h3><a href="https://c.example/" data-rect="0,10,600,20">Gamma result</a></h3></div>
</div></div>
</body></html>`)
	scan := New(WithLogger(quietLogger())).Locate(doc)

	want := []string{
		"https://framed.example/",
		"https://a.example/",
		"https://b.example/",
		"https://c.example/",
	}
	got := make([]string, len(scan.Set))
	for i, e := range scan.Set {
		got[i] = e.Href
	}
	if len(got) != len(want) {
		t.Fatalf("entries: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order: got %v, want %v", got, want)
		}
	}
	if scan.Set[0].Pos.Root != "frame-1" {
		t.Errorf("framed entry root: got %q", scan.Set[0].Pos.Root)
	}
}

func TestLocate_SharedAddressKeepsBothCards(t *testing.T) {
	doc := parse(t, mixedPage)
	scan := New(WithLogger(quietLogger())).Locate(doc)

	n := 0
	for _, e := range scan.Set {
		if e.Href == "https://a.example/" {
			n++
		}
	}
	if n != 2 {
		t.Fatalf("entries sharing an address: got %d, want 2", n)
	}
}

func TestLocate_NotReady(t *testing.T) {
	doc := parse(t, `<html><head></head><body><div class="g"><h3><a href="https://a.example/">Alpha</a></h3></div></body></html>`)
	scan := New(WithLogger(quietLogger())).Locate(doc)

	if scan.Ready {
		t.Fatal("expected not ready without a result container")
	}
	if !errors.Is(scan.Err(), ErrNotReady) {
		t.Errorf("Err: got %v, want ErrNotReady", scan.Err())
	}
	if len(scan.Set) != 0 {
		t.Errorf("entries: got %d, want 0", len(scan.Set))
	}
}

func TestLocate_EmptyIsNotAnError(t *testing.T) {
	doc := parse(t, `<html><head></head><body><div id="rso"></div></body></html>`)
	scan := New(WithLogger(quietLogger())).Locate(doc)

	if !scan.Ready || scan.Err() != nil {
		t.Fatalf("empty container should be a ready scan, got ready=%v err=%v", scan.Ready, scan.Err())
	}
	if len(scan.Set) != 0 {
		t.Errorf("entries: got %d, want 0", len(scan.Set))
	}
}

func TestLocate_InvalidRuleIsIsolated(t *testing.T) {
	doc := parse(t, mixedPage)
	rules := []Rule{
		{"broken", "a[href"},
		{"title-h3", ".g h3 a"},
	}
	scan := New(WithRules(rules), WithLogger(quietLogger())).Locate(doc)

	if len(scan.Failures) != 1 || scan.Failures[0].Rule != "broken" {
		t.Fatalf("failures: got %v", scan.Failures)
	}
	if len(scan.Set) == 0 {
		t.Fatal("healthy rule should still contribute entries")
	}
}

// panicDoc panics on one selector to exercise the fault boundary.
type panicDoc struct {
	*htmldoc.Document
	selector string
}

func (p *panicDoc) QueryAll(sel string) ([]host.Node, error) {
	if sel == p.selector {
		panic("selector engine exploded")
	}
	return p.Document.QueryAll(sel)
}

func TestLocate_PanickingRuleIsIsolated(t *testing.T) {
	doc := &panicDoc{Document: parse(t, mixedPage), selector: `.g .yuRUbf a[href*="youtube.com"]`}
	scan := New(WithLogger(quietLogger())).Locate(doc)

	if len(scan.Failures) != 1 {
		t.Fatalf("failures: got %d, want 1", len(scan.Failures))
	}
	var perr *PatternError
	if !errors.As(scan.Failures[0], &perr) || perr.Rule != "video-wrapper" {
		t.Fatalf("failure: got %v", scan.Failures[0])
	}
	// Overlapping rules still find every entry.
	if len(scan.Set) != 7 {
		t.Errorf("entries: got %d, want 7", len(scan.Set))
	}
}

func TestNavigable(t *testing.T) {
	tests := []struct {
		href, raw string
		want      bool
	}{
		{"https://a.example/", "https://a.example/", true},
		{"http://a.example/path?x=1", "/path", true},
		{"", "", false},
		{"https://www.google.com/search?q=x", "/search?q=x", false},
		{"https://support.google.com/x", "", false},
		{"https://policies.google.com/privacy", "", false},
		{"https://maps.google.com/maps?q=1", "", false},
		{"javascript:void(0)", "javascript:void(0)", false},
		{"mailto:a@b.c", "mailto:a@b.c", false},
		{pageURL + "#frag", "#frag", false},
		{"https://www.google.com/search?q=golang#x", "?q=golang#x", false},
		{"https://a.example/#section", "https://a.example/#section", true},
	}
	for _, tt := range tests {
		if got := navigable(tt.href, tt.raw, pageURL); got != tt.want {
			t.Errorf("navigable(%q, %q): got %v, want %v", tt.href, tt.raw, got, tt.want)
		}
	}
}

func TestLocate_RuleTableIsWellFormed(t *testing.T) {
	names := make(map[string]bool)
	for _, r := range DefaultRules {
		if names[r.Name] {
			t.Errorf("duplicate rule name %q", r.Name)
		}
		names[r.Name] = true
		if strings.TrimSpace(r.Selector) == "" {
			t.Errorf("rule %q has no selector", r.Name)
		}
	}
	// Every default selector must compile.
	doc := parse(t, mixedPage)
	for _, r := range DefaultRules {
		if _, err := doc.QueryAll(r.Selector); err != nil {
			t.Errorf("rule %q: %v", r.Name, err)
		}
	}
}
