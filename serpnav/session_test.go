package serpnav

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/navkit/serpnav/host"
	"github.com/hazyhaar/navkit/serpnav/internal/focus"
	"github.com/hazyhaar/navkit/serpnav/internal/htmldoc"
	"github.com/hazyhaar/navkit/serpnav/internal/loop"
)

const searchURL = "https://www.google.com/search?q=golang"

func cards(names ...string) string {
	var sb strings.Builder
	for _, n := range names {
		l := strings.ToLower(n)
		sb.WriteString(`<div class="g"><h3><a href="https://` + l + `.example/">Result ` + n + `</a></h3></div>`)
	}
	return sb.String()
}

func serp(names ...string) string {
	return `<html><head></head><body>
<form><input id="q" name="q" value="golang"></form>
<div id="search"><div id="rso">` + cards(names...) + `</div></div>
<table><tr>
  <td><a id="pnprev" style="display:none" href="/search?q=golang&amp;start=0">Previous</a></td>
  <td><a id="pnnext" href="/search?q=golang&amp;start=10">Next</a></td>
</tr></table>
</body></html>`
}

// selDoc records what the session pushes through SetSelected.
type selDoc struct {
	*htmldoc.Document
	pushed []bool
}

func (d *selDoc) SetSelected(v bool) error {
	d.pushed = append(d.pushed, v)
	return nil
}

type fixture struct {
	doc    *selDoc
	clock  *loop.Manual
	sess   *Session
	events []Event
}

func newFixture(t *testing.T, src string) *fixture {
	t.Helper()
	doc, err := htmldoc.ParseString(src, searchURL)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{doc: &selDoc{Document: doc}, clock: loop.NewManual()}
	f.sess = NewSession(f.doc, f.doc, Options{
		PageID:     "p1",
		Navigation: DefaultConfig().Navigation,
		Sink: NewCallbackSink(func(_ context.Context, ev Event) error {
			f.events = append(f.events, ev)
			return nil
		}),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		sched:  f.clock,
	})
	if err := f.sess.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(f.sess.Stop)
	return f
}

func (f *fixture) press(code string) {
	f.doc.Key(host.KeyEvent{Code: code, Target: host.Target{Tag: "body"}})
}

func (f *fixture) index() int {
	var idx int
	f.sess.Do(func(i, _ int) { idx = i })
	return idx
}

func (f *fixture) marked(t *testing.T) []host.Node {
	t.Helper()
	nodes, err := f.doc.QueryAll("." + focus.FocusedClass)
	if err != nil {
		t.Fatal(err)
	}
	return nodes
}

func (f *fixture) count(typ string) int {
	n := 0
	for _, ev := range f.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func TestSession_KeyboardFlow(t *testing.T) {
	f := newFixture(t, serp("A", "B", "C"))
	f.doc.Ready()

	if f.count(EventScan) != 1 {
		t.Fatalf("startup scans: got %d, want 1", f.count(EventScan))
	}
	if f.index() != -1 {
		t.Fatalf("nothing should be selected before the first key")
	}

	f.press("KeyJ")
	f.press("KeyJ")
	f.press("KeyJ")
	f.press("KeyJ")
	if f.index() != 2 {
		t.Fatalf("index after four downs: got %d, want 2 (clamped)", f.index())
	}
	f.press("KeyK")
	if f.index() != 1 {
		t.Fatalf("index after up: got %d, want 1", f.index())
	}

	marked := f.marked(t)
	if len(marked) != 1 || !strings.Contains(marked[0].Text(), "Result B") {
		t.Fatalf("highlight: %d nodes", len(marked))
	}

	f.press("Enter")
	navs := f.doc.Navigations()
	if len(navs) != 1 || navs[0] != "https://b.example/" {
		t.Fatalf("navigations: %v", navs)
	}

	// Three distinct moves out of four downs, plus the up.
	if got := f.count(EventFocus); got != 4 {
		t.Errorf("focus events: got %d, want 4", got)
	}
	if got := f.count(EventCommand); got != 6 {
		t.Errorf("command events: got %d, want 6", got)
	}
	if last := f.doc.pushed[len(f.doc.pushed)-1]; !last {
		t.Error("selection state should have been pushed as selected")
	}
}

func TestSession_EditableTargetIgnored(t *testing.T) {
	f := newFixture(t, serp("A", "B"))
	f.doc.Ready()

	f.doc.Key(host.KeyEvent{Code: "KeyJ", Target: host.Target{Tag: "input"}})
	f.doc.Key(host.KeyEvent{Code: "KeyJ", Target: host.Target{Tag: "div", Editable: true}})
	if f.index() != -1 {
		t.Fatalf("typing moved the cursor to %d", f.index())
	}
	if f.count(EventCommand) != 0 {
		t.Errorf("commands emitted for editable targets")
	}
}

func TestSession_EnterWithoutSelectionIsIgnored(t *testing.T) {
	f := newFixture(t, serp("A"))
	f.doc.Ready()

	f.press("Enter")
	if len(f.doc.Navigations()) != 0 {
		t.Fatalf("navigated without a selection: %v", f.doc.Navigations())
	}
	if f.count(EventCommand) != 0 {
		t.Errorf("Enter without selection should stay with the host")
	}
}

func TestSession_Pagination(t *testing.T) {
	f := newFixture(t, serp("A"))
	f.doc.Ready()

	f.press("KeyH")
	if len(f.doc.Navigations()) != 0 {
		t.Fatalf("hidden previous control was followed: %v", f.doc.Navigations())
	}

	f.doc.Key(host.KeyEvent{Code: "KeyL", Ctrl: true})
	if len(f.doc.Navigations()) != 0 {
		t.Fatalf("Ctrl+L must keep its browser meaning")
	}

	f.press("KeyL")
	navs := f.doc.Navigations()
	if len(navs) != 1 || navs[0] != "https://www.google.com/search?q=golang&start=10" {
		t.Fatalf("navigations: %v", navs)
	}

	var handled []bool
	for _, ev := range f.events {
		if ev.Type == EventCommand {
			handled = append(handled, ev.Data.(CommandData).Handled)
		}
	}
	if len(handled) != 2 || handled[0] || !handled[1] {
		t.Errorf("handled flags: %v", handled)
	}
}

func TestSession_LazyRefreshBeforeReady(t *testing.T) {
	f := newFixture(t, serp("A", "B"))

	// No ready event: the first key press scans on demand.
	f.press("KeyJ")
	if f.index() != 0 {
		t.Fatalf("index: got %d, want 0", f.index())
	}
	if len(f.marked(t)) != 1 {
		t.Error("entry not highlighted after lazy refresh")
	}
}

func TestSession_MutationRescanKeepsSelection(t *testing.T) {
	f := newFixture(t, serp("A", "B", "C"))
	f.doc.Ready()
	f.press("KeyJ")
	f.press("KeyJ")

	if err := f.doc.SetInnerHTML("#rso", cards("X", "B", "C")); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(800 * time.Millisecond)

	if f.count(EventScan) != 2 {
		t.Fatalf("scans: got %d, want 2", f.count(EventScan))
	}
	last := f.events[len(f.events)-1]
	data, ok := last.Data.(ScanData)
	if !ok || data.Reason != "mutation" || data.Entries != 3 || data.Index != 1 {
		t.Fatalf("scan event: %+v", last.Data)
	}
	marked := f.marked(t)
	if len(marked) != 1 || !strings.Contains(marked[0].Text(), "Result B") {
		t.Fatalf("highlight did not follow B")
	}
}

func TestSession_StopClearsEverything(t *testing.T) {
	f := newFixture(t, serp("A", "B"))
	f.doc.Ready()
	f.press("KeyJ")

	if err := f.doc.SetInnerHTML("#rso", cards("A", "B", "C")); err != nil {
		t.Fatal(err)
	}
	f.sess.Stop()

	if len(f.marked(t)) != 0 {
		t.Error("highlight survived Stop")
	}
	if f.clock.Pending() != 0 {
		t.Errorf("pending timers after Stop: %d", f.clock.Pending())
	}
	if f.doc.pushed[len(f.doc.pushed)-1] {
		t.Error("selection state should be cleared on Stop")
	}
	scans := f.count(EventScan)
	f.clock.Advance(5 * time.Second)
	if f.count(EventScan) != scans {
		t.Error("scan ran after Stop")
	}

	// The feed no longer reaches the stopped session.
	commands := f.count(EventCommand)
	f.press("KeyJ")
	if f.count(EventCommand) != commands {
		t.Error("key handled after Stop")
	}

	// Idempotent.
	f.sess.Stop()
}

func TestSession_StartTwice(t *testing.T) {
	f := newFixture(t, serp("A"))
	if err := f.sess.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}
}
