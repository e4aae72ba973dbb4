// Package rodhost implements host.Document and host.Feed over a live Chrome
// tab driven through go-rod.
//
// An injected bridge script tags nodes with generated tokens, answers
// queries with JSON snapshots and reports mutations, key events and
// document-ready through a CDP binding (Runtime.addBinding). The bridge is
// registered with Page.addScriptToEvaluateOnNewDocument so it survives
// full navigations.
package rodhost

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/navkit/idgen"
	"github.com/hazyhaar/navkit/serpnav/host"
	"github.com/hazyhaar/navkit/serpnav/internal/input"
)

//go:embed bridge.js
var bridgeJS string

// BindingName is the CDP binding the bridge reports through.
const BindingName = "__serpnav_binding"

// Config for creating a Page.
type Config struct {
	Page   *rod.Page
	Policy input.Policy
	Logger *slog.Logger
}

// Page is a live host page.
type Page struct {
	page   *rod.Page
	policy input.Policy
	prefix string
	logger *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	remove func() error
}

// New wraps a rod page. Call Install before Subscribe.
func New(cfg Config) *Page {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Page{
		page:   cfg.Page,
		policy: cfg.Policy,
		prefix: idgen.Prefixed("sn", idgen.NanoID(6))() + "-",
		logger: cfg.Logger,
		ctx:    context.Background(),
	}
}

// Install adds the binding, registers the bridge for future documents and
// injects it into the current one.
func (p *Page) Install(ctx context.Context) error {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()

	if err := (proto.RuntimeEnable{}).Call(p.page); err != nil {
		p.logger.Warn("rodhost: runtime enable failed", "error", err)
	}
	if err := (proto.RuntimeAddBinding{Name: BindingName}).Call(p.page); err != nil {
		p.logger.Warn("rodhost: addBinding failed (may already exist)", "error", err)
	}

	script, err := p.script()
	if err != nil {
		return err
	}
	remove, err := p.page.EvalOnNewDocument(script)
	if err != nil {
		return fmt.Errorf("rodhost: register bridge: %w", err)
	}
	p.remove = remove

	// Runtime.evaluate is not subject to the page's CSP, unlike eval().
	res, err := proto.RuntimeEvaluate{Expression: script}.Call(p.page.Context(ctx))
	if err != nil {
		return fmt.Errorf("rodhost: inject bridge: %w", err)
	}
	if res.ExceptionDetails != nil {
		return fmt.Errorf("rodhost: inject bridge: %s", res.ExceptionDetails.Text)
	}
	p.logger.Debug("rodhost: bridge installed", "prefix", p.prefix)
	return nil
}

// Uninstall stops injecting the bridge into future documents.
func (p *Page) Uninstall() error {
	if p.remove == nil {
		return nil
	}
	err := p.remove()
	p.remove = nil
	return err
}

func (p *Page) script() (string, error) {
	cfg, err := json.Marshal(struct {
		Prefix  string       `json:"prefix"`
		Binding string       `json:"binding"`
		Policy  input.Policy `json:"policy"`
	}{p.prefix, BindingName, p.policy})
	if err != nil {
		return "", fmt.Errorf("rodhost: encode bridge config: %w", err)
	}
	return fmt.Sprintf("window.__serpnav_config = %s;\n%s", cfg, bridgeJS), nil
}

// ---------- host.Feed ----------

// message is one binding payload.
type message struct {
	Kind    string          `json:"kind"`
	URL     string          `json:"url"`
	Records []host.Mutation `json:"records"`
	Event   host.KeyEvent   `json:"event"`
}

// Subscribe delivers bridge messages to h until ctx is cancelled. Handlers
// run on the CDP event goroutine.
func (p *Page) Subscribe(ctx context.Context, h host.Handlers) error {
	wait := p.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != BindingName {
			return
		}
		msg, err := decodeMessage(e.Payload)
		if err != nil {
			p.logger.Warn("rodhost: parse binding payload", "error", err)
			return
		}
		dispatch(msg, h)
	})
	go wait()
	return nil
}

func decodeMessage(payload string) (message, error) {
	var msg message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return message{}, err
	}
	return msg, nil
}

func dispatch(msg message, h host.Handlers) {
	switch msg.Kind {
	case "ready":
		if h.Ready != nil {
			h.Ready(msg.URL)
		}
	case "mutations":
		if h.Mutations != nil {
			h.Mutations(host.Batch{URL: msg.URL, Records: msg.Records})
		}
	case "key":
		if h.Key != nil {
			h.Key(msg.Event)
		}
	}
}

// SetSelected tells the bridge whether an entry is selected, which decides
// whether Enter suppresses the default action.
func (p *Page) SetSelected(selected bool) error {
	_, err := p.eval(`(v) => { if (window.__serpnav_state) window.__serpnav_state.selected = v; }`, selected)
	return err
}

// ---------- host.Document ----------

func (p *Page) URL() string {
	var u string
	if err := p.call(&u, "url"); err != nil {
		p.logger.Debug("rodhost: url unavailable", "error", err)
		return ""
	}
	return u
}

func (p *Page) QueryAll(selector string) ([]host.Node, error) {
	var snaps []snapshot
	if err := p.call(&snaps, "query", selector); err != nil {
		return nil, err
	}
	nodes := make([]host.Node, len(snaps))
	for i := range snaps {
		nodes[i] = &snaps[i]
	}
	return nodes, nil
}

func (p *Page) Closest(n host.Node, selector string) (host.Node, error) {
	return p.optionalNode("closest", n.ID(), selector)
}

func (p *Page) Parent(n host.Node) (host.Node, error) {
	return p.optionalNode("parent", n.ID())
}

func (p *Page) Alive(n host.Node) bool {
	var ok bool
	if err := p.call(&ok, "alive", n.ID()); err != nil {
		return false
	}
	return ok
}

func (p *Page) AddClass(n host.Node, names ...string) error {
	return p.call(nil, "addClass", n.ID(), names)
}

func (p *Page) RemoveClass(n host.Node, names ...string) error {
	return p.call(nil, "removeClass", n.ID(), names)
}

func (p *Page) SetStyleIfUnset(n host.Node, prop, value string) error {
	return p.call(nil, "setStyleIfUnset", n.ID(), prop, value)
}

func (p *Page) EnsureStyleSheet(id, css string) (bool, error) {
	var injected bool
	err := p.call(&injected, "ensureStyleSheet", id, css)
	return injected, err
}

func (p *Page) Viewport() (host.Rect, error) {
	var r rect
	if err := p.call(&r, "viewport"); err != nil {
		return host.Rect{}, err
	}
	return r.host(), nil
}

func (p *Page) ScrollIntoView(n host.Node) error {
	return p.call(nil, "scroll", n.ID())
}

func (p *Page) Click(n host.Node) error {
	return p.call(nil, "click", n.ID())
}

func (p *Page) Navigate(url string) error {
	return p.call(nil, "navigate", url)
}

func (p *Page) optionalNode(method string, args ...any) (host.Node, error) {
	var snap *snapshot
	if err := p.call(&snap, method, args...); err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	return snap, nil
}

// envelope is the bridge's reply to one call.
type envelope struct {
	Value json.RawMessage `json:"value"`
	Stale bool            `json:"stale"`
	Error string          `json:"error"`
}

var errBridgeMissing = errors.New("rodhost: bridge not installed")

// call invokes a bridge method and decodes its value into out (nil to
// discard).
func (p *Page) call(out any, method string, args ...any) error {
	if args == nil {
		args = []any{}
	}
	res, err := p.eval(`(m, a) => window.__serpnav ? window.__serpnav.call(m, a) : ""`, method, args)
	if err != nil {
		return fmt.Errorf("rodhost: %s: %w", method, err)
	}
	return decodeEnvelope(res.Value.Str(), method, out)
}

func decodeEnvelope(raw, method string, out any) error {
	if raw == "" {
		return errBridgeMissing
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return fmt.Errorf("rodhost: %s: decode reply: %w", method, err)
	}
	switch {
	case env.Stale:
		return host.ErrStale
	case env.Error != "":
		return fmt.Errorf("rodhost: %s: %s", method, env.Error)
	}
	if out == nil || len(env.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Value, out); err != nil {
		return fmt.Errorf("rodhost: %s: decode value: %w", method, err)
	}
	return nil
}

func (p *Page) eval(js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	return p.page.Context(ctx).Eval(js, args...)
}
