// Package host defines the contract between serpnav and the page it
// navigates. The page is an external collaborator: its tree is rewritten
// by code serpnav does not control, so every Node is a snapshot that may
// go stale at the next mutation.
//
// Two implementations exist: internal/rodhost drives a live Chrome tab,
// internal/htmldoc wraps a parsed HTML document held in memory.
package host

import (
	"context"
	"errors"
)

// ErrStale is returned by Document operations on a Node that no longer
// corresponds to a live element.
var ErrStale = errors.New("host: stale node reference")

// Rect is the bounding box of a node in viewport coordinates.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns the lower edge of the box.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Empty reports whether the box has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// TreePos locates a node in its tree. Root is empty for the main
// document, shadow content included: its path continues through the
// shadow host, with -1 marking the boundary. Nodes in detached subtrees
// or another document carry another root id. Path lists element-child
// indices from the root down to the node.
type TreePos struct {
	Root string `json:"root,omitempty"`
	Path []int  `json:"path"`
}

// ComparePos orders two positions in document order. ok is false when the
// nodes live under different roots and have no structural relationship.
// An ancestor precedes its descendants.
func ComparePos(a, b TreePos) (cmp int, ok bool) {
	if a.Root != b.Root {
		return 0, false
	}
	n := len(a.Path)
	if len(b.Path) < n {
		n = len(b.Path)
	}
	for i := 0; i < n; i++ {
		switch {
		case a.Path[i] < b.Path[i]:
			return -1, true
		case a.Path[i] > b.Path[i]:
			return 1, true
		}
	}
	switch {
	case len(a.Path) < len(b.Path):
		return -1, true
	case len(a.Path) > len(b.Path):
		return 1, true
	}
	return 0, true
}

// Node is a snapshot of one element. Identity is ID(): two snapshots of
// the same live element share it, two distinct elements never do, even if
// every other attribute is equal.
type Node interface {
	ID() string
	Tag() string
	// Href is the absolute destination for links, empty otherwise.
	Href() string
	// Attr returns a raw attribute value.
	Attr(name string) (string, bool)
	// Text is the rendered text content.
	Text() string
	Rect() Rect
	// Visible is false for nodes hidden by display, visibility or a
	// missing offset parent.
	Visible() bool
	// Display is the computed CSS display value.
	Display() string
	Pos() TreePos
}

// Document is the mutable host page.
type Document interface {
	URL() string
	// QueryAll returns the nodes matching a CSS selector in document order.
	// An invalid selector is an error.
	QueryAll(selector string) ([]Node, error)
	// Closest returns the nearest inclusive ancestor matching selector, or
	// nil when there is none.
	Closest(n Node, selector string) (Node, error)
	// Parent returns the parent element, or nil at the body element.
	Parent(n Node) (Node, error)
	// Alive reports whether n still refers to an element in the document.
	Alive(n Node) bool

	AddClass(n Node, names ...string) error
	RemoveClass(n Node, names ...string) error
	// SetStyleIfUnset sets an inline style property unless the element
	// already carries one.
	SetStyleIfUnset(n Node, prop, value string) error
	// EnsureStyleSheet injects a style element with the given id unless one
	// is already present. It reports whether it injected.
	EnsureStyleSheet(id, css string) (bool, error)

	// Viewport returns the visible area of the page.
	Viewport() (Rect, error)
	// ScrollIntoView smoothly centres n in the viewport.
	ScrollIntoView(n Node) error
	// Click simulates activation of n.
	Click(n Node) error
	// Navigate assigns a new address to the browsing context.
	Navigate(url string) error
}

// Feed delivers host events. Handlers may be called from any goroutine.
type Feed interface {
	Subscribe(ctx context.Context, h Handlers) error
}

// Handlers receive host events. Nil handlers are skipped.
type Handlers struct {
	// Ready fires once the document has been parsed (and again after every
	// full navigation).
	Ready func(url string)
	// Mutations receives structural changes observed in one callback.
	Mutations func(Batch)
	// Key receives key-down events.
	Key func(KeyEvent)
}
