package htmldoc

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/navkit/serpnav/host"
)

const (
	lineHeight = 20
	pageWidth  = 800
)

// node is a view over a live element. Attribute reads reflect the current
// tree; geometry is recomputed on every call.
type node struct {
	doc *Document
	n   *html.Node
	id  string
}

func (n *node) ID() string  { return n.id }
func (n *node) Tag() string { return n.n.Data }

func (n *node) Href() string {
	switch n.n.DataAtom {
	case atom.A, atom.Area:
		if hasAttr(n.n, "href") {
			return n.doc.resolve(attr(n.n, "href"))
		}
	}
	return ""
}

func (n *node) Attr(name string) (string, bool) {
	return attr(n.n, name), hasAttr(n.n, name)
}

func (n *node) Text() string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(h *html.Node) {
		if h.Type == html.TextNode {
			sb.WriteString(h.Data)
			return
		}
		if h.Type == html.ElementNode {
			switch h.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n.n)
	return sb.String()
}

func (n *node) Rect() host.Rect {
	if !n.Visible() {
		return host.Rect{}
	}
	if r, ok := parseRect(attr(n.n, "data-rect")); ok {
		return r
	}
	idx, ok := n.doc.order[n.n]
	if !ok {
		return host.Rect{}
	}
	return host.Rect{Top: float64(idx * lineHeight), Width: pageWidth, Height: lineHeight}
}

// Visible mirrors the browser rule: an element is hidden when it or an
// ancestor is display:none (or carries the hidden attribute), or when the
// nearest explicit visibility is hidden.
func (n *node) Visible() bool {
	if _, ok := n.doc.order[n.n]; !ok {
		return false
	}
	visibilitySet := false
	for p := n.n; p != nil && p.Type == html.ElementNode; p = p.Parent {
		switch p.DataAtom {
		case atom.Head, atom.Script, atom.Style, atom.Template, atom.Noscript:
			return false
		}
		if hasAttr(p, "hidden") {
			return false
		}
		style := attr(p, "style")
		if v, ok := styleProp(style, "display"); ok && v == "none" {
			return false
		}
		if !visibilitySet {
			if v, ok := styleProp(style, "visibility"); ok {
				visibilitySet = true
				if v == "hidden" || v == "collapse" {
					return false
				}
			}
		}
	}
	return true
}

func (n *node) Display() string {
	if v, ok := styleProp(attr(n.n, "style"), "display"); ok {
		return v
	}
	return defaultDisplay(n.n.DataAtom)
}

func (n *node) Pos() host.TreePos {
	var path []int
	root := ""
	for h := n.n; h != nil && h.Parent != nil; h = h.Parent {
		if r := attr(h, "data-root"); r != "" {
			root = r
			break
		}
		i := 0
		for s := h.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode {
				i++
			}
		}
		path = append(path, i)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	pos := host.TreePos{Root: root, Path: path}
	if _, attached := n.doc.order[n.n]; !attached {
		pos.Root = "detached:" + n.id
	}
	return pos
}

// styleProp extracts one declaration from an inline style attribute.
func styleProp(style, prop string) (string, bool) {
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(k), prop) {
			v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
			return strings.ToLower(v), true
		}
	}
	return "", false
}

func parseRect(s string) (host.Rect, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return host.Rect{}, false
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return host.Rect{}, false
		}
		v[i] = f
	}
	return host.Rect{Left: v[0], Top: v[1], Width: v[2], Height: v[3]}, true
}

func defaultDisplay(a atom.Atom) string {
	switch a {
	case atom.Div, atom.P, atom.Section, atom.Article, atom.Main, atom.Header,
		atom.Footer, atom.Nav, atom.Aside, atom.Form, atom.Ul, atom.Ol,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Blockquote, atom.Pre, atom.Figure, atom.Body, atom.Html,
		atom.Dl, atom.Dd, atom.Dt, atom.Fieldset, atom.Hr, atom.Address:
		return "block"
	case atom.Li:
		return "list-item"
	case atom.Table:
		return "table"
	case atom.Tr:
		return "table-row"
	case atom.Td, atom.Th:
		return "table-cell"
	}
	return "inline"
}
