package rodhost

import "github.com/hazyhaar/navkit/serpnav/host"

type rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r rect) host() host.Rect {
	return host.Rect{Left: r.Left, Top: r.Top, Width: r.Width, Height: r.Height}
}

// snapshot is a node as the bridge saw it at query time. Identity is the
// token the bridge attached to the element.
type snapshot struct {
	Token    string            `json:"id"`
	TagName  string            `json:"tag"`
	Link     string            `json:"href"`
	Attrs    map[string]string `json:"attrs"`
	Content  string            `json:"text"`
	Box      rect              `json:"rect"`
	Shown    bool              `json:"visible"`
	Computed string            `json:"display"`
	Root     string            `json:"root"`
	Path     []int             `json:"path"`
}

func (s *snapshot) ID() string      { return s.Token }
func (s *snapshot) Tag() string     { return s.TagName }
func (s *snapshot) Href() string    { return s.Link }
func (s *snapshot) Text() string    { return s.Content }
func (s *snapshot) Rect() host.Rect { return s.Box.host() }
func (s *snapshot) Visible() bool   { return s.Shown }
func (s *snapshot) Display() string { return s.Computed }

func (s *snapshot) Attr(name string) (string, bool) {
	v, ok := s.Attrs[name]
	return v, ok
}

func (s *snapshot) Pos() host.TreePos {
	return host.TreePos{Root: s.Root, Path: s.Path}
}
