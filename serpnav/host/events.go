package host

// MutationType mirrors the DOM MutationRecord type.
type MutationType string

const (
	ChildList     MutationType = "childList"
	Attributes    MutationType = "attributes"
	CharacterData MutationType = "characterData"
)

// Mutation is a single structural change. Only the target's id and class
// list are carried: that is all the qualification rules look at.
type Mutation struct {
	Type          MutationType `json:"type"`
	TargetID      string       `json:"target_id,omitempty"`
	TargetClasses []string     `json:"target_classes,omitempty"`
}

// HasClass reports whether the mutation target carries class c.
func (m Mutation) HasClass(c string) bool {
	for _, tc := range m.TargetClasses {
		if tc == c {
			return true
		}
	}
	return false
}

// Batch is every mutation delivered by one observer callback, tagged with
// the browsing-context address at delivery time.
type Batch struct {
	URL     string     `json:"url"`
	Records []Mutation `json:"records"`
}

// Target describes the element that had focus when a key was pressed.
type Target struct {
	Tag      string `json:"tag"`
	Editable bool   `json:"editable"`
}

// KeyEvent is a key-down event. Code is the physical key code
// ("KeyJ", "Enter").
type KeyEvent struct {
	Code   string `json:"code"`
	Meta   bool   `json:"meta"`
	Ctrl   bool   `json:"ctrl"`
	Alt    bool   `json:"alt"`
	Shift  bool   `json:"shift"`
	Target Target `json:"target"`
}
