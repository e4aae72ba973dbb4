// Package input maps key-down events to navigation commands.
package input

import (
	"slices"
	"strings"

	"github.com/hazyhaar/navkit/serpnav/host"
)

// Command is a navigation command.
type Command int

const (
	None Command = iota
	Down
	Up
	PrevPage
	NextPage
	Activate
)

func (c Command) String() string {
	switch c {
	case Down:
		return "down"
	case Up:
		return "up"
	case PrevPage:
		return "prev_page"
	case NextPage:
		return "next_page"
	case Activate:
		return "activate"
	}
	return "none"
}

// Decision is the outcome of routing one event. Command is None when the
// event is left to the host.
type Decision struct {
	Command        Command
	PreventDefault bool
}

// DefaultKeys binds physical key codes to commands.
var DefaultKeys = map[string]Command{
	"KeyJ":  Down,
	"KeyK":  Up,
	"KeyH":  PrevPage,
	"KeyL":  NextPage,
	"Enter": Activate,
}

// editableTags never receive commands.
var editableTags = map[string]bool{"input": true, "textarea": true, "select": true}

// Router routes key events.
type Router struct {
	keys map[string]Command
}

// New creates a Router. A nil keys map uses DefaultKeys.
func New(keys map[string]Command) *Router {
	if keys == nil {
		keys = DefaultKeys
	}
	return &Router{keys: keys}
}

// Route decides what ev does. selected reports whether the cursor has a
// current entry: activation without one keeps the host default.
func (r *Router) Route(ev host.KeyEvent, selected bool) Decision {
	cmd, ok := r.keys[ev.Code]
	if !ok || Editable(ev.Target) {
		return Decision{}
	}
	switch cmd {
	case NextPage:
		// Cmd+L / Ctrl+L keep their browser meaning.
		if ev.Meta || ev.Ctrl {
			return Decision{}
		}
	case Activate:
		if !selected {
			return Decision{}
		}
	}
	return Decision{Command: cmd, PreventDefault: true}
}

// Editable reports whether t is a text-entry context.
func Editable(t host.Target) bool {
	return t.Editable || editableTags[strings.ToLower(t.Tag)]
}

// Policy is the routing table in a form the in-page bridge can evaluate
// synchronously, so default behaviour is suppressed in the same event
// dispatch that produced the key.
type Policy struct {
	Keys                map[string]string `json:"keys"`
	ModifierPassthrough []string          `json:"modifier_passthrough"`
	RequireSelection    []string          `json:"require_selection"`
	EditableTags        []string          `json:"editable_tags"`
}

// Policy returns the bridge policy for r.
func (r *Router) Policy() Policy {
	p := Policy{Keys: make(map[string]string, len(r.keys))}
	for code, cmd := range r.keys {
		p.Keys[code] = cmd.String()
		switch cmd {
		case NextPage:
			p.ModifierPassthrough = append(p.ModifierPassthrough, code)
		case Activate:
			p.RequireSelection = append(p.RequireSelection, code)
		}
	}
	for tag := range editableTags {
		p.EditableTags = append(p.EditableTags, tag)
	}
	slices.Sort(p.ModifierPassthrough)
	slices.Sort(p.RequireSelection)
	slices.Sort(p.EditableTags)
	return p
}

// ParseCommand is the inverse of Command.String.
func ParseCommand(s string) Command {
	for _, c := range []Command{Down, Up, PrevPage, NextPage, Activate} {
		if c.String() == s {
			return c
		}
	}
	return None
}
