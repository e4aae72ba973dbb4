// Package sink defines output backends for serpnav diagnostic events.
package sink

import (
	"context"
	"time"

	"github.com/hazyhaar/navkit/idgen"
)

// Event types.
const (
	TypeScan    = "scan"
	TypeFocus   = "focus"
	TypeCommand = "command"
)

// Event is one diagnostic record.
type Event struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	PageID string    `json:"page_id,omitempty"`
	Time   time.Time `json:"time"`
	Data   any       `json:"data,omitempty"`
}

// NewEvent stamps an event with a UUIDv7 id and the current time.
func NewEvent(typ, pageID string, data any) Event {
	return Event{ID: idgen.New(), Type: typ, PageID: pageID, Time: time.Now().UTC(), Data: data}
}

// Sink is the output interface. Implementations deliver events to
// different backends (stdout, webhook, in-process callback).
type Sink interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}
