package sink

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/registryd/internal/change"
)

// Sink receives the change events emitted by an indexing run.
type Sink interface {
	// Publish delivers one event for the named mirror.
	Publish(ctx context.Context, mirror string, ev change.Event) error
	// Close flushes and releases the sink. No Publish may follow Close.
	Close() error
}

// Envelope is the wire form of a published event.
type Envelope struct {
	Mirror    string      `json:"mirror"`
	Kind      change.Kind `json:"kind"`
	Name      string      `json:"name"`
	EmittedAt time.Time   `json:"emitted_at"`
}
