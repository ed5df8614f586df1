package index

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/registryd/internal/change"
)

// Repository is the mirror surface the worker drives. Implemented by
// gitmirror.Service.
type Repository interface {
	MirrorExists() bool
	RemoteURL() string
	Path() string
	Clone(ctx context.Context) error
	Fetch(ctx context.Context) error
	ResolveCommit(ctx context.Context, revision string) (string, error)
	DiffNameOnly(ctx context.Context, oldRef, newRef string) ([]string, error)
	DiffUnified(ctx context.Context, oldRef, newRef string) (string, error)
}

// Translator turns unified-diff text into change events. Implemented by
// translate.Translator.
type Translator interface {
	Translate(diffText string) ([]change.Event, error)
}

// Checkpoint is the last successfully indexed position. A zero LastCommit
// means no run has completed yet, or the repository had no commits when last
// observed. It only ever advances after the events for a run have been
// handed to the sink.
type Checkpoint struct {
	LastCommit    string    `json:"last_commit,omitempty"`
	LastIndexedAt time.Time `json:"last_indexed_at,omitempty"`
}

// Status is a point-in-time snapshot of a worker, taken through the mailbox
// so it never observes a run in progress.
type Status struct {
	Mirror     string        `json:"mirror"`
	RemoteURL  string        `json:"remote_url"`
	Path       string        `json:"path"`
	Checkpoint Checkpoint    `json:"checkpoint"`
	AutoIndex  bool          `json:"auto_index"`
	Interval   time.Duration `json:"interval,omitempty"`
	Epoch      uint64        `json:"epoch,omitempty"`
}
