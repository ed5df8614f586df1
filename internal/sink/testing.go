package sink

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/registryd/internal/change"
)

// MemorySink records published events in memory for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Envelope
	err    error
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// FailWith makes every subsequent Publish return err. Passing nil restores
// normal operation.
func (s *MemorySink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemorySink) Publish(_ context.Context, mirror string, ev change.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, Envelope{Mirror: mirror, Kind: ev.Kind, Name: ev.Name})
	return nil
}

func (s *MemorySink) Close() error {
	return nil
}

// Events returns a copy of everything published so far.
func (s *MemorySink) Events() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Envelope, len(s.events))
	copy(out, s.events)
	return out
}
