// Package change defines the change events derived from mirror diffs.
package change

// Kind classifies a change event.
type Kind string

const (
	// KindAdd means a record appeared in the index.
	KindAdd Kind = "add"
	// KindRemove means a record disappeared from the index.
	KindRemove Kind = "remove"
	// KindUpdate is reserved for downstream consumers that coalesce a
	// remove/add pair for the same record. The translator never produces it;
	// an updated record surfaces as a Remove followed by an Add.
	KindUpdate Kind = "update"
)

// Event is one semantic change to the tracked index, keyed by the record name.
type Event struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
}

// Set collects events in first-seen order while dropping duplicates.
// A diff with several hunks can touch the same record line more than once;
// within one indexing run each (kind, name) pair is emitted at most once.
type Set struct {
	seen   map[Event]struct{}
	events []Event
}

// NewSet returns an empty event set.
func NewSet() *Set {
	return &Set{seen: make(map[Event]struct{})}
}

// Add inserts ev unless an identical event is already present.
// It reports whether the event was inserted.
func (s *Set) Add(ev Event) bool {
	if _, ok := s.seen[ev]; ok {
		return false
	}
	s.seen[ev] = struct{}{}
	s.events = append(s.events, ev)
	return true
}

// Len returns the number of distinct events collected.
func (s *Set) Len() int {
	return len(s.events)
}

// Events returns the collected events in insertion order.
// The returned slice is owned by the set and must not be mutated.
func (s *Set) Events() []Event {
	return s.events
}
