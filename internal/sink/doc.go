// Package sink delivers change events to the downstream pipeline.
//
// Delivery is at-least-once: an indexing run that fails before its checkpoint
// advances is re-run from the same baseline and re-publishes the same events,
// so consumers dedupe on (mirror, kind, name) and the source commit range.
package sink
