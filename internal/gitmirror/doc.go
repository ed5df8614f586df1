// Package gitmirror maintains a local bare mirror of a remote git repository
// and exposes the handful of commit-level primitives the indexer needs:
// clone, fetch, revision resolution, and commit-range diffs.
//
// It is deliberately not a general git client. Everything goes through the
// git executable so the mirror on disk stays byte-compatible with whatever
// git itself would produce.
package gitmirror
