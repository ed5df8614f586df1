// Package index drives incremental indexing of one mirrored repository.
//
// Each mirror gets a Worker: a single goroutine draining an ordered mailbox,
// so checkpoint reads and writes are serialized without locks and two
// indexing runs can never overlap on the same mirror. Periodic indexing is
// implemented by one-shot timers that send a tick back into the mailbox and
// re-arm; a (interval, epoch) pair stamped into every tick lets the worker
// drop ticks armed by a schedule that has since been stopped or replaced.
package index
