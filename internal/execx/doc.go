// Package execx runs external commands for the mirror plumbing.
//
// Command output is not returned to the caller by Run; stdout is streamed to
// the logger at debug level and stderr at error level, both drained
// concurrently with the wait so a chatty child cannot deadlock on a full pipe
// buffer. Output captures stdout instead, for commands whose stdout is data.
package execx
