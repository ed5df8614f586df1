// Package logging builds the process logger from configuration.
//
// registryd logs structured JSON in production and human-readable console
// output for local runs. Subprocess output from the mirror plumbing is
// re-emitted through this logger line by line, so level filtering applies to
// git's chatter the same way it applies to registryd's own events.
package logging
