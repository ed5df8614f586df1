// Package translate turns unified-diff text from the mirror into change
// events. Every added or removed line is expected to be one complete
// serialized index record (a single JSON object carrying a "name" field);
// the translation is line-oriented and never reassembles multi-line records.
package translate
