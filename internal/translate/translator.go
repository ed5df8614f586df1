package translate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/fyrsmithlabs/registryd/internal/change"
)

// record is the slice of an index record the translator cares about.
// Registry records carry many more fields; only the identity key matters here.
type record struct {
	Name string `json:"name"`
}

// Translator derives change events from unified-diff text.
type Translator struct{}

// NewTranslator creates a translator.
func NewTranslator() *Translator {
	return &Translator{}
}

// Translate parses diffText and returns the deduplicated change events, in
// the order the diff applies them. Added lines become add events, removed
// lines become remove events, context lines are skipped. A record that is
// both removed and re-added under the same name yields two events; callers
// that want a single update event coalesce downstream.
func (t *Translator) Translate(diffText string) ([]change.Event, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(diffText))
	if err != nil {
		return nil, &DiffParseError{Err: err}
	}

	set := change.NewSet()
	for _, file := range files {
		if file.IsBinary {
			continue
		}
		for _, frag := range file.TextFragments {
			for _, line := range frag.Lines {
				var kind change.Kind
				switch line.Op {
				case gitdiff.OpAdd:
					kind = change.KindAdd
				case gitdiff.OpDelete:
					kind = change.KindRemove
				default:
					continue
				}

				name, err := recordName(line.Line)
				if err != nil {
					return nil, err
				}
				set.Add(change.Event{Kind: kind, Name: name})
			}
		}
	}
	return set.Events(), nil
}

// recordName extracts the identity key from one serialized record line.
func recordName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)

	var rec record
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		return "", &RecordParseError{Line: truncate(trimmed), Err: err}
	}
	if rec.Name == "" {
		return "", &RecordParseError{Line: truncate(trimmed), Err: errors.New("record has no name field")}
	}
	return rec.Name, nil
}

const maxErrorLine = 120

func truncate(line string) string {
	if len(line) <= maxErrorLine {
		return line
	}
	return fmt.Sprintf("%s... (%d bytes)", line[:maxErrorLine], len(line))
}
