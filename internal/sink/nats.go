package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/registryd/internal/change"
)

// DefaultSubjectPrefix is used when the sink config leaves the prefix empty.
const DefaultSubjectPrefix = "registry.changes"

// NATSSink publishes events to NATS on <prefix>.<mirror>.<kind> subjects.
// The connection is owned by the caller; Close only flushes pending publishes.
type NATSSink struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSSink creates a sink over an established connection.
func NewNATSSink(nc *nats.Conn, subjectPrefix string) (*NATSSink, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	return &NATSSink{nc: nc, prefix: subjectPrefix}, nil
}

// Publish sends one event. The payload is the JSON Envelope.
func (s *NATSSink) Publish(_ context.Context, mirror string, ev change.Event) error {
	payload, err := json.Marshal(Envelope{
		Mirror:    mirror,
		Kind:      ev.Kind,
		Name:      ev.Name,
		EmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	subject := strings.Join([]string{s.prefix, subjectToken(mirror), string(ev.Kind)}, ".")
	if err := s.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// Close flushes buffered publishes to the server.
func (s *NATSSink) Close() error {
	if err := s.nc.Flush(); err != nil {
		return fmt.Errorf("flushing nats: %w", err)
	}
	return nil
}

// subjectToken makes a mirror name safe to use as a single NATS subject
// token. Dots would split the token, wildcards and spaces are illegal.
func subjectToken(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '-'
		default:
			return r
		}
	}, name)
}
