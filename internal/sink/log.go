package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/registryd/internal/change"
)

// LogSink writes events to the process log. It is the fallback sink for
// running registryd without a message broker.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that logs each event at info level.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, mirror string, ev change.Event) error {
	s.logger.Info("change event",
		zap.String("mirror", mirror),
		zap.String("kind", string(ev.Kind)),
		zap.String("name", ev.Name))
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
