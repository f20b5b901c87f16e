package slogsink

import (
	"context"
	"log/slog"

	"github.com/Gurpartap/pipeframe/pipeline"
)

// Sink writes engine events to a structured logger. Failure events log at
// error level, everything else at info.
type Sink struct {
	logger *slog.Logger
}

var _ pipeline.EventSink = (*Sink)(nil)

func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{logger: logger}
}

func (s *Sink) Publish(ctx context.Context, event pipeline.Event) error {
	if err := pipeline.ValidateEvent(event); err != nil {
		return err
	}

	attrs := []slog.Attr{
		slog.String("run_id", string(event.RunID)),
		slog.String("type", string(event.Type)),
	}
	if event.Unit != "" {
		attrs = append(attrs, slog.String("unit", event.Unit))
	}
	if event.Key != "" {
		attrs = append(attrs, slog.String("key", event.Key))
	}
	if event.CommandKind != "" {
		attrs = append(attrs, slog.String("command", string(event.CommandKind)))
	}

	level := slog.LevelInfo
	if event.Type == pipeline.EventTypeRunFailed {
		level = slog.LevelError
	}
	s.logger.LogAttrs(ctx, level, event.Description, attrs...)
	return nil
}
