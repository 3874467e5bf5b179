package events

import (
	"context"
	"log/slog"

	"github.com/example/dispatch/internal/ports/secondary"
)

// LogPublisher writes each event as a structured log record. It is used when
// no message bus is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs to logger.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

var _ secondary.EventPublisher = (*LogPublisher)(nil)

// Publish logs the event. It never fails.
func (p *LogPublisher) Publish(ctx context.Context, event secondary.Event) error {
	p.logger.InfoContext(ctx, "task event",
		"topic", event.Topic(),
		"eventType", event.EventType,
		"taskId", event.TaskID,
		"occurredAt", event.OccurredAt,
		"data", event.Data,
	)
	return nil
}
