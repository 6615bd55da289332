package events

import (
	"context"
	"log/slog"
)

// LoggingPublisher emits lifecycle events to the structured log. It stands in
// for a broker-backed publisher when no messaging infrastructure is wired.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType string, payload []byte) error {
	p.logger.InfoContext(ctx, "event published",
		"module", "events",
		"layer", "adapter",
		"operation", "publish",
		"event_type", eventType,
		"payload", string(payload),
	)
	return nil
}
