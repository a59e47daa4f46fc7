// Package channel holds delivery transports for the notification
// dispatcher.
package channel

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"usergate/internal/notification"
)

// Log writes notifications to the process log instead of an external
// provider. It backs development deployments and keeps the dispatch path
// exercisable without provider credentials.
type Log struct {
	name   string
	logger *slog.Logger
}

func NewLog(name string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{name: name, logger: logger}
}

func (l *Log) Name() string {
	return l.name
}

func (l *Log) Send(ctx context.Context, msg notification.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	l.logger.Info("notification delivered",
		"channel", l.name,
		"id", id,
		"correlation_id", msg.CorrelationID,
		"recipient", msg.Recipient,
		"subject", msg.Subject,
	)
	return id, nil
}
