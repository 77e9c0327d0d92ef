package notification

import (
	"context"
	"log/slog"
)

// Message is an outbound email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger instead of sending them.
// It is used when no SMTP host is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "to", message.To, "subject", message.Subject, "bytes", len(message.HTMLBody))
	return nil
}
