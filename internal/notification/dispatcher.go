package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kobo-wallet/kobo/internal/metrics"
)

// Dispatcher sends notifications in the background with a bounded timeout.
// Failures are logged and counted but never returned to the caller.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Registry
	timeout  time.Duration

	wg sync.WaitGroup
}

// NewDispatcher wraps notifier.
func NewDispatcher(notifier Notifier, logger *slog.Logger, m *metrics.Registry, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{notifier: notifier, logger: logger, metrics: m, timeout: timeout}
}

// Dispatch queues message for delivery and returns immediately.
func (d *Dispatcher) Dispatch(message Message) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		start := time.Now()
		if err := d.notifier.Send(ctx, message); err != nil {
			d.metrics.Notification(metrics.OutcomeFailure)
			d.logger.Warn("notification delivery failed",
				slog.String("to", message.To),
				slog.String("subject", message.Subject),
				slog.Duration("elapsed", time.Since(start)),
				slog.Any("error", err),
			)
			return
		}
		d.metrics.Notification(metrics.OutcomeSuccess)
		d.logger.Info("notification delivered",
			slog.String("to", message.To),
			slog.String("subject", message.Subject),
			slog.Duration("elapsed", time.Since(start)),
		)
	}()
}

// Wait blocks until in-flight deliveries finish or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
