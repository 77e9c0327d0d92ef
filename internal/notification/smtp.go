package notification

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends HTML email through an SMTP relay.
type SMTPNotifier struct {
	from   string
	dialer *gomail.Dialer
}

// NewSMTPNotifier builds an SMTP notifier.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPNotifier{
		from:   from,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send delivers message. gomail has no context support, so the send runs in
// its own goroutine and Send returns when ctx ends.
func (n *SMTPNotifier) Send(ctx context.Context, message Message) error {
	if message.To == "" {
		return fmt.Errorf("no recipient specified")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", message.To)
	msg.SetHeader("Subject", message.Subject)
	msg.SetBody("text/html", message.HTMLBody)

	done := make(chan error, 1)
	go func() { done <- n.dialer.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}
