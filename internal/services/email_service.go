package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"tracker/internal/config"
)

// ErrNotifierDisabled is returned by the notifier used when no provider is configured
var ErrNotifierDisabled = errors.New("notifier: no email provider configured")

// ErrPartialDelivery means some recipients were sent the message before a
// later request failed
var ErrPartialDelivery = errors.New("notifier: message delivered to some recipients only")

// maxPersonalizations is SendGrid's per-request personalization cap
const maxPersonalizations = 1000

// Message is one plain-text email addressed to several recipients
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Notifier delivers messages. A nil error means the provider accepted it.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NewNotifier picks SendGrid when it is configured and the disabled notifier otherwise
func NewNotifier(cfg config.SendGridConfig) Notifier {
	if !cfg.Enabled() {
		return DisabledNotifier{}
	}
	return NewSendGridNotifier(sendgrid.NewSendClient(cfg.APIKey), cfg.FromEmail, cfg.FromName)
}

// DisabledNotifier reports every send as failed so reminders stay pending
type DisabledNotifier struct{}

// Send implements Notifier
func (DisabledNotifier) Send(context.Context, Message) error {
	return ErrNotifierDisabled
}

type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier sends through the SendGrid v3 mail API. Each recipient
// gets its own personalization so addresses are not disclosed to each other.
type SendGridNotifier struct {
	client mailClient
	from   *mail.Email
}

// NewSendGridNotifier wraps a SendGrid client
func NewSendGridNotifier(client mailClient, fromEmail, fromName string) *SendGridNotifier {
	return &SendGridNotifier{
		client: client,
		from:   mail.NewEmail(fromName, fromEmail),
	}
}

// Send implements Notifier
func (s *SendGridNotifier) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("sendgrid: message has no recipients")
	}

	for start := 0; start < len(msg.To); start += maxPersonalizations {
		end := min(start+maxPersonalizations, len(msg.To))

		m := mail.NewV3Mail()
		m.SetFrom(s.from)
		m.Subject = msg.Subject
		for _, addr := range msg.To[start:end] {
			p := mail.NewPersonalization()
			p.AddTos(mail.NewEmail("", addr))
			m.AddPersonalizations(p)
		}
		m.AddContent(mail.NewContent("text/plain", msg.Body))

		if err := s.send(ctx, m); err != nil {
			if start > 0 {
				return fmt.Errorf("%w: %d of %d recipients: %v", ErrPartialDelivery, start, len(msg.To), err)
			}
			return err
		}
	}
	return nil
}

func (s *SendGridNotifier) send(ctx context.Context, m *mail.SGMailV3) error {
	response, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: failed to send email: %d: %s", response.StatusCode, response.Body)
	}
	return nil
}
