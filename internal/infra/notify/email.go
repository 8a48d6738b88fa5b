package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Email sends events through SendGrid to a fixed list of recipients.
type Email struct {
	client mailSender
	from   string
	to     []string
}

func NewEmail(apiKey, from string, to []string) *Email {
	return &Email{client: sendgrid.NewSendClient(apiKey), from: from, to: to}
}

func (e *Email) Notify(ctx context.Context, ev Event) error {
	if len(e.to) == 0 {
		return nil
	}
	msg := mail.NewV3Mail()
	msg.SetFrom(mail.NewEmail("Supply requests", e.from))
	msg.Subject = ev.Subject()

	p := mail.NewPersonalization()
	for _, addr := range e.to {
		p.AddTos(mail.NewEmail("", addr))
	}
	msg.AddPersonalizations(p)

	body := ev.Text()
	msg.AddContent(
		mail.NewContent("text/plain", body),
		mail.NewContent("text/html", "<pre>"+html.EscapeString(body)+"</pre>"),
	)

	resp, err := e.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d body=%s", resp.StatusCode, resp.Body)
	}
	return nil
}
