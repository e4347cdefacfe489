package notification

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/repository"
)

// sendFunc posts a message and reports the HTTP status and body.
type sendFunc func(ctx context.Context, msg *mail.SGMailV3) (int, string, error)

// EmailChannel delivers notifications through SendGrid to the recipient's
// address on file.
type EmailChannel struct {
	users     repository.UserRepository
	fromEmail string
	fromName  string
	send      sendFunc
}

func NewEmailChannel(users repository.UserRepository, apiKey, fromEmail, fromName string) *EmailChannel {
	client := sendgrid.NewSendClient(apiKey)
	return &EmailChannel{
		users:     users,
		fromEmail: fromEmail,
		fromName:  fromName,
		send: func(ctx context.Context, msg *mail.SGMailV3) (int, string, error) {
			resp, err := client.SendWithContext(ctx, msg)
			if err != nil {
				return 0, "", err
			}
			return resp.StatusCode, resp.Body, nil
		},
	}
}

func (c *EmailChannel) Name() string { return "sendgrid" }

func (c *EmailChannel) Send(ctx context.Context, n domain.Notification) error {
	user, err := c.users.GetByID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("failed to load recipient %d: %w", n.UserID, err)
	}
	if user.Email == "" {
		return nil
	}

	msg := buildEmail(c.fromName, c.fromEmail, user, n)
	status, body, err := c.send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if status >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", status, body)
	}
	return nil
}

func buildEmail(fromName, fromEmail string, user *domain.User, n domain.Notification) *mail.SGMailV3 {
	from := mail.NewEmail(fromName, fromEmail)
	to := mail.NewEmail(user.Name, user.Email)
	plain := fmt.Sprintf("Hello %s,\n\n%s\n\nThe OnRent Team", user.Name, n.Message)
	htmlContent := fmt.Sprintf(`<html><body><h2>%s</h2><p>Hello %s,</p><p>%s</p><p>The OnRent Team</p></body></html>`,
		html.EscapeString(n.Title), html.EscapeString(user.Name), html.EscapeString(n.Message))
	return mail.NewSingleEmail(from, n.Title, to, plain, htmlContent)
}
