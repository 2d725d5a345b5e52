// Package mail sends transactional email through SendGrid.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"partscatalog/internal/domain/users"
	"partscatalog/pkg/logger"
)

// Config holds the sender identity and API key.
type Config struct {
	APIKey   string
	From     string
	FromName string
}

// SendGridClient implements users.Mailer.
type SendGridClient struct {
	client   *sendgrid.Client
	from     *sgmail.Email
	disabled bool
}

var _ users.Mailer = (*SendGridClient)(nil)

// NewSendGridClient creates a mailer. Without an API key messages are
// logged and dropped, which keeps local development free of credentials.
func NewSendGridClient(cfg Config) *SendGridClient {
	c := &SendGridClient{from: sgmail.NewEmail(cfg.FromName, cfg.From)}
	if strings.TrimSpace(cfg.APIKey) == "" {
		c.disabled = true
		return c
	}
	c.client = sendgrid.NewSendClient(cfg.APIKey)
	return c
}

// Send delivers one message.
func (c *SendGridClient) Send(ctx context.Context, msg users.Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("sendgrid: recipient address is empty")
	}
	if c.from == nil || strings.TrimSpace(c.from.Address) == "" {
		return errors.New("sendgrid: sender address is empty")
	}
	if c.disabled {
		logger.Warn(ctx, "mail disabled, message dropped", "to", msg.To, "subject", msg.Subject)
		return nil
	}

	message := sgmail.NewSingleEmail(c.from, msg.Subject, sgmail.NewEmail(msg.ToName, msg.To), msg.Text, msg.HTML)
	resp, err := c.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d body=%s", resp.StatusCode, resp.Body)
	}

	logger.Info(ctx, "mail sent", "to", msg.To, "subject", msg.Subject, "status", resp.StatusCode)
	return nil
}
