package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/twoem/portal-api/pkg/config"
)

// Message is a plaintext email to a single recipient.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Body    string
}

// Sender delivers outbound mail.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New selects a sender implementation from configuration. Unknown
// providers fall back to the console sender so development environments
// never need an API key.
func New(cfg config.MailConfig, logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Provider == "sendgrid" && cfg.APIKey != "" {
		return &sendgridSender{cfg: cfg, logger: logger}
	}
	return &consoleSender{logger: logger}
}

type sendgridSender struct {
	cfg    config.MailConfig
	logger *zap.Logger
}

func (s *sendgridSender) Send(ctx context.Context, msg Message) error {
	from := sgmail.NewEmail(s.cfg.FromName, s.cfg.FromEmail)
	to := sgmail.NewEmail(msg.ToName, msg.ToEmail)
	m := sgmail.NewSingleEmail(from, msg.Subject, to, msg.Body, msg.Body)

	client := sendgrid.NewSendClient(s.cfg.APIKey)
	resp, err := client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("send mail: sendgrid responded %d", resp.StatusCode)
	}
	s.logger.Info("mail sent", zap.String("to", msg.ToEmail), zap.String("subject", msg.Subject))
	return nil
}

// consoleSender logs messages instead of delivering them.
type consoleSender struct {
	logger *zap.Logger
}

func (s *consoleSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("mail (console)",
		zap.String("to", msg.ToEmail),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
