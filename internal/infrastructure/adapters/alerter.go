package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/harvest-service/harvest_service/pkg/logger"
)

// AlerterConfig holds operator alert channel configuration
type AlerterConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	ToEmail   string
}

// EmailAlerter delivers operator alerts over sendgrid. Alerts are a side
// channel for conditions needing human attention; delivery failures are
// logged and must never block the pipeline that raised them.
type EmailAlerter struct {
	logger *logger.Logger
	config AlerterConfig
	client *sendgrid.Client
}

// NewEmailAlerter creates a sendgrid-backed operator alerter
func NewEmailAlerter(log *logger.Logger, config AlerterConfig) (*EmailAlerter, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if strings.TrimSpace(config.FromEmail) == "" {
		return nil, fmt.Errorf("alert from address is required")
	}
	if strings.TrimSpace(config.ToEmail) == "" {
		return nil, fmt.Errorf("alert recipient address is required")
	}

	return &EmailAlerter{
		logger: log,
		config: config,
		client: sendgrid.NewSendClient(config.APIKey),
	}, nil
}

// Alert sends an operator alert email
func (a *EmailAlerter) Alert(ctx context.Context, message string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	from := mail.NewEmail(a.config.FromName, a.config.FromEmail)
	to := mail.NewEmail("", a.config.ToEmail)
	subject := "Harvest operator alert"
	body := fmt.Sprintf("%s\n\nRaised at %s", message, time.Now().UTC().Format(time.RFC1123))
	email := mail.NewSingleEmail(from, subject, to, body, "")

	response, err := a.client.SendWithContext(ctx, email)
	if err != nil {
		a.logger.Error("failed to send operator alert",
			"to", a.config.ToEmail,
			"error", err)
		return fmt.Errorf("send operator alert: %w", err)
	}
	if response.StatusCode >= 400 {
		a.logger.Error("operator alert rejected",
			"to", a.config.ToEmail,
			"status_code", response.StatusCode,
			"body", response.Body)
		return fmt.Errorf("operator alert rejected: status %d", response.StatusCode)
	}

	a.logger.Info("operator alert sent", "to", a.config.ToEmail)
	return nil
}

// LogAlerter writes alerts to the service log only, for deployments
// without an email channel configured.
type LogAlerter struct {
	logger *logger.Logger
}

// NewLogAlerter creates a log-only alerter
func NewLogAlerter(log *logger.Logger) *LogAlerter {
	return &LogAlerter{logger: log}
}

// Alert records the alert in the service log
func (a *LogAlerter) Alert(_ context.Context, message string) error {
	a.logger.Error("operator alert", "message", message)
	return nil
}
