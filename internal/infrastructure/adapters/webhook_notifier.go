package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/harvest-service/harvest_service/pkg/logger"
)

// NotifierConfig holds front-end callback configuration
type NotifierConfig struct {
	CallbackURL string
	AuthToken   string
	Timeout     time.Duration
}

// WebhookNotifier posts user-facing notifications to the front-end
// collaborator's callback URL. Fire and forget: failures are logged and
// swallowed so a dead front-end never stalls a settlement.
type WebhookNotifier struct {
	logger     *logger.Logger
	config     NotifierConfig
	httpClient *http.Client
}

// NewWebhookNotifier creates a webhook notification sink
func NewWebhookNotifier(log *logger.Logger, config NotifierConfig) *WebhookNotifier {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		logger:     log,
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

type notificationPayload struct {
	AccountID  string `json:"account_id"`
	ExternalID string `json:"external_id"`
	Message    string `json:"message"`
	SentAt     string `json:"sent_at"`
}

// Notify delivers a message for an account. Always returns nil.
func (n *WebhookNotifier) Notify(ctx context.Context, accountID uuid.UUID, externalID, message string) error {
	if n.config.CallbackURL == "" {
		return nil
	}

	payload := notificationPayload{
		AccountID:  accountID.String(),
		ExternalID: externalID,
		Message:    message,
		SentAt:     time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Warn("failed to marshal notification", "account_id", accountID, "error", err)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.CallbackURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("failed to build notification request", "account_id", accountID, "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	if n.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+n.config.AuthToken)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Warn("notification delivery failed", "account_id", accountID, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		n.logger.Warn("notification rejected by front-end",
			"account_id", accountID,
			"status_code", resp.StatusCode)
	}
	return nil
}

// NoopNotifier discards notifications, for tests and local runs
type NoopNotifier struct{}

// Notify discards the message
func (NoopNotifier) Notify(_ context.Context, _ uuid.UUID, _, _ string) error { return nil }
