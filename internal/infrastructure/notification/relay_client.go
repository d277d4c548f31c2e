package notification

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"signflow/internal/config"
	"signflow/internal/domain/entity"
)

type relayMessage struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Link      string `json:"link,omitempty"`
	Type      string `json:"type"`
	RelatedID string `json:"related_id,omitempty"`
}

// RelayClient posts email notifications to the mail relay
type RelayClient struct {
	config     *config.NotificationConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRelayClient creates a new email relay client
func NewRelayClient(cfg *config.Config, logger *zap.Logger) *RelayClient {
	timeout := cfg.Notification.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &RelayClient{
		config: &cfg.Notification,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Enabled reports whether a relay URL is configured.
func (c *RelayClient) Enabled() bool {
	return c.config.EmailRelayURL != ""
}

// Send delivers one notification by email
func (c *RelayClient) Send(ctx context.Context, n *entity.Notification) error {
	if !c.Enabled() {
		c.logger.Debug("Email relay disabled, skipping notification")
		return nil
	}

	reqBody, err := json.Marshal(relayMessage{
		To:        n.RecipientEmail,
		Subject:   n.Title,
		Body:      n.Message,
		Link:      n.Link,
		Type:      n.Type,
		RelatedID: n.RelatedID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal relay message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.EmailRelayURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create relay request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.config.EmailUser != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.config.EmailUser + ":" + c.config.EmailPassword))
		req.Header.Set("Authorization", "Basic "+auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send relay message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("failed to read relay response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("relay request failed: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	c.logger.Info("Notification sent to email relay",
		zap.String("notification_id", n.ID),
		zap.String("type", n.Type),
	)

	return nil
}
