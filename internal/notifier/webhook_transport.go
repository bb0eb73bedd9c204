package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/complywatch/complywatch/internal/models"
	"github.com/rs/zerolog"
)

// WebhookTransport posts alert payloads as JSON to a configured webhook URL.
type WebhookTransport struct {
	channelID  string
	webhookURL string
	httpClient *http.Client
	logger     zerolog.Logger
}

// webhookMessage is the wire format posted to the webhook endpoint.
type webhookMessage struct {
	AlertID     string    `json:"alert_id"`
	TargetID    string    `json:"target_id"`
	TargetURL   string    `json:"target_url"`
	AlertType   string    `json:"alert_type"`
	Severity    string    `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Mentions    string    `json:"mentions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewWebhookTransport creates a new WebhookTransport.
func NewWebhookTransport(channelID, webhookURL string, httpClient *http.Client, logger zerolog.Logger) (*WebhookTransport, error) {
	if channelID == "" {
		return nil, fmt.Errorf("webhook channel id is required")
	}
	if _, err := url.ParseRequestURI(webhookURL); err != nil {
		return nil, fmt.Errorf("invalid webhook URL for channel '%s': %w", channelID, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}

	return &WebhookTransport{
		channelID:  channelID,
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "WebhookTransport").Str("channel_id", channelID).Logger(),
	}, nil
}

// ChannelID implements Transport.
func (wt *WebhookTransport) ChannelID() string {
	return wt.channelID
}

// Send implements Transport.
func (wt *WebhookTransport) Send(ctx context.Context, payload AlertPayload) error {
	message := webhookMessage{
		AlertID:     payload.Alert.AlertID,
		TargetID:    payload.Alert.TargetID,
		TargetURL:   payload.TargetURL,
		AlertType:   string(payload.Alert.Type),
		Severity:    string(payload.Alert.Severity),
		Title:       payload.Alert.Title,
		Description: payload.Alert.Description,
		CreatedAt:   payload.Alert.CreatedAt,
	}
	if payload.Alert.Severity.AtLeast(models.SeverityHigh) && len(payload.Mentions) > 0 {
		message.Mentions = formatMentions(payload.Mentions)
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wt.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := wt.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	wt.logger.Debug().Str("alert_id", payload.Alert.AlertID).Msg("Alert delivered to webhook")
	return nil
}

func formatMentions(roleIDs []string) string {
	mentions := make([]string, 0, len(roleIDs))
	for _, roleID := range roleIDs {
		if roleID == "" {
			continue
		}
		mentions = append(mentions, "<@&"+roleID+">")
	}
	return strings.Join(mentions, " ")
}
