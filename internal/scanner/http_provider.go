package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/complywatch/complywatch/internal/config"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/rs/zerolog"
)

// HTTPProvider calls a remote compliance scan service over HTTP. It POSTs
// {"url": ...} to the configured endpoint and decodes the provider's
// ScanResult contract.
type HTTPProvider struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

type scanRequest struct {
	URL string `json:"url"`
}

// NewHTTPProvider creates a new HTTPProvider from scan configuration.
func NewHTTPProvider(cfg *config.ScanConfig, logger zerolog.Logger) (*HTTPProvider, error) {
	if cfg.ProviderURL == "" {
		return nil, fmt.Errorf("scan provider URL is not configured")
	}
	if _, err := url.ParseRequestURI(cfg.ProviderURL); err != nil {
		return nil, fmt.Errorf("invalid scan provider URL: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPProvider{
		endpoint:   cfg.ProviderURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "HTTPProvider").Logger(),
	}, nil
}

// Scan implements ScanProvider. Timeouts, connection errors and 5xx
// responses come back as transient failures; 4xx responses and malformed
// URLs as permanent ones.
func (p *HTTPProvider) Scan(ctx context.Context, targetURL string) (*models.ScanResult, error) {
	if _, err := url.ParseRequestURI(targetURL); err != nil {
		return nil, models.NewScanFailure("", targetURL, models.FailurePermanent, "malformed target URL", err)
	}

	body, err := json.Marshal(scanRequest{URL: targetURL})
	if err != nil {
		return nil, models.NewScanFailure("", targetURL, models.FailurePermanent, "failed to encode scan request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, models.NewScanFailure("", targetURL, models.FailurePermanent, "failed to build scan request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		class := models.FailureTransient
		reason := "scan provider unreachable"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "scan provider call timed out"
		}
		return nil, models.NewScanFailure("", targetURL, class, reason, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewScanFailure("", targetURL, models.FailureTransient, "failed to read provider response", err)
	}

	if resp.StatusCode >= 500 {
		return nil, models.NewScanFailure("", targetURL, models.FailureTransient,
			fmt.Sprintf("scan provider returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, models.NewScanFailure("", targetURL, models.FailurePermanent,
			fmt.Sprintf("scan provider rejected target with %d", resp.StatusCode), nil)
	}

	var result models.ScanResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, models.NewScanFailure("", targetURL, models.FailureTransient, "failed to decode provider response", err)
	}
	result.Raw = raw

	p.logger.Debug().Str("url", targetURL).Float64("score", result.OverallScore).Msg("Scan provider call completed")
	return &result, nil
}
