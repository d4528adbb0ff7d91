package minfraud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/solution25com/fraudshield/internal/traces"
)

const maxResponseSize = 1 * 1024 * 1024 // 1MB

// DefaultTimeout bounds a single Insights call.
const DefaultTimeout = 5 * time.Second

// Client calls the minFraud Insights API with account ID / license key
// basic auth.
type Client struct {
	endpoint  string
	accountID string
	license   string
	client    *http.Client
}

// NewClient creates a minFraud client. Pass endpoint="" for the production
// host and timeout=0 for DefaultTimeout.
func NewClient(accountID, license, endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint:  strings.TrimRight(endpoint, "/"),
		accountID: accountID,
		license:   license,
		client:    &http.Client{Timeout: timeout},
	}
}

// Insights scores a transaction. Auth rejections return ErrAuthentication,
// every other failure wraps ErrService.
func (c *Client) Insights(ctx context.Context, req *ScoreRequest) (*InsightsResponse, error) {
	ctx, span := traces.StartSpan(ctx, "minfraud.Insights")
	defer span.End()

	start := time.Now()
	parsed, err := c.insights(ctx, req)

	outcome := "success"
	switch {
	case errors.Is(err, ErrAuthentication):
		outcome = "auth_error"
	case err != nil:
		outcome = "service_error"
	}
	requestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return parsed, err
}

func (c *Client) insights(ctx context.Context, req *ScoreRequest) (*InsightsResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrService, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+insightsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrService, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.accountID, c.license)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrService, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrAuthentication, resp.StatusCode, providerMessage(respBody))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrService, resp.StatusCode, providerMessage(respBody))
	}

	var parsed InsightsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrService, err)
	}
	return &parsed, nil
}

// VerifyCredentials sends a minimal canned request so the configured account
// ID and license key can be checked without scoring a real order. An auth
// failure means the credentials are bad; any 200 means they work.
func (c *Client) VerifyCredentials(ctx context.Context) error {
	_, err := c.Insights(ctx, &ScoreRequest{
		Device: Device{IPAddress: "127.0.0.1"},
	})
	return err
}

// providerMessage extracts the error string MaxMind puts in failed responses.
func providerMessage(body []byte) string {
	var e struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	const max = 200
	s := string(body)
	if len(s) > max {
		s = s[:max]
	}
	return s
}
