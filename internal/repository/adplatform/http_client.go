package adplatform

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

	"adBudgetEngine/domain"

	"golang.org/x/time/rate"
)

type HTTPConfig struct {
	BaseURL        string
	APIKey         string
	RequestsPerSec float64
	Burst          int
	Timeout        time.Duration
}

// HTTPClient talks to the platform's REST API. Every request waits on a
// shared token bucket so the engine stays under the platform quota.
type HTTPClient struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
}

var _ Port = (*HTTPClient)(nil)

func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &HTTPClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
	}
}

type launchResponse struct {
	ID string `json:"id"`
}

func (c *HTTPClient) LaunchCampaign(ctx context.Context, spec domain.LaunchSpec) (string, error) {
	var out launchResponse
	if err := c.do(ctx, http.MethodPost, "/v1/campaigns", spec.IdempotencyID, spec, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("ad platform launch returned no campaign id")
	}
	return out.ID, nil
}

func (c *HTTPClient) UpdateBudget(ctx context.Context, platformCampaignID string, upd domain.BudgetUpdate) error {
	path := "/v1/campaigns/" + url.PathEscape(platformCampaignID) + "/budget"
	return c.do(ctx, http.MethodPut, path, upd.IdempotencyID, upd, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal json payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ad platform %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &APIError{
			Status:     res.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			RetryAfter: parseRetryAfter(res.Header.Get("Retry-After")),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode ad platform response: %w", err)
	}
	return nil
}
