package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"adBudgetEngine/business/campaign"
	"adBudgetEngine/domain"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPAnalyzer asks the content analysis service for features of a
// source reference (an audio or video asset).
type HTTPAnalyzer struct {
	cfg    Config
	client *http.Client
}

var _ campaign.ContentAnalyzer = (*HTTPAnalyzer)(nil)

func NewHTTPAnalyzer(cfg Config) *HTTPAnalyzer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPAnalyzer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type extractRequest struct {
	SourceReference string `json:"source_reference"`
}

func (a *HTTPAnalyzer) Extract(ctx context.Context, sourceRef string) (domain.ContentFeatures, error) {
	if strings.TrimSpace(sourceRef) == "" {
		return domain.ContentFeatures{}, fmt.Errorf("%w: empty source reference", domain.ErrInvalidInput)
	}

	payload, err := json.Marshal(extractRequest{SourceReference: sourceRef})
	if err != nil {
		return domain.ContentFeatures{}, fmt.Errorf("failed to marshal json payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/v1/features", bytes.NewReader(payload))
	if err != nil {
		return domain.ContentFeatures{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(req)
	if err != nil {
		return domain.ContentFeatures{}, fmt.Errorf("content analysis request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusUnprocessableEntity {
		return domain.ContentFeatures{}, fmt.Errorf("%w: analyzer rejected %q", domain.ErrInvalidInput, sourceRef)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return domain.ContentFeatures{}, fmt.Errorf("content analysis returned %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}

	var features domain.ContentFeatures
	if err := json.NewDecoder(res.Body).Decode(&features); err != nil {
		return domain.ContentFeatures{}, fmt.Errorf("failed to decode features: %w", err)
	}
	return features, nil
}
