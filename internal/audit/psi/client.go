// Package psi queries the PageSpeed Insights API for the Lighthouse
// performance score of a page.
package psi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	defaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	maxBody         = 4 << 20
)

// Client calls the PageSpeed Insights API. A nil *Client disables the probe.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *zap.Logger
}

// New creates a PSI client. Returns nil when no API key is configured, which
// callers treat as the probe being disabled.
func New(apiKey string, logger *zap.Logger) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		endpoint: defaultEndpoint,
		apiKey:   apiKey,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        5,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

// NewWithEndpoint creates a client against a custom endpoint. Used by tests.
func NewWithEndpoint(endpoint, apiKey string, logger *zap.Logger) *Client {
	c := New(apiKey, logger)
	if c != nil && endpoint != "" {
		c.endpoint = endpoint
	}
	return c
}

type psiResponse struct {
	LighthouseResult struct {
		Categories struct {
			Performance struct {
				Score *float64 `json:"score"`
			} `json:"performance"`
		} `json:"categories"`
	} `json:"lighthouseResult"`
}

// PerformanceScore fetches the Lighthouse performance score (0-100) for the
// page within the given timeout.
func (c *Client) PerformanceScore(ctx context.Context, pageURL string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	q := url.Values{}
	q.Set("url", pageURL)
	q.Set("category", "performance")
	q.Set("strategy", "mobile")
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("build PSI request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("PSI request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("PSI returned %d", resp.StatusCode)
	}

	var parsed psiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode PSI response: %w", err)
	}

	score := parsed.LighthouseResult.Categories.Performance.Score
	if score == nil {
		return 0, fmt.Errorf("PSI response has no performance score")
	}

	c.logger.Debug("PSI score fetched",
		zap.String("url", pageURL),
		zap.Float64("score", *score))

	return int(math.Round(*score * 100)), nil
}
