// Package enrich provides a client for the external enrichment service that
// derives taglines, normalized names and fit scores for discovered startups.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/scoutbase/curator/internal/resilience"
)

// Client defines the enrichment operations consumed by the import pipeline.
// The call may be slow or unreliable; no retry contract beyond what the
// implementation chooses to do internally.
type Client interface {
	Enrich(ctx context.Context, req Request) (*Result, error)
}

// Request carries the raw discovered fields sent for enrichment.
type Request struct {
	Name        string `json:"name"`
	Website     string `json:"website,omitempty"`
	Description string `json:"description,omitempty"`
	Funding     string `json:"funding,omitempty"`
	ArticleURL  string `json:"article_url,omitempty"`
}

// Result holds the enrichment-augmented fields.
type Result struct {
	NormalizedName string   `json:"normalized_name"`
	Tagline        string   `json:"tagline"`
	Score          *float64 `json:"score,omitempty"`
}

// Option configures the enrichment client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests to perSec with the given burst.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithRetry overrides the default retry configuration.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates an enrichment client for the service at baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		retry:   resilience.DefaultRetryConfig(),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enrich posts the raw fields to the enrichment endpoint and returns the
// derived attributes. Transient failures (timeouts, 429, 5xx) are retried
// with backoff; a definitive failure is returned as-is for the pipeline to
// record as the item's outcome.
func (c *httpClient) Enrich(ctx context.Context, req Request) (*Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "enrich: rate limit wait")
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: marshal request")
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Result, error) {
		return c.doOnce(ctx, payload)
	})
}

func (c *httpClient) doOnce(ctx context.Context, payload []byte) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/enrich", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "enrich: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: read response body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("enrich: status %d: %s", resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("enrich: status %d: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "enrich: unmarshal response")
	}
	if result.NormalizedName == "" {
		return nil, eris.New("enrich: response missing normalized_name")
	}

	return &result, nil
}
