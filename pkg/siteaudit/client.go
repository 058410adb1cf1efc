// Package siteaudit provides a client for the website marketing-stack audit
// service. Given a URL it reports which ad, analytics, and CRM platforms the
// site carries.
package siteaudit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/resilience"
)

// Client defines the audit operation used by the verifier.
type Client interface {
	// Audit inspects a website and returns the detected platform flags.
	Audit(ctx context.Context, websiteURL string) (*Result, error)
}

// Result holds the per-platform detections for one website.
type Result struct {
	GoogleAds       bool `json:"google_ads"`
	MetaAds         bool `json:"meta_ads"`
	TikTokAds       bool `json:"tiktok_ads"`
	GoogleAnalytics bool `json:"google_analytics"`
	TagManager      bool `json:"tag_manager"`
	MetaPixel       bool `json:"meta_pixel"`
	Heatmap         bool `json:"heatmap"`
	CRM             bool `json:"crm"`
}

// Option configures the audit client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the retry configuration.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a new site audit client.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			// Audits render the target page server-side and can be slow.
			Timeout: 60 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type auditRequest struct {
	URL string `json:"url"`
}

func (c *httpClient) Audit(ctx context.Context, websiteURL string) (*Result, error) {
	if websiteURL == "" {
		return nil, eris.New("siteaudit: website url is required")
	}

	payload, err := json.Marshal(auditRequest{URL: websiteURL})
	if err != nil {
		return nil, eris.Wrap(err, "siteaudit: marshal request")
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Result, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/v1/audits", bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "siteaudit: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "siteaudit: audit %s", websiteURL)
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "siteaudit: read response body")
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("siteaudit: status %d: %s", resp.StatusCode, string(body))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		var result Result
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, eris.Wrap(err, "siteaudit: unmarshal response")
		}
		return &result, nil
	})
}
