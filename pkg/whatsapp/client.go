// Package whatsapp provides a client for an Evolution-API-compatible
// WhatsApp gateway, the primary outreach channel.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/resilience"
)

// Client defines the outbound messaging operations.
type Client interface {
	// SendText delivers a text message to a phone number in digits-only
	// international form (e.g. 5511988887777).
	SendText(ctx context.Context, number, text string) (*SendResult, error)
}

// SendResult is the gateway's delivery acknowledgment.
type SendResult struct {
	MessageID string
	Status    string
}

// Option configures the whatsapp client.
type Option func(*httpClient)

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
	baseURL  string
	apiKey   string
	instance string
	http     *http.Client
	retry    resilience.RetryConfig
}

// NewClient creates a new gateway client bound to one instance.
func NewClient(baseURL, apiKey, instance string, opts ...Option) Client {
	c := &httpClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		instance: instance,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendTextResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
	Status string `json:"status"`
}

func (c *httpClient) SendText(ctx context.Context, number, text string) (*SendResult, error) {
	if number == "" {
		return nil, eris.New("whatsapp: destination number is required")
	}
	if text == "" {
		return nil, eris.New("whatsapp: message text is required")
	}

	payload, err := json.Marshal(sendTextRequest{Number: number, Text: text})
	if err != nil {
		return nil, eris.Wrap(err, "whatsapp: marshal request")
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*SendResult, error) {
		url := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, c.instance)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "whatsapp: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("apikey", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "whatsapp: send to %s", number)
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "whatsapp: read response body")
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			err := eris.Errorf("whatsapp: status %d: %s", resp.StatusCode, string(body))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		var result sendTextResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, eris.Wrap(err, "whatsapp: unmarshal response")
		}
		return &SendResult{MessageID: result.Key.ID, Status: result.Status}, nil
	})
}
