// Package places provides a client for the Google Places text search API,
// used to discover candidate businesses for a prospecting run.
package places

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

// Client defines the discovery operations used by the research orchestrator.
type Client interface {
	// SearchBusinesses runs a text search and returns up to q.MaxResults
	// candidates, following pagination as needed.
	SearchBusinesses(ctx context.Context, q Query) ([]Business, error)
}

// Query describes one discovery search.
type Query struct {
	BusinessType string
	City         string
	State        string
	MaxResults   int
}

// TextQuery renders the localized search string sent to the provider.
func (q Query) TextQuery() string {
	loc := q.City
	if q.State != "" {
		loc += ", " + q.State
	}
	return fmt.Sprintf("%s em %s", q.BusinessType, loc)
}

// Business is one discovered candidate.
type Business struct {
	PlaceID  string
	Name     string
	Address  string
	Phone    string
	Website  string
	Category string
}

// Option configures the places client.
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

// NewClient creates a new places client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://places.googleapis.com/v1",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const fieldMask = "places.id,places.displayName,places.formattedAddress," +
	"places.nationalPhoneNumber,places.websiteUri,places.primaryTypeDisplayName,nextPageToken"

// The provider caps a single page at 20 results.
const pageSize = 20

type searchTextRequest struct {
	TextQuery      string `json:"textQuery"`
	MaxResultCount int    `json:"maxResultCount"`
	LanguageCode   string `json:"languageCode"`
	RegionCode     string `json:"regionCode"`
	PageToken      string `json:"pageToken,omitempty"`
}

type searchTextResponse struct {
	Places []struct {
		ID          string `json:"id"`
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress       string `json:"formattedAddress"`
		NationalPhoneNumber    string `json:"nationalPhoneNumber"`
		WebsiteURI             string `json:"websiteUri"`
		PrimaryTypeDisplayName struct {
			Text string `json:"text"`
		} `json:"primaryTypeDisplayName"`
	} `json:"places"`
	NextPageToken string `json:"nextPageToken"`
}

func (c *httpClient) SearchBusinesses(ctx context.Context, q Query) ([]Business, error) {
	if q.MaxResults <= 0 {
		q.MaxResults = pageSize
	}

	var out []Business
	pageToken := ""
	for len(out) < q.MaxResults {
		remaining := q.MaxResults - len(out)
		count := remaining
		if count > pageSize {
			count = pageSize
		}

		page, err := c.searchPage(ctx, searchTextRequest{
			TextQuery:      q.TextQuery(),
			MaxResultCount: count,
			LanguageCode:   "pt-BR",
			RegionCode:     "BR",
			PageToken:      pageToken,
		})
		if err != nil {
			return nil, err
		}

		for _, p := range page.Places {
			out = append(out, Business{
				PlaceID:  p.ID,
				Name:     p.DisplayName.Text,
				Address:  p.FormattedAddress,
				Phone:    p.NationalPhoneNumber,
				Website:  p.WebsiteURI,
				Category: p.PrimaryTypeDisplayName.Text,
			})
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	if len(out) > q.MaxResults {
		out = out[:q.MaxResults]
	}
	return out, nil
}

func (c *httpClient) searchPage(ctx context.Context, reqBody searchTextRequest) (*searchTextResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*searchTextResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/places:searchText", bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "places: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Goog-Api-Key", c.apiKey)
		req.Header.Set("X-Goog-FieldMask", fieldMask)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "places: search request")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "places: read response body")
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("places: status %d: %s", resp.StatusCode, string(body))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		var result searchTextResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, eris.Wrap(err, "places: unmarshal response")
		}
		return &result, nil
	})
}
