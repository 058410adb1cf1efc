package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/resilience"
)

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestSearchBusinesses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Goog-FieldMask"))

		var req searchTextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "padaria em São Paulo, SP", req.TextQuery)
		assert.Equal(t, "pt-BR", req.LanguageCode)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"places": [
				{
					"id": "place-1",
					"displayName": {"text": "Padaria Sete Grãos"},
					"formattedAddress": "Rua das Flores, 123 - São Paulo, SP",
					"nationalPhoneNumber": "(11) 98888-7777",
					"websiteUri": "https://setegraos.example.com.br",
					"primaryTypeDisplayName": {"text": "Padaria"}
				},
				{
					"id": "place-2",
					"displayName": {"text": "Pão Quente"}
				}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	got, err := c.SearchBusinesses(context.Background(), Query{
		BusinessType: "padaria",
		City:         "São Paulo",
		State:        "SP",
		MaxResults:   10,
	})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "place-1", got[0].PlaceID)
	assert.Equal(t, "Padaria Sete Grãos", got[0].Name)
	assert.Equal(t, "(11) 98888-7777", got[0].Phone)
	assert.Equal(t, "Padaria", got[0].Category)
	assert.Empty(t, got[1].Website)
}

func TestSearchBusinesses_Pagination(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		var req searchTextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			assert.Empty(t, req.PageToken)
			json.NewEncoder(w).Encode(pageJSON(20, "page-2"))
			return
		}
		assert.Equal(t, "page-2", req.PageToken)
		json.NewEncoder(w).Encode(pageJSON(5, ""))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	got, err := c.SearchBusinesses(context.Background(), Query{
		BusinessType: "padaria",
		City:         "Campinas",
		MaxResults:   25,
	})

	require.NoError(t, err)
	assert.Len(t, got, 25)
	assert.Equal(t, int32(2), calls.Load())
}

func pageJSON(n int, nextToken string) map[string]any {
	places := make([]map[string]any, n)
	for i := range places {
		places[i] = map[string]any{
			"id":          fmt.Sprintf("place-%d", i),
			"displayName": map[string]any{"text": fmt.Sprintf("Negócio %d", i)},
		}
	}
	page := map[string]any{"places": places}
	if nextToken != "" {
		page["nextPageToken"] = nextToken
	}
	return page
}

func TestSearchBusinesses_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"places": [{"id": "place-1", "displayName": {"text": "X"}}]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithRetry(fastRetry(3)))

	got, err := c.SearchBusinesses(context.Background(), Query{BusinessType: "padaria", City: "Santos"})

	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearchBusinesses_PermanentFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"message": "API key invalid"}}`))
	}))
	defer srv.Close()

	c := NewClient("bad-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithRetry(fastRetry(3)))

	_, err := c.SearchBusinesses(context.Background(), Query{BusinessType: "padaria", City: "Santos"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Equal(t, int32(1), calls.Load(), "403 must not be retried")
}
