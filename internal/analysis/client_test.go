package analysis

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func completionServer(t *testing.T, status int, body string) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	c := NewHTTPClient(srv.URL, "test-key", 1024)
	return c
}

func TestCompleteSuccess(t *testing.T) {
	c := completionServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":"{\"facts\":[\"f\"]}"}}]}`)

	got, err := c.Complete(context.Background(), "m", "sys", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"facts":["f"]}` {
		t.Errorf("unexpected content %q", got)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	c := completionServer(t, http.StatusOK, `{"choices":[]}`)

	_, err := c.Complete(context.Background(), "m", "sys", "user")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestCompleteRateLimited(t *testing.T) {
	c := completionServer(t, http.StatusTooManyRequests, `{"error":{"message":"rate limit exceeded"}}`)

	_, err := c.Complete(context.Background(), "m", "sys", "user")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestCompleteQuotaExhausted(t *testing.T) {
	cases := []struct {
		status int
		body   string
	}{
		{http.StatusPaymentRequired, `{"error":{"message":"payment required"}}`},
		{http.StatusTooManyRequests, `{"error":{"message":"quota exceeded for this account"}}`},
		{http.StatusTooManyRequests, `{"error":{"message":"insufficient credits"}}`},
	}
	for _, tc := range cases {
		c := completionServer(t, tc.status, tc.body)
		_, err := c.Complete(context.Background(), "m", "sys", "user")
		if !errors.Is(err, ErrQuotaExhausted) {
			t.Errorf("status %d body %q: expected ErrQuotaExhausted, got %v", tc.status, tc.body, err)
		}
	}
}

func TestCompleteModelUnavailable(t *testing.T) {
	cases := []struct {
		status int
		body   string
	}{
		{http.StatusNotFound, `{"error":{"message":"model not found"}}`},
		{http.StatusGone, `{"error":{"message":"gone"}}`},
		{http.StatusBadRequest, `{"error":{"message":"model has been decommissioned"}}`},
	}
	for _, tc := range cases {
		c := completionServer(t, tc.status, tc.body)
		_, err := c.Complete(context.Background(), "m", "sys", "user")
		if !errors.Is(err, ErrModelUnavailable) {
			t.Errorf("status %d: expected ErrModelUnavailable, got %v", tc.status, err)
		}
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	c := NewHTTPClient("http://localhost:1", "", 0)
	if c.IsConfigured() {
		t.Error("expected unconfigured without API key")
	}
	if _, err := c.Complete(context.Background(), "m", "s", "u"); err == nil {
		t.Error("expected error without API key")
	}
}
