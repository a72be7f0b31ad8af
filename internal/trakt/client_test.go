package trakt

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientGet(t *testing.T) {
	transport := NewInMemoryTransport()
	transport.Seed("/users/me", UserProfile{
		Username: "josh",
		VIPYears: 5,
		IDs:      UserIDs{Slug: "josh"},
	})

	client := NewClient(transport, testLogger())

	var profile UserProfile
	if err := client.Get("/users/me", nil, &profile); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if profile.Username != "josh" {
		t.Errorf("Expected username josh, got %q", profile.Username)
	}
	if profile.VIPYears != 5 {
		t.Errorf("Expected 5 vip years, got %d", profile.VIPYears)
	}
}

func TestClientGetNotSeeded(t *testing.T) {
	client := NewClient(NewInMemoryTransport(), testLogger())

	var profile UserProfile
	err := client.Get("/users/me", nil, &profile)
	if err == nil {
		t.Fatal("Expected error for unseeded path")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", apiErr.StatusCode)
	}
}

func TestClientGetRejectsPaginatedResponse(t *testing.T) {
	transport := NewInMemoryTransport()
	transport.SeedPaginated("/sync/history",
		HistoryItem{ID: 1, Type: "movie"},
	)

	client := NewClient(transport, testLogger())

	// Requesting a paginated resource through plain Get must fail rather
	// than return a single page as if it were the whole document.
	var items []HistoryItem
	merged := url.Values{}
	merged.Set("page", "1")
	merged.Set("limit", "10")
	if err := client.Get("/sync/history", merged, &items); err == nil {
		t.Fatal("Expected error for paginated response to plain Get")
	}
}

func TestClientGetPaginated(t *testing.T) {
	transport := NewInMemoryTransport()

	items := make([]any, 0, 2500)
	for i := 0; i < 2500; i++ {
		items = append(items, HistoryItem{ID: i, Type: "movie"})
	}
	transport.SeedPaginated("/sync/history", items...)

	client := NewClient(transport, testLogger())

	results, err := client.GetPaginated("/sync/history", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(results) != 2500 {
		t.Errorf("Expected 2500 items, got %d", len(results))
	}
	// 2500 items at 1000 per page is three requests.
	if transport.RequestsMade() != 3 {
		t.Errorf("Expected 3 requests, got %d", transport.RequestsMade())
	}
}

func TestClientGetPaginatedEmpty(t *testing.T) {
	transport := NewInMemoryTransport()
	transport.SeedPaginated("/users/me/likes/lists")

	client := NewClient(transport, testLogger())

	results, err := client.GetPaginated("/users/me/likes/lists", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no items, got %d", len(results))
	}
}

func TestHTTPTransportRetriesRateLimit(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"username":"josh"}`)
	}))
	defer server.Close()

	transport := NewHTTPTransport("id", "token", testLogger())
	transport.baseURL = server.URL

	var slept []time.Duration
	transport.sleep = func(d time.Duration) { slept = append(slept, d) }

	body, _, err := transport.Get("/users/me", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(body) != `{"username":"josh"}` {
		t.Errorf("Unexpected body: %s", body)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	for _, d := range slept {
		if d != time.Second {
			t.Errorf("Expected Retry-After wait of 1s, got %v", d)
		}
	}
}

func TestHTTPTransportGivesUpAfterMaxRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	transport := NewHTTPTransport("id", "token", testLogger())
	transport.baseURL = server.URL
	transport.sleep = func(time.Duration) {}

	_, _, err := transport.Get("/users/me", nil)
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", apiErr.StatusCode)
	}
}

func TestHTTPTransportClientErrorNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	transport := NewHTTPTransport("id", "token", testLogger())
	transport.baseURL = server.URL
	transport.sleep = func(time.Duration) {}

	_, _, err := transport.Get("/users/me", nil)
	if err == nil {
		t.Fatal("Expected error for 401 response")
	}
	if attempts != 1 {
		t.Errorf("Expected no retries for 401, got %d attempts", attempts)
	}
}
