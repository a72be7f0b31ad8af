package trakt

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// BaseURL is the Trakt API endpoint.
const BaseURL = "https://api.trakt.tv"

const (
	// PageLimit is the page size requested for paginated resources.
	PageLimit = 1000

	maxRetries = 5
)

// APIError is returned when the Trakt API responds with a non-success status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Transport executes a single GET against the Trakt API and returns the raw
// response body along with the response headers. Implementations must retry
// transient failures themselves; callers never retry.
type Transport interface {
	Get(path string, params url.Values) ([]byte, http.Header, error)
}

// HTTPTransport is the real Trakt API transport. It authenticates every
// request and retries on HTTP 429 or 5xx with a bounded back-off.
type HTTPTransport struct {
	clientID    string
	accessToken string
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger

	// sleep is swappable so retry behavior is testable without waiting.
	sleep func(time.Duration)
}

// NewHTTPTransport creates a transport authenticated with the given Trakt
// application client id and user access token.
func NewHTTPTransport(clientID, accessToken string, logger *slog.Logger) *HTTPTransport {
	return &HTTPTransport{
		clientID:    clientID,
		accessToken: accessToken,
		baseURL:     BaseURL,
		httpClient:  &http.Client{Timeout: 300 * time.Second},
		logger:      logger,
		sleep:       time.Sleep,
	}
}

// Get performs one authenticated GET, retrying rate-limited and server-error
// responses. Any other non-2xx status is returned as an *APIError.
func (t *HTTPTransport) Get(path string, params url.Values) ([]byte, http.Header, error) {
	urlStr := t.baseURL + path
	if len(params) > 0 {
		urlStr = urlStr + "?" + params.Encode()
	}

	t.logger.Info("GET " + urlStr)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequest(http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("trakt-api-version", "2")
		req.Header.Set("trakt-api-key", t.clientID)
		req.Header.Set("Authorization", "Bearer "+t.accessToken)

		resp, err := t.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt < maxRetries {
				t.retryWait(attempt, nil)
				continue
			}
			return nil, nil, lastErr
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &APIError{StatusCode: resp.StatusCode, Message: string(body)}
			if attempt < maxRetries {
				t.logger.Warn("retrying request",
					"status", resp.StatusCode, "attempt", attempt, "url", urlStr)
				t.retryWait(attempt, resp.Header)
				continue
			}
			return nil, nil, lastErr
		}

		if resp.StatusCode >= 400 {
			return nil, nil, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		}

		return body, resp.Header, nil
	}

	return nil, nil, lastErr
}

// retryWait sleeps before the next attempt, honoring Retry-After when the
// server supplied one.
func (t *HTTPTransport) retryWait(attempt int, header http.Header) {
	wait := time.Duration(1<<(attempt-1)) * time.Second
	if header != nil {
		if ra := header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				wait = time.Duration(secs) * time.Second
			}
		}
	}
	t.sleep(wait)
}

// Client is the typed convenience layer over a Transport.
type Client struct {
	transport Transport
	logger    *slog.Logger
}

// NewClient creates a Client on top of the given transport.
func NewClient(transport Transport, logger *slog.Logger) *Client {
	return &Client{transport: transport, logger: logger}
}

// Get fetches a single (non-paginated) resource and decodes it into v.
// A paginated response to a plain Get is a protocol violation and is
// reported as an error rather than silently truncated.
func (c *Client) Get(path string, params url.Values, v any) error {
	body, header, err := c.transport.Get(path, params)
	if err != nil {
		return err
	}

	if header.Get("x-pagination-page") != "" {
		return fmt.Errorf("unexpected paginated response for %s", path)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response for %s: %w", path, err)
	}
	return nil
}

// GetPaginated fetches every page of a paginated resource and returns the
// concatenated items. The server must echo the requested page and limit in
// the x-pagination headers; a mismatch aborts the fetch. An item-count
// shortfall after the final page is logged but not fatal.
func (c *Client) GetPaginated(path string, params url.Values) ([]json.RawMessage, error) {
	merged := url.Values{}
	for k, vs := range params {
		merged[k] = vs
	}

	var results []json.RawMessage

	page := 1
	pageCount := 1
	itemCount := 0

	for page <= pageCount {
		merged.Set("page", strconv.Itoa(page))
		merged.Set("limit", strconv.Itoa(PageLimit))

		body, header, err := c.transport.Get(path, merged)
		if err != nil {
			return nil, err
		}

		if got := header.Get("x-pagination-page"); got != strconv.Itoa(page) {
			return nil, fmt.Errorf("unexpected pagination page %q for %s (want %d)", got, path, page)
		}
		if got := header.Get("x-pagination-limit"); got != strconv.Itoa(PageLimit) {
			return nil, fmt.Errorf("unexpected pagination limit %q for %s (want %d)", got, path, PageLimit)
		}
		pageCount, err = strconv.Atoi(header.Get("x-pagination-page-count"))
		if err != nil {
			return nil, fmt.Errorf("missing pagination page count for %s: %w", path, err)
		}
		itemCount, err = strconv.Atoi(header.Get("x-pagination-item-count"))
		if err != nil {
			return nil, fmt.Errorf("missing pagination item count for %s: %w", path, err)
		}

		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("failed to parse page %d for %s: %w", page, path, err)
		}
		results = append(results, items...)
		page++
	}

	if len(results) != itemCount {
		c.logger.Warn("item count mismatch",
			"path", path, "got", len(results), "expected", itemCount)
	}
	return results, nil
}
