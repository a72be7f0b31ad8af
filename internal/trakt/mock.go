package trakt

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// InMemoryTransport is a canned-response Trakt API for unit tests. Plain
// resources are seeded whole; paginated resources are seeded as item lists
// and served back with the real pagination headers.
type InMemoryTransport struct {
	responses  map[string]json.RawMessage
	paginated  map[string][]json.RawMessage
	RequestLog []RequestLogEntry
}

// RequestLogEntry records a request made to the transport.
type RequestLogEntry struct {
	Path   string
	Params url.Values
}

// NewInMemoryTransport creates an empty in-memory transport.
func NewInMemoryTransport() *InMemoryTransport {
	return &InMemoryTransport{
		responses: make(map[string]json.RawMessage),
		paginated: make(map[string][]json.RawMessage),
	}
}

// Seed registers the response document for a plain GET of path.
func (t *InMemoryTransport) Seed(path string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	t.responses[path] = data
}

// SeedPaginated registers the full item list for a paginated GET of path.
func (t *InMemoryTransport) SeedPaginated(path string, items ...any) {
	raw := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			panic(err)
		}
		raw = append(raw, data)
	}
	t.paginated[path] = raw
}

// RequestsMade returns the number of requests made to this transport.
func (t *InMemoryTransport) RequestsMade() int {
	return len(t.RequestLog)
}

// RequestsFor returns the number of requests made for the given path.
func (t *InMemoryTransport) RequestsFor(path string) int {
	n := 0
	for _, entry := range t.RequestLog {
		if entry.Path == path {
			n++
		}
	}
	return n
}

// Get serves a seeded response, echoing pagination headers for paginated
// seeds the way the real API does.
func (t *InMemoryTransport) Get(path string, params url.Values) ([]byte, http.Header, error) {
	logged := url.Values{}
	for k, vs := range params {
		logged[k] = append([]string(nil), vs...)
	}
	t.RequestLog = append(t.RequestLog, RequestLogEntry{Path: path, Params: logged})

	if items, ok := t.paginated[path]; ok {
		return t.servePaginated(path, items, params)
	}

	if data, ok := t.responses[path]; ok {
		return data, http.Header{}, nil
	}

	return nil, nil, &APIError{StatusCode: http.StatusNotFound, Message: "not seeded: " + path}
}

func (t *InMemoryTransport) servePaginated(path string, items []json.RawMessage, params url.Values) ([]byte, http.Header, error) {
	page, err := strconv.Atoi(params.Get("page"))
	if err != nil {
		return nil, nil, fmt.Errorf("paginated path %s requested without page param", path)
	}
	limit, err := strconv.Atoi(params.Get("limit"))
	if err != nil {
		return nil, nil, fmt.Errorf("paginated path %s requested without limit param", path)
	}

	pageCount := (len(items) + limit - 1) / limit
	if pageCount == 0 {
		pageCount = 1
	}

	start := (page - 1) * limit
	end := start + limit
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}

	body, err := json.Marshal(items[start:end])
	if err != nil {
		return nil, nil, err
	}

	header := http.Header{}
	header.Set("x-pagination-page", strconv.Itoa(page))
	header.Set("x-pagination-limit", strconv.Itoa(limit))
	header.Set("x-pagination-page-count", strconv.Itoa(pageCount))
	header.Set("x-pagination-item-count", strconv.Itoa(len(items)))
	return body, header, nil
}
