// Package testutil provides a configurable mock Metrics API for client tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/Sternrassler/credit-analytics-client/pkg/analytics"
)

// MockResponse defines one canned answer of the mock API.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is an httptest server whose routes are configured per test.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc

	requestCount      int
	conditionalCount  int
	lastRequestHeader http.Header
}

// NewMockAPI starts a mock API. Unconfigured paths answer 404 without an envelope.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{handlers: make(map[string]http.HandlerFunc)}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.lastRequestHeader = r.Header.Clone()
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.conditionalCount++
		}
		handler, ok := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse answers every request on path with resp.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, writeResponse(resp))
}

// SetSequence answers successive requests on path with responses in order,
// repeating the last one once the list is used up.
func (m *MockAPI) SetSequence(path string, responses ...MockResponse) {
	var mu sync.Mutex
	next := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[next]
		if next < len(responses)-1 {
			next++
		}
		mu.Unlock()
		writeResponse(resp)(w, r)
	})
}

// MetricsPath returns the route of the metrics lookup for a location.
func MetricsPath(locationID string) string {
	return fmt.Sprintf("/merchants/%s/metrics", locationID)
}

// RequestCount returns the number of requests received.
func (m *MockAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// ConditionalCount returns the number of conditional requests received.
func (m *MockAPI) ConditionalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conditionalCount
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockAPI) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequestHeader.Clone()
}

func writeResponse(resp MockResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			_, _ = w.Write([]byte(resp.Body))
		}
	}
}

// NewMetricsResponse creates a 200 response carrying body.
func NewMetricsResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"ETag":         `"test-etag-123"`,
			"Expires":      time.Now().Add(5 * time.Minute).UTC().Format(http.TimeFormat),
		},
	}
}

// NewErrorResponse creates the error envelope the API sends for kind.
func NewErrorResponse(kind analytics.ErrorKind) MockResponse {
	return MockResponse{
		StatusCode: kind.HTTPStatus(),
		Body: fmt.Sprintf(
			`{"Errors":{"Error":[{"Source":"credit-analytics","ReasonCode":%q,"Description":"mock %s","Recoverable":false,"Details":null}]}}`,
			kind.ReasonCode(), kind),
		Headers: map[string]string{"Content-Type": "application/json"},
	}
}

// NewUnauthorizedResponse creates a 401 with a reason code outside the domain set.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"Errors":{"Error":[{"Source":"gateway","ReasonCode":"UNAUTHORIZED","Description":"signature invalid","Recoverable":false}]}}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"Errors":{"Error":[{"Source":"credit-analytics","ReasonCode":"SERVER_ERROR","Description":"internal error","Recoverable":true}]}}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"Errors":{"Error":[{"Source":"gateway","ReasonCode":"RATE_LIMIT_EXCEEDED","Description":"slow down","Recoverable":true}]}}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewNotModifiedResponse creates a 304 Not Modified response.
func NewNotModifiedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotModified,
		Headers: map[string]string{
			"Expires": time.Now().Add(5 * time.Minute).UTC().Format(http.TimeFormat),
		},
	}
}

// NewConditionalHandler answers 304 when If-None-Match equals etag and 200
// with body otherwise. Responses expire after ttl.
func NewConditionalHandler(etag, body string, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Expires", time.Now().Add(ttl).UTC().Format(http.TimeFormat))
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}
