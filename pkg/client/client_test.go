package client

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/credit-analytics-client/internal/testutil"
	"github.com/Sternrassler/credit-analytics-client/pkg/analytics"
	"github.com/Sternrassler/credit-analytics-client/pkg/cache"
)

const metricsBody = `{
	"requestId": "req-100001",
	"locationId": "100001",
	"currency": "USD",
	"weeksOfHistory": 104,
	"periods": [
		{"period": "L4W", "startDate": "2025-09-01", "endDate": "2025-09-28", "transactionCount": 420, "salesVolume": 21000, "averageTicket": 50, "yoyGrowth": 0.04, "lowVolume": false}
	]
}`

func newTestClient(t *testing.T, mock *testutil.MockAPI, mutate ...func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig(mock.URL(), "CreditAnalyticsTest/1.0 (test@example.com)")
	cfg.Retry = fastRetry(3)
	for _, m := range mutate {
		m(&cfg)
	}

	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

// setupTestRedis connects to a local Redis on DB 15 and skips when none is running.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		errorMsg string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("https://sandbox.example.com/credit-analytics", "TestApp/1.0"),
		},
		{
			name:     "missing base url",
			config:   DefaultConfig("", "TestApp/1.0"),
			errorMsg: "base url is required",
		},
		{
			name:     "relative base url",
			config:   DefaultConfig("/credit-analytics", "TestApp/1.0"),
			errorMsg: `base url must be absolute http(s) (got "/credit-analytics")`,
		},
		{
			name:     "unsupported scheme",
			config:   DefaultConfig("ftp://sandbox.example.com", "TestApp/1.0"),
			errorMsg: `base url must be absolute http(s) (got "ftp://sandbox.example.com")`,
		},
		{
			name:     "empty user agent",
			config:   DefaultConfig("https://sandbox.example.com", ""),
			errorMsg: "user-agent is required",
		},
		{
			name: "zero retry attempts",
			config: func() Config {
				cfg := DefaultConfig("https://sandbox.example.com", "TestApp/1.0")
				cfg.Retry.MaxAttempts = 0
				return cfg
			}(),
			errorMsg: "retry max_attempts must be >= 1 (got 0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)
			if tt.errorMsg == "" {
				require.NoError(t, err)
				assert.NotNil(t, c)
				return
			}
			assert.Nil(t, c)
			assert.EqualError(t, err, tt.errorMsg)
		})
	}
}

func TestGetMetrics_Success(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(testutil.MetricsPath("100001"), testutil.NewMetricsResponse(metricsBody))

	c := newTestClient(t, mock)
	m, err := c.GetMetrics(context.Background(), analytics.Request{LocationID: "100001", ConsentProvided: true})
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, "100001", m.LocationID)
	assert.Equal(t, 104, m.WeeksOfHistory)
	assert.NoError(t, m.Validate())

	header := mock.LastRequestHeader()
	assert.Equal(t, "CreditAnalyticsTest/1.0 (test@example.com)", header.Get("User-Agent"))
	assert.Equal(t, "application/json", header.Get("Accept"))
	assert.NotEmpty(t, header.Get("X-Request-Id"))
}

func TestGetMetrics_SendsConsentQuery(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	var consent atomic.Value
	mock.SetHandler(testutil.MetricsPath("100001"), func(w http.ResponseWriter, r *http.Request) {
		consent.Store(r.URL.Query().Get("consent_provided"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(metricsBody))
	})

	c := newTestClient(t, mock)
	_, err := c.GetMetrics(context.Background(), analytics.Request{LocationID: "100001"})
	require.NoError(t, err)
	assert.Equal(t, "false", consent.Load())
}

func TestGetMetrics_DomainFailures(t *testing.T) {
	for _, kind := range analytics.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			mock.SetResponse(testutil.MetricsPath("200001"), testutil.NewErrorResponse(kind))

			c := newTestClient(t, mock)
			m, err := c.GetMetrics(context.Background(), analytics.Request{LocationID: "200001", ConsentProvided: true})
			assert.Nil(t, m)
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, kind.HTTPStatus(), apiErr.StatusCode)
			assert.Equal(t, ErrorClassClient, apiErr.ErrorClass)
			assert.Equal(t, kind.ReasonCode(), apiErr.ReasonCode)

			got, ok := analytics.KindOf(err)
			assert.True(t, ok)
			assert.Equal(t, kind, got)

			assert.Equal(t, 1, mock.RequestCount(), "domain failures must not be retried")
		})
	}
}

func TestGetMetrics_UnauthorizedHasNoKind(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(testutil.MetricsPath("100001"), testutil.NewUnauthorizedResponse())

	c := newTestClient(t, mock)
	_, err := c.GetMetrics(context.Background(), analytics.Request{LocationID: "100001", ConsentProvided: true})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", apiErr.ReasonCode)

	_, ok := analytics.KindOf(err)
	assert.False(t, ok)
}

func TestGetMetrics_RetriesServerErrors(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetSequence(testutil.MetricsPath("100001"),
		testutil.NewServerErrorResponse(),
		testutil.NewRateLimitResponse(),
		testutil.NewMetricsResponse(metricsBody),
	)

	c := newTestClient(t, mock)
	m, err := c.GetMetrics(context.Background(), analytics.Request{LocationID: "100001", ConsentProvided: true})
	require.NoError(t, err)
	assert.Equal(t, "100001", m.LocationID)
	assert.Equal(t, 3, mock.RequestCount())
}

func TestGetMetrics_RetryExhausted(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(testutil.MetricsPath("100001"), testutil.NewServerErrorResponse())

	c := newTestClient(t, mock)
	_, err := c.GetMetrics(context.Background(), analytics.Request{LocationID: "100001", ConsentProvided: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryExhausted)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrorClassServer, apiErr.ErrorClass)

	_, ok := analytics.KindOf(err)
	assert.False(t, ok, "server faults carry no domain kind")
	assert.Equal(t, 3, mock.RequestCount())
}

func TestGetMetrics_ServerErrorWithDomainEnvelopeHasNoKind(t *testing.T) {
	body, err := NewErrorBody(analytics.KindMetricsNotFound, "upstream", "boom")
	require.NoError(t, err)

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(testutil.MetricsPath("200001"), testutil.MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	c := newTestClient(t, mock, func(cfg *Config) { cfg.Retry = fastRetry(2) })
	_, err = c.GetMetrics(context.Background(), analytics.Request{LocationID: "200001", ConsentProvided: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryExhausted)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrorClassServer, apiErr.ErrorClass)
	assert.Equal(t, "METRICS_NOT_FOUND", apiErr.ReasonCode)

	_, ok := analytics.KindOf(err)
	assert.False(t, ok, "a 5xx is never a domain failure")
	assert.Equal(t, 2, mock.RequestCount())
}

func TestGetMetrics_StatusReasonMismatchHasNoKind(t *testing.T) {
	body, err := NewErrorBody(analytics.KindConsentNotProvided, "upstream", "wrong status")
	require.NoError(t, err)

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(testutil.MetricsPath("300001"), testutil.MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	c := newTestClient(t, mock)
	_, err = c.GetMetrics(context.Background(), analytics.Request{LocationID: "300001"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "CONSENT_NOT_PROVIDED", apiErr.ReasonCode)

	_, ok := analytics.KindOf(err)
	assert.False(t, ok, "consent failures are only reported with 403")
	assert.Equal(t, 1, mock.RequestCount())
}

func TestGetMetrics_NetworkError(t *testing.T) {
	mock := testutil.NewMockAPI()
	url := mock.URL()
	mock.Close()

	cfg := DefaultConfig(url, "TestApp/1.0")
	cfg.Retry = fastRetry(2)
	c, err := New(cfg)
	require.NoError(t, err)

	_, err = c.GetMetrics(context.Background(), analytics.Request{LocationID: "100001", ConsentProvided: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryExhausted)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrorClassNetwork, apiErr.ErrorClass)
}

func TestGetMetrics_SigningFailure(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(testutil.MetricsPath("100001"), testutil.NewMetricsResponse(metricsBody))

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.Signer = SignerFunc(func(*http.Request) error { return errors.New("keystore locked") })
	})

	_, err := c.GetMetrics(context.Background(), analytics.Request{LocationID: "100001", ConsentProvided: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSigning)
	assert.Contains(t, err.Error(), "keystore locked")
	assert.Equal(t, 0, mock.RequestCount())
}

func TestGetMetrics_SignsEachAttempt(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetSequence(testutil.MetricsPath("100001"),
		testutil.NewServerErrorResponse(),
		testutil.NewMetricsResponse(metricsBody),
	)

	var signed atomic.Int32
	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.Signer = SignerFunc(func(req *http.Request) error {
			signed.Add(1)
			req.Header.Set("X-Api-Key", "k-1")
			return nil
		})
	})

	_, err := c.GetMetrics(context.Background(), analytics.Request{LocationID: "100001", ConsentProvided: true})
	require.NoError(t, err)
	assert.Equal(t, int32(2), signed.Load())
	assert.Equal(t, "k-1", mock.LastRequestHeader().Get("X-Api-Key"))
}

func TestGetMetrics_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	resp := testutil.NewMetricsResponse(metricsBody)
	resp.Delay = 2 * time.Second
	mock.SetResponse(testutil.MetricsPath("100001"), resp)

	c := newTestClient(t, mock)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetMetrics(ctx, analytics.Request{LocationID: "100001", ConsentProvided: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContextCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetMetrics_InvalidRequest(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	c := newTestClient(t, mock)
	_, err := c.GetMetrics(context.Background(), analytics.Request{})
	assert.EqualError(t, err, "invalid request: location id is required")
	assert.Equal(t, 0, mock.RequestCount())
}

func TestGetMetrics_DecodeError(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(testutil.MetricsPath("100001"), testutil.NewMetricsResponse("not json"))

	c := newTestClient(t, mock)
	_, err := c.GetMetrics(context.Background(), analytics.Request{LocationID: "100001", ConsentProvided: true})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestGetMetrics_CacheHit(t *testing.T) {
	redisClient := setupTestRedis(t)
	manager, err := cache.NewManager(redisClient, "client-test")
	require.NoError(t, err)

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(testutil.MetricsPath("100001"), testutil.NewMetricsResponse(metricsBody))

	c := newTestClient(t, mock, func(cfg *Config) { cfg.Cache = manager })
	req := analytics.Request{LocationID: "100001", ConsentProvided: true}

	first, err := c.GetMetrics(context.Background(), req)
	require.NoError(t, err)
	second, err := c.GetMetrics(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.RequestCount(), "second lookup must be served from cache")
}

func TestGetMetrics_CacheSeparatesBaseURLs(t *testing.T) {
	redisClient := setupTestRedis(t)
	manager, err := cache.NewManager(redisClient, cache.DefaultNamespace)
	require.NoError(t, err)

	first := testutil.NewMockAPI()
	defer first.Close()
	first.SetResponse(testutil.MetricsPath("100001"), testutil.NewMetricsResponse(metricsBody))

	second := testutil.NewMockAPI()
	defer second.Close()
	second.SetResponse(testutil.MetricsPath("100001"), testutil.NewErrorResponse(analytics.KindLocationNotFound))

	withCache := func(cfg *Config) { cfg.Cache = manager }
	a := newTestClient(t, first, withCache)
	b := newTestClient(t, second, withCache)
	req := analytics.Request{LocationID: "100001", ConsentProvided: true}

	m, err := a.GetMetrics(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "100001", m.LocationID)

	_, err = b.GetMetrics(context.Background(), req)
	kind, ok := analytics.KindOf(err)
	require.True(t, ok, "second API must not be answered from the first API's cache entry")
	assert.Equal(t, analytics.KindLocationNotFound, kind)

	assert.Equal(t, 1, first.RequestCount())
	assert.Equal(t, 1, second.RequestCount())
}

func TestGetMetrics_CacheRevalidation(t *testing.T) {
	redisClient := setupTestRedis(t)
	manager, err := cache.NewManager(redisClient, "client-test")
	require.NoError(t, err)

	mock := testutil.NewMockAPI()
	defer mock.Close()
	// Expires shortly so the next lookup has to revalidate.
	mock.SetHandler(testutil.MetricsPath("100001"), testutil.NewConditionalHandler(`"v1"`, metricsBody, 2*time.Second))

	c := newTestClient(t, mock, func(cfg *Config) { cfg.Cache = manager })
	req := analytics.Request{LocationID: "100001", ConsentProvided: true}

	_, err = c.GetMetrics(context.Background(), req)
	require.NoError(t, err)

	time.Sleep(3100 * time.Millisecond)

	m, err := c.GetMetrics(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "100001", m.LocationID)
	assert.Equal(t, 2, mock.RequestCount())
	assert.Equal(t, 1, mock.ConditionalCount())
}

func TestGetMetrics_UnexpectedNotModified(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(testutil.MetricsPath("100001"), testutil.NewNotModifiedResponse())

	c := newTestClient(t, mock)
	_, err := c.GetMetrics(context.Background(), analytics.Request{LocationID: "100001", ConsentProvided: true})
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorContains(t, err, "unexpected status 304")
}

func TestPing(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	c := newTestClient(t, mock)
	err := c.Ping(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	mock.SetResponse("/health", testutil.MockResponse{StatusCode: http.StatusOK, Body: "OK"})
	assert.NoError(t, c.Ping(context.Background()))
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{200, ""},
		{304, ""},
		{400, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
	}
	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
