// Package client provides the Metrics API HTTP client with retry, optional
// Redis caching, request signing and typed domain errors.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/credit-analytics-client/pkg/analytics"
	"github.com/Sternrassler/credit-analytics-client/pkg/cache"
	"github.com/Sternrassler/credit-analytics-client/pkg/logging"
)

// MetricsEndpoint is the route template of the metrics lookup.
const MetricsEndpoint = "/merchants/{location_id}/metrics"

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metrics_api_requests_total",
		Help: "Total Metrics API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metrics_api_request_duration_seconds",
		Help:    "Metrics API request duration in seconds by endpoint",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metrics_api_errors_total",
		Help: "Total Metrics API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of failed requests.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"
)

// Client calls the Metrics API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://sandbox.api.example.com/credit-analytics".
	BaseURL string

	// UserAgent is sent on every request (required).
	UserAgent string

	// Timeout bounds each HTTP attempt. Ignored when HTTPClient is set.
	Timeout time.Duration

	// HTTPClient overrides the default transport, e.g. for mutual TLS.
	HTTPClient *http.Client

	// Signer attaches credentials. Nil sends unsigned requests.
	Signer RequestSigner

	// Cache enables Redis response caching when non-nil.
	Cache *cache.Manager

	Retry RetryConfig
}

// DefaultConfig returns a configuration with safe defaults and no cache or signer.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new Metrics API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute http(s) (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if err := cfg.Retry.validate(); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		cache:      cfg.Cache,
		config:     cfg,
		logger:     logging.NewLogger(logging.ComponentClient),
	}, nil
}

// GetMetrics retrieves the metrics of one merchant location.
//
// Domain failures come back as *APIError with Kind set; use analytics.KindOf
// to inspect them. Other errors are transport, credential or server faults.
func (c *Client) GetMetrics(ctx context.Context, r analytics.Request) (*analytics.Metrics, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	u := c.baseURL.JoinPath("merchants", r.LocationID, "metrics")
	query := url.Values{"consent_provided": []string{strconv.FormatBool(r.ConsentProvided)}}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	key := cache.CacheKey{
		Origin:      c.baseURL.Host + c.baseURL.Path,
		Endpoint:    MetricsEndpoint,
		LocationID:  r.LocationID,
		QueryParams: query,
	}
	resp, err := c.do(req, MetricsEndpoint, key)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := errorFromResponse(resp, ErrorClassClient)
		c.logger.Debug().
			Str(logging.FieldLocationID, r.LocationID).
			Int(logging.FieldStatusCode, resp.StatusCode).
			Str("reason_code", apiErr.ReasonCode).
			Str(logging.FieldKind, string(apiErr.Kind)).
			Msg("Metrics API reported failure")
		return nil, apiErr
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrDecode, resp.StatusCode)
	}

	var m analytics.Metrics
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &m, nil
}

// do sends req with caching, signing and retries. 4xx responses other than
// 429 are returned to the caller unconsumed.
func (c *Client) do(req *http.Request, endpoint string, key cache.CacheKey) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var cached *cache.CacheEntry
	if c.cache != nil {
		entry, err := c.cache.GetStale(ctx, key)
		switch {
		case err == nil && !entry.IsExpired():
			cache.CacheHits.Inc()
			requestsTotal.WithLabelValues(endpoint, "cache_hit").Inc()
			c.logger.Debug().Str("cache_key", key.String()).Msg("Serving metrics from cache")
			return cache.EntryToResponse(entry, req), nil
		case err == nil:
			cached = entry
			cache.CacheMisses.Inc()
		case errors.Is(err, cache.ErrCacheMiss):
			cache.CacheMisses.Inc()
		default:
			c.logger.Warn().Err(err).Str("cache_key", key.String()).Msg("Cache lookup failed")
		}
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if cache.AddConditionalHeaders(req, cached) {
		c.logger.Debug().Str("etag", cached.ETag).Msg("Making conditional request")
	}

	var resp *http.Response
	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func(attempt int) (ErrorClass, error) {
		attemptReq := req.Clone(ctx)
		if c.config.Signer != nil {
			if err := c.config.Signer.Sign(attemptReq); err != nil {
				return "", fmt.Errorf("%w: %v", ErrSigning, err)
			}
		}

		r, err := c.httpClient.Do(attemptReq)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
			}
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Warn().Err(err).Int("attempt", attempt).Str(logging.FieldEndpoint, endpoint).Msg("HTTP request failed")
			return ErrorClassNetwork, &APIError{
				ErrorClass: ErrorClassNetwork,
				Message:    "transport error",
				Err:        err,
			}
		}

		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(r.StatusCode)).Inc()

		class := classifyStatus(r.StatusCode)
		if class != "" {
			errorsTotal.WithLabelValues(string(class)).Inc()
		}
		if shouldRetry(class) {
			apiErr := errorFromResponse(r, class)
			r.Body.Close()
			c.logger.Warn().
				Str(logging.FieldEndpoint, endpoint).
				Int(logging.FieldStatusCode, r.StatusCode).
				Str(logging.FieldErrorClass, string(class)).
				Int("attempt", attempt).
				Msg("Metrics API request error")
			return class, apiErr
		}

		resp = r
		return "", nil
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		resp.Body.Close()
		cache.NotModifiedResponses.Inc()

		expires := time.Now().Add(cache.DefaultTTL)
		if t, err := http.ParseTime(resp.Header.Get("Expires")); err == nil {
			expires = t
		}
		if err := c.cache.Refresh(ctx, key, expires); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}
		c.logger.Debug().Str(logging.FieldEndpoint, endpoint).Msg("304 Not Modified - using cache")
		return cache.EntryToResponse(cached, req), nil
	}

	if c.cache != nil && resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			return nil, fmt.Errorf("buffer response: %w", err)
		}
		if err := c.cache.Set(ctx, key, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	return resp, nil
}

// classifyStatus returns the error class of an HTTP status, or "" for success.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// Ping checks that the API answers its health route.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.JoinPath("health").String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{ErrorClass: ErrorClassNetwork, Message: "transport error", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if class := classifyStatus(resp.StatusCode); class != "" {
		return &APIError{StatusCode: resp.StatusCode, ErrorClass: class, Message: resp.Status}
	}
	return nil
}
