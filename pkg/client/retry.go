package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metrics_api_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metrics_api_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metrics_api_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts counts the initial request, so 1 disables retries.
	MaxAttempts int

	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ForErrorClass scales the initial backoff for the class: rate limiting waits
// longest, network faults somewhat longer than server errors.
func (c RetryConfig) ForErrorClass(class ErrorClass) RetryConfig {
	switch class {
	case ErrorClassRateLimit:
		c.InitialBackoff *= 5
	case ErrorClassNetwork:
		c.InitialBackoff *= 2
	}
	if c.InitialBackoff > c.MaxBackoff {
		c.InitialBackoff = c.MaxBackoff
	}
	return c
}

// Backoff returns the un-jittered wait before the given retry (1-based).
func (c RetryConfig) Backoff(class ErrorClass, retry int) time.Duration {
	cfg := c.ForErrorClass(class)
	backoff := float64(cfg.InitialBackoff)
	for i := 1; i < retry; i++ {
		backoff *= cfg.BackoffMultiplier
		if backoff >= float64(cfg.MaxBackoff) {
			return cfg.MaxBackoff
		}
	}
	return time.Duration(backoff)
}

func (c RetryConfig) validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be >= 1 (got %d)", c.MaxAttempts)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("retry backoff_multiplier must be >= 1 (got %g)", c.BackoffMultiplier)
	}
	if c.InitialBackoff < 0 || c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("retry backoff bounds invalid (initial %v, max %v)", c.InitialBackoff, c.MaxBackoff)
	}
	return nil
}

// attemptFunc performs one attempt. A nil error ends the loop; otherwise the
// returned class decides whether another attempt is made.
type attemptFunc func(attempt int) (ErrorClass, error)

// retryWithBackoff runs fn until it succeeds, returns a non-retryable class,
// or MaxAttempts is reached. Waits are jittered by ±20%.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn attemptFunc) error {
	var lastErr error
	var lastClass ErrorClass

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		class, err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("error_class", string(lastClass)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr, lastClass = err, class
		if !shouldRetry(class) || attempt == cfg.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(string(class)).Inc()
		wait := jitter(cfg.Backoff(class, attempt))
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(wait.Seconds())

		logger.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Str("error_class", string(class)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	if !shouldRetry(lastClass) {
		return lastErr
	}

	retryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	logger.Warn().
		Str("error_class", string(lastClass)).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.MaxAttempts, lastErr)
}

func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
}
