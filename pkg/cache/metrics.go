package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts fresh entries served from Redis.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metrics_api_cache_hits_total",
		Help: "Total number of Metrics API cache hits",
	})

	// CacheMisses counts lookups that found nothing usable.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metrics_api_cache_misses_total",
		Help: "Total number of Metrics API cache misses",
	})

	// CacheStoredBytes tracks the bytes written by the most recent Set.
	CacheStoredBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "metrics_api_cache_stored_bytes",
		Help: "Size in bytes of the most recently stored cache entry",
	})

	// NotModifiedResponses counts 304 replies to conditional requests.
	NotModifiedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metrics_api_304_responses_total",
		Help: "Total number of 304 Not Modified responses",
	})

	// ConditionalRequestsSent counts requests sent with If-None-Match or If-Modified-Since.
	ConditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metrics_api_conditional_requests_total",
		Help: "Total number of conditional requests sent",
	})

	// CacheErrors counts Redis failures by operation.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metrics_api_cache_errors_total",
		Help: "Total number of cache operation errors",
	}, []string{"operation"})
)
