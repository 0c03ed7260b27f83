// Package metrics exposes the Prometheus registry the client, cache and
// conformance harness register into, and exports it for one-shot runs.
//
// Metrics are declared with promauto next to the code that updates them:
//
// Client (pkg/client):
//   - metrics_api_requests_total{endpoint, status}
//   - metrics_api_request_duration_seconds{endpoint}
//   - metrics_api_errors_total{class}
//   - metrics_api_retries_total{error_class}
//   - metrics_api_retry_backoff_seconds{error_class}
//   - metrics_api_retry_exhausted_total{error_class}
//
// Cache (pkg/cache):
//   - metrics_api_cache_hits_total
//   - metrics_api_cache_misses_total
//   - metrics_api_cache_stored_bytes
//   - metrics_api_conditional_requests_total
//   - metrics_api_304_responses_total
//   - metrics_api_cache_errors_total{operation}
//
// Harness (pkg/conformance):
//   - conformance_scenarios_total{result}
//   - conformance_scenario_duration_seconds{scenario}
//   - conformance_runs_total{result}
//
// Sandbox (internal/sandbox):
//   - sandbox_requests_total{route, status}
//
// A conformance run is a batch job, so instead of serving /metrics it writes
// the registry to a node_exporter textfile when asked to.
package metrics

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is where promauto registers every metric of this module.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back what Registry holds.
var Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes all gathered metrics to path in the text exposition
// format. The file is replaced atomically.
func WriteTextfile(path string) error {
	if path == "" {
		return fmt.Errorf("metrics file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Handler serves Gatherer over HTTP. The sandbox mounts it at /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}
