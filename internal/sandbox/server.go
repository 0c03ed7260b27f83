// Package sandbox serves the fixture catalog as a Metrics API so the client
// and the conformance harness can run without the provider's environment.
package sandbox

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/spaolacci/murmur3"

	"github.com/Sternrassler/credit-analytics-client/pkg/analytics"
	"github.com/Sternrassler/credit-analytics-client/pkg/client"
	"github.com/Sternrassler/credit-analytics-client/pkg/fixtures"
	"github.com/Sternrassler/credit-analytics-client/pkg/logging"
	"github.com/Sternrassler/credit-analytics-client/pkg/metrics"
)

// Route patterns, also used as metric labels.
const (
	RouteMetrics = "/merchants/{locationID}/metrics"
	RouteHealth  = "/health"
	RouteMetricz = "/metrics"
)

// DefaultTTL is how long clients may cache a metrics response.
const DefaultTTL = 5 * time.Minute

// errorSource is the Source field of every error envelope the sandbox sends.
const errorSource = "credit-analytics-sandbox"

var sandboxRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sandbox_requests_total",
	Help: "Requests served by the sandbox by route and status",
}, []string{"route", "status"})

// Stats counts what the sandbox has served.
type Stats struct {
	Requests    int
	Conditional int
	NotModified int
	Failures    map[analytics.ErrorKind]int
}

// Server is an http.Handler answering Metrics API requests from a catalog.
type Server struct {
	catalog *fixtures.Catalog
	logger  zerolog.Logger
	ttl     time.Duration

	apiKeyHeader string
	apiKey       string

	router chi.Router

	mu    sync.Mutex
	stats Stats

	test *httptest.Server
}

// Option configures a Server.
type Option func(*Server)

// WithTTL sets the Expires horizon of metrics responses.
func WithTTL(ttl time.Duration) Option {
	return func(s *Server) { s.ttl = ttl }
}

// WithAPIKey makes the metrics route answer 401 unless header carries key.
func WithAPIKey(header, key string) Option {
	return func(s *Server) {
		s.apiKeyHeader = header
		s.apiKey = key
	}
}

// New builds a sandbox over cat.
func New(cat *fixtures.Catalog, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		catalog: cat,
		logger:  logger.With().Str("component", logging.ComponentSandbox).Logger(),
		ttl:     DefaultTTL,
		stats:   Stats{Failures: make(map[analytics.ErrorKind]int)},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.count)

	r.Get(RouteHealth, s.health)
	r.Handle(RouteMetricz, metrics.Handler())
	r.Group(func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(s.requireAPIKey)
		}
		r.Get(RouteMetrics, s.getMetrics)
	})

	s.router = r
	return s
}

// Routes returns the handler for serving on a real listener.
func (s *Server) Routes() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves the sandbox on a loopback port and returns its base URL.
// Calling Start twice returns the same URL.
func (s *Server) Start() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.test == nil {
		s.test = httptest.NewServer(s.router)
		s.logger.Info().Str("url", s.test.URL).Msg("Sandbox started")
	}
	return s.test.URL
}

// Close stops a server started with Start.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.test != nil {
		s.test.Close()
		s.test = nil
	}
}

// Stats returns a snapshot of the counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.stats
	snapshot.Failures = make(map[analytics.ErrorKind]int, len(s.stats.Failures))
	for k, v := range s.stats.Failures {
		snapshot.Failures[k] = v
	}
	return snapshot
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		sandboxRequests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int(logging.FieldStatusCode, ww.Status()).
			Str(logging.FieldRequestID, r.Header.Get("X-Request-Id")).
			Msg("Sandbox request")
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(s.apiKeyHeader) != s.apiKey {
			http.Error(w, "missing or invalid credentials", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) getMetrics(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationID")
	consent, _ := strconv.ParseBool(r.URL.Query().Get("consent_provided"))

	res := s.catalog.Resolve(analytics.Request{LocationID: locationID, ConsentProvided: consent})

	s.mu.Lock()
	s.stats.Requests++
	if res.Kind != "" {
		s.stats.Failures[res.Kind]++
	}
	s.mu.Unlock()

	if res.Kind != "" {
		s.writeFailure(w, res.Kind, locationID)
		return
	}

	etag := fmt.Sprintf(`"%016x"`, murmur3.Sum64(res.Body))
	w.Header().Set("ETag", etag)
	w.Header().Set("Expires", time.Now().Add(s.ttl).UTC().Format(http.TimeFormat))

	if match := r.Header.Get("If-None-Match"); match != "" {
		s.mu.Lock()
		s.stats.Conditional++
		notModified := match == etag
		if notModified {
			s.stats.NotModified++
		}
		s.mu.Unlock()

		if notModified {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Body); err != nil {
		s.logger.Warn().Err(err).Str(logging.FieldLocationID, locationID).Msg("Failed to write metrics")
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, kind analytics.ErrorKind, locationID string) {
	body, err := client.NewErrorBody(kind, errorSource, describe(kind, locationID))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.HTTPStatus())
	w.Write(body)
}

func describe(kind analytics.ErrorKind, locationID string) string {
	switch kind {
	case analytics.KindConsentNotProvided:
		return "Merchant consent is required to access metrics"
	case analytics.KindLocationNotFound:
		return fmt.Sprintf("Location %s not found", locationID)
	default:
		return fmt.Sprintf("No metrics available for location %s", locationID)
	}
}
