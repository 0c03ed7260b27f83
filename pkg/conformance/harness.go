package conformance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/credit-analytics-client/pkg/analytics"
	"github.com/Sternrassler/credit-analytics-client/pkg/fixtures"
	"github.com/Sternrassler/credit-analytics-client/pkg/logging"
)

var (
	scenariosTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conformance_scenarios_total",
		Help: "Scenario outcomes by result",
	}, []string{"result"})

	scenarioDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conformance_scenario_duration_seconds",
		Help:    "Time spent evaluating a scenario",
		Buckets: prometheus.DefBuckets,
	}, []string{"scenario"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conformance_runs_total",
		Help: "Completed conformance runs by result",
	}, []string{"result"})
)

// ExpectValidMetrics is the expectation recorded for success scenarios.
const ExpectValidMetrics = "valid metrics"

// Harness evaluates the scenarios of one registry.
type Harness struct {
	registry *fixtures.Registry
	failFast bool
	runID    string
	logger   zerolog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithFailFast controls whether the first non-passing scenario ends the run.
func WithFailFast(enabled bool) Option {
	return func(h *Harness) { h.failFast = enabled }
}

// WithLogger replaces the harness logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Harness) { h.logger = logger }
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(h *Harness) { h.runID = id }
}

// New creates a fail-fast harness over reg.
func New(reg *fixtures.Registry, opts ...Option) *Harness {
	h := &Harness{
		registry: reg,
		failFast: true,
		logger:   logging.NewLogger(logging.ComponentHarness),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.runID == "" {
		h.runID = uuid.NewString()
	}
	h.logger = logging.WithRun(h.logger, h.runID)
	return h
}

// RunID returns the id reported for every run of h.
func (h *Harness) RunID() string {
	return h.runID
}

type step struct {
	name     string
	expected string
	eval     func(ctx context.Context) Outcome
}

func (h *Harness) steps() []step {
	var steps []step
	for _, f := range h.registry.Fixtures() {
		f := f
		steps = append(steps, step{name: f.Name(), expected: ExpectValidMetrics, eval: func(ctx context.Context) Outcome {
			return checkFixture(ctx, f)
		}})
	}
	for _, t := range h.registry.Triggers() {
		t := t
		steps = append(steps, step{name: t.Name(), expected: string(t.Kind()), eval: func(ctx context.Context) Outcome {
			return checkTrigger(ctx, t)
		}})
	}
	return steps
}

// Run evaluates every scenario in registry order: fixtures first, then
// triggers. The harness adds no timeout and never retries.
func (h *Harness) Run(ctx context.Context) *Report {
	report := &Report{RunID: h.runID}
	h.logger.Info().Int("scenarios", h.registry.Len()).Bool("fail_fast", h.failFast).Msg("Conformance run started")

	stopped := false
	for _, s := range h.steps() {
		if stopped {
			report.Outcomes = append(report.Outcomes, Outcome{
				Scenario: s.name,
				Expected: s.expected,
				Status:   StatusSkipped,
			})
			scenariosTotal.WithLabelValues(string(StatusSkipped)).Inc()
			continue
		}

		start := time.Now()
		outcome := s.eval(ctx)
		scenarioDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
		scenariosTotal.WithLabelValues(string(outcome.Status)).Inc()
		h.logOutcome(outcome)

		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Status != StatusPass && h.failFast {
			stopped = true
		}
	}

	result := "pass"
	if !report.Passed() {
		result = "fail"
	}
	runsTotal.WithLabelValues(result).Inc()

	c := report.Counts()
	h.logger.Info().
		Int("passed", c.Passed).
		Int("failed", c.Failed).
		Int("setup_errors", c.SetupErrors).
		Int("skipped", c.Skipped).
		Msg("Conformance run finished")
	return report
}

func (h *Harness) logOutcome(o Outcome) {
	switch o.Status {
	case StatusPass:
		h.logger.Info().Str(logging.FieldScenario, o.Scenario).Msg("Scenario passed")
	case StatusFail:
		h.logger.Error().Err(o.Err).Str(logging.FieldScenario, o.Scenario).
			Str("expected", o.Expected).Str("actual", o.Actual).Msg("Scenario failed")
	case StatusSetupError:
		h.logger.Error().Err(o.Err).Str(logging.FieldScenario, o.Scenario).Msg("Scenario setup error")
	}
}

func checkFixture(ctx context.Context, f *fixtures.Fixture) Outcome {
	s := f.Scenario()
	m, err := f.Fetch(ctx)
	if err != nil {
		if kind, ok := analytics.KindOf(err); ok {
			return failed(s.Name, ExpectValidMetrics, "failure "+string(kind), err)
		}
		return setupFailed(s.Name, ExpectValidMetrics, err)
	}
	if m == nil {
		return failed(s.Name, ExpectValidMetrics, "no result", nil)
	}
	if err := m.Validate(); err != nil {
		return failed(s.Name, ExpectValidMetrics, "invalid result", err)
	}
	if m.LocationID != s.Request.LocationID {
		return failed(s.Name, ExpectValidMetrics, "metrics for location "+m.LocationID, nil)
	}
	for _, trait := range s.Expect.Traits {
		if err := trait.Check(m); err != nil {
			return failed(s.Name, ExpectValidMetrics, "result without trait "+string(trait), err)
		}
	}
	return Outcome{Scenario: s.Name, Expected: ExpectValidMetrics, Actual: ExpectValidMetrics, Status: StatusPass}
}

func checkTrigger(ctx context.Context, t *fixtures.Trigger) Outcome {
	expected := string(t.Kind())
	err := t.Fire(ctx)
	if errors.Is(err, fixtures.ErrTriggerDidNotFail) {
		return failed(t.Name(), expected, "success", err)
	}

	kind, ok := analytics.KindOf(err)
	if !ok {
		return setupFailed(t.Name(), expected, err)
	}
	if kind != t.Kind() {
		return failed(t.Name(), expected, string(kind), err)
	}
	return Outcome{Scenario: t.Name(), Expected: expected, Actual: string(kind), Status: StatusPass}
}

func failed(scenario, expected, actual string, err error) Outcome {
	o := Outcome{
		Scenario: scenario,
		Expected: expected,
		Actual:   actual,
		Status:   StatusFail,
		Err:      &AssertionError{Scenario: scenario, Expected: expected, Actual: actual, Err: err},
	}
	if err != nil {
		o.Message = err.Error()
	}
	return o
}

func setupFailed(scenario, expected string, err error) Outcome {
	if err == nil {
		err = fmt.Errorf("no error and no result")
	}
	return Outcome{
		Scenario: scenario,
		Expected: expected,
		Status:   StatusSetupError,
		Message:  err.Error(),
		Err:      &SetupError{Scenario: scenario, Err: err},
	}
}
