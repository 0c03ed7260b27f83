package fixtures

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/credit-analytics-client/pkg/analytics"
)

// ErrTriggerDidNotFail is returned by Trigger.Fire when the lookup succeeded.
var ErrTriggerDidNotFail = errors.New("trigger did not fail")

// MetricsAPI is the one operation the fixtures exercise. *client.Client
// implements it.
type MetricsAPI interface {
	GetMetrics(ctx context.Context, r analytics.Request) (*analytics.Metrics, error)
}

// Fixture is a success scenario bound to an API.
type Fixture struct {
	scenario Scenario
	api      MetricsAPI
}

// Name returns the scenario name.
func (f *Fixture) Name() string { return f.scenario.Name }

// Scenario returns the catalog entry.
func (f *Fixture) Scenario() Scenario { return f.scenario }

// Fetch performs the lookup.
func (f *Fixture) Fetch(ctx context.Context) (*analytics.Metrics, error) {
	return f.api.GetMetrics(ctx, f.scenario.Request)
}

// Trigger is a failure scenario bound to an API.
type Trigger struct {
	scenario Scenario
	api      MetricsAPI
}

// Name returns the scenario name.
func (t *Trigger) Name() string { return t.scenario.Name }

// Scenario returns the catalog entry.
func (t *Trigger) Scenario() Scenario { return t.scenario }

// Kind returns the failure kind the trigger must raise.
func (t *Trigger) Kind() analytics.ErrorKind { return t.scenario.Expect.Kind }

// Fire performs the lookup and returns its error, or ErrTriggerDidNotFail
// when the lookup succeeded.
func (t *Trigger) Fire(ctx context.Context) error {
	m, err := t.api.GetMetrics(ctx, t.scenario.Request)
	if err != nil {
		return err
	}
	location := ""
	if m != nil {
		location = m.LocationID
	}
	return fmt.Errorf("%w: got metrics for location %q", ErrTriggerDidNotFail, location)
}

// Registry holds the fixtures and triggers of one catalog, in catalog order.
type Registry struct {
	fixtures []*Fixture
	triggers []*Trigger
}

// NewRegistry binds every catalog scenario to api.
func NewRegistry(cat *Catalog, api MetricsAPI) (*Registry, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if api == nil {
		return nil, fmt.Errorf("metrics api is required")
	}

	reg := &Registry{}
	for _, s := range cat.Scenarios {
		if s.IsFailure() {
			reg.triggers = append(reg.triggers, &Trigger{scenario: s, api: api})
		} else {
			reg.fixtures = append(reg.fixtures, &Fixture{scenario: s, api: api})
		}
	}
	return reg, nil
}

// Fixtures returns the success scenarios.
func (r *Registry) Fixtures() []*Fixture { return r.fixtures }

// Triggers returns the failure scenarios.
func (r *Registry) Triggers() []*Trigger { return r.triggers }

// Fixture looks up a success scenario by name.
func (r *Registry) Fixture(name string) (*Fixture, bool) {
	for _, f := range r.fixtures {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// Trigger looks up a failure scenario by name.
func (r *Registry) Trigger(name string) (*Trigger, bool) {
	for _, t := range r.triggers {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Names returns fixture names followed by trigger names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.fixtures)+len(r.triggers))
	for _, f := range r.fixtures {
		names = append(names, f.Name())
	}
	for _, t := range r.triggers {
		names = append(names, t.Name())
	}
	return names
}

// Len returns the number of registered scenarios.
func (r *Registry) Len() int {
	return len(r.fixtures) + len(r.triggers)
}
