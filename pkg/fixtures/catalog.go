package fixtures

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/credit-analytics-client/pkg/analytics"
)

// CatalogVersion is the only catalog format version understood.
const CatalogVersion = 1

// Expected outcomes of a scenario.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

//go:embed catalog.yaml data/*.json
var embedded embed.FS

// Catalog is the parsed catalog file.
type Catalog struct {
	Version   int        `yaml:"version"`
	Locations []Location `yaml:"locations"`
	Scenarios []Scenario `yaml:"scenarios"`

	// bodies holds the canned response of each location with metrics.
	bodies map[string][]byte
}

// Location is a merchant location known to the API.
type Location struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// Metrics is the path of the canned response, relative to the catalog.
	// Empty means the location exists but has no metrics.
	Metrics string `yaml:"metrics,omitempty"`
}

// Scenario is one named conformance check.
type Scenario struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Request     analytics.Request `yaml:"request"`
	Expect      Expectation       `yaml:"expect"`
}

// Expectation describes the outcome a scenario must produce.
type Expectation struct {
	Outcome string              `yaml:"outcome"`
	Kind    analytics.ErrorKind `yaml:"kind,omitempty"`
	Traits  []Trait             `yaml:"traits,omitempty"`
}

// IsFailure reports whether the scenario expects a domain failure.
func (s Scenario) IsFailure() bool {
	return s.Expect.Outcome == OutcomeFailure
}

// Resolution is what the API answers for a request: either a canned body or
// a failure kind.
type Resolution struct {
	Body []byte
	Kind analytics.ErrorKind
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(embedded, "catalog.yaml")
}

// LoadCatalogFile loads a catalog from disk. Metrics paths resolve relative
// to the catalog's directory.
func LoadCatalogFile(file string) (*Catalog, error) {
	return LoadCatalog(os.DirFS(filepath.Dir(file)), filepath.Base(file))
}

// LoadCatalog parses and validates the catalog at name within fsys.
// Unknown YAML fields are rejected.
func LoadCatalog(fsys fs.FS, name string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	cat, err := parseCatalog(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	dir := path.Dir(name)
	cat.bodies = make(map[string][]byte)
	for _, loc := range cat.Locations {
		if loc.Metrics == "" {
			continue
		}
		body, err := fs.ReadFile(fsys, path.Join(dir, loc.Metrics))
		if err != nil {
			return nil, fmt.Errorf("location %s: read metrics: %w", loc.ID, err)
		}
		cat.bodies[loc.ID] = body
	}

	if err := cat.validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return cat, nil
}

func parseCatalog(r io.Reader) (*Catalog, error) {
	var cat Catalog
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &cat, nil
}

func (c *Catalog) validate() error {
	if c.Version != CatalogVersion {
		return fmt.Errorf("unsupported version %d", c.Version)
	}
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("scenarios list is required and must be non-empty")
	}

	locations := make(map[string]bool, len(c.Locations))
	for _, loc := range c.Locations {
		if loc.ID == "" {
			return fmt.Errorf("location id is required")
		}
		if locations[loc.ID] {
			return fmt.Errorf("duplicate location %s", loc.ID)
		}
		locations[loc.ID] = true

		if body, ok := c.bodies[loc.ID]; ok {
			m, err := decodeMetrics(body)
			if err != nil {
				return fmt.Errorf("location %s: %w", loc.ID, err)
			}
			if m.LocationID != loc.ID {
				return fmt.Errorf("location %s: canned metrics belong to %s", loc.ID, m.LocationID)
			}
		}
	}

	names := make(map[string]bool, len(c.Scenarios))
	for _, s := range c.Scenarios {
		if s.Name == "" {
			return fmt.Errorf("scenario name is required")
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate scenario %s", s.Name)
		}
		names[s.Name] = true

		if err := c.validateScenario(s); err != nil {
			return fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}
	return nil
}

func (c *Catalog) validateScenario(s Scenario) error {
	if err := s.Request.Validate(); err != nil {
		return err
	}
	res := c.Resolve(s.Request)

	switch s.Expect.Outcome {
	case OutcomeSuccess:
		if s.Expect.Kind != "" {
			return fmt.Errorf("success scenario cannot name a failure kind")
		}
		if res.Kind != "" {
			return fmt.Errorf("expects success but the catalog answers %s", res.Kind)
		}
		m, err := decodeMetrics(res.Body)
		if err != nil {
			return err
		}
		for _, trait := range s.Expect.Traits {
			if err := trait.Check(m); err != nil {
				return fmt.Errorf("canned metrics lack trait %s: %w", trait, err)
			}
		}
	case OutcomeFailure:
		if _, err := analytics.ParseErrorKind(string(s.Expect.Kind)); err != nil {
			return err
		}
		if len(s.Expect.Traits) > 0 {
			return fmt.Errorf("failure scenario cannot list traits")
		}
		if res.Kind != s.Expect.Kind {
			return fmt.Errorf("expects %s but the catalog answers %q", s.Expect.Kind, res.Kind)
		}
	default:
		return fmt.Errorf("outcome must be %q or %q (got %q)", OutcomeSuccess, OutcomeFailure, s.Expect.Outcome)
	}
	return nil
}

// Resolve decides the API's answer to r. Consent is checked before the
// location is looked up.
func (c *Catalog) Resolve(r analytics.Request) Resolution {
	if !r.ConsentProvided {
		return Resolution{Kind: analytics.KindConsentNotProvided}
	}
	if _, ok := c.Location(r.LocationID); !ok {
		return Resolution{Kind: analytics.KindLocationNotFound}
	}
	body, ok := c.bodies[r.LocationID]
	if !ok {
		return Resolution{Kind: analytics.KindMetricsNotFound}
	}
	return Resolution{Body: body}
}

// Location looks up a location by id.
func (c *Catalog) Location(id string) (Location, bool) {
	for _, loc := range c.Locations {
		if loc.ID == id {
			return loc, true
		}
	}
	return Location{}, false
}

// Scenario looks up a scenario by name.
func (c *Catalog) Scenario(name string) (Scenario, bool) {
	for _, s := range c.Scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

func decodeMetrics(body []byte) (*analytics.Metrics, error) {
	var m analytics.Metrics
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode canned metrics: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
