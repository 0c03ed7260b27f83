package analytics

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the format of period start and end dates.
const DateLayout = "2006-01-02"

// Period identifies a trailing reporting window.
type Period string

const (
	// PeriodL4W covers the last 4 weeks.
	PeriodL4W Period = "L4W"

	// PeriodL13W covers the last 13 weeks.
	PeriodL13W Period = "L13W"

	// PeriodL26W covers the last 26 weeks.
	PeriodL26W Period = "L26W"

	// PeriodL52W covers the last 52 weeks. Only present for merchants with a
	// full year of history.
	PeriodL52W Period = "L52W"
)

// Weeks returns the length of the period in weeks, or 0 for an unknown period.
func (p Period) Weeks() int {
	switch p {
	case PeriodL4W:
		return 4
	case PeriodL13W:
		return 13
	case PeriodL26W:
		return 26
	case PeriodL52W:
		return 52
	default:
		return 0
	}
}

// ErrInvalidMetrics is wrapped by every structural validation failure.
var ErrInvalidMetrics = errors.New("invalid metrics")

// Request holds the parameters of a metrics lookup.
type Request struct {
	// LocationID identifies the merchant location.
	LocationID string `json:"locationId" yaml:"location_id"`

	// ConsentProvided asserts the merchant agreed to share transaction data.
	ConsentProvided bool `json:"consentProvided" yaml:"consent_provided"`
}

// Validate checks the request can be sent.
func (r Request) Validate() error {
	if r.LocationID == "" {
		return fmt.Errorf("location id is required")
	}
	return nil
}

// Metrics is the result object of a metrics lookup.
type Metrics struct {
	RequestID      string          `json:"requestId"`
	LocationID     string          `json:"locationId"`
	Currency       string          `json:"currency"`
	WeeksOfHistory int             `json:"weeksOfHistory"`
	Periods        []PeriodMetrics `json:"periods"`
}

// PeriodMetrics aggregates card activity over one reporting window.
type PeriodMetrics struct {
	Period           Period  `json:"period"`
	StartDate        string  `json:"startDate"`
	EndDate          string  `json:"endDate"`
	TransactionCount int64   `json:"transactionCount"`
	SalesVolume      float64 `json:"salesVolume"`
	AverageTicket    float64 `json:"averageTicket"`

	// YoYGrowth is nil when there is no data for the same window a year earlier.
	YoYGrowth *float64 `json:"yoyGrowth,omitempty"`

	// LowVolume flags windows whose transaction count is too small to be reliable.
	LowVolume bool `json:"lowVolume"`
}

// Validate reports whether m is a structurally valid result.
func (m *Metrics) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil result", ErrInvalidMetrics)
	}
	if m.RequestID == "" {
		return fmt.Errorf("%w: request id is empty", ErrInvalidMetrics)
	}
	if m.LocationID == "" {
		return fmt.Errorf("%w: location id is empty", ErrInvalidMetrics)
	}
	if len(m.Currency) != 3 {
		return fmt.Errorf("%w: currency %q is not an ISO-4217 code", ErrInvalidMetrics, m.Currency)
	}
	if m.WeeksOfHistory <= 0 {
		return fmt.Errorf("%w: weeks of history must be positive (got %d)", ErrInvalidMetrics, m.WeeksOfHistory)
	}
	if len(m.Periods) == 0 {
		return fmt.Errorf("%w: no periods", ErrInvalidMetrics)
	}

	seen := make(map[Period]bool, len(m.Periods))
	for _, p := range m.Periods {
		if seen[p.Period] {
			return fmt.Errorf("%w: duplicate period %s", ErrInvalidMetrics, p.Period)
		}
		seen[p.Period] = true

		if err := p.validate(); err != nil {
			return fmt.Errorf("%w: period %s: %v", ErrInvalidMetrics, p.Period, err)
		}
		if p.Period.Weeks() > m.WeeksOfHistory {
			return fmt.Errorf("%w: period %s exceeds %d weeks of history",
				ErrInvalidMetrics, p.Period, m.WeeksOfHistory)
		}
	}

	return nil
}

func (p PeriodMetrics) validate() error {
	if p.Period.Weeks() == 0 {
		return fmt.Errorf("unknown period")
	}

	start, err := time.Parse(DateLayout, p.StartDate)
	if err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	end, err := time.Parse(DateLayout, p.EndDate)
	if err != nil {
		return fmt.Errorf("end date: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("end date %s before start date %s", p.EndDate, p.StartDate)
	}

	if p.TransactionCount < 0 {
		return fmt.Errorf("negative transaction count")
	}
	if p.SalesVolume < 0 || p.AverageTicket < 0 {
		return fmt.Errorf("negative amount")
	}
	return nil
}

// Period returns the metrics for the given window, or nil.
func (m *Metrics) Period(p Period) *PeriodMetrics {
	for i := range m.Periods {
		if m.Periods[i].Period == p {
			return &m.Periods[i]
		}
	}
	return nil
}

// HasLowTransactionVolume reports whether any window is flagged low volume.
func (m *Metrics) HasLowTransactionVolume() bool {
	for _, p := range m.Periods {
		if p.LowVolume {
			return true
		}
	}
	return false
}

// HasYoYData reports whether any window carries a year-over-year comparison.
func (m *Metrics) HasYoYData() bool {
	for _, p := range m.Periods {
		if p.YoYGrowth != nil {
			return true
		}
	}
	return false
}

// HasFullYearHistory reports whether the merchant has at least 52 weeks of data.
func (m *Metrics) HasFullYearHistory() bool {
	return m.WeeksOfHistory >= 52
}
