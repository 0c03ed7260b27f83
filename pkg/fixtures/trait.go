package fixtures

import (
	"fmt"

	"github.com/Sternrassler/credit-analytics-client/pkg/analytics"
)

// Trait is a property a success scenario's result must have.
type Trait string

const (
	// TraitFullHistory requires all four windows with YoY data and normal volume.
	TraitFullHistory Trait = "full_history"

	// TraitLowTransactionVolume requires at least one window flagged low volume.
	TraitLowTransactionVolume Trait = "low_transaction_volume"

	// TraitNoYoYData requires that no window carries year-over-year growth.
	TraitNoYoYData Trait = "no_yoy_data"

	// TraitUnder52Weeks requires less than a year of history and no L52W window.
	TraitUnder52Weeks Trait = "under_52_weeks"
)

// Check returns an error describing why m lacks the trait.
func (t Trait) Check(m *analytics.Metrics) error {
	switch t {
	case TraitFullHistory:
		for _, p := range []analytics.Period{analytics.PeriodL4W, analytics.PeriodL13W, analytics.PeriodL26W, analytics.PeriodL52W} {
			if m.Period(p) == nil {
				return fmt.Errorf("missing period %s", p)
			}
		}
		if !m.HasFullYearHistory() {
			return fmt.Errorf("only %d weeks of history", m.WeeksOfHistory)
		}
		if !m.HasYoYData() {
			return fmt.Errorf("no year-over-year data")
		}
		if m.HasLowTransactionVolume() {
			return fmt.Errorf("low transaction volume flagged")
		}
	case TraitLowTransactionVolume:
		if !m.HasLowTransactionVolume() {
			return fmt.Errorf("no window flagged low volume")
		}
	case TraitNoYoYData:
		if m.HasYoYData() {
			return fmt.Errorf("year-over-year data present")
		}
	case TraitUnder52Weeks:
		if m.HasFullYearHistory() {
			return fmt.Errorf("%d weeks of history", m.WeeksOfHistory)
		}
		if m.Period(analytics.PeriodL52W) != nil {
			return fmt.Errorf("L52W period present")
		}
	default:
		return fmt.Errorf("unknown trait %q", t)
	}
	return nil
}
