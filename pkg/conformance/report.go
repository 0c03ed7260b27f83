package conformance

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Status is the result of one scenario.
type Status string

const (
	StatusPass       Status = "pass"
	StatusFail       Status = "fail"
	StatusSetupError Status = "setup_error"
	StatusSkipped    Status = "skipped"
)

func (s Status) label() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusFail:
		return "FAIL"
	case StatusSetupError:
		return "ERROR"
	default:
		return "SKIP"
	}
}

// Outcome is the evaluated result of one scenario.
type Outcome struct {
	Scenario string `json:"scenario"`
	Status   Status `json:"status"`
	Expected string `json:"expected"`
	Actual   string `json:"actual,omitempty"`
	Message  string `json:"message,omitempty"`

	// Err is an *AssertionError or *SetupError for non-passing outcomes.
	Err error `json:"-"`
}

// Counts tallies outcomes by status.
type Counts struct {
	Total       int `json:"total"`
	Passed      int `json:"passed"`
	Failed      int `json:"failed"`
	SetupErrors int `json:"setup_errors"`
	Skipped     int `json:"skipped"`
}

// Report collects the outcomes of one run in execution order.
type Report struct {
	RunID    string    `json:"run_id"`
	Outcomes []Outcome `json:"outcomes"`
}

// Passed reports whether every scenario passed.
func (r *Report) Passed() bool {
	for _, o := range r.Outcomes {
		if o.Status != StatusPass {
			return false
		}
	}
	return true
}

// Err returns the error of the first non-passing scenario, or nil.
// Skipped scenarios follow a failure and carry no error of their own.
func (r *Report) Err() error {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}

// Counts tallies the outcomes.
func (r *Report) Counts() Counts {
	c := Counts{Total: len(r.Outcomes)}
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusPass:
			c.Passed++
		case StatusFail:
			c.Failed++
		case StatusSetupError:
			c.SetupErrors++
		case StatusSkipped:
			c.Skipped++
		}
	}
	return c
}

type textStyles struct {
	status map[Status]lipgloss.Style
	name   lipgloss.Style
	header lipgloss.Style
}

func newTextStyles(w io.Writer, color bool) textStyles {
	plain := lipgloss.NewStyle()
	if !color {
		return textStyles{
			status: map[Status]lipgloss.Style{},
			name:   plain,
			header: plain,
		}
	}

	r := lipgloss.NewRenderer(w)
	return textStyles{
		status: map[Status]lipgloss.Style{
			StatusPass:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("#00D26A")),
			StatusFail:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF3838")),
			StatusSetupError: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFB800")),
			StatusSkipped:    r.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		},
		name:   r.NewStyle().Bold(true),
		header: r.NewStyle().Bold(true).Underline(true),
	}
}

func (s textStyles) render(style lipgloss.Style, text string, color bool) string {
	if !color {
		return text
	}
	return style.Render(text)
}

// WriteText renders one line per scenario and a summary. With color the
// status labels are styled for the terminal behind w.
func (r *Report) WriteText(w io.Writer, color bool) error {
	styles := newTextStyles(w, color)

	width := 0
	for _, o := range r.Outcomes {
		width = max(width, len(o.Scenario))
	}

	if _, err := fmt.Fprintln(w, styles.render(styles.header, "Conformance run "+r.RunID, color)); err != nil {
		return err
	}
	for _, o := range r.Outcomes {
		label := styles.render(styles.status[o.Status], fmt.Sprintf("%-5s", o.Status.label()), color)
		name := styles.render(styles.name, fmt.Sprintf("%-*s", width, o.Scenario), color)
		if _, err := fmt.Fprintf(w, "  %s  %s  %s\n", label, name, o.detail()); err != nil {
			return err
		}
	}

	c := r.Counts()
	result := "PASS"
	if !r.Passed() {
		result = "FAIL"
	}
	_, err := fmt.Fprintf(w, "%d scenarios: %d passed, %d failed, %d setup errors, %d skipped\nRESULT: %s\n",
		c.Total, c.Passed, c.Failed, c.SetupErrors, c.Skipped, result)
	return err
}

func (o Outcome) detail() string {
	switch o.Status {
	case StatusPass:
		return o.Actual
	case StatusFail:
		d := fmt.Sprintf("expected %s, got %s", o.Expected, o.Actual)
		if o.Message != "" {
			d += " (" + o.Message + ")"
		}
		return d
	case StatusSetupError:
		return "setup error: " + o.Message
	default:
		return "not run"
	}
}

type jsonReport struct {
	RunID    string    `json:"run_id"`
	Passed   bool      `json:"passed"`
	Counts   Counts    `json:"counts"`
	Outcomes []Outcome `json:"outcomes"`
}

// WriteJSON writes the report as an indented JSON document.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		RunID:    r.RunID,
		Passed:   r.Passed(),
		Counts:   r.Counts(),
		Outcomes: r.Outcomes,
	})
}
