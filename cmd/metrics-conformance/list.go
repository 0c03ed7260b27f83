package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/credit-analytics-client/pkg/fixtures"
)

type scenarioEntry struct {
	Name            string   `json:"name"`
	Outcome         string   `json:"outcome"`
	Kind            string   `json:"kind,omitempty"`
	Traits          []string `json:"traits,omitempty"`
	LocationID      string   `json:"location_id"`
	ConsentProvided bool     `json:"consent_provided"`
	Description     string   `json:"description,omitempty"`
}

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the catalog scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := opts.loadCatalog()
			if err != nil {
				return setupError("load catalog", err)
			}
			return listScenarios(cmd.OutOrStdout(), cat, opts.Format)
		},
	}
}

func listScenarios(w io.Writer, cat *fixtures.Catalog, format string) error {
	entries := make([]scenarioEntry, 0, len(cat.Scenarios))
	for _, s := range cat.Scenarios {
		e := scenarioEntry{
			Name:            s.Name,
			Outcome:         s.Expect.Outcome,
			Kind:            string(s.Expect.Kind),
			LocationID:      s.Request.LocationID,
			ConsentProvided: s.Request.ConsentProvided,
			Description:     s.Description,
		}
		for _, t := range s.Expect.Traits {
			e.Traits = append(e.Traits, string(t))
		}
		entries = append(entries, e)
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	width := 0
	for _, e := range entries {
		width = max(width, len(e.Name))
	}
	for _, e := range entries {
		expect := e.Outcome
		if e.Kind != "" {
			expect += " " + e.Kind
		}
		if _, err := fmt.Fprintf(w, "%-*s  location=%-8s consent=%-5t  %s\n",
			width, e.Name, e.LocationID, e.ConsentProvided, expect); err != nil {
			return err
		}
	}
	return nil
}
