package main

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/credit-analytics-client/pkg/fixtures"
	"github.com/Sternrassler/credit-analytics-client/pkg/logging"
)

var validFormats = []string{"text", "json"}

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	LogLevel  string
	PrettyLog bool
	Catalog   string
	Format    string

	logger zerolog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "metrics-conformance",
		Short: "Conformance harness for the credit analytics Metrics API",
		Long: `Runs every catalog scenario against a Metrics API and reports pass or fail
per scenario. Without --base-url the checks run against the built-in sandbox.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logging.ParseLevel(opts.LogLevel)
			if err != nil {
				return setupError("invalid --log-level", err)
			}
			if !slices.Contains(validFormats, opts.Format) {
				return setupError(fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, validFormats), nil)
			}
			opts.logger = logging.Setup(logging.Config{
				Level:  level,
				Pretty: opts.PrettyLog,
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&opts.PrettyLog, "pretty-log", false, "human-readable logs instead of JSON")
	cmd.PersistentFlags().StringVar(&opts.Catalog, "catalog", "", "catalog file (default: built-in catalog)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newSandboxCommand(opts))
	cmd.AddCommand(newListCommand(opts))

	return cmd
}

func (o *rootOptions) loadCatalog() (*fixtures.Catalog, error) {
	if o.Catalog == "" {
		return fixtures.DefaultCatalog()
	}
	return fixtures.LoadCatalogFile(o.Catalog)
}
