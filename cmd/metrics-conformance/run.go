package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/credit-analytics-client/internal/sandbox"
	"github.com/Sternrassler/credit-analytics-client/pkg/cache"
	"github.com/Sternrassler/credit-analytics-client/pkg/client"
	"github.com/Sternrassler/credit-analytics-client/pkg/conformance"
	"github.com/Sternrassler/credit-analytics-client/pkg/fixtures"
	"github.com/Sternrassler/credit-analytics-client/pkg/metrics"
)

const defaultUserAgent = "credit-analytics-client/0.1.0"

// runOptions holds flags for the run command.
type runOptions struct {
	*rootOptions

	BaseURL      string
	RedisAddr    string
	UserAgent    string
	APIKeyHeader string
	APIKey       string
	Timeout      time.Duration
	MaxAttempts  int
	NoFailFast   bool
	Color        bool
	MetricsFile  string
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every scenario and report pass or fail",
		Long: `Run every catalog scenario against the Metrics API.

Exit codes:
  0 - all scenarios passed
  1 - a scenario produced the wrong outcome
  2 - setup error (configuration, credentials, transport, redis)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConformance(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.BaseURL, "base-url", getEnv("METRICS_API_BASE_URL", ""), "Metrics API base URL (default: built-in sandbox)")
	cmd.Flags().StringVar(&opts.RedisAddr, "redis-addr", getEnv("REDIS_URL", ""), "redis address for response caching (empty disables caching)")
	cmd.Flags().StringVar(&opts.UserAgent, "user-agent", getEnv("USER_AGENT", defaultUserAgent), "User-Agent header")
	cmd.Flags().StringVar(&opts.APIKeyHeader, "api-key-header", "X-Api-Key", "header carrying the API key")
	cmd.Flags().StringVar(&opts.APIKey, "api-key", getEnv("METRICS_API_KEY", ""), "API key (empty sends unsigned requests)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-attempt HTTP timeout")
	cmd.Flags().IntVar(&opts.MaxAttempts, "max-attempts", client.DefaultRetryConfig().MaxAttempts, "attempts per request for retryable errors")
	cmd.Flags().BoolVar(&opts.NoFailFast, "no-fail-fast", false, "keep running after the first failing scenario")
	cmd.Flags().BoolVar(&opts.Color, "color", false, "style the text report for the terminal")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics of the run to this textfile")

	return cmd
}

func runConformance(ctx context.Context, opts *runOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.logger

	cat, err := opts.loadCatalog()
	if err != nil {
		return setupError("load catalog", err)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		sb := sandbox.New(cat, logger, sandbox.WithAPIKey(opts.APIKeyHeader, opts.APIKey))
		baseURL = sb.Start()
		defer sb.Close()
	}

	cfg := client.DefaultConfig(baseURL, opts.UserAgent)
	cfg.Timeout = opts.Timeout
	cfg.Retry.MaxAttempts = opts.MaxAttempts
	if opts.APIKey != "" {
		cfg.Signer = client.HeaderSigner{Header: opts.APIKeyHeader, Value: opts.APIKey}
	}

	if opts.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return setupError("connect to redis at "+opts.RedisAddr, err)
		}
		cfg.Cache, err = cache.NewManager(redisClient, cache.DefaultNamespace)
		if err != nil {
			return setupError("create cache", err)
		}
		logger.Info().Str("redis", opts.RedisAddr).Msg("Response caching enabled")
	}

	c, err := client.New(cfg)
	if err != nil {
		return setupError("create client", err)
	}

	reg, err := fixtures.NewRegistry(cat, c)
	if err != nil {
		return setupError("build registry", err)
	}

	h := conformance.New(reg, conformance.WithFailFast(!opts.NoFailFast))
	report := h.Run(ctx)

	if opts.Format == "json" {
		err = report.WriteJSON(out)
	} else {
		err = report.WriteText(out, opts.Color)
	}
	if err != nil {
		return setupError("write report", err)
	}

	if opts.MetricsFile != "" {
		if err := metrics.WriteTextfile(opts.MetricsFile); err != nil {
			return setupError("export metrics", err)
		}
	}

	return reportExit(report)
}

func reportExit(report *conformance.Report) error {
	err := report.Err()
	if err == nil {
		return nil
	}

	var setupErr *conformance.SetupError
	if errors.As(err, &setupErr) {
		return &ExitError{Code: ExitSetupError, Message: "conformance run aborted", Err: err}
	}
	c := report.Counts()
	return &ExitError{
		Code:    ExitFailure,
		Message: fmt.Sprintf("conformance failed (%d of %d scenarios passed)", c.Passed, c.Total),
		Err:     err,
	}
}
