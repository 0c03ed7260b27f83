package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/credit-analytics-client/internal/sandbox"
)

type sandboxOptions struct {
	*rootOptions

	Port         string
	TTL          time.Duration
	APIKeyHeader string
	APIKey       string
}

func newSandboxCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &sandboxOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Serve the catalog as a Metrics API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveSandbox(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Port, "port", getEnv("PORT", "8080"), "listen port")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", sandbox.DefaultTTL, "Expires horizon of metrics responses")
	cmd.Flags().StringVar(&opts.APIKeyHeader, "api-key-header", "X-Api-Key", "header carrying the API key")
	cmd.Flags().StringVar(&opts.APIKey, "api-key", getEnv("METRICS_API_KEY", ""), "require this API key (empty accepts any request)")

	return cmd
}

func serveSandbox(ctx context.Context, opts *sandboxOptions) error {
	cat, err := opts.loadCatalog()
	if err != nil {
		return setupError("load catalog", err)
	}

	sb := sandbox.New(cat, opts.logger,
		sandbox.WithTTL(opts.TTL),
		sandbox.WithAPIKey(opts.APIKeyHeader, opts.APIKey),
	)
	srv := &http.Server{
		Addr:              ":" + opts.Port,
		Handler:           sb.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		opts.logger.Info().Str("addr", srv.Addr).Int("locations", len(cat.Locations)).Msg("Starting sandbox")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return setupError("serve sandbox", err)
	case <-ctx.Done():
	}

	opts.logger.Info().Msg("Shutting down sandbox")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
