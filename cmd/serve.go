package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/nextup/internal/config"
	"github.com/teemow/nextup/internal/logging"
	"github.com/teemow/nextup/internal/server"
)

// startupTimeout bounds how long a server may take to bind its listener.
const startupTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var (
		addr           string
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the events API",
		Long: `Start the HTTP API serving GET /api/events.

Each request resolves a credential from the token file, refreshing it when it
has expired. Without a usable credential the OAuth consent flow starts: the
consent URL is logged and opened in a browser, and the request waits until
the redirect arrives. Run 'nextup auth login' beforehand to avoid that wait.

Also served:
  /healthz, /readyz, /healthz/detailed   Liveness and readiness checks
  /metrics (on --metrics-addr)           Prometheus metrics, with --metrics-enabled`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, func(c *config.Config) {
				flags := cmd.Flags()
				if flags.Changed("addr") {
					c.Addr = addr
				}
				if flags.Changed("metrics-enabled") {
					c.MetricsEnabled = metricsEnabled
				}
				if flags.Changed("metrics-addr") {
					c.MetricsAddr = metricsAddr
				}
			})
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "API listen address")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", false, "Serve Prometheus metrics on a dedicated address")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", config.DefaultMetricsAddr, "Metrics listen address")

	return cmd
}

func runServe(cfg config.Config) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(shutdownCtx, cfg, os.Stderr, true)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.close(ctx)
	}()

	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			InstrumentationProvider: a.provider,
			Logger:                  a.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		metricsErr, err := startServer(metricsServer.StartWithReadySignal)
		if err != nil {
			return fmt.Errorf("metrics server failed to start: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				a.logger.Warn("error during metrics server shutdown", logging.Err(err))
			}
			<-metricsErr
		}()
	}

	api, err := server.NewAPIServer(server.APIConfig{
		Addr:        cfg.Addr,
		Scopes:      cfg.Scopes,
		Credentials: a.manager,
		Events:      a.fetcher,
		Health:      server.NewHealthChecker(version),
		Metrics:     a.provider.Metrics(),
		Logger:      a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	serverDone, err := startServer(api.StartWithReadySignal)
	if err != nil {
		return fmt.Errorf("API server failed to start: %w", err)
	}

	a.logger.Info("nextup is serving",
		"events", "http://"+api.Addr()+server.EventsPath,
		"calendar", cfg.CalendarID,
		"token_file", cfg.TokenFile,
	)

	select {
	case <-shutdownCtx.Done():
		a.logger.Info("shutdown signal received, stopping API server")
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := api.Shutdown(ctx); err != nil {
			return fmt.Errorf("error shutting down API server: %w", err)
		}
		<-serverDone
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("API server stopped with error: %w", err)
		}
	}

	a.logger.Info("API server gracefully stopped")
	return nil
}

// startServer runs start in a goroutine and waits until its listener is
// bound. The returned channel yields start's result once it returns.
func startServer(start func(ready chan<- struct{}) error) (<-chan error, error) {
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- start(ready)
		close(done)
	}()

	select {
	case <-ready:
		return done, nil
	case err := <-done:
		if err == nil {
			err = fmt.Errorf("server stopped during startup")
		}
		return nil, err
	case <-time.After(startupTimeout):
		return nil, fmt.Errorf("startup timed out after %s", startupTimeout)
	}
}
