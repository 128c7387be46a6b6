package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teemow/nextup/internal/calendar"
	"github.com/teemow/nextup/internal/config"
	"github.com/teemow/nextup/internal/credentials"
	"github.com/teemow/nextup/internal/instrumentation"
	"github.com/teemow/nextup/internal/logging"
)

// globalFlags are the persistent flags of the root command. Only flags the
// user set explicitly override the loaded configuration.
type globalFlags struct {
	configPath      string
	envFile         string
	debug           bool
	logFormat       string
	tokenFile       string
	credentialsFile string
	calendarID      string
	scopes          []string
	noBrowser       bool
	callbackPort    int
	authTimeout     time.Duration
}

func (g *globalFlags) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&g.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/nextup/config.toml)")
	f.StringVar(&g.envFile, "env-file", "", "Dotenv file with NEXTUP_* variables (default .env, if present)")
	f.BoolVar(&g.debug, "debug", false, "Enable debug logging")
	f.StringVar(&g.logFormat, "log-format", "", "Log format: text or json")
	f.StringVar(&g.tokenFile, "token-file", "", "Credential file (default $XDG_DATA_HOME/nextup/token.json)")
	f.StringVar(&g.credentialsFile, "credentials-file", "", "Google client secret file (default $XDG_CONFIG_HOME/nextup/credentials.json)")
	f.StringVar(&g.calendarID, "calendar", "", "Calendar ID to read (default primary)")
	f.StringSliceVar(&g.scopes, "scopes", nil, "OAuth scopes to request (default calendar.readonly)")
	f.BoolVar(&g.noBrowser, "no-browser", false, "Do not open a browser for authorization, only log the consent URL")
	f.IntVar(&g.callbackPort, "callback-port", 0, "Port of the authorization redirect listener (default: any free port)")
	f.DurationVar(&g.authTimeout, "auth-timeout", 0, "How long to wait for the authorization redirect (default: as long as the request lives)")
}

func (g *globalFlags) apply(cfg *config.Config, flags *pflag.FlagSet) {
	if flags.Changed("token-file") {
		cfg.TokenFile = g.tokenFile
	}
	if flags.Changed("credentials-file") {
		cfg.CredentialsFile = g.credentialsFile
	}
	if flags.Changed("calendar") {
		cfg.CalendarID = g.calendarID
	}
	if flags.Changed("scopes") {
		cfg.Scopes = g.scopes
	}
	if flags.Changed("no-browser") {
		cfg.OpenBrowser = !g.noBrowser
	}
	if flags.Changed("callback-port") {
		cfg.CallbackPort = g.callbackPort
	}
	if flags.Changed("auth-timeout") {
		cfg.AuthTimeout = g.authTimeout
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = g.logFormat
	}
	if g.debug {
		cfg.LogLevel = "debug"
	}
}

// loadConfig resolves the configuration for cmd: file, dotenv and
// environment first, then the persistent flags and finally overrides.
func loadConfig(cmd *cobra.Command, overrides ...func(*config.Config)) (config.Config, error) {
	cfg, err := config.Load(globals.configPath, globals.envFile)
	if err != nil {
		return config.Config{}, err
	}

	globals.apply(&cfg, cmd.Flags())
	for _, override := range overrides {
		override(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app is the wired set of components every command works with.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	provider *instrumentation.Provider
	manager  *credentials.Manager
	fetcher  *calendar.Fetcher
}

// newApp wires logging, instrumentation, the credential manager and the
// event fetcher from cfg. Logs go to logOut. Without telemetry the
// instrumentation provider is disabled, which short-lived commands use.
func newApp(ctx context.Context, cfg config.Config, logOut io.Writer, telemetry bool) (*app, error) {
	logger, err := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	switch {
	case !telemetry:
		instrConfig.Enabled = false
	case cfg.MetricsEnabled:
		instrConfig.Enabled = true
	}

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	audit := instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)

	authorizer := &credentials.LoopbackAuthorizer{
		Host:        cfg.CallbackHost,
		Port:        cfg.CallbackPort,
		OpenBrowser: cfg.OpenBrowser,
		Timeout:     cfg.AuthTimeout,
		Logger:      logger,
	}

	manager := credentials.NewManager(
		credentials.NewFileStore(cfg.TokenFile),
		credentials.ClientConfigFromFile(cfg.CredentialsFile),
		authorizer,
		credentials.WithLogger(logger),
		credentials.WithMetrics(provider.Metrics()),
		credentials.WithAuditLogger(audit),
	)

	fetcher := calendar.NewFetcher(
		calendar.WithCalendarID(cfg.CalendarID),
		calendar.WithLogger(logger),
		calendar.WithMetrics(provider.Metrics()),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		manager:  manager,
		fetcher:  fetcher,
	}, nil
}

// close flushes telemetry.
func (a *app) close(ctx context.Context) {
	if err := a.provider.Shutdown(ctx); err != nil {
		a.logger.Warn("error during instrumentation shutdown", logging.Err(err))
	}
}
