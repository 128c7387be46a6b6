package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"

	"github.com/teemow/nextup/internal/credentials"
	"github.com/teemow/nextup/internal/logging"
)

// AppName names the XDG subdirectories nextup reads and writes.
const AppName = "nextup"

// EnvPrefix prefixes every environment variable nextup reads.
const EnvPrefix = "NEXTUP_"

const (
	DefaultAddr         = "127.0.0.1:5000"
	DefaultCalendarID   = "primary"
	DefaultMetricsAddr  = ":9090"
	DefaultCallbackHost = "127.0.0.1"
)

// Config is the resolved runtime configuration.
type Config struct {
	// Addr is the API listen address.
	Addr string `toml:"addr"`

	// TokenFile is the persisted credential.
	TokenFile string `toml:"token_file"`

	// CredentialsFile is the Google client secret file.
	CredentialsFile string `toml:"credentials_file"`

	// CalendarID is the calendar to read.
	CalendarID string `toml:"calendar"`

	// Scopes are the OAuth scopes requested.
	Scopes []string `toml:"scopes"`

	// CallbackHost and CallbackPort are where the authorization redirect
	// listener binds. Port 0 lets the OS choose.
	CallbackHost string `toml:"callback_host"`
	CallbackPort int    `toml:"callback_port"`

	// OpenBrowser launches the browser on the consent page.
	OpenBrowser bool `toml:"open_browser"`

	// AuthTimeout bounds the wait for an authorization redirect; 0 waits
	// for as long as the request lives.
	AuthTimeout time.Duration `toml:"auth_timeout"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	MetricsEnabled bool   `toml:"metrics_enabled"`
	MetricsAddr    string `toml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:            DefaultAddr,
		TokenFile:       filepath.Join(xdg.DataHome, AppName, "token.json"),
		CredentialsFile: filepath.Join(xdg.ConfigHome, AppName, "credentials.json"),
		CalendarID:      DefaultCalendarID,
		Scopes:          slices.Clone(credentials.DefaultScopes),
		CallbackHost:    DefaultCallbackHost,
		OpenBrowser:     true,
		LogLevel:        "info",
		LogFormat:       logging.FormatText,
		MetricsAddr:     DefaultMetricsAddr,
	}
}

// DefaultConfigPath is the config file read when none is named.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.toml")
}

// Load resolves the configuration from defaults, the TOML file at path, the
// dotenv file at envFile and NEXTUP_* environment variables, in that order.
// An empty path falls back to DefaultConfigPath, which may be absent; a
// named path must exist. An empty envFile means ".env", which may be absent.
// Flags are applied by the caller afterwards.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return Config{}, err
	}

	if err := loadDotenv(envFile); err != nil {
		return Config{}, err
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in config file %s: %s", path, strings.Join(keys, ", "))
	}

	return nil
}

// loadDotenv exports the variables of a dotenv file without overriding the
// environment.
func loadDotenv(envFile string) error {
	required := envFile != ""
	if !required {
		envFile = ".env"
	}

	if err := godotenv.Load(envFile); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookupEnv("ADDR"); ok {
		c.Addr = v
	}
	if v, ok := lookupEnv("TOKEN_FILE"); ok {
		c.TokenFile = v
	}
	if v, ok := lookupEnv("CREDENTIALS_FILE"); ok {
		c.CredentialsFile = v
	}
	if v, ok := lookupEnv("CALENDAR"); ok {
		c.CalendarID = v
	}
	if v, ok := lookupEnv("SCOPES"); ok {
		c.Scopes = SplitScopes(v)
	}
	if v, ok := lookupEnv("CALLBACK_HOST"); ok {
		c.CallbackHost = v
	}
	if v, ok := lookupEnv("CALLBACK_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sCALLBACK_PORT %q: %w", EnvPrefix, v, err)
		}
		c.CallbackPort = port
	}
	if v, ok := lookupEnv("OPEN_BROWSER"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sOPEN_BROWSER %q: %w", EnvPrefix, v, err)
		}
		c.OpenBrowser = b
	}
	if v, ok := lookupEnv("AUTH_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sAUTH_TIMEOUT %q: %w", EnvPrefix, v, err)
		}
		c.AuthTimeout = d
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookupEnv("LOG_FORMAT"); ok {
		c.LogFormat = v
	}
	if v, ok := lookupEnv("METRICS_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sMETRICS_ENABLED %q: %w", EnvPrefix, v, err)
		}
		c.MetricsEnabled = b
	}
	if v, ok := lookupEnv("METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	return nil
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// SplitScopes splits a comma or whitespace separated scope list.
func SplitScopes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		errs = append(errs, fmt.Errorf("invalid listen address %q: %w", c.Addr, err))
	}
	if c.TokenFile == "" {
		errs = append(errs, errors.New("token file path is required"))
	}
	if c.CredentialsFile == "" {
		errs = append(errs, errors.New("credentials file path is required"))
	}
	if c.CalendarID == "" {
		errs = append(errs, errors.New("calendar id is required"))
	}
	if len(c.Scopes) == 0 {
		errs = append(errs, errors.New("at least one OAuth scope is required"))
	}
	if c.CallbackPort < 0 || c.CallbackPort > 65535 {
		errs = append(errs, fmt.Errorf("callback port %d out of range", c.CallbackPort))
	}
	if c.AuthTimeout < 0 {
		errs = append(errs, fmt.Errorf("auth timeout must not be negative, got %s", c.AuthTimeout))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != logging.FormatText && c.LogFormat != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("invalid log format %q, must be one of: text, json", c.LogFormat))
	}
	if c.MetricsEnabled {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errs = append(errs, fmt.Errorf("invalid metrics address %q: %w", c.MetricsAddr, err))
		}
	}

	return errors.Join(errs...)
}
