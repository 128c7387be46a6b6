package cmd

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/nextup/internal/calendar"
	"github.com/teemow/nextup/internal/config"
	"github.com/teemow/nextup/internal/credentials"
)

func baseConfig() config.Config {
	return config.Config{
		Addr:            "127.0.0.1:5000",
		TokenFile:       "/data/token.json",
		CredentialsFile: "/config/credentials.json",
		CalendarID:      "primary",
		Scopes:          []string{credentials.CalendarReadonlyScope},
		OpenBrowser:     true,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

func TestGlobalFlags_Apply(t *testing.T) {
	t.Run("only changed flags override", func(t *testing.T) {
		g := &globalFlags{}
		c := &cobra.Command{Use: "test"}
		g.register(c)
		require.NoError(t, c.ParseFlags([]string{
			"--calendar", "team@example.com",
			"--no-browser",
			"--auth-timeout", "2m",
			"--scopes", "a,b",
		}))

		cfg := baseConfig()
		g.apply(&cfg, c.Flags())

		assert.Equal(t, "team@example.com", cfg.CalendarID)
		assert.False(t, cfg.OpenBrowser)
		assert.Equal(t, 2*time.Minute, cfg.AuthTimeout)
		assert.Equal(t, []string{"a", "b"}, cfg.Scopes)
		assert.Equal(t, "/data/token.json", cfg.TokenFile)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "text", cfg.LogFormat)
	})

	t.Run("debug and files", func(t *testing.T) {
		g := &globalFlags{}
		c := &cobra.Command{Use: "test"}
		g.register(c)
		require.NoError(t, c.ParseFlags([]string{
			"--debug",
			"--token-file", "/tmp/t.json",
			"--credentials-file", "/tmp/c.json",
			"--callback-port", "8085",
			"--log-format", "json",
		}))

		cfg := baseConfig()
		g.apply(&cfg, c.Flags())

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "/tmp/t.json", cfg.TokenFile)
		assert.Equal(t, "/tmp/c.json", cfg.CredentialsFile)
		assert.Equal(t, 8085, cfg.CallbackPort)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.True(t, cfg.OpenBrowser)
	})
}

func TestReportStatus(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	cfg := baseConfig()

	t.Run("no credential", func(t *testing.T) {
		var out bytes.Buffer
		err := reportStatus(&out, cfg, nil, credentials.StateNoFile,
			credentials.ErrNoCredential, now)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "/data/token.json")
		assert.Contains(t, out.String(), "nextup auth login")
	})

	t.Run("valid", func(t *testing.T) {
		var out bytes.Buffer
		cred := &credentials.Credential{
			AccessToken:  "a",
			RefreshToken: "r",
			Expiry:       now.Add(30 * time.Minute),
			Scopes:       cfg.Scopes,
		}
		require.NoError(t, reportStatus(&out, cfg, cred, credentials.StateValid, nil, now))
		assert.Contains(t, out.String(), string(credentials.StateValid))
		assert.Contains(t, out.String(), "in 30m0s")
		assert.Contains(t, out.String(), "Refresh:    true")
		assert.NotContains(t, out.String(), "authorize again")
	})

	t.Run("needs authorization", func(t *testing.T) {
		var out bytes.Buffer
		cred := &credentials.Credential{AccessToken: "a", Expiry: now.Add(-time.Hour)}
		require.NoError(t, reportStatus(&out, cfg, cred, credentials.StateExpiredUnrefreshable, nil, now))
		assert.Contains(t, out.String(), "Expired:")
		assert.Contains(t, out.String(), "authorize again")
	})

	t.Run("unreadable", func(t *testing.T) {
		var out bytes.Buffer
		err := reportStatus(&out, cfg, nil, credentials.StateNoFile, errors.New("corrupt"), now)
		assert.ErrorContains(t, err, "corrupt")
	})
}

func TestPrintEvents(t *testing.T) {
	events := calendar.EventList{
		{Start: "2024-01-01T10:00:00Z", Summary: "Standup"},
		{Start: "2024-01-02", Summary: "Holiday"},
	}

	var out bytes.Buffer
	require.NoError(t, printEvents(&out, events, false))
	assert.Equal(t, "2024-01-01T10:00:00Z Standup\n2024-01-02 Holiday\n", out.String())

	out.Reset()
	require.NoError(t, printEvents(&out, events, true))
	assert.Equal(t,
		`[{"start":"2024-01-01T10:00:00Z","summary":"Standup"},{"start":"2024-01-02","summary":"Holiday"}]`+"\n",
		out.String())

	out.Reset()
	require.NoError(t, printEvents(&out, nil, true))
	assert.Equal(t, "[]\n", out.String())

	out.Reset()
	require.NoError(t, printEvents(&out, nil, false))
	assert.Equal(t, "No upcoming events found.\n", out.String())
}

func TestStartServer(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		release := make(chan struct{})
		done, err := startServer(func(ready chan<- struct{}) error {
			close(ready)
			<-release
			return nil
		})
		require.NoError(t, err)
		close(release)
		assert.NoError(t, <-done)
	})

	t.Run("bind failure", func(t *testing.T) {
		bindErr := &net.OpError{Op: "listen", Err: errors.New("address already in use")}
		_, err := startServer(func(chan<- struct{}) error {
			return bindErr
		})
		assert.ErrorIs(t, err, bindErr)
	})
}

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	c := newVersionCmd()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetArgs(nil)
	require.NoError(t, c.Execute())
	assert.Contains(t, out.String(), "nextup version 1.2.3")
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "auth", "events", "mcp", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("token-file"))
}
