package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/nextup/internal/config"
	"github.com/teemow/nextup/internal/credentials"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the cached Google credential",
		Long: `Manage the Google OAuth credential nextup caches in its token file.

  login    Resolve a usable credential now, running the consent flow if needed
  status   Show the stored credential without contacting Google
  logout   Delete the stored credential`,
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthLogoutCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize nextup with Google",
		Long: `Resolve a usable credential: a valid stored token is kept, an expired one is
refreshed, and otherwise the consent page is opened and the redirect awaited.
The result is written to the token file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cfg, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			cred, err := a.manager.Obtain(ctx, cfg.Scopes)
			if err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Authorized. Credential stored in %s\n", cfg.TokenFile)
			printCredential(cmd.OutOrStdout(), cred, credentials.StateValid, time.Now())
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			cred, state, err := a.manager.Inspect(cmd.Context(), cfg.Scopes)
			return reportStatus(cmd.OutOrStdout(), cfg, cred, state, err, time.Now())
		},
	}
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the stored credential",
		Long: `Delete the token file. The next request runs the consent flow again, which
is needed after changing the requested scopes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if err := a.manager.Forget(cmd.Context()); err != nil {
				return fmt.Errorf("failed to remove credential: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", cfg.TokenFile)
			return nil
		},
	}
}

// reportStatus prints the outcome of Manager.Inspect. A missing credential is
// a status, not an error.
func reportStatus(w io.Writer, cfg config.Config, cred *credentials.Credential, state credentials.State, err error, now time.Time) error {
	fmt.Fprintf(w, "Token file: %s\n", cfg.TokenFile)

	switch {
	case errors.Is(err, credentials.ErrNoCredential):
		fmt.Fprintln(w, "State:      no credential, run 'nextup auth login'")
		return nil
	case err != nil:
		return fmt.Errorf("failed to read credential: %w", err)
	}

	printCredential(w, cred, state, now)
	if state.NeedsAuthorization() {
		fmt.Fprintln(w, "Run 'nextup auth login' to authorize again.")
	}
	return nil
}

func printCredential(w io.Writer, cred *credentials.Credential, state credentials.State, now time.Time) {
	fmt.Fprintf(w, "State:      %s\n", state)

	switch {
	case cred.Expiry.IsZero():
		fmt.Fprintln(w, "Expires:    never")
	case cred.Expired(now):
		fmt.Fprintf(w, "Expired:    %s\n", cred.Expiry.Format(time.RFC3339))
	default:
		fmt.Fprintf(w, "Expires:    %s (in %s)\n", cred.Expiry.Format(time.RFC3339), cred.Expiry.Sub(now).Truncate(time.Second))
	}

	fmt.Fprintf(w, "Refresh:    %t\n", cred.Refreshable())
	fmt.Fprintf(w, "Scopes:     %s\n", strings.Join(cred.Scopes, " "))
}
