package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/nextup/internal/calendar"
	"github.com/teemow/nextup/internal/tools"
)

func newEventsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the next events",
		Long: `Print the next events of the configured calendar, one per line as
"<start> <summary>". With --json the same array GET /api/events returns is
printed instead.`,
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
				return fmt.Errorf("failed to obtain credential: %w", err)
			}

			return printEvents(cmd.OutOrStdout(), a.fetcher.FetchUpcoming(ctx, cred.Token()), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the events as JSON")

	return cmd
}

func printEvents(w io.Writer, events calendar.EventList, asJSON bool) error {
	if asJSON {
		data, err := json.Marshal(events)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	if len(events) == 0 {
		_, err := fmt.Fprintln(w, tools.FormatEvents(events))
		return err
	}
	_, err := fmt.Fprint(w, tools.FormatEvents(events))
	return err
}
