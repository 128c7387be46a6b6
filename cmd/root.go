package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the nextup application
var rootCmd = &cobra.Command{
	Use:   "nextup",
	Short: "Serves your next Google Calendar events as JSON",
	Long: `nextup reads the next events of a Google Calendar and serves them on
GET /api/events as a JSON array of {start, summary} objects.

The first request without a usable credential runs the OAuth consent flow in
your browser; the resulting token is cached and refreshed from then on.

It can run as:
  - An HTTP API (serve, the default)
  - A one-shot listing on the terminal (events)
  - An MCP (Model Context Protocol) server for AI assistants (mcp)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// globals holds the persistent flags shared by every subcommand.
var globals globalFlags

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "nextup version %s\n" .Version}}`)

	// If no subcommand is provided, run the API server by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	globals.register(rootCmd)

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newVersionCmd())
}
