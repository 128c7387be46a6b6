package cmd

import (
	"context"
	"fmt"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/nextup/internal/tools"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the events as an MCP tool over stdio",
		Long: `Start a Model Context Protocol server on standard input/output exposing the
calendar_upcoming_events tool. Logs go to stderr.

Authorize once with 'nextup auth login' first: a consent flow started from a
tool call can only be completed if a browser is available.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, os.Stderr, false)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			mcpSrv := mcpserver.NewMCPServer("nextup", version,
				mcpserver.WithToolCapabilities(true),
			)

			if err := tools.RegisterEventTools(mcpSrv, &tools.EventTools{
				Credentials: a.manager,
				Events:      a.fetcher,
				Scopes:      cfg.Scopes,
				Metrics:     a.provider.Metrics(),
				Logger:      a.logger,
			}); err != nil {
				return fmt.Errorf("failed to register tools: %w", err)
			}

			return runStdioServer(mcpSrv)
		},
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}
