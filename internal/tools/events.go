package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/nextup/internal/calendar"
	"github.com/teemow/nextup/internal/credentials"
	"github.com/teemow/nextup/internal/instrumentation"
	"github.com/teemow/nextup/internal/logging"
	"github.com/teemow/nextup/internal/server"
)

// UpcomingEventsTool is the name of the upcoming events tool.
const UpcomingEventsTool = "calendar_upcoming_events"

// Output formats of the upcoming events tool.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// EventTools holds what the event tools need to answer a call.
type EventTools struct {
	Credentials server.CredentialSource
	Events      server.EventSource
	Scopes      []string

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// RegisterEventTools adds the upcoming events tool to s.
func RegisterEventTools(s *mcpserver.MCPServer, t *EventTools) error {
	if t == nil || t.Credentials == nil || t.Events == nil {
		return fmt.Errorf("event tools need a credential source and an event source")
	}
	if len(t.Scopes) == 0 {
		t.Scopes = credentials.DefaultScopes
	}
	if t.Logger == nil {
		t.Logger = slog.Default()
	}

	upcomingTool := mcp.NewTool(UpcomingEventsTool,
		mcp.WithDescription("List the next events of the configured Google Calendar, soonest first, at most 10. "+
			"All-day events have a date-only start."),
		mcp.WithString("format",
			mcp.Description("Output format: 'json' (default) for the [{start, summary}] array, 'text' for one line per event"),
			mcp.Enum(FormatJSON, FormatText),
		),
	)

	s.AddTool(upcomingTool, InstrumentedToolHandler(UpcomingEventsTool, t.Metrics, t.Logger, t.handleUpcomingEvents))

	return nil
}

func (t *EventTools) handleUpcomingEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	format := FormatJSON
	if v, ok := args["format"].(string); ok && v != "" {
		format = v
	}
	if format != FormatJSON && format != FormatText {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid format %q, must be one of: json, text", format)), nil
	}

	cred, err := t.Credentials.Obtain(ctx, t.Scopes)
	if err != nil {
		t.logger().ErrorContext(ctx, "failed to obtain credential", logging.Operation(UpcomingEventsTool), logging.Err(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to obtain Google credentials: %v. Run 'nextup auth login' first.", err)), nil
	}

	events := t.Events.FetchUpcoming(ctx, cred.Token())

	if format == FormatText {
		return mcp.NewToolResultText(FormatEvents(events)), nil
	}

	data, err := json.Marshal(events)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode events: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (t *EventTools) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.Default()
	}
	return t.Logger
}

// FormatEvents renders events one per line as "<start> <summary>".
func FormatEvents(events calendar.EventList) string {
	if len(events) == 0 {
		return "No upcoming events found."
	}

	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "%s %s\n", e.Start, e.Summary)
	}
	return b.String()
}
