// Package mcptools exposes the bookmark pipeline as MCP tools.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"marksweep/internal/app"
	"marksweep/internal/probe"
	"marksweep/internal/report"
)

const (
	ServerName    = "marksweep"
	ServerVersion = "0.1.0"
)

// NewServer builds an MCP server with every tool registered.
func NewServer(a *app.App) *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(true))
	Register(s, a)
	return s
}

func Register(s *server.MCPServer, a *app.App) {
	s.AddTool(listTool(), listHandler(a))
	s.AddTool(scanTool(), scanHandler(a))
	s.AddTool(organizeTool(), organizeHandler(a))
	s.AddTool(checkTool(), checkHandler(a))
	s.AddTool(categorizeTool(), categorizeHandler(a))
	s.AddTool(classifierTestTool(), classifierTestHandler(a))
	s.AddTool(diagnosticsTool(), diagnosticsHandler(a))
}

// --- list_bookmarks ---

func listTool() mcp.Tool {
	return mcp.NewTool("list_bookmarks",
		mcp.WithDescription("List every bookmark in the store with its folder ID."),
	)
}

func listHandler(a *app.App) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		bookmarks, err := a.Bookmarks(ctx)
		if err != nil {
			return toolError(err)
		}
		if len(bookmarks) == 0 {
			return mcp.NewToolResultText("No bookmarks."), nil
		}
		var sb strings.Builder
		for _, b := range bookmarks {
			fmt.Fprintf(&sb, "%s  %s  %s  (folder %s)\n", b.ID, b.Title, b.URL, b.ParentID)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- scan_bookmarks ---

func scanTool() mcp.Tool {
	return mcp.NewTool("scan_bookmarks",
		mcp.WithDescription("Check every bookmark for accessibility and assign categories. Optionally reorganize the store from the result."),
		mcp.WithBoolean("organize",
			mcp.Description("Move accessible bookmarks into category folders and apply the broken-link policy after the scan."),
		),
	)
}

func scanHandler(a *app.App) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		scan, err := a.Scan(ctx, nil)
		if err != nil {
			return toolError(fmt.Errorf("scan stopped after %d bookmarks: %w", scan.Total, err))
		}
		out := report.ScanSummary(scan)
		if req.GetBool("organize", false) {
			res := a.Organize(ctx, scan)
			out += "\n" + report.OrganizationSummary(res)
		}
		return mcp.NewToolResultText(out), nil
	}
}

// --- organize_bookmarks ---

func organizeTool() mcp.Tool {
	return mcp.NewTool("organize_bookmarks",
		mcp.WithDescription("Apply a scan report written by 'marksweep scan --report' to the store."),
		mcp.WithString("report",
			mcp.Description("Path to the YAML scan report"),
			mcp.Required(),
		),
	)
}

func organizeHandler(a *app.App) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("report")
		if err != nil {
			return toolError(err)
		}
		r, err := report.ReadFile(path)
		if err != nil {
			return toolError(err)
		}
		res := a.Organize(ctx, r.ScanResult())
		if !res.Success {
			return mcp.NewToolResultError(report.OrganizationSummary(res)), nil
		}
		return mcp.NewToolResultText(report.OrganizationSummary(res)), nil
	}
}

// --- check_accessibility ---

func checkTool() mcp.Tool {
	return mcp.NewTool("check_accessibility",
		mcp.WithDescription("Probe a single URL and report whether it is reachable."),
		mcp.WithString("url",
			mcp.Description("Absolute http or https URL"),
			mcp.Required(),
		),
	)
}

func checkHandler(a *app.App) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawURL, err := req.RequireString("url")
		if err != nil {
			return toolError(err)
		}
		return jsonResult(a.CheckAccessibility(ctx, rawURL))
	}
}

// --- categorize_url ---

func categorizeTool() mcp.Tool {
	return mcp.NewTool("categorize_url",
		mcp.WithDescription("Assign one of the fixed bookmark categories to a URL."),
		mcp.WithString("url",
			mcp.Description("Absolute http or https URL"),
			mcp.Required(),
		),
	)
}

func categorizeHandler(a *app.App) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawURL, err := req.RequireString("url")
		if err != nil {
			return toolError(err)
		}
		if !probe.ValidURL(rawURL) {
			return toolError(fmt.Errorf("%s: %s", probe.InvalidURLMessage, rawURL))
		}
		return jsonResult(a.Categorize(ctx, rawURL))
	}
}

// --- test_classifier_connection ---

func classifierTestTool() mcp.Tool {
	return mcp.NewTool("test_classifier_connection",
		mcp.WithDescription("Send a minimal request to the configured classification provider."),
	)
}

func classifierTestHandler(a *app.App) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status, err := a.TestClassifierConnection(ctx)
		if err != nil {
			return toolError(err)
		}
		return jsonResult(status)
	}
}

// --- recent_errors ---

func diagnosticsTool() mcp.Tool {
	return mcp.NewTool("recent_errors",
		mcp.WithDescription("Show the most recent pipeline failures recorded in this process."),
	)
}

func diagnosticsHandler(a *app.App) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries := a.Diagnostics.Entries()
		if len(entries) == 0 {
			return mcp.NewToolResultText("No errors recorded."), nil
		}
		var sb strings.Builder
		for _, e := range entries {
			fmt.Fprintf(&sb, "%s  %s  %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Context, e.Message)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
