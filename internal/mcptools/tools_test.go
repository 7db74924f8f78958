package mcptools

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marksweep/internal/app"
	"marksweep/internal/config"
	"marksweep/internal/models"
	"marksweep/internal/report"
	"marksweep/internal/store"
	"marksweep/internal/store/sqlite"
)

type stubWeb struct{}

func (stubWeb) Do(req *http.Request) (*http.Response, error) {
	if req.URL.Hostname() == "github.com" {
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
	}
	return nil, &url.Error{Op: req.Method, URL: req.URL.String(), Err: &net.DNSError{Err: "no such host", Name: req.URL.Hostname(), IsNotFound: true}}
}

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := config.Default()
	cfg.Store.DSN = ":memory:"
	cfg.Scan.ItemDelay = -1
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = time.Millisecond

	st, err := sqlite.NewSQLiteStore(context.Background(), cfg.Store.DSN)
	require.NoError(t, err)
	a := app.NewAppWithStore(cfg, st, app.WithHTTPClient(stubWeb{}))
	t.Cleanup(a.Close)
	return a
}

func call(t *testing.T, h server.ToolHandlerFunc, args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestNewServer(t *testing.T) {
	assert.NotNil(t, NewServer(newTestApp(t)))
}

func TestListHandler(t *testing.T) {
	a := newTestApp(t)
	out, isErr := call(t, listHandler(a), nil)
	assert.False(t, isErr)
	assert.Equal(t, "No bookmarks.", out)

	_, err := a.Store.Import(context.Background(), store.OtherBookmarksID, []*models.Node{{Title: "Go", URL: "https://github.com/golang/go"}})
	require.NoError(t, err)
	out, _ = call(t, listHandler(a), nil)
	assert.Contains(t, out, "https://github.com/golang/go")
	assert.Contains(t, out, "(folder 2)")
}

func TestScanHandler(t *testing.T) {
	a := newTestApp(t)
	_, err := a.Store.Import(context.Background(), store.OtherBookmarksID, []*models.Node{
		{Title: "Go", URL: "https://github.com/golang/go"},
		{Title: "Gone", URL: "http://gone.invalid/"},
	})
	require.NoError(t, err)

	out, isErr := call(t, scanHandler(a), nil)
	assert.False(t, isErr)
	assert.Contains(t, out, "2 bookmarks scanned: 1 accessible, 1 broken")

	out, isErr = call(t, scanHandler(a), map[string]any{"organize": true})
	assert.False(t, isErr)
	assert.Contains(t, out, "Bookmarks organized successfully.")
	assert.Contains(t, out, "1 bookmarks organized")
}

func TestOrganizeHandler(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	_, err := a.Store.Import(ctx, store.OtherBookmarksID, []*models.Node{{Title: "Go", URL: "https://github.com/golang/go"}})
	require.NoError(t, err)

	scan, err := a.Scan(ctx, nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "scan.yaml")
	require.NoError(t, report.WriteFile(path, report.New(scan)))

	out, isErr := call(t, organizeHandler(a), map[string]any{"report": path})
	assert.False(t, isErr, out)
	assert.Contains(t, out, "1 bookmarks organized")

	_, isErr = call(t, organizeHandler(a), map[string]any{"report": filepath.Join(t.TempDir(), "none.yaml")})
	assert.True(t, isErr)
}

func TestCheckAndCategorizeHandlers(t *testing.T) {
	a := newTestApp(t)

	out, isErr := call(t, checkHandler(a), map[string]any{"url": "https://github.com"})
	require.False(t, isErr)
	var acc models.AccessibilityResult
	require.NoError(t, json.Unmarshal([]byte(out), &acc))
	assert.True(t, acc.Accessible)

	_, isErr = call(t, checkHandler(a), map[string]any{})
	assert.True(t, isErr, "url is required")

	out, isErr = call(t, categorizeHandler(a), map[string]any{"url": "https://github.com/x"})
	require.False(t, isErr)
	var cat models.CategoryResult
	require.NoError(t, json.Unmarshal([]byte(out), &cat))
	assert.Equal(t, "Development", cat.Category)

	out, isErr = call(t, categorizeHandler(a), map[string]any{"url": "mailto:x@y"})
	assert.True(t, isErr)
	assert.Contains(t, out, "Invalid URL format")
}

func TestClassifierAndDiagnosticsHandlers(t *testing.T) {
	a := newTestApp(t)

	_, isErr := call(t, classifierTestHandler(a), nil)
	assert.True(t, isErr, "no API key is configured")

	out, _ := call(t, diagnosticsHandler(a), nil)
	assert.Contains(t, out, "No errors recorded.")

	a.Diagnostics.Record(context.Background(), "LLM-Connection-Test", assert.AnError, nil)
	out, _ = call(t, diagnosticsHandler(a), nil)
	assert.Contains(t, out, "LLM-Connection-Test")
}
