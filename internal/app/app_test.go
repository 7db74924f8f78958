package app

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marksweep/internal/config"
	"marksweep/internal/models"
	"marksweep/internal/store"
	"marksweep/internal/store/sqlite"
)

// fakeWeb answers 200 for github.com and www.bbc.com and NXDOMAIN for the rest.
type fakeWeb struct{}

func (fakeWeb) Do(req *http.Request) (*http.Response, error) {
	switch req.URL.Hostname() {
	case "github.com", "www.bbc.com":
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
	}
	return nil, &url.Error{Op: req.Method, URL: req.URL.String(), Err: &net.DNSError{Err: "no such host", Name: req.URL.Hostname(), IsNotFound: true}}
}

func testApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Store.DSN = ":memory:"
	cfg.Scan.ItemDelay = -1
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = time.Millisecond
	cfg.Organize.AutoRemoveBroken = true

	st, err := sqlite.NewSQLiteStore(context.Background(), cfg.Store.DSN)
	require.NoError(t, err)
	a := NewAppWithStore(cfg, st, WithHTTPClient(fakeWeb{}))
	t.Cleanup(a.Close)
	return a
}

const export = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><A HREF="https://github.com/golang/go">Go</A>
    <DT><A HREF="https://www.bbc.com/news">BBC</A>
    <DT><A HREF="http://gone.invalid/">Gone</A>
</DL><p>
`

func TestApp_ImportScanOrganize(t *testing.T) {
	a := testApp(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "bookmarks.html")
	require.NoError(t, os.WriteFile(path, []byte(export), 0o600))
	n, err := a.ImportFile(ctx, path, "")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	var seen int
	scan, err := a.Scan(ctx, func(done, total int, b models.Bookmark) { seen = done })
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
	assert.Equal(t, 3, scan.Total)
	assert.Len(t, scan.Accessible, 2)
	require.Len(t, scan.Broken, 1)
	assert.Equal(t, "Gone", scan.Broken[0].Title)

	res := a.Organize(ctx, scan)
	assert.Equal(t, models.OrganizationResult{Success: true, Organized: 2, Removed: 1, Errors: []string{}}, res)

	bookmarks, err := a.Bookmarks(ctx)
	require.NoError(t, err)
	require.Len(t, bookmarks, 2)
	forest, err := a.Store.List(ctx)
	require.NoError(t, err)
	bar := forest[0].Children[0]
	require.Equal(t, store.BookmarksBarID, bar.ID)
	require.Len(t, bar.Children, 1)
	assert.Equal(t, "Organized Bookmarks", bar.Children[0].Title)
}

func TestApp_SingleURLOperations(t *testing.T) {
	a := testApp(t)
	ctx := context.Background()

	ok := a.CheckAccessibility(ctx, "https://github.com")
	assert.True(t, ok.Accessible)

	bad := a.CheckAccessibility(ctx, "ftp://nope")
	assert.False(t, bad.Accessible)
	assert.True(t, bad.Permanent)

	cat := a.Categorize(ctx, "https://github.com/x")
	assert.Equal(t, "Development", cat.Category)
	assert.Equal(t, models.MethodDomain, cat.Method)
}

func TestApp_ClassifierDisabled(t *testing.T) {
	a := testApp(t)
	_, err := a.TestClassifierConnection(context.Background())
	assert.Error(t, err)

	_, err = a.EnqueueScan(context.Background(), false)
	assert.Error(t, err, "no job client without redis")
}
