package report

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marksweep/internal/models"
)

func sampleScan() models.ScanResult {
	var r models.ScanResult
	r.AddAccessible(models.Bookmark{ID: "1", Title: "GitHub", URL: "https://github.com", Category: "Development", Confidence: 0.9, Method: models.MethodDomain})
	r.AddAccessible(models.Bookmark{ID: "2", Title: "BBC", URL: "https://bbc.com", Category: "News", Confidence: 0.9, Method: models.MethodDomain})
	r.AddBroken(models.Bookmark{ID: "3", Title: "Dead", URL: "http://dead.invalid", Error: "no such host", Permanent: true})
	r.Total = 3
	r.Errors = []string{}
	return r
}

func TestReport_FileRoundTripKeepsOrganizeInputs(t *testing.T) {
	scan := sampleScan()
	rep := New(scan)
	path := filepath.Join(t.TempDir(), "scan.yaml")

	require.NoError(t, WriteFile(path, rep))
	loaded, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, rep.RunID, loaded.RunID)
	got := loaded.ScanResult()
	assert.Equal(t, scan.Categories, got.Categories)
	assert.Equal(t, scan.Broken, got.Broken)
	assert.Equal(t, scan.Total, got.Total)
	assert.Len(t, got.Accessible, 2)
}

func TestEncode_UsesSnakeCaseKeys(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, New(sampleScan())))
	out := buf.String()
	assert.Contains(t, out, "run_id:")
	assert.Contains(t, out, "generated_at:")
	assert.Contains(t, out, "category: Development")
	assert.NotContains(t, out, "api_key")
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(strings.NewReader("total: [not a number"))
	assert.Error(t, err)
}

func TestOrganizationSummary(t *testing.T) {
	t.Run("clean success", func(t *testing.T) {
		s := OrganizationSummary(models.OrganizationResult{Success: true, Organized: 4, Removed: 1, Errors: []string{}})
		assert.Equal(t, "Bookmarks organized successfully.\n4 bookmarks organized\n1 broken bookmarks removed", s)
	})

	t.Run("partial with truncated errors", func(t *testing.T) {
		res := models.OrganizationResult{Organized: 7, Errors: []string{"e1", "e2", "e3", "e4", "e5"}}
		res.Finalize()
		s := OrganizationSummary(res)
		assert.Contains(t, s, "5 issues encountered:")
		assert.Contains(t, s, "- e3")
		assert.NotContains(t, s, "- e4")
		assert.Contains(t, s, "... and 2 more")
		assert.True(t, strings.HasSuffix(s, "partial success."))
	})

	t.Run("failure", func(t *testing.T) {
		s := OrganizationSummary(models.OrganizationResult{Errors: []string{"top folder"}})
		assert.True(t, strings.HasPrefix(s, "Failed to organize bookmarks."))
		assert.NotContains(t, s, "partial")
	})
}

func TestScanSummary(t *testing.T) {
	assert.Equal(t, "3 bookmarks scanned: 2 accessible, 1 broken, 2 categories", ScanSummary(sampleScan()))
}
