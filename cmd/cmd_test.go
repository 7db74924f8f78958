package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marksweep/internal/models"
	"marksweep/internal/report"
)

func init() {
	color.NoColor = true
}

func TestGetAppFromContext_Missing(t *testing.T) {
	_, err := GetAppFromContext(context.Background())
	assert.Error(t, err)
}

func TestSkipAppInit(t *testing.T) {
	assert.True(t, skipAppInit(&cobra.Command{Use: "help"}))
	assert.True(t, skipAppInit(configCmd))
	assert.False(t, skipAppInit(scanCmd))

	completion := &cobra.Command{Use: "completion"}
	bash := &cobra.Command{Use: "bash"}
	completion.AddCommand(bash)
	assert.True(t, skipAppInit(bash))
}

func TestConfigureLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	configureLogging("debug")
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	configureLogging("loud")
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := progressPrinter(&buf)
	p(1, 2, models.Bookmark{Title: "GitHub"})
	p(2, 2, models.Bookmark{Title: "Dead", Error: "HTTP 404"})

	assert.Contains(t, buf.String(), "[1/2] "+okMark+" GitHub\n")
	assert.Contains(t, buf.String(), "[2/2] "+failMark+" Dead\n")
}

func TestPrintScanResult(t *testing.T) {
	scan := models.ScanResult{Total: 3, Errors: []string{"Processing failed for Slow"}}
	scan.AddAccessible(models.Bookmark{Title: "BBC", Category: "News"})
	scan.AddAccessible(models.Bookmark{Title: "GitHub", Category: "Development"})
	scan.AddAccessible(models.Bookmark{Title: "GitLab", Category: "Development"})
	scan.AddBroken(models.Bookmark{Title: "Dead", URL: "http://dead.invalid", Error: "no such host"})

	var buf bytes.Buffer
	printScanResult(&buf, scan)
	out := buf.String()

	assert.Contains(t, out, "Scanned 3 bookmarks: 3 accessible, 1 broken")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Development")), bytes.Index(buf.Bytes(), []byte("News")),
		"larger categories are listed first")
	assert.Contains(t, out, "http://dead.invalid (no such host)")
	assert.Contains(t, out, "1 items hit processing errors")
}

func TestPrintTree(t *testing.T) {
	forest := []*models.Node{
		{ID: "1", Title: "Bookmarks Bar", Children: []*models.Node{
			{ID: "10", Title: "Dev", Children: []*models.Node{
				{ID: "11", Title: "Go", URL: "https://go.dev"},
			}},
		}},
	}
	var buf bytes.Buffer
	printTree(&buf, forest, "")
	assert.Equal(t, "Bookmarks Bar/ [1]\n  Dev/ [10]\n    Go  https://go.dev\n", buf.String())
}

func TestPrintOrganization(t *testing.T) {
	res := models.OrganizationResult{Organized: 2, Errors: []string{"Failed to move bookmark \"x\""}}
	res.Finalize()

	var buf bytes.Buffer
	printOrganization(&buf, res, report.OrganizationSummary(res))
	assert.Contains(t, buf.String(), "2 bookmarks organized")
	assert.Contains(t, buf.String(), "partial success")
}

func TestConfirm_AssumeYes(t *testing.T) {
	ok, err := confirm("Proceed?", "", true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printYAML(&buf, map[string]any{"status": "completed", "at": time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}))
	assert.Contains(t, buf.String(), "status: completed")
}
