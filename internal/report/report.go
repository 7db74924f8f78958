// Package report persists scan results between `scan` and `organize` and
// renders organization outcomes for people.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"marksweep/internal/models"
)

// MaxListedErrors is how many errors a summary spells out.
const MaxListedErrors = 3

// Report is the on-disk form of a scan.
type Report struct {
	RunID       uuid.UUID              `yaml:"run_id"`
	GeneratedAt time.Time              `yaml:"generated_at"`
	Total       int                    `yaml:"total"`
	Accessible  int                    `yaml:"accessible"`
	Broken      []models.Bookmark      `yaml:"broken"`
	Categories  []models.CategoryGroup `yaml:"categories"`
	Errors      []string               `yaml:"errors"`
}

// New captures result under a fresh run ID.
func New(result models.ScanResult) Report {
	return Report{
		RunID:       uuid.New(),
		GeneratedAt: time.Now().UTC(),
		Total:       result.Total,
		Accessible:  len(result.Accessible),
		Broken:      result.Broken,
		Categories:  result.Categories,
		Errors:      result.Errors,
	}
}

// ScanResult rebuilds the scan. Accessible bookmarks are recovered from the
// category groups in group order.
func (r Report) ScanResult() models.ScanResult {
	res := models.ScanResult{
		Accessible: []models.Bookmark{},
		Broken:     r.Broken,
		Total:      r.Total,
		Categories: r.Categories,
		Errors:     r.Errors,
	}
	for _, g := range r.Categories {
		res.Accessible = append(res.Accessible, g.Bookmarks...)
	}
	if res.Broken == nil {
		res.Broken = []models.Bookmark{}
	}
	if res.Categories == nil {
		res.Categories = []models.CategoryGroup{}
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}
	return res
}

// Encode writes r as YAML.
func Encode(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

// Decode reads a YAML report.
func Decode(rd io.Reader) (Report, error) {
	var r Report
	if err := yaml.NewDecoder(rd).Decode(&r); err != nil {
		return r, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}

// WriteFile stores r at path.
func WriteFile(path string, r Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	if err := Encode(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile loads the report at path.
func ReadFile(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open report %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// ScanSummary is the one-line count of a scan.
func ScanSummary(r models.ScanResult) string {
	return fmt.Sprintf("%d bookmarks scanned: %d accessible, %d broken, %d categories",
		r.Total, len(r.Accessible), len(r.Broken), len(r.Categories))
}

// OrganizationSummary renders res the way it is shown after organizing: the
// counts, the first few errors and a note on partial success.
func OrganizationSummary(res models.OrganizationResult) string {
	var b strings.Builder
	if res.Success {
		b.WriteString("Bookmarks organized successfully.")
		if res.Organized > 0 {
			fmt.Fprintf(&b, "\n%d bookmarks organized", res.Organized)
		}
		if res.Removed > 0 {
			fmt.Fprintf(&b, "\n%d broken bookmarks removed", res.Removed)
		}
	} else {
		b.WriteString("Failed to organize bookmarks.")
	}

	if n := len(res.Errors); n > 0 {
		fmt.Fprintf(&b, "\n\n%d issues encountered:", n)
		for _, e := range res.Errors[:min(n, MaxListedErrors)] {
			fmt.Fprintf(&b, "\n- %s", e)
		}
		if n > MaxListedErrors {
			fmt.Fprintf(&b, "\n- ... and %d more", n-MaxListedErrors)
		}
	}

	if res.PartialSuccess {
		b.WriteString("\n\nSome operations failed but overall process completed with partial success.")
	}
	return b.String()
}
