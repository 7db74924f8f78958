package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"marksweep/internal/diagnostics"
	"marksweep/internal/metrics"
	"marksweep/internal/models"
)

const (
	DefaultItemDelay         = 100 * time.Millisecond
	DefaultProbeCeiling      = 30 * time.Second
	DefaultCategorizeCeiling = 45 * time.Second
)

// AccessibilityChecker probes a single URL.
type AccessibilityChecker interface {
	Check(ctx context.Context, rawURL string) models.AccessibilityResult
}

// URLCategorizer assigns a category to a URL without failing.
type URLCategorizer interface {
	Categorize(ctx context.Context, rawURL string, settings models.Settings) models.CategoryResult
}

// ProgressFunc is called after each bookmark is processed.
type ProgressFunc func(done, total int, b models.Bookmark)

// ScanOptions tunes pacing and stage ceilings. Zero values use the defaults.
type ScanOptions struct {
	ItemDelay         time.Duration
	ProbeCeiling      time.Duration
	CategorizeCeiling time.Duration
}

// ScanService probes and categorizes bookmarks one at a time.
type ScanService struct {
	checker     AccessibilityChecker
	categorizer URLCategorizer
	diag        *diagnostics.Log
	opts        ScanOptions
}

// NewScanService creates a ScanService.
func NewScanService(checker AccessibilityChecker, categorizer URLCategorizer, diag *diagnostics.Log, opts ScanOptions) *ScanService {
	if opts.ItemDelay < 0 {
		opts.ItemDelay = 0
	} else if opts.ItemDelay == 0 {
		opts.ItemDelay = DefaultItemDelay
	}
	if opts.ProbeCeiling <= 0 {
		opts.ProbeCeiling = DefaultProbeCeiling
	}
	if opts.CategorizeCeiling <= 0 {
		opts.CategorizeCeiling = DefaultCategorizeCeiling
	}
	return &ScanService{checker: checker, categorizer: categorizer, diag: diag, opts: opts}
}

// CheckAccessibility probes a single URL.
func (s *ScanService) CheckAccessibility(ctx context.Context, rawURL string) models.AccessibilityResult {
	return s.checker.Check(ctx, rawURL)
}

// Categorize categorizes a single URL.
func (s *ScanService) Categorize(ctx context.Context, rawURL string, settings models.Settings) models.CategoryResult {
	return s.categorizer.Categorize(ctx, rawURL, settings)
}

// Run processes bookmarks strictly in order. A single bookmark never aborts the
// run; only ctx cancellation does, in which case the partial result is returned
// together with ctx.Err() and Total counts the bookmarks actually processed.
func (s *ScanService) Run(ctx context.Context, bookmarks []models.Bookmark, settings models.Settings, progress ProgressFunc) (models.ScanResult, error) {
	result := models.ScanResult{
		Accessible: []models.Bookmark{},
		Broken:     []models.Bookmark{},
		Categories: []models.CategoryGroup{},
		Errors:     []string{},
	}

	for i, b := range bookmarks {
		if i > 0 && s.opts.ItemDelay > 0 {
			if err := sleep(ctx, s.opts.ItemDelay); err != nil {
				return result, err
			}
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := s.processOne(ctx, b, settings, &result); err != nil {
			return result, err
		}
		result.Total++

		if progress != nil {
			progress(result.Total, len(bookmarks), b)
		}
	}

	log.Infof("Scan complete: %d total, %d accessible, %d broken, %d categories, %d issues",
		result.Total, len(result.Accessible), len(result.Broken), len(result.Categories), len(result.Errors))
	return result, nil
}

// processOne handles a single bookmark. It only returns an error when the
// caller's context was canceled mid-item; the item is then not counted.
func (s *ScanService) processOne(ctx context.Context, b models.Bookmark, settings models.Settings, result *models.ScanResult) error {
	access, err := withCeiling(ctx, s.opts.ProbeCeiling, func(ctx context.Context) models.AccessibilityResult {
		return s.checker.Check(ctx, b.URL)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		failed := models.AccessibilityResult{Error: fmt.Sprintf("accessibility check failed: %v", err), NetworkError: true}
		result.AddBroken(b.WithFailure(failed))
		result.Errors = append(result.Errors, fmt.Sprintf("Processing failed for %s: %v", b.Title, err))
		s.record(ctx, "Accessibility-Check", err, b)
		metrics.BookmarksScanned.WithLabelValues("broken").Inc()
		return nil
	}

	if !access.Accessible {
		result.AddBroken(b.WithFailure(access))
		metrics.BookmarksScanned.WithLabelValues("broken").Inc()
		return nil
	}

	category, err := withCeiling(ctx, s.opts.CategorizeCeiling, func(ctx context.Context) models.CategoryResult {
		return s.categorizer.Categorize(ctx, b.URL, settings)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnf("Analysis failed for %s: %v", b.Title, err)
		category = models.CategoryResult{
			Category:    models.CategoryOther,
			Confidence:  0.1,
			Description: "analysis failed - using fallback category",
			Method:      models.MethodFallback,
		}
		result.Errors = append(result.Errors, fmt.Sprintf("Analysis failed for %s: %v", b.Title, err))
		s.record(ctx, "Website-Analysis", err, b)
	}

	result.AddAccessible(b.WithCategory(category))
	metrics.BookmarksScanned.WithLabelValues("accessible").Inc()
	return nil
}

func (s *ScanService) record(ctx context.Context, label string, err error, b models.Bookmark) {
	if s.diag == nil {
		return
	}
	s.diag.Record(ctx, label, err, map[string]any{"bookmarkId": b.ID, "url": b.URL})
}

// errStageTimeout reports that a stage exceeded its ceiling.
var errStageTimeout = errors.New("stage timed out")

type stageOutcome[T any] struct {
	value T
	err   error
}

// withCeiling races fn against ceiling. fn keeps running in the background when
// the ceiling wins; its result is dropped.
func withCeiling[T any](ctx context.Context, ceiling time.Duration, fn func(ctx context.Context) T) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, ceiling)
	defer cancel()

	done := make(chan stageOutcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stageOutcome[T]{err: fmt.Errorf("stage panicked: %v", r)}
			}
		}()
		done <- stageOutcome[T]{value: fn(ctx)}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w after %s", errStageTimeout, ceiling)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
