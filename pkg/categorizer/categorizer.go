package categorizer

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"marksweep/internal/metrics"
	"marksweep/internal/models"
)

// Request is the input handed to every stage.
type Request struct {
	URL      string
	Host     string
	Settings models.Settings
}

// Stage either produces a result (true) or defers to the next stage (false).
type Stage func(ctx context.Context, req Request) (models.CategoryResult, bool)

// URLCategorizer assigns a category to a URL. Implementations never fail.
type URLCategorizer interface {
	Categorize(ctx context.Context, rawURL string, settings models.Settings) models.CategoryResult
}

// Chain runs its stages left to right and falls back to Fallback when none answers.
type Chain struct {
	stages []Stage
}

var _ URLCategorizer = (*Chain)(nil)

// NewChain composes stages. Nil stages are skipped.
func NewChain(stages ...Stage) *Chain {
	c := &Chain{}
	for _, s := range stages {
		if s != nil {
			c.stages = append(c.stages, s)
		}
	}
	return c
}

// Categorize is the single point that guarantees a well-formed result: URL parse
// failures, stage panics and exhausted stages all end in Fallback.
func (c *Chain) Categorize(ctx context.Context, rawURL string, settings models.Settings) (result models.CategoryResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("categorizer: stage panicked for %s: %v", rawURL, r)
			result = Fallback()
		}
		result = normalize(result)
		metrics.Categorizations.WithLabelValues(result.Method).Inc()
	}()

	host, err := hostOf(rawURL)
	if err != nil {
		log.Warnf("categorizer: %v", err)
		return Fallback()
	}

	req := Request{URL: rawURL, Host: host, Settings: settings}
	for _, stage := range c.stages {
		if res, ok := stage(ctx, req); ok {
			return res
		}
	}
	return Fallback()
}

// Fallback is the fixed result used when no stage can answer.
func Fallback() models.CategoryResult {
	return models.CategoryResult{
		Category:    models.CategoryOther,
		Confidence:  0.1,
		Description: "analysis unavailable",
		Method:      models.MethodFallback,
	}
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", rawURL, models.ErrInvalidURL)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in %q: %w", rawURL, models.ErrInvalidURL)
	}
	return host, nil
}

func normalize(r models.CategoryResult) models.CategoryResult {
	if strings.TrimSpace(r.Category) == "" {
		return Fallback()
	}
	r.Confidence = clamp(r.Confidence)
	return r
}

func clamp(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
