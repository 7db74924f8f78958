package categorizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"marksweep/internal/diagnostics"
	"marksweep/internal/models"
	"marksweep/internal/retry"
)

const (
	DefaultClassifyTimeout = 30 * time.Second
	DefaultTestTimeout     = 15 * time.Second
	DefaultClassifyRetries = 2

	classifyMaxTokens = 200
	testMaxTokens     = 50
	testPrompt        = `Hello! Please respond with "Connection successful" if you can read this.`
)

var classifyTemperature float32 = 0.3

// DefaultPromptTemplate is used when no template file is configured.
// Placeholders: {{URL}}, {{DOMAIN}}, {{SITE}}, {{CATEGORIES}}.
const DefaultPromptTemplate = `Analyze this website and categorize it.
Website URL: {{URL}}
Domain: {{DOMAIN}}
Registered site: {{SITE}}

Please categorize this website into one of these categories:
{{CATEGORIES}}

Respond in JSON format with:
{
  "category": "category_name",
  "confidence": 0.0-1.0,
  "description": "brief description of why this category fits"
}`

var categoryHints = map[string]string{
	"Development":   "programming, coding, software tools",
	"Entertainment": "videos, movies, music, games",
	"Shopping":      "e-commerce, online stores",
	"Search/Tools":  "search engines, utilities",
	"Social Media":  "social networks, messaging",
	"Professional":  "business, career, work tools",
	"News":          "news sites, journalism",
	"Reference":     "documentation, wikis, learning",
	"Community":     "forums, discussion boards",
	"Productivity":  "task management, notes, collaboration",
	"Education":     "learning platforms, courses",
	"Other":         "if none of the above fit",
}

// LLMClassifier asks an external model to pick a category.
type LLMClassifier struct {
	newCompleter   CompleterFactory
	exec           *retry.Executor
	diag           *diagnostics.Log
	promptTemplate string
	timeout        time.Duration
	testTimeout    time.Duration
	attempts       int
}

// LLMOption customizes an LLMClassifier.
type LLMOption func(*LLMClassifier)

// WithCompleterFactory replaces the provider selection (used by tests).
func WithCompleterFactory(f CompleterFactory) LLMOption {
	return func(c *LLMClassifier) { c.newCompleter = f }
}

// WithPromptTemplate overrides DefaultPromptTemplate. Empty keeps the default.
func WithPromptTemplate(tmpl string) LLMOption {
	return func(c *LLMClassifier) {
		if strings.TrimSpace(tmpl) != "" {
			c.promptTemplate = tmpl
		}
	}
}

// WithClassifyTimeouts overrides the per-request timeouts.
func WithClassifyTimeouts(classify, test time.Duration) LLMOption {
	return func(c *LLMClassifier) {
		c.timeout = classify
		c.testTimeout = test
	}
}

// NewLLMClassifier creates a classifier that retries through exec.
func NewLLMClassifier(exec *retry.Executor, diag *diagnostics.Log, opts ...LLMOption) *LLMClassifier {
	c := &LLMClassifier{
		newCompleter:   NewCompleter,
		exec:           exec,
		diag:           diag,
		promptTemplate: DefaultPromptTemplate,
		timeout:        DefaultClassifyTimeout,
		testTimeout:    DefaultTestTimeout,
		attempts:       DefaultClassifyRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the model's category for req or the last error after retries.
func (c *LLMClassifier) Classify(ctx context.Context, req Request) (models.CategoryResult, error) {
	completer, release, err := c.newCompleter(ctx, req.Settings)
	if err != nil {
		return models.CategoryResult{}, err
	}
	defer release()

	prompt := c.buildPrompt(req)
	return retry.Do(ctx, c.exec, "LLM-Analysis:"+req.Host, c.attempts, func(ctx context.Context) (models.CategoryResult, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := completer.Complete(ctx, CompletionRequest{
			Model:       req.Settings.ModelName,
			Prompt:      prompt,
			MaxTokens:   classifyMaxTokens,
			Temperature: &classifyTemperature,
			JSON:        true,
		})
		if err != nil {
			return models.CategoryResult{}, err
		}
		return parseClassification(resp.Content)
	})
}

// Stage adapts the classifier into the chain. It only runs when external
// classification is enabled and a key is present; failures fall through.
func (c *LLMClassifier) Stage() Stage {
	return func(ctx context.Context, req Request) (models.CategoryResult, bool) {
		if !req.Settings.EnableExternalClassification || req.Settings.APIKey == "" {
			return models.CategoryResult{}, false
		}
		res, err := c.Classify(ctx, req)
		if err != nil {
			if c.diag != nil {
				c.diag.Record(ctx, "LLM-Analysis", err, map[string]any{"url": req.URL, "domain": req.Host})
			} else {
				log.Warnf("LLM analysis failed for %s: %v", req.Host, err)
			}
			return models.CategoryResult{}, false
		}
		return res, true
	}
}

// TestConnection sends a short prompt to verify the endpoint, key and model.
func (c *LLMClassifier) TestConnection(ctx context.Context, settings models.Settings) (models.ClassifierStatus, error) {
	completer, release, err := c.newCompleter(ctx, settings)
	if err != nil {
		return models.ClassifierStatus{}, err
	}
	defer release()

	return retry.Do(ctx, c.exec, "LLM-Connection-Test", c.attempts, func(ctx context.Context) (models.ClassifierStatus, error) {
		ctx, cancel := context.WithTimeout(ctx, c.testTimeout)
		defer cancel()

		resp, err := completer.Complete(ctx, CompletionRequest{
			Model:     settings.ModelName,
			Prompt:    testPrompt,
			MaxTokens: testMaxTokens,
		})
		if err != nil {
			return models.ClassifierStatus{}, err
		}
		model := resp.Model
		if model == "" {
			model = settings.ModelName
		}
		return models.ClassifierStatus{
			Success:  true,
			Message:  "Connection successful",
			Model:    model,
			Response: resp.Content,
		}, nil
	})
}

func (c *LLMClassifier) buildPrompt(req Request) string {
	var cats strings.Builder
	for _, name := range models.Categories {
		fmt.Fprintf(&cats, "- %s (%s)\n", name, categoryHints[name])
	}

	prompt := c.promptTemplate
	prompt = strings.ReplaceAll(prompt, "{{URL}}", req.URL)
	prompt = strings.ReplaceAll(prompt, "{{DOMAIN}}", req.Host)
	prompt = strings.ReplaceAll(prompt, "{{SITE}}", registeredSite(req.Host))
	prompt = strings.ReplaceAll(prompt, "{{CATEGORIES}}", strings.TrimRight(cats.String(), "\n"))
	return prompt
}

// registeredSite returns the eTLD+1 of host, or host itself for IPs and
// single-label names.
func registeredSite(host string) string {
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}
