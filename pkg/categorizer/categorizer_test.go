package categorizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"marksweep/internal/models"
)

func TestDomainCategory(t *testing.T) {
	testCases := []struct {
		host     string
		category string
		conf     float64
	}{
		{"github.com", "Development", 0.9},
		{"gist.github.com", "Development", 0.9},
		{"www.youtube.com", "Entertainment", 0.9},
		{"news.ycombinator.com", "News", 0.9},
		{"en.wikipedia.org", "Reference", 0.9},
		{"myblog.example", "Reference", 0.8},
		{"shop.example.com", "Shopping", 0.8},
		{"thejournal.example", "News", 0.8},
		{"cs.stanford.edu", "Education", 0.8},
		{"example.org", "Other", 0.7},
	}

	for _, tc := range testCases {
		t.Run(tc.host, func(t *testing.T) {
			got := DomainCategory(tc.host)
			assert.Equal(t, tc.category, got.Category)
			assert.Equal(t, tc.conf, got.Confidence)
			assert.Equal(t, models.MethodDomain, got.Method)
		})
	}

	assert.Equal(t, "Website categorized as search/tools based on domain analysis", DomainCategory("www.google.com").Description)
}

func TestDomainCategory_Deterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		assert.Equal(t, DomainCategory("medium.com"), DomainCategory("medium.com"))
	}
}

func TestChain_NeverFails(t *testing.T) {
	chain := NewChain(DomainStage)
	ctx := context.Background()

	for _, raw := range []string{"", "::not a url", "https://", "mailto:someone@example.com", "%zz"} {
		got := chain.Categorize(ctx, raw, models.Settings{})
		assert.Equal(t, Fallback(), got, raw)
	}
}

func TestChain_FirstAnsweringStageWins(t *testing.T) {
	calls := 0
	decline := func(ctx context.Context, req Request) (models.CategoryResult, bool) {
		calls++
		return models.CategoryResult{}, false
	}
	answer := func(ctx context.Context, req Request) (models.CategoryResult, bool) {
		return models.CategoryResult{Category: "News", Confidence: 1.4, Method: models.MethodLLM}, true
	}

	got := NewChain(decline, answer, DomainStage).Categorize(context.Background(), "https://GitHub.com/x", models.Settings{})
	assert.Equal(t, 1, calls)
	assert.Equal(t, "News", got.Category)
	assert.Equal(t, 1.0, got.Confidence, "confidence is clamped at the composition point")
}

func TestChain_StagePanicYieldsFallback(t *testing.T) {
	boom := func(ctx context.Context, req Request) (models.CategoryResult, bool) {
		panic("kaboom")
	}
	got := NewChain(boom).Categorize(context.Background(), "https://example.com", models.Settings{})
	assert.Equal(t, Fallback(), got)
}

func TestChain_EmptyCategoryYieldsFallback(t *testing.T) {
	blank := func(ctx context.Context, req Request) (models.CategoryResult, bool) {
		return models.CategoryResult{Confidence: 0.9}, true
	}
	got := NewChain(blank).Categorize(context.Background(), "https://example.com", models.Settings{})
	assert.Equal(t, Fallback(), got)
}

func TestChain_ExternalDisabledUsesHeuristic(t *testing.T) {
	completer := &scriptedCompleter{}
	llm := NewLLMClassifier(testExecutor(nil), nil, WithCompleterFactory(factoryFor(completer)))
	chain := NewChain(llm.Stage(), DomainStage)

	got := chain.Categorize(context.Background(), "https://github.com/x", models.Settings{})
	assert.Equal(t, "Development", got.Category)
	assert.Equal(t, 0.9, got.Confidence)
	assert.Zero(t, completer.calls)
}

func TestChain_ExternalFailureFallsBackToHeuristic(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"no idea", "still no idea"}}
	llm := NewLLMClassifier(testExecutor(nil), nil, WithCompleterFactory(factoryFor(completer)))
	chain := NewChain(llm.Stage(), DomainStage)

	got := chain.Categorize(context.Background(), "https://www.netflix.com/title/1", enabledSettings())
	assert.Equal(t, "Entertainment", got.Category)
	assert.Equal(t, models.MethodDomain, got.Method)
}
