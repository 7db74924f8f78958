package categorizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marksweep/internal/models"
)

var (
	// ErrMissingCategory means the classifier answered without a category.
	ErrMissingCategory = errors.New("LLM response missing category")
	// ErrInvalidResponseShape means the response carried no message content.
	ErrInvalidResponseShape = errors.New("invalid API response format")
	// ErrUnparseableResponse means neither JSON nor the text fallback found a category.
	ErrUnparseableResponse = errors.New("failed to parse LLM response")
	// ErrNotConfigured means the settings lack an API key or model.
	ErrNotConfigured = errors.New("classifier is not configured")
)

// RequestFailedError is a non-success HTTP status from the classifier endpoint.
type RequestFailedError struct {
	StatusCode int
	Body       string
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("API request failed: %d - %s", e.StatusCode, e.Body)
}

// CompletionRequest is a single user-role prompt.
type CompletionRequest struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature *float32
	JSON        bool
}

// CompletionResponse carries the first message of the reply.
type CompletionResponse struct {
	Model   string
	Content string
}

// Completer is a chat-completion style text generator.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// CompleterFactory builds a Completer for the given settings. Settings are read
// per run, so completers are created per request rather than at startup.
type CompleterFactory func(ctx context.Context, settings models.Settings) (Completer, func(), error)

// NewCompleter picks the provider named in settings ("openai" when empty).
func NewCompleter(ctx context.Context, settings models.Settings) (Completer, func(), error) {
	if settings.APIKey == "" {
		return nil, nil, fmt.Errorf("missing API key: %w", ErrNotConfigured)
	}
	switch strings.ToLower(settings.Provider) {
	case "", "openai":
		return NewOpenAICompleter(settings), func() {}, nil
	case "gemini":
		c, err := NewGeminiCompleter(ctx, settings)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported classifier provider %q: %w", settings.Provider, ErrNotConfigured)
	}
}
