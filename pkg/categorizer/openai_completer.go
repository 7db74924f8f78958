package categorizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"marksweep/internal/models"
)

// DefaultAPIBaseURL is used when settings leave the base URL empty.
const DefaultAPIBaseURL = "https://api.openai.com/v1"

// ChatCompletionCreator defines the minimal interface for OpenAI chat completions.
type ChatCompletionCreator interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICompleter talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAICompleter struct {
	client ChatCompletionCreator
}

// NewOpenAICompleter builds a client for settings.APIBaseURL using settings.APIKey.
func NewOpenAICompleter(settings models.Settings) *OpenAICompleter {
	cfg := openai.DefaultConfig(settings.APIKey)
	base := strings.TrimRight(settings.APIBaseURL, "/")
	if base == "" {
		base = DefaultAPIBaseURL
	}
	cfg.BaseURL = base
	return &OpenAICompleter{client: openai.NewClientWithConfig(cfg)}
}

// NewOpenAICompleterWithClient wraps an existing client (used by tests).
func NewOpenAICompleterWithClient(client ChatCompletionCreator) *OpenAICompleter {
	return &OpenAICompleter{client: client}
}

func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return CompletionResponse{}, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return CompletionResponse{}, ErrInvalidResponseShape
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return CompletionResponse{Model: model, Content: resp.Choices[0].Message.Content}, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &RequestFailedError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		body := reqErr.Error()
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &RequestFailedError{StatusCode: reqErr.HTTPStatusCode, Body: body}
	}
	return fmt.Errorf("openai chat completion failed: %w", err)
}
