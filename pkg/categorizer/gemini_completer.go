package categorizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"marksweep/internal/models"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiCompleter generates completions with the Google Gemini API.
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

// NewGeminiCompleter creates a client keyed by settings.APIKey. Close it when done.
func NewGeminiCompleter(ctx context.Context, settings models.Settings) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(settings.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := settings.ModelName
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = defaultGeminiModel
	}
	return &GeminiCompleter{client: client, model: model}, nil
}

// Close releases the underlying client.
func (g *GeminiCompleter) Close() error {
	return g.client.Close()
}

func (g *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	name := g.model
	if req.Model != "" && !strings.HasPrefix(req.Model, "gpt-") {
		name = req.Model
	}
	model := g.client.GenerativeModel(name)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.Temperature != nil {
		model.SetTemperature(*req.Temperature)
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return CompletionResponse{}, &RequestFailedError{StatusCode: gerr.Code, Body: gerr.Message}
		}
		return CompletionResponse{}, fmt.Errorf("gemini generate content failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return CompletionResponse{}, ErrInvalidResponseShape
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return CompletionResponse{}, ErrInvalidResponseShape
	}
	return CompletionResponse{Model: name, Content: sb.String()}, nil
}
