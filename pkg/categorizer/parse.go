package categorizer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"marksweep/internal/models"
)

var categoryPattern = regexp.MustCompile(`(?i)category["']?\s*[:=]\s*["']([^"']+)["']`)

var fencePattern = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

type classification struct {
	Category    string   `json:"category"`
	Confidence  *float64 `json:"confidence"`
	Description string   `json:"description"`
}

// parseClassification reads the classifier reply: JSON first, then a regex
// extraction of the category field at confidence 0.7.
func parseClassification(content string) (models.CategoryResult, error) {
	content = strings.TrimSpace(content)
	if m := fencePattern.FindStringSubmatch(content); m != nil {
		content = m[1]
	}

	var parsed classification
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		m := categoryPattern.FindStringSubmatch(content)
		if m == nil {
			return models.CategoryResult{}, fmt.Errorf("%w: %s", ErrUnparseableResponse, content)
		}
		confidence := 0.7
		parsed = classification{
			Category:    m[1],
			Confidence:  &confidence,
			Description: "Parsed from non-JSON response",
		}
	}

	category := strings.TrimSpace(parsed.Category)
	if category == "" {
		return models.CategoryResult{}, ErrMissingCategory
	}

	confidence := 0.5
	if parsed.Confidence != nil {
		confidence = *parsed.Confidence
	}
	description := strings.TrimSpace(parsed.Description)
	if description == "" {
		description = "AI-generated category"
	}

	return models.CategoryResult{
		Category:    category,
		Confidence:  clamp(confidence),
		Description: description,
		Method:      models.MethodLLM,
	}, nil
}
