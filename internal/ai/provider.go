package ai

import (
	"context"
	"fmt"
)

// NewModel resolves a provider name to a Model. "none" disables AI
// categorization entirely; the services treat a nil model as rules-only.
func NewModel(ctx context.Context, provider, modelName string) (Model, error) {
	switch provider {
	case "gemini":
		return NewGeminiModel(ctx, modelName)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", provider)
	}
}
