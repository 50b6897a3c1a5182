package ai

import (
	"context"
	"fmt"
)

// Provider names accepted by New.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMoonshot  = "moonshot"
)

// New builds the Generator for provider. model may be empty for the
// provider's default.
func New(ctx context.Context, provider, apiKey, model string) (Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required for provider %s", provider)
	}
	switch provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, apiKey, model)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, WithModel(model)), nil
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, WithModel(model)), nil
	case ProviderMoonshot:
		return NewMoonshotClient(apiKey, WithModel(model)), nil
	}
	return nil, fmt.Errorf("unknown AI provider: %s", provider)
}
