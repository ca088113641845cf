package llm

import (
	"context"
	"fmt"

	"github.com/asesorlegal/backend/internal/config"
)

// NewFromConfig builds the client selected by LLM_PROVIDER. The returned
// close function is never nil.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Client, func() error, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), func() error { return nil }, nil
	case config.ProviderGemini:
		c, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider: %s", cfg.LLMProvider)
	}
}
