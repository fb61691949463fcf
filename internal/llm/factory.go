package llm

import (
	"fmt"

	"github.com/scrypster/recall/internal/config"
)

// NewEmbeddingGenerator creates the appropriate EmbeddingGenerator for the
// configured provider. An empty provider defaults to ollama.
func NewEmbeddingGenerator(cfg config.EmbeddingConfig) (EmbeddingGenerator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:            cfg.OpenAIAPIKey,
			Model:             cfg.OpenAIModel,
			BaseURL:           cfg.OpenAIBaseURL,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}), nil
	case "ollama", "":
		return NewOllamaClient(OllamaConfig{
			BaseURL:           cfg.OllamaURL,
			Model:             cfg.OllamaModel,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
}
