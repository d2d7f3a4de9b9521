package llm

import (
	"fmt"

	"github.com/rahul/workdesk/pkg/config"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

func openAIOptions(p config.ProviderConfig) []openai.Option {
	opts := []openai.Option{
		openai.WithToken(p.APIKey),
		openai.WithModel(p.Model),
	}
	if p.EmbeddingModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(p.EmbeddingModel))
	}
	if p.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(p.BaseURL))
	}
	return opts
}

// NewModel builds the chat model for a configured provider.
func NewModel(name string, p config.ProviderConfig) (*openai.LLM, error) {
	switch name {
	case "openai", "openrouter":
		if p.APIKey == "" {
			return nil, fmt.Errorf("provider %s: api_key is not set", name)
		}
		llm, err := openai.New(openAIOptions(p)...)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("provider %s is not supported", name)
	}
}

// NewEmbedder builds the embedder used by the vector index from the same provider client.
func NewEmbedder(client *openai.LLM) (embeddings.Embedder, error) {
	e, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return e, nil
}
