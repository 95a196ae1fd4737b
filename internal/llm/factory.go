package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agenthands/hagglz/internal/config"
)

// NewClient builds the completion and embedding clients for one provider.
// Missing credentials yield an Unconfigured client rather than an error so a
// single agent's misconfiguration does not stop the service.
func NewClient(ctx context.Context, cfg config.LLMConfig) (LLMClient, EmbedderClient, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "openai":
		if cfg.APIKey == "" {
			u := &Unconfigured{Provider: provider, Reason: "api key is empty"}
			return u, u, nil
		}
		c := NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.EmbeddingModel, cfg.BaseURL, cfg.MaxTokens)
		return c, c, nil

	case "gemini":
		if cfg.APIKey == "" {
			u := &Unconfigured{Provider: provider, Reason: "api key is empty"}
			return u, u, nil
		}
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.EmbeddingModel, cfg.MaxTokens)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil

	case "claude":
		if cfg.APIKey == "" {
			return &Unconfigured{Provider: provider, Reason: "api key is empty"}, nil, nil
		}
		c := NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens)
		return c, nil, nil // Claude has no embeddings endpoint

	case "ollama":
		// Ollama is reached through its OpenAI-compatible API.
		baseURL := cfg.BaseURL
		if baseURL == "" {
			u := &Unconfigured{Provider: provider, Reason: "base url is empty"}
			return u, u, nil
		}
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL = fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
		}
		slog.Info("initializing ollama via openai-compatible api", "base_url", baseURL, "model", cfg.Model)

		// Ollama ignores the key but the client sends one.
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama"
		}

		c := NewOpenAIClient(apiKey, cfg.Model, cfg.EmbeddingModel, baseURL, cfg.MaxTokens)
		return c, c, nil

	default:
		return nil, nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}
