package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Provider identifies a generation backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderOllama Provider = "ollama"
)

// ErrUnknownProvider is returned when a backend identifier is not
// recognized. This is a configuration error: it surfaces before any
// network activity.
var ErrUnknownProvider = errors.New("unknown provider")

// Config selects and configures a backend adapter.
type Config struct {
	Provider Provider
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// New creates the backend adapter for cfg.Provider. Missing API keys fall
// back to the conventional environment variables.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		oc := DefaultOpenAIConfig(firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY")))
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		if cfg.Timeout > 0 {
			oc.Timeout = cfg.Timeout
		}
		return NewOpenAIClientWithConfig(oc), nil

	case ProviderGemini:
		return NewGeminiClient(ctx, firstNonEmpty(cfg.APIKey, os.Getenv("GEMINI_API_KEY")))

	case ProviderOllama:
		oc := DefaultOllamaConfig()
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		if cfg.Timeout > 0 {
			oc.Timeout = cfg.Timeout
		}
		return NewOllamaClient(oc), nil

	default:
		return nil, fmt.Errorf("%w: %q (valid: openai, gemini, ollama)", ErrUnknownProvider, cfg.Provider)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
