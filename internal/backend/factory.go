package backend

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Options struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Command  []string
	Timeout  time.Duration
	Dir      string // working directory for the command provider
}

func NewBackend(ctx context.Context, opts Options) (Backend, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "command"
	}

	switch provider {
	case "command":
		return NewCommandBackend(opts.Command, opts.Timeout, opts.Dir)
	case "gemini":
		if strings.TrimSpace(opts.APIKey) == "" {
			return nil, fmt.Errorf("gemini backend requires an api key")
		}
		return NewGeminiBackend(ctx, opts.APIKey, opts.Model)
	case "openai":
		return NewOpenAIBackend(opts.APIKey, opts.Model, opts.BaseURL, opts.Timeout), nil
	case "ollama":
		return NewOllamaBackend(opts.Model, opts.BaseURL, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported backend provider: %s", opts.Provider)
	}
}
