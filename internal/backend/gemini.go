package backend

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiBackend implements Backend using Gemini text generation.
type GeminiBackend struct {
	client        *genai.Client
	model         string
	promptBuilder *PromptBuilder
}

func NewGeminiBackend(ctx context.Context, apiKey string, modelName string) (*GeminiBackend, error) {
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiBackend{
		client:        client,
		model:         modelName,
		promptBuilder: &PromptBuilder{},
	}, nil
}

func (g *GeminiBackend) Name() string {
	return "gemini"
}

func (g *GeminiBackend) Expand(ctx context.Context, inv Invocation) (string, error) {
	prompt := g.promptBuilder.BuildExpandPrompt(inv)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	text := cleanCodeOutput(resp.Text())
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}
