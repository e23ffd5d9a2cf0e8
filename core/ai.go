package core

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// AIClient wraps the OpenAI chat completion API for insight generation.
type AIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewAIClient creates an AIClient from the agent configuration.
// Returns nil if no API key is configured; callers treat a nil client as
// "deterministic summaries only".
func NewAIClient(cfg *Config) *AIClient {
	if !cfg.HasOpenAI() {
		return nil
	}

	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}

	return &AIClient{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.OpenAIModel,
		maxTokens: cfg.AIMaxTokens,
	}
}

// Generate produces a completion for the given system role and user prompt.
func (a *AIClient) Generate(ctx context.Context, systemRole, userPrompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: a.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemRole,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userPrompt,
				},
			},
			MaxTokens: a.maxTokens,
		},
	)

	if err != nil {
		return "", fmt.Errorf("failed to generate AI response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned from OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}
