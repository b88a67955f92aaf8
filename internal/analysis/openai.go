package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// OpenAIExtractor extracts keywords with an OpenAI-compatible chat API
type OpenAIExtractor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIExtractor creates an extractor. BaseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAIExtractor(cfg model.LLMConfig) (*OpenAIExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	name := cfg.Model
	if name == "" {
		name = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIExtractor{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   name,
		timeout: timeout,
	}, nil
}

// Name returns the provider name
func (e *OpenAIExtractor) Name() string {
	return "openai"
}

// ExtractKeywords asks the model for a keyword list
func (e *OpenAIExtractor) ExtractKeywords(ctx context.Context, text string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(text)},
		},
		MaxTokens:   100,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	return ParseKeywords(resp.Choices[0].Message.Content), nil
}
