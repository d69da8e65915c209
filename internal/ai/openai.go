package ai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/v0xg/bddgen/internal/config"
)

const defaultOllamaModel = "llama3.2:latest"

// OpenAIProvider implements the Provider interface using the OpenAI chat
// completions API. Ollama is served by the same client through its
// OpenAI-compatible endpoint.
type OpenAIProvider struct {
	client    *openai.Client
	name      string
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(cfg config.LLMConfig) (*OpenAIProvider, error) {
	apiKey := os.Getenv("BDDGEN_OPENAI_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("BDDGEN_OPENAI_KEY or OPENAI_API_KEY environment variable required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}

	return &OpenAIProvider{
		client:    openai.NewClient(apiKey),
		name:      "openai",
		model:     model,
		maxTokens: maxTokensOrDefault(cfg.MaxTokens),
		timeout:   cfg.Timeout,
	}, nil
}

// NewOllamaProvider creates a provider backed by a local Ollama server.
func NewOllamaProvider(cfg config.LLMConfig) (*OpenAIProvider, error) {
	if cfg.OllamaURL == "" {
		return nil, fmt.Errorf("ollama_url is required for the ollama provider")
	}

	clientCfg := openai.DefaultConfig("ollama")
	clientCfg.BaseURL = strings.TrimRight(cfg.OllamaURL, "/") + "/v1"

	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientCfg),
		name:      "ollama",
		model:     model,
		maxTokens: maxTokensOrDefault(cfg.MaxTokens),
		timeout:   cfg.Timeout,
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return p.name }

// GenerateScenario asks the chat model for a scenario draft.
func (p *OpenAIProvider) GenerateScenario(ctx context.Context, prompt string) (*Draft, error) {
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: p.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: withJSONInstruction(prompt),
				},
			},
			MaxTokens:   p.maxTokens,
			Temperature: jsonTemperature,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s API error: %w", p.name, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from %s", p.name)
	}

	responseText := resp.Choices[0].Message.Content

	draft, err := parseDraftJSON(responseText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s response as JSON: %w\nResponse: %s", p.name, err, responseText)
	}

	return draft, nil
}
