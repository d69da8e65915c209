package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/v0xg/bddgen/internal/config"
)

// ClaudeProvider implements the Provider interface using Anthropic's Claude
type ClaudeProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewClaudeProvider creates a new Claude provider
func NewClaudeProvider(cfg config.LLMConfig) (*ClaudeProvider, error) {
	apiKey := os.Getenv("BDDGEN_ANTHROPIC_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("BDDGEN_ANTHROPIC_KEY or ANTHROPIC_API_KEY environment variable required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}

	return &ClaudeProvider{
		client:    &client,
		model:     model,
		maxTokens: maxTokensOrDefault(cfg.MaxTokens),
		timeout:   cfg.Timeout,
	}, nil
}

// Name returns the provider name.
func (p *ClaudeProvider) Name() string { return "claude" }

// GenerateScenario asks Claude for a scenario draft.
func (p *ClaudeProvider) GenerateScenario(ctx context.Context, prompt string) (*Draft, error) {
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(withJSONInstruction(prompt))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Claude API error: %w", err)
	}

	// Extract text content
	var responseText string
	for _, block := range resp.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}

	if responseText == "" {
		return nil, fmt.Errorf("empty response from Claude")
	}

	draft, err := parseDraftJSON(responseText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Claude response as JSON: %w\nResponse: %s", err, responseText)
	}

	return draft, nil
}
