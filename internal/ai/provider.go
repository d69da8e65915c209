// Package ai turns prompts about discovered interactions into scenario
// drafts using a hosted or local language model.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/v0xg/bddgen/internal/config"
)

// Draft is the scenario a model returns for one interaction.
type Draft struct {
	FeatureName  string   `json:"feature_name"`
	ScenarioName string   `json:"scenario_name"`
	Steps        []string `json:"steps"`
}

// Provider defines the interface for model-backed scenario drafting
type Provider interface {
	Name() string
	GenerateScenario(ctx context.Context, prompt string) (*Draft, error)
}

// NewProvider creates a provider from the llm config. Provider "none"
// returns a nil Provider, which callers treat as deterministic-only.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "claude", "anthropic":
		p, err = NewClaudeProvider(cfg)
	case "openai", "gpt":
		p, err = NewOpenAIProvider(cfg)
	case "ollama":
		p, err = NewOllamaProvider(cfg)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai, ollama, none)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// parseDraftJSON extracts and parses a JSON object from a response that may
// contain surrounding text or markdown fences
func parseDraftJSON(response string) (*Draft, error) {
	var draft Draft
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &draft); err == nil {
		return checkDraft(&draft)
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	// Find matching closing brace, skipping braces inside strings
	depth := 0
	end := -1
	inString := false
	escaped := false
	for i := start; i < len(response) && end == -1; i++ {
		c := response[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
	}

	if end == -1 {
		return nil, fmt.Errorf("no matching closing brace found")
	}

	if err := json.Unmarshal([]byte(response[start:end]), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse extracted JSON: %w", err)
	}
	return checkDraft(&draft)
}

func checkDraft(d *Draft) (*Draft, error) {
	if len(d.Steps) == 0 {
		return nil, fmt.Errorf("draft has no steps")
	}
	return d, nil
}
