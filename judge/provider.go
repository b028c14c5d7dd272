package judge

import (
	"context"
	"fmt"
	"strings"
)

// Config selects the evaluator backend.
type Config struct {
	Provider  string
	Model     string
	Region    string
	APIKey    string
	MaxTokens int
}

// NewEvaluator builds the evaluator for cfg.Provider: bedrock, anthropic,
// openai or none.
func NewEvaluator(ctx context.Context, cfg Config) (Evaluator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == "none" {
		return DisabledEvaluator{}, nil
	}
	c, err := NewCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewLLMEvaluator(c), nil
}

// NewCompleter builds the model client for cfg.Provider: bedrock, anthropic
// or openai.
func NewCompleter(ctx context.Context, cfg Config) (Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Model == "" {
		return nil, fmt.Errorf("judge.model is required for provider %q", provider)
	}

	switch provider {
	case "bedrock":
		if cfg.Region == "" {
			return nil, fmt.Errorf("judge.region is required for provider bedrock")
		}
		c, err := NewBedrockCompleter(ctx, cfg.Region, cfg.Model, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		return c, nil

	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("judge.api_key is required for provider anthropic")
		}
		return NewAnthropicCompleter(cfg.APIKey, cfg.Model, cfg.MaxTokens), nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("judge.api_key is required for provider openai")
		}
		return NewOpenAICompleter(cfg.APIKey, cfg.Model, cfg.MaxTokens), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}
