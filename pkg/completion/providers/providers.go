// Package providers constructs completion clients from configuration.
package providers

import (
	"fmt"

	"seatdesk/pkg/completion"
	"seatdesk/pkg/completion/providers/anthropic"
	"seatdesk/pkg/completion/providers/gemini"
	"seatdesk/pkg/completion/providers/ollama"
	"seatdesk/pkg/completion/providers/openai"
	"seatdesk/pkg/config"
)

// NewClient creates the completion client selected by the configuration.
// API keys resolve via the standard precedence (config, secrets file, env).
func NewClient(cfg *config.Config) (completion.Client, error) {
	provider := cfg.Completion.Provider
	model := cfg.Completion.Model

	if provider == config.ProviderOllama {
		return ollama.NewClient(cfg.Completion.Host, model), nil
	}

	apiKey, err := cfg.ResolveAPIKey()
	if err != nil {
		return nil, err
	}

	switch provider {
	case config.ProviderOpenAI:
		return openai.NewClient(apiKey, model), nil
	case config.ProviderAnthropic:
		return anthropic.NewClient(apiKey, model), nil
	case config.ProviderGemini:
		return gemini.NewClient(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", provider)
	}
}
