package provider

import (
	"fmt"
	"strings"

	"toolchat/model"
)

// NewProvider creates a provider based on configuration.
//
// Example:
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:    provider.ProviderTypeLMStudio,
//	    BaseURL: "http://localhost:1234/v1",
//	    Model:   "qwen2.5-7b-instruct",
//	})
func NewProvider(cfg Config) (model.Provider, error) {
	switch cfg.Type {
	case ProviderTypeLMStudio:
		return NewLMStudioProvider(cfg)
	case ProviderTypeHyperbolic:
		return NewHyperbolicProvider(cfg)
	case ProviderTypeOllama:
		return NewOllamaProvider(cfg)
	case ProviderTypeOpenRouter:
		return NewOpenRouterProvider(cfg)
	case ProviderTypeOpenAI:
		return NewOpenAIProvider(cfg)
	case ProviderTypeAnthropic:
		return NewAnthropicProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProviderType, cfg.Type)
	}
}

// MapProviderIDToType converts a configured provider name to a ProviderType.
// Unknown names are passed through unchanged and rejected by NewProvider.
func MapProviderIDToType(id string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "lmstudio", "lm-studio", "lm_studio":
		return ProviderTypeLMStudio
	case "hyperbolic":
		return ProviderTypeHyperbolic
	case "ollama":
		return ProviderTypeOllama
	case "openrouter":
		return ProviderTypeOpenRouter
	case "openai":
		return ProviderTypeOpenAI
	case "anthropic", "claude":
		return ProviderTypeAnthropic
	default:
		return ProviderType(id)
	}
}
