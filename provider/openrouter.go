package provider

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go/v3"

	"toolchat/mcp"
	"toolchat/model"
)

// OpenRouterProvider implements model.Provider for OpenRouter, which speaks
// the OpenAI API.
type OpenRouterProvider struct {
	client openai.Client
	model  string
}

func NewOpenRouterProvider(cfg Config) (*OpenRouterProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter: %w", ErrMissingAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = "meta-llama/llama-3.2-90b-instruct"
	}

	return &OpenRouterProvider{
		client: newOpenAIClient(cfg),
		model:  cfg.Model,
	}, nil
}

func (p *OpenRouterProvider) ID() string {
	return string(ProviderTypeOpenRouter)
}

func (p *OpenRouterProvider) GenerateChatCompletion(ctx context.Context, messages []model.Message, opts model.ChatOptions) (io.ReadCloser, error) {
	modelName := opts.Model
	if modelName == "" {
		modelName = p.model
	}
	tools := encodeToolNames(opts.Tools)
	if !shouldSkipToolInstructions(modelName) {
		messages = withToolInstructions(messages, tools)
	}

	params := openAIParams(encodeMessageToolNames(messages), opts, p.model)
	if len(tools) > 0 {
		params.Tools = mcp.ConvertMCPToolsToOpenAIFormat(tools)
	}
	return streamOpenAI(ctx, p.client, params, restoreToolNames)
}

func (p *OpenRouterProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("OpenRouter ping failed: %w", err)
	}
	return nil
}

// stripProviderPrefix removes the vendor part of an OpenRouter model name.
// Example: "meta-llama/llama-3.2-90b-instruct" -> "llama-3.2-90b-instruct"
func stripProviderPrefix(modelName string) string {
	if idx := strings.Index(modelName, "/"); idx != -1 {
		return modelName[idx+1:]
	}
	return modelName
}
