package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"toolchat/mcp"
	"toolchat/model"
)

// OpenAIProvider implements model.Provider using OpenAI's official Go SDK.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates an OpenAI provider. BaseURL defaults to
// https://api.openai.com/v1 and Model to gpt-4o-mini; an API key is required.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	return &OpenAIProvider{
		client: newOpenAIClient(cfg),
		model:  cfg.Model,
	}, nil
}

func newOpenAIClient(cfg Config) openai.Client {
	return openai.NewClient(
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.httpClient()),
	)
}

func (p *OpenAIProvider) ID() string {
	return string(ProviderTypeOpenAI)
}

func (p *OpenAIProvider) GenerateChatCompletion(ctx context.Context, messages []model.Message, opts model.ChatOptions) (io.ReadCloser, error) {
	tools := encodeToolNames(opts.Tools)
	params := openAIParams(encodeMessageToolNames(withToolInstructions(messages, tools)), opts, p.model)
	if len(tools) > 0 {
		params.Tools = mcp.ConvertMCPToolsToOpenAIFormat(tools)
	}
	return streamOpenAI(ctx, p.client, params, restoreToolNames)
}

// Ping lists models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("OpenAI ping failed: %w", err)
	}
	return nil
}

func openAIParams(messages []model.Message, opts model.ChatOptions, defaultModel string) openai.ChatCompletionNewParams {
	modelName := opts.Model
	if modelName == "" {
		modelName = defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(messages),
		Model:    openai.ChatModel(modelName),
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*opts.MaxTokens))
	}
	if opts.TopP != nil {
		params.TopP = openai.Float(*opts.TopP)
	}
	return params
}

// streamOpenAI starts a streaming completion and re-frames every chunk's raw
// JSON as a data record. The first chunk is read before returning so that
// request errors are reported to the caller instead of inside the stream.
// rewrite, when set, may alter each chunk's JSON before it is written.
func streamOpenAI(ctx context.Context, client openai.Client, params openai.ChatCompletionNewParams, rewrite func(string) string) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream := client.Chat.Completions.NewStreaming(ctx, params)

	first := stream.Next()
	if !first {
		if err := stream.Err(); err != nil {
			stream.Close()
			cancel()
			return nil, sdkError(err)
		}
	}

	return newPipeStream(cancel, func(e emitter) error {
		defer stream.Close()

		for ok := first; ok; ok = stream.Next() {
			raw := stream.Current().RawJSON()
			if rewrite != nil {
				raw = rewrite(raw)
			}
			if err := e.raw(raw); err != nil {
				return err
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("OpenAI streaming error: %w", err)
		}
		return e.done()
	}), nil
}

// sdkError turns SDK API errors into *StatusError.
func sdkError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
	}
	return err
}
