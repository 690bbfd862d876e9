package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"toolchat/mcp"
	"toolchat/model"
)

// AnthropicProvider implements model.Provider using Anthropic's official Go
// SDK. Message stream events are translated into OpenAI-shaped records.
type AnthropicProvider struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicProvider creates an Anthropic provider. BaseURL defaults to
// https://api.anthropic.com; an API key is required.
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if cfg.Model != "" {
		anthropicModel = anthropic.Model(cfg.Model)
	}

	client := anthropic.NewClient(
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.httpClient()),
	)

	return &AnthropicProvider{
		client:    &client,
		model:     anthropicModel,
		maxTokens: 4096, // required by the API
	}, nil
}

func (p *AnthropicProvider) ID() string {
	return string(ProviderTypeAnthropic)
}

func (p *AnthropicProvider) GenerateChatCompletion(ctx context.Context, messages []model.Message, opts model.ChatOptions) (io.ReadCloser, error) {
	anthropicMessages, systemPrompt := convertToAnthropicMessages(encodeMessageToolNames(messages))

	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  anthropicMessages,
		MaxTokens: p.maxTokens,
	}
	if opts.Model != "" {
		params.Model = anthropic.Model(opts.Model)
	}
	if opts.MaxTokens != nil {
		params.MaxTokens = int64(*opts.MaxTokens)
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}
	if opts.TopP != nil {
		params.TopP = anthropic.Float(*opts.TopP)
	}
	if len(opts.Tools) > 0 {
		tools := encodeToolNames(opts.Tools)
		// Tool instructions go first, then the conversation's own system prompts.
		systemPrompt = append([]anthropic.TextBlockParam{{Text: buildToolInstructions(tools)}}, systemPrompt...)
		params.Tools = mcp.ConvertMCPToolsToAnthropicFormat(tools)
	}
	if len(systemPrompt) > 0 {
		params.System = systemPrompt
	}

	ctx, cancel := context.WithCancel(ctx)
	stream := p.client.Messages.NewStreaming(ctx, params)

	first := stream.Next()
	if !first {
		if err := stream.Err(); err != nil {
			stream.Close()
			cancel()
			return nil, anthropicError(err)
		}
	}

	return newPipeStream(cancel, func(e emitter) error {
		defer stream.Close()

		tr := newAnthropicTranslator()
		for ok := first; ok; ok = stream.Next() {
			if err := tr.event(stream.Current(), e); err != nil {
				return err
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("Anthropic streaming error: %w", err)
		}
		if !tr.finished {
			if err := e.finish(finishStop); err != nil {
				return err
			}
		}
		return e.done()
	}), nil
}

// anthropicTranslator maps content block indexes of tool_use blocks to
// consecutive tool-call indexes and remembers the stop reason.
type anthropicTranslator struct {
	toolIndex  map[int64]int
	stopReason anthropic.StopReason
	finished   bool
}

func newAnthropicTranslator() *anthropicTranslator {
	return &anthropicTranslator{toolIndex: make(map[int64]int)}
}

func (t *anthropicTranslator) event(event anthropic.MessageStreamEventUnion, e emitter) error {
	switch ev := event.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		if ev.ContentBlock.Type != "tool_use" {
			return nil
		}
		idx := len(t.toolIndex)
		t.toolIndex[ev.Index] = idx
		return e.toolCall(idx, ev.ContentBlock.ID, decodeToolName(ev.ContentBlock.Name), "")

	case anthropic.ContentBlockDeltaEvent:
		switch delta := ev.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			return e.content(delta.Text)
		case anthropic.InputJSONDelta:
			idx, ok := t.toolIndex[ev.Index]
			if !ok || delta.PartialJSON == "" {
				return nil
			}
			return e.toolCall(idx, "", "", delta.PartialJSON)
		}

	case anthropic.MessageDeltaEvent:
		t.stopReason = ev.Delta.StopReason

	case anthropic.MessageStopEvent:
		t.finished = true
		return e.finish(finishReason(t.stopReason))
	}
	return nil
}

// finishReason maps Anthropic stop reasons onto OpenAI finish reasons.
func finishReason(reason anthropic.StopReason) string {
	switch reason {
	case anthropic.StopReasonToolUse:
		return finishToolCalls
	case anthropic.StopReasonMaxTokens:
		return finishLength
	default:
		return finishStop
	}
}

func anthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
	}
	return err
}

// Ping sends a one-token request since Anthropic has no health endpoint.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}
