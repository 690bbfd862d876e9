package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"toolchat/mcp"
	"toolchat/model"
	"toolchat/ollama"
)

// OllamaProvider wraps ollama.Client. Ollama streams JSON objects rather
// than OpenAI records and delivers each tool call complete, so every call
// becomes a single fragment with a generated id.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider creates an Ollama provider. BaseURL defaults to
// http://localhost:11434 and Model to llama3.1:latest.
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	client, err := ollama.NewClient(cfg.BaseURL, cfg.Model, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	return &OllamaProvider{client: client}, nil
}

func (p *OllamaProvider) ID() string {
	return string(ProviderTypeOllama)
}

func (p *OllamaProvider) GenerateChatCompletion(ctx context.Context, messages []model.Message, opts model.ChatOptions) (io.ReadCloser, error) {
	ollamaMessages := ConvertToOllamaMessages(messages)

	var ollamaTools []api.Tool
	if len(opts.Tools) > 0 {
		ollamaTools = mcp.ConvertMCPToolsToOllama(opts.Tools)
	}
	chatOpts := ollama.ChatOptions{
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		NumPredict:  opts.MaxTokens,
	}

	// started receives nil once the first response arrives, or the error
	// that ended the request before it did.
	started := make(chan error, 1)
	ctx, cancel := context.WithCancel(ctx)

	stream := newPipeStream(cancel, func(e emitter) error {
		first := true
		calls := 0
		err := p.client.Chat(ctx, opts.Model, ollamaMessages, ollamaTools, chatOpts, func(resp api.ChatResponse) error {
			if first {
				first = false
				started <- nil
			}
			if err := e.content(resp.Message.Content); err != nil {
				return err
			}
			for _, call := range resp.Message.ToolCalls {
				args, err := json.Marshal(call.Function.Arguments)
				if err != nil {
					return fmt.Errorf("failed to encode tool arguments: %w", err)
				}
				if err := e.toolCall(calls, "call_"+uuid.NewString(), call.Function.Name, string(args)); err != nil {
					return err
				}
				calls++
			}
			if !resp.Done {
				return nil
			}

			reason := finishStop
			switch {
			case calls > 0:
				reason = finishToolCalls
			case resp.DoneReason == "length":
				reason = finishLength
			}
			if err := e.finish(reason); err != nil {
				return err
			}
			return e.done()
		})
		if first {
			started <- err
		}
		if err != nil {
			return fmt.Errorf("Ollama streaming error: %w", err)
		}
		return nil
	})

	if err := <-started; err != nil {
		stream.Close()
		return nil, ollamaError(err)
	}
	return stream, nil
}

func ollamaError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return &StatusError{StatusCode: statusErr.StatusCode, Body: statusErr.ErrorMessage}
	}
	return fmt.Errorf("ollama request failed: %w", err)
}

func (p *OllamaProvider) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("Ollama ping failed: %w", err)
	}
	return nil
}
