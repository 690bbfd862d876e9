package model

import (
	"context"
	"io"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Provider abstracts LLM backends. Each implementation turns a conversation
// into a stream of OpenAI-shaped server-sent event records:
//
//	data: {"choices":[{"delta":{"content":"Hi"}}]}
//
//	data: [DONE]
//
// regardless of the wire format its backend speaks.
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: stream and server depend on it without importing provider.
type Provider interface {
	// ID returns the backend identifier (e.g. "lmstudio", "anthropic").
	ID() string

	// GenerateChatCompletion starts a streaming completion. Errors returned here
	// happen before the first byte (bad status, unreachable backend); failures
	// after that surface as a truncated stream. The caller closes the handle.
	GenerateChatCompletion(ctx context.Context, messages []Message, opts ChatOptions) (io.ReadCloser, error)

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error
}

// ChatOptions are per-request generation parameters. Nil pointers leave the
// backend default in place.
type ChatOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
	Tools       []mcptypes.Tool
}

// Merge returns o with unset fields filled from defaults. Tools are never inherited.
func (o ChatOptions) Merge(defaults ChatOptions) ChatOptions {
	if o.Model == "" {
		o.Model = defaults.Model
	}
	if o.Temperature == nil {
		o.Temperature = defaults.Temperature
	}
	if o.MaxTokens == nil {
		o.MaxTokens = defaults.MaxTokens
	}
	if o.TopP == nil {
		o.TopP = defaults.TopP
	}
	return o
}

// ModelInfo describes a configured, selectable model.
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ToolDefinition is a tool advertised to OpenAI-compatible backends.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}
