// Package provider implements model.Provider for each supported LLM backend.
//
// Every backend returns its completion as a stream of OpenAI-shaped
// server-sent event records, whatever wire format it speaks itself:
//
//   - lmstudio and hyperbolic are OpenAI-compatible HTTP endpoints; their
//     response body is handed back unchanged.
//   - openai and openrouter use the official OpenAI SDK; each chunk's raw JSON
//     is re-framed as a data record.
//   - anthropic uses the official Anthropic SDK; message events are translated
//     into content, tool-call and finish records.
//   - ollama uses the Ollama API client; response chunks are translated the
//     same way.
//
// Providers are created per configured model (see InitializeProviders) and
// resolved by model id at request time.
package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ProviderType identifies a backend implementation.
type ProviderType string

const (
	ProviderTypeLMStudio   ProviderType = "lmstudio"
	ProviderTypeHyperbolic ProviderType = "hyperbolic"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeAnthropic  ProviderType = "anthropic"
	ProviderTypeOllama     ProviderType = "ollama"
)

// Config holds what a backend needs to connect.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string

	// HTTPClient is used for outbound requests. nil means a client without
	// an overall timeout, since completions stream for as long as they run.
	HTTPClient *http.Client
}

var (
	ErrUnknownProviderType = errors.New("unknown provider type")
	ErrUnknownModel        = errors.New("unknown model")
	ErrMissingAPIKey       = errors.New("api key is required")
)

// StatusError is a non-2xx response from a backend before streaming started.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API Error: %d", e.StatusCode)
	}
	return fmt.Sprintf("API Error: %d - %s", e.StatusCode, e.Body)
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
