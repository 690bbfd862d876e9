package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/sjson"

	"toolchat/model"
)

// OpenAICompatProvider talks to any endpoint that implements OpenAI's
// /chat/completions with stream=true. The response body already is the
// record stream, so it is returned as is.
type OpenAICompatProvider struct {
	id      string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

type chatRequest struct {
	Model       string                 `json:"model"`
	Messages    []model.Message        `json:"messages"`
	Temperature *float64               `json:"temperature,omitempty"`
	MaxTokens   *int                   `json:"max_tokens,omitempty"`
	TopP        *float64               `json:"top_p,omitempty"`
	Tools       []model.ToolDefinition `json:"tools,omitempty"`
}

// NewLMStudioProvider creates a provider for a local LM Studio server.
// No API key is sent unless one is configured.
func NewLMStudioProvider(cfg Config) (*OpenAICompatProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:1234/v1"
	}
	return newOpenAICompat(string(ProviderTypeLMStudio), cfg), nil
}

// NewHyperbolicProvider creates a provider for Hyperbolic's hosted models.
func NewHyperbolicProvider(cfg Config) (*OpenAICompatProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.hyperbolic.xyz/v1"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("hyperbolic: %w", ErrMissingAPIKey)
	}
	return newOpenAICompat(string(ProviderTypeHyperbolic), cfg), nil
}

func newOpenAICompat(id string, cfg Config) *OpenAICompatProvider {
	return &OpenAICompatProvider{
		id:      id,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  cfg.httpClient(),
	}
}

func (p *OpenAICompatProvider) ID() string {
	return p.id
}

func (p *OpenAICompatProvider) GenerateChatCompletion(ctx context.Context, messages []model.Message, opts model.ChatOptions) (io.ReadCloser, error) {
	body, err := p.requestBody(messages, opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", p.id, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp.Body, nil
}

func (p *OpenAICompatProvider) requestBody(messages []model.Message, opts model.ChatOptions) ([]byte, error) {
	modelName := opts.Model
	if modelName == "" {
		modelName = p.model
	}

	body, err := json.Marshal(chatRequest{
		Model:       modelName,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		TopP:        opts.TopP,
		Tools:       toolDefinitions(opts.Tools),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return sjson.SetBytes(body, "stream", true)
}

func (p *OpenAICompatProvider) endpoint() string {
	if strings.HasSuffix(p.baseURL, "/chat/completions") {
		return p.baseURL
	}
	return p.baseURL + "/chat/completions"
}

// Ping lists the server's models.
func (p *OpenAICompatProvider) Ping(ctx context.Context) error {
	url := strings.TrimSuffix(p.baseURL, "/chat/completions") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s ping failed: %w", p.id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	return nil
}

// statusError reads at most 4KiB of an error body.
func statusError(resp *http.Response) *StatusError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
