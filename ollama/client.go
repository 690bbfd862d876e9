package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

type Client struct {
	client  *api.Client
	model   string
	baseURL string
}

// ChatOptions are the sampling parameters passed as request options.
// Nil fields are left to the model's defaults.
type ChatOptions struct {
	Temperature *float64
	TopP        *float64
	NumPredict  *int
}

func (o ChatOptions) toMap() map[string]any {
	opts := make(map[string]any)
	if o.Temperature != nil {
		opts["temperature"] = *o.Temperature
	}
	if o.TopP != nil {
		opts["top_p"] = *o.TopP
	}
	if o.NumPredict != nil {
		opts["num_predict"] = *o.NumPredict
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

// ResponseFunc receives each streamed response chunk.
type ResponseFunc func(resp api.ChatResponse) error

func NewClient(baseURL, model string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1:latest"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &Client{
		client:  api.NewClient(parsedURL, httpClient),
		model:   model,
		baseURL: baseURL,
	}, nil
}

// Chat streams a chat request. model overrides the client's model when set.
// Tools are only sent to models known to support tool calling.
func (c *Client) Chat(ctx context.Context, model string, messages []api.Message, tools []api.Tool, opts ChatOptions, fn ResponseFunc) error {
	if model == "" {
		model = c.model
	}
	req := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   func(b bool) *bool { return &b }(true),
		Options:  opts.toMap(),
	}
	if len(tools) > 0 && ModelSupportsToolCalling(model) {
		req.Tools = tools
	}

	return c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		return fn(resp)
	})
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.List(ctx)
	return err
}

// toolCallingModels is a curated list of model families and whether they
// support Ollama's tool calling API.
var toolCallingModels = map[string]bool{
	"qwen":      true,
	"llama3.1":  true,
	"llama3.2":  true,
	"llama3.3":  true,
	"mistral":   true,
	"command-r": true,
	"nemotron":  true,
	"granite3":  true,

	"llama3-gradient": false,
	"llama3":          false, // original llama3, not 3.1+
	"phi":             false,
	"gemma":           false,
	"codellama":       false,
	"deepseek":        false,
}

// orderedPrefixes lists the most specific prefixes first so that llama3.2
// is not matched as llama3.
var orderedPrefixes = []string{
	"llama3.3", "llama3.2", "llama3.1",
	"llama3-gradient",
	"command-r", "qwen", "mistral", "nemotron", "granite3",
	"codellama",
	"llama3",
	"deepseek", "phi", "gemma",
}

// ModelSupportsToolCalling reports whether modelName is known to support
// tool calling. Unknown models are assumed not to.
func ModelSupportsToolCalling(modelName string) bool {
	modelName = strings.ToLower(modelName)

	for _, prefix := range orderedPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			return toolCallingModels[prefix]
		}
	}
	return false
}
