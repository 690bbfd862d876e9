// Package tools holds the tool registry, the invoker that executes resolved
// tool calls, the result formatter and the built-in tools.
//
// Tools are named <domain>.<action> (product.search, opsgenie.getAlerts).
// Tools from MCP servers are registered as <server>.<tool>.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/sahilm/fuzzy"

	"toolchat/model"
)

var (
	ErrToolNotFound      = errors.New("tool not found")
	ErrDuplicateTool     = errors.New("tool already registered")
	ErrInvalidArguments  = errors.New("invalid tool arguments")
	ErrInvalidDefinition = errors.New("invalid tool definition")
)

// Func executes a tool. args is the decoded JSON arguments object.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Tool pairs an invocable function with the schema advertised to the model.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object describing args.
	Parameters map[string]any
	Func       Func

	validator *jsonschema.Resolved
}

// Registry maps tool names to tools. Registration happens at startup; lookups
// are safe from any number of concurrent requests.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register validates and compiles the tool's schema and adds it.
func (r *Registry) Register(t Tool) error {
	switch {
	case t.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	case t.Func == nil:
		return fmt.Errorf("%w: %s has no function", ErrInvalidDefinition, t.Name)
	}
	if t.Parameters == nil {
		t.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	resolved, err := compileSchema(t.Parameters)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, t.Name, err)
	}
	t.validator = resolved

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
	}
	r.tools[t.Name] = &t
	return nil
}

// Get returns the named tool. A miss wraps ErrToolNotFound and, when a
// registered name is close, suggests it.
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	if suggestion := r.closest(name); suggestion != "" {
		return nil, fmt.Errorf("%w: %s (did you mean %s?)", ErrToolNotFound, name, suggestion)
	}
	return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
}

func (r *Registry) closest(name string) string {
	if name == "" {
		return ""
	}
	names := r.Names()
	matches := fuzzy.Find(name, names)
	if len(matches) > 0 {
		return matches[0].Str
	}
	// Models often drop the domain prefix.
	for _, n := range names {
		if strings.HasSuffix(n, "."+name) {
			return n
		}
	}
	return ""
}

// Names returns registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Tools returns every tool as an MCP tool description, sorted by name. This is
// the shape backends convert into their own tool parameters.
func (r *Registry) Tools() []mcptypes.Tool {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcptypes.Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name].MCP())
	}
	return out
}

// Definitions returns the OpenAI function-tool form of every tool, sorted by name.
func (r *Registry) Definitions() []model.ToolDefinition {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		out = append(out, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// MCP converts the tool's schema into an mcp-go tool description.
func (t *Tool) MCP() mcptypes.Tool {
	schema := mcptypes.ToolInputSchema{Type: "object"}
	if typ, ok := t.Parameters["type"].(string); ok {
		schema.Type = typ
	}
	if props, ok := t.Parameters["properties"].(map[string]any); ok {
		schema.Properties = props
	}
	schema.Required = stringSlice(t.Parameters["required"])
	if defs, ok := t.Parameters["$defs"].(map[string]any); ok {
		schema.Defs = defs
	}
	return mcptypes.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}

// Validate checks decoded arguments against the tool's schema.
func (t *Tool) Validate(args map[string]any) error {
	if t.validator == nil {
		return nil
	}
	if err := t.validator.Validate(args); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

func compileSchema(params map[string]any) (*jsonschema.Resolved, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.Resolve(nil)
}

func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
