package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

const DefaultTimeout = 30 * time.Second

// Call is a completed tool invocation request.
type Call struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Result is the outcome of one Call. Exactly one of Data / Error is meaningful,
// selected by Success.
type Result struct {
	ID       string `json:"id"`
	ToolName string `json:"toolName"`
	Success  bool   `json:"success"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Invoker executes calls against a Registry. It never returns an error: every
// failure mode becomes an unsuccessful Result.
type Invoker struct {
	registry *Registry
	logger   *slog.Logger
	timeout  time.Duration
}

type InvokerOption func(*Invoker)

// WithTimeout bounds each tool execution. Zero disables the bound.
func WithTimeout(d time.Duration) InvokerOption {
	return func(iv *Invoker) { iv.timeout = d }
}

func WithLogger(logger *slog.Logger) InvokerOption {
	return func(iv *Invoker) { iv.logger = logger }
}

func NewInvoker(registry *Registry, opts ...InvokerOption) *Invoker {
	iv := &Invoker{
		registry: registry,
		logger:   slog.New(slog.DiscardHandler),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(iv)
	}
	iv.logger = iv.logger.With("component", "tools")
	return iv
}

func (iv *Invoker) Registry() *Registry {
	return iv.registry
}

// Invoke parses the call's arguments, resolves the tool and runs it.
func (iv *Invoker) Invoke(ctx context.Context, call Call) Result {
	res := Result{ID: call.ID, ToolName: call.Name}

	args, err := ParseArguments(call.Arguments)
	if err != nil {
		iv.logger.Warn("tool arguments are not valid JSON", "tool", call.Name, "id", call.ID, "error", err)
		res.Error = err.Error()
		return res
	}

	tool, err := iv.registry.Get(call.Name)
	if err != nil {
		iv.logger.Warn("tool not found", "tool", call.Name, "id", call.ID, "error", err)
		res.Error = err.Error()
		return res
	}

	if err := tool.Validate(args); err != nil {
		iv.logger.Warn("tool arguments rejected", "tool", call.Name, "id", call.ID, "error", err)
		res.Error = err.Error()
		return res
	}

	start := time.Now()
	data, err := iv.run(ctx, tool, args)
	if err != nil {
		iv.logger.Warn("tool execution failed", "tool", call.Name, "id", call.ID, "duration", time.Since(start), "error", err)
		res.Error = err.Error()
		if res.Error == "" {
			res.Error = "Tool execution failed"
		}
		return res
	}

	iv.logger.Debug("tool executed", "tool", call.Name, "id", call.ID, "duration", time.Since(start))
	res.Success = true
	res.Data = data
	return res
}

func (iv *Invoker) run(ctx context.Context, tool *Tool, args map[string]any) (data any, err error) {
	if iv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, iv.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			iv.logger.Error("tool panicked", "tool", tool.Name, "panic", r, "stack", string(debug.Stack()))
			data, err = nil, fmt.Errorf("tool %s panicked: %v", tool.Name, r)
		}
	}()

	data, err = tool.Func(ctx, args)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("tool %s timed out after %s: %w", tool.Name, iv.timeout, err)
	}
	return data, err
}

// InvokeAll runs calls concurrently. Results are in the order of calls.
func (iv *Invoker) InvokeAll(ctx context.Context, calls []Call) []Result {
	results := make([]Result, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = iv.Invoke(ctx, call)
		}()
	}
	wg.Wait()

	return results
}

// ParseArguments decodes a tool call's accumulated argument string. A blank
// string means "no arguments".
func ParseArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after arguments object", ErrInvalidArguments)
	}
	if args == nil {
		return nil, fmt.Errorf("%w: arguments must be a JSON object", ErrInvalidArguments)
	}
	return args, nil
}

// Summary renders one status line per result, in call order:
// "✅ <tool>: Successfully executed" or "❌ <tool>: <error>".
func Summary(results []Result) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		if r.Success {
			lines = append(lines, fmt.Sprintf("✅ %s: Successfully executed", r.ToolName))
			continue
		}
		lines = append(lines, fmt.Sprintf("❌ %s: %s", r.ToolName, r.Error))
	}
	return strings.Join(lines, "\n")
}

// FormatResults renders a batch of results as markdown sections, one per call.
func FormatResults(results []Result) string {
	sections := make([]string, 0, len(results))
	for _, r := range results {
		if r.Success {
			sections = append(sections, fmt.Sprintf("### %s\n%s", r.ToolName, Format(r.ToolName, r.Data)))
			continue
		}
		sections = append(sections, fmt.Sprintf("### ❌ %s\nError: %s", r.ToolName, r.Error))
	}
	return strings.Join(sections, "\n\n")
}
