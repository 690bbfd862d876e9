package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvoker(t *testing.T, opts ...InvokerOption) *Invoker {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(echoTool("demo.echo")))
	require.NoError(t, reg.Register(Tool{
		Name: "demo.fail",
		Func: func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("upstream exploded")
		},
	}))
	require.NoError(t, reg.Register(Tool{
		Name: "demo.panic",
		Func: func(context.Context, map[string]any) (any, error) {
			panic("boom")
		},
	}))
	require.NoError(t, reg.Register(Tool{
		Name: "demo.slow",
		Func: func(ctx context.Context, _ map[string]any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}))
	return NewInvoker(reg, opts...)
}

func TestInvoke(t *testing.T) {
	iv := newTestInvoker(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		call        Call
		wantSuccess bool
		wantErr     string
	}{
		{
			name:        "success",
			call:        Call{ID: "c1", Name: "demo.echo", Arguments: `{"text":"hi"}`},
			wantSuccess: true,
		},
		{
			name:    "malformed arguments",
			call:    Call{ID: "c2", Name: "demo.echo", Arguments: `{"text":`},
			wantErr: "invalid tool arguments",
		},
		{
			name:    "unknown tool",
			call:    Call{ID: "c3", Name: "demo.missing", Arguments: `{}`},
			wantErr: "tool not found",
		},
		{
			name:    "schema violation",
			call:    Call{ID: "c4", Name: "demo.echo", Arguments: `{}`},
			wantErr: "invalid tool arguments",
		},
		{
			name:    "tool error",
			call:    Call{ID: "c5", Name: "demo.fail"},
			wantErr: "upstream exploded",
		},
		{
			name:    "panic recovered",
			call:    Call{ID: "c6", Name: "demo.panic"},
			wantErr: "tool demo.panic panicked: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := iv.Invoke(ctx, tt.call)
			assert.Equal(t, tt.call.ID, res.ID)
			assert.Equal(t, tt.call.Name, res.ToolName)
			assert.Equal(t, tt.wantSuccess, res.Success)
			if tt.wantErr != "" {
				assert.Contains(t, res.Error, tt.wantErr)
				assert.Nil(t, res.Data)
			} else {
				assert.Empty(t, res.Error)
			}
		})
	}
}

func TestInvoke_Timeout(t *testing.T) {
	iv := newTestInvoker(t, WithTimeout(20*time.Millisecond))

	res := iv.Invoke(context.Background(), Call{ID: "t", Name: "demo.slow"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timed out")
}

func TestInvokeAll_PreservesOrder(t *testing.T) {
	iv := newTestInvoker(t)

	results := iv.InvokeAll(context.Background(), []Call{
		{ID: "1", Name: "demo.fail"},
		{ID: "2", Name: "demo.echo", Arguments: `{"text":"a"}`},
		{ID: "3", Name: "demo.echo", Arguments: `{"text":"b"}`},
	})

	require.Len(t, results, 3)
	for i, want := range []string{"1", "2", "3"} {
		assert.Equal(t, want, results[i].ID)
	}
	assert.False(t, results[0].Success)
	assert.Equal(t, map[string]any{"text": "b"}, results[2].Data)

	lines := strings.Split(Summary(results), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "❌ demo.fail: "+results[0].Error, lines[0])
	assert.Equal(t, "✅ demo.echo: Successfully executed", lines[1])
	assert.Equal(t, "✅ demo.echo: Successfully executed", lines[2])
}

func TestParseArguments(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]any
		wantErr bool
	}{
		{name: "blank", raw: "", want: map[string]any{}},
		{name: "whitespace", raw: "  \n", want: map[string]any{}},
		{name: "object", raw: `{"query":"laptops","limit":5}`, want: map[string]any{"query": "laptops", "limit": 5.0}},
		{name: "truncated", raw: `{"query":"lap`, wantErr: true},
		{name: "array", raw: `[1,2]`, wantErr: true},
		{name: "null", raw: `null`, wantErr: true},
		{name: "trailing data", raw: `{"a":1}}`, wantErr: true},
		{name: "two objects", raw: `{"a":1}{"b":2}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArguments(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArguments)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatResults(t *testing.T) {
	results := []Result{
		{ID: "1", ToolName: "wikipedia.search", Success: true, Data: WikipediaResponse{Status: "success", Title: "Go", Content: "A language."}},
		{ID: "2", ToolName: "opsgenie.getAlerts", Error: "OpsGenie API error: 401 Unauthorized"},
	}

	want := "### wikipedia.search\nGo\n\nA language.\n\n### ❌ opsgenie.getAlerts\nError: OpsGenie API error: 401 Unauthorized"
	assert.Equal(t, want, FormatResults(results))
}
