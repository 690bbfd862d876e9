package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"toolchat/model"
	"toolchat/provider/testutil"
)

func TestEncodeToolNames(t *testing.T) {
	tools := testutil.TestMCPTools()
	encoded := encodeToolNames(tools)

	assert.Equal(t, "opsgenie__getAlerts", encoded[0].Name)
	assert.Equal(t, "product__search", encoded[1].Name)
	assert.Equal(t, "opsgenie.getAlerts", tools[0].Name, "input must not be modified")
}

func TestEncodeMessageToolNames(t *testing.T) {
	conv := testutil.ToolConversation()
	encoded := encodeMessageToolNames(conv)

	assert.Equal(t, "opsgenie__getAlerts", encoded[2].ToolCalls[0].Function.Name)
	assert.Equal(t, "opsgenie.getAlerts", conv[2].ToolCalls[0].Function.Name)
	assert.Equal(t, conv[3], encoded[3])
}

func TestRestoreToolNames(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "content untouched",
			in:   `{"choices":[{"delta":{"content":"a__b"}}]}`,
			want: `{"choices":[{"delta":{"content":"a__b"}}]}`,
		},
		{
			name: "second entry renamed",
			in:   `{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{"}},{"index":1,"function":{"name":"mcp__fs__read"}}]}}]}`,
			want: `{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{"}},{"index":1,"function":{"name":"mcp.fs.read"}}]}}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, restoreToolNames(tt.in))
		})
	}
}

func TestWithToolInstructions(t *testing.T) {
	msgs := testutil.SingleUserMessage("hi")
	assert.Equal(t, msgs, withToolInstructions(msgs, nil))

	out := withToolInstructions(msgs, testutil.TestMCPTools())
	assert.Len(t, out, 2)
	assert.Equal(t, model.RoleSystem, out[0].Role)
	assert.Contains(t, out[0].Content, "TOOLS: opsgenie.getAlerts, product.search")

	assert.True(t, shouldSkipToolInstructions("qwen/qwen-2.5-72b-instruct"))
	assert.False(t, shouldSkipToolInstructions("gpt-4o"))
	assert.Equal(t, "llama-3.2-90b-instruct", stripProviderPrefix("meta-llama/llama-3.2-90b-instruct"))
}
