package provider

import (
	"fmt"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"toolchat/model"
)

// Hosted APIs only accept [a-zA-Z0-9_-] in tool names while tools here are
// named <domain>.<action>, so dots travel as "__" and are restored in the
// streamed tool calls.

// encodeToolNames replaces dots with double underscores.
// Example: "opsgenie.getAlerts" -> "opsgenie__getAlerts"
func encodeToolNames(tools []mcptypes.Tool) []mcptypes.Tool {
	converted := make([]mcptypes.Tool, len(tools))
	for i, tool := range tools {
		converted[i] = tool
		converted[i].Name = encodeToolName(tool.Name)
	}
	return converted
}

// encodeMessageToolNames encodes tool names recorded in assistant messages.
func encodeMessageToolNames(messages []model.Message) []model.Message {
	out := make([]model.Message, len(messages))
	for i, msg := range messages {
		out[i] = msg
		if len(msg.ToolCalls) == 0 {
			continue
		}
		out[i].ToolCalls = make([]model.ToolCallRef, len(msg.ToolCalls))
		for j, call := range msg.ToolCalls {
			call.Function.Name = encodeToolName(call.Function.Name)
			out[i].ToolCalls[j] = call
		}
	}
	return out
}

func encodeToolName(name string) string {
	return strings.ReplaceAll(name, ".", "__")
}

func decodeToolName(name string) string {
	return strings.ReplaceAll(name, "__", ".")
}

// restoreToolNames decodes tool-call names in one streamed OpenAI chunk.
func restoreToolNames(raw string) string {
	calls := gjson.Get(raw, "choices.0.delta.tool_calls")
	if !calls.IsArray() {
		return raw
	}

	for i, call := range calls.Array() {
		name := call.Get("function.name").String()
		if !strings.Contains(name, "__") {
			continue
		}
		path := fmt.Sprintf("choices.0.delta.tool_calls.%d.function.name", i)
		if out, err := sjson.Set(raw, path, decodeToolName(name)); err == nil {
			raw = out
		}
	}
	return raw
}
