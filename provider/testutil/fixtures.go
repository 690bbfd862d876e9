package testutil

import (
	"encoding/json"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"toolchat/model"
)

// DoneRecord terminates a record stream.
const DoneRecord = "data: [DONE]\n\n"

// FinishRecord is a finish signal with reason stop.
const FinishRecord = `data: {"choices":[{"delta":{},"finish_reason":"stop"}]}` + "\n\n"

// ContentRecord returns a content delta record.
func ContentRecord(text string) string {
	return record(map[string]any{"content": text})
}

// ToolCallRecord returns a tool-call fragment record.
func ToolCallRecord(index int, id, name, args string) string {
	return record(map[string]any{"tool_calls": []any{map[string]any{
		"index":    index,
		"id":       id,
		"type":     "function",
		"function": map[string]any{"name": name, "arguments": args},
	}}})
}

func record(delta map[string]any) string {
	b, _ := json.Marshal(map[string]any{"choices": []any{map[string]any{"delta": delta}}})
	return "data: " + string(b) + "\n\n"
}

// TestMessages returns a sample conversation for testing.
func TestMessages() []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Content: "Hello, how are you?"},
		{Role: model.RoleAssistant, Content: "I'm doing well, thank you!"},
		{Role: model.RoleUser, Content: "Can you help me with a task?"},
	}
}

// SingleUserMessage returns a single user message for simple tests.
func SingleUserMessage(content string) []model.Message {
	return []model.Message{{Role: model.RoleUser, Content: content}}
}

// ToolConversation returns a conversation in which the assistant called a
// tool and the tool answered.
func ToolConversation() []model.Message {
	return []model.Message{
		{Role: model.RoleSystem, Content: "You are an on-call assistant."},
		{Role: model.RoleUser, Content: "Any open alerts?"},
		{
			Role: model.RoleAssistant,
			ToolCalls: []model.ToolCallRef{{
				ID:       "call_1",
				Type:     "function",
				Function: model.FunctionCall{Name: "opsgenie.getAlerts", Arguments: `{"limit":5}`},
			}},
		},
		{Role: model.RoleTool, ToolCallID: "call_1", Content: "No alerts found."},
	}
}

// TestMCPTools returns sample MCP tools for testing.
func TestMCPTools() []mcptypes.Tool {
	return []mcptypes.Tool{
		{
			Name:        "opsgenie.getAlerts",
			Description: "List OpsGenie alerts",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"query": map[string]any{"type": "string", "description": "OpsGenie search query"},
					"limit": map[string]any{"type": "integer"},
				},
			},
		},
		{
			Name:        "product.search",
			Description: "Search the product catalogue",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"query": map[string]any{"type": "string"},
				},
				Required: []string{"query"},
			},
		},
	}
}
