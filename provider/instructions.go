package provider

import (
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"toolchat/model"
)

// buildToolInstructions is the system prompt prepended for hosted models
// when tools are offered. Hosted models tend to narrate instead of calling a
// tool unless told not to.
func buildToolInstructions(tools []mcptypes.Tool) string {
	toolNames := make([]string, 0, len(tools))
	for _, tool := range tools {
		toolNames = append(toolNames, tool.Name)
	}

	return strings.Join([]string{
		"TOOLS: " + strings.Join(toolNames, ", "),
		"",
		"When the user asks you to do something that requires a tool:",
		"1. Determine which tool is needed",
		"2. Check if you have all required parameters",
		"3. If yes: Execute the tool IMMEDIATELY without explanation",
		"4. If no: Ask for the missing parameter ONLY",
		"",
		"DO NOT:",
		"- List available tools",
		"- Explain what you're about to do",
		"- Ask 'what would you like me to do?'",
		"",
		"Example:",
		"User: 'Show me open alerts'",
		"You: [call opsgenie.getAlerts({\"query\":\"status:open\"})]",
		"NOT: 'I can look up alerts. What would you like?'",
	}, "\n")
}

// withToolInstructions prepends the tool system prompt when tools are offered.
func withToolInstructions(messages []model.Message, tools []mcptypes.Tool) []model.Message {
	if len(tools) == 0 {
		return messages
	}
	out := make([]model.Message, 0, len(messages)+1)
	out = append(out, model.Message{Role: model.RoleSystem, Content: buildToolInstructions(tools)})
	return append(out, messages...)
}

// shouldSkipToolInstructions reports models that leak the instructions back
// as text and call tools fine without them.
func shouldSkipToolInstructions(modelName string) bool {
	modelLower := strings.ToLower(modelName)
	for _, prefix := range []string{"qwen"} {
		if strings.Contains(modelLower, prefix) {
			return true
		}
	}
	return false
}
