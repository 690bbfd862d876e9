package provider

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"toolchat/mcp"
	"toolchat/model"
)

// ConvertToOpenAIMessages converts a conversation to OpenAI SDK message params.
// Assistant tool calls and tool results keep their call ids.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))

	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result[i] = openai.SystemMessage(msg.Content)
		case model.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				result[i] = openai.AssistantMessage(msg.Content)
				continue
			}
			result[i] = openai.ChatCompletionMessageParamUnion{OfAssistant: openAIAssistantWithCalls(msg)}
		case model.RoleTool:
			result[i] = openai.ToolMessage(msg.Content, msg.ToolCallID)
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}

	return result
}

func openAIAssistantWithCalls(msg model.Message) *openai.ChatCompletionAssistantMessageParam {
	asst := &openai.ChatCompletionAssistantMessageParam{}
	if msg.Content != "" {
		asst.Content.OfString = openai.String(msg.Content)
	}
	for _, call := range msg.ToolCalls {
		asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				},
			},
		})
	}
	return asst
}

// convertToAnthropicMessages converts a conversation to Anthropic format.
// System messages are returned separately since Anthropic takes them as a
// request parameter. Consecutive tool results share one user message.
func convertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))

	var prevRole model.Role
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})

		case model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, ParseToolArguments(call.Function.Arguments), call.Function.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(""))
			}
			anthropicMsgs = append(anthropicMsgs, anthropic.NewAssistantMessage(blocks...))

		case model.RoleTool:
			block := anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false)
			if prevRole == model.RoleTool && len(anthropicMsgs) > 0 {
				last := &anthropicMsgs[len(anthropicMsgs)-1]
				last.Content = append(last.Content, block)
			} else {
				anthropicMsgs = append(anthropicMsgs, anthropic.NewUserMessage(block))
			}

		default:
			anthropicMsgs = append(anthropicMsgs, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
		prevRole = msg.Role
	}

	return anthropicMsgs, systemBlocks
}

// ConvertToOllamaMessages converts a conversation to Ollama api messages.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		result[i] = api.Message{
			Role:      string(msg.Role),
			Content:   msg.Content,
			ToolCalls: ConvertToOllamaToolCalls(msg.ToolCalls),
		}
	}
	return result
}

// ConvertToOllamaToolCalls converts recorded tool calls to Ollama's form,
// where arguments are a decoded object rather than a JSON string.
func ConvertToOllamaToolCalls(calls []model.ToolCallRef) []api.ToolCall {
	if len(calls) == 0 {
		return nil
	}

	result := make([]api.ToolCall, len(calls))
	for i, call := range calls {
		result[i] = api.ToolCall{
			Function: api.ToolCallFunction{
				Index:     i,
				Name:      call.Function.Name,
				Arguments: ParseToolArguments(call.Function.Arguments),
			},
		}
	}
	return result
}

// ParseToolArguments parses a JSON arguments string into a map. Invalid or
// empty input yields an empty map.
func ParseToolArguments(argsJSON string) map[string]any {
	args := make(map[string]any)
	if argsJSON == "" {
		return args
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil || args == nil {
		return make(map[string]any)
	}
	return args
}

// toolDefinitions converts MCP tool descriptions into the OpenAI function
// tool shape sent to OpenAI-compatible HTTP endpoints.
func toolDefinitions(tools []mcptypes.Tool) []model.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}

	defs := make([]model.ToolDefinition, len(tools))
	for i, tool := range tools {
		defs[i] = model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  mcp.SchemaParameters(tool.InputSchema),
			},
		}
	}
	return defs
}
