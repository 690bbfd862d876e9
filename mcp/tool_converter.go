package mcp

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// SchemaParameters returns an MCP input schema as a plain JSON Schema object.
// A missing type defaults to "object" and missing properties to an empty set,
// since several backends reject parameters without them.
func SchemaParameters(schema mcptypes.ToolInputSchema) map[string]any {
	params := map[string]any{
		"type":       schema.Type,
		"properties": schema.Properties,
	}
	if schema.Type == "" {
		params["type"] = "object"
	}
	if schema.Properties == nil {
		params["properties"] = map[string]any{}
	}
	if len(schema.Required) > 0 {
		params["required"] = schema.Required
	}
	if schema.Defs != nil {
		params["$defs"] = schema.Defs
	}
	return params
}

// ConvertMCPToolsToOllama converts MCP tools to Ollama API tool format.
func ConvertMCPToolsToOllama(mcpTools []mcptypes.Tool) []api.Tool {
	ollamaTools := make([]api.Tool, 0, len(mcpTools))

	for _, mcpTool := range mcpTools {
		ollamaTools = append(ollamaTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        mcpTool.Name,
				Description: mcpTool.Description,
				Parameters:  convertInputSchemaToParameters(mcpTool.InputSchema),
			},
		})
	}

	return ollamaTools
}

func convertInputSchemaToParameters(inputSchema mcptypes.ToolInputSchema) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       inputSchema.Type,
		Required:   inputSchema.Required,
		Properties: make(map[string]api.ToolProperty, len(inputSchema.Properties)),
	}
	if params.Type == "" {
		params.Type = "object"
	}
	if inputSchema.Defs != nil {
		params.Defs = inputSchema.Defs
	}

	for propName, propValue := range inputSchema.Properties {
		params.Properties[propName] = convertPropertyValue(propValue)
	}

	return params
}

// convertPropertyValue reads a single JSON Schema property. Values that are
// not already maps go through a JSON round trip first.
func convertPropertyValue(propValue any) api.ToolProperty {
	toolProp := api.ToolProperty{}

	propMap, ok := propValue.(map[string]any)
	if !ok {
		raw, err := json.Marshal(propValue)
		if err != nil {
			return toolProp
		}
		if err := json.Unmarshal(raw, &propMap); err != nil {
			return toolProp
		}
	}

	// type may be a string or a list of strings
	switch t := propMap["type"].(type) {
	case string:
		toolProp.Type = api.PropertyType{t}
	case []string:
		toolProp.Type = api.PropertyType(t)
	case []any:
		types := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				types = append(types, s)
			}
		}
		toolProp.Type = api.PropertyType(types)
	}

	if desc, ok := propMap["description"].(string); ok {
		toolProp.Description = desc
	}
	if enum, ok := propMap["enum"].([]any); ok {
		toolProp.Enum = enum
	}
	if items, ok := propMap["items"]; ok {
		toolProp.Items = items
	}
	if anyOf, ok := propMap["anyOf"].([]any); ok {
		toolProp.AnyOf = make([]api.ToolProperty, 0, len(anyOf))
		for _, item := range anyOf {
			toolProp.AnyOf = append(toolProp.AnyOf, convertPropertyValue(item))
		}
	}

	return toolProp
}

// ConvertMCPToolsToOpenAIFormat converts MCP tools to OpenAI function tools.
// OpenRouter accepts the same shape.
func ConvertMCPToolsToOpenAIFormat(mcpTools []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(mcpTools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(mcpTools))
	for i, tool := range mcpTools {
		def := openai.FunctionDefinitionParam{
			Name:       tool.Name,
			Parameters: openai.FunctionParameters(SchemaParameters(tool.InputSchema)),
		}
		if tool.Description != "" {
			def.Description = openai.String(tool.Description)
		}
		result[i] = openai.ChatCompletionFunctionTool(def)
	}

	return result
}

// ConvertMCPToolsToAnthropicFormat converts MCP tools to Anthropic tool params.
// Anthropic's input schema type is always "object"; $defs travel as an extra field.
func ConvertMCPToolsToAnthropicFormat(mcpTools []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(mcpTools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(mcpTools))
	for i, tool := range mcpTools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: tool.InputSchema.Properties,
		}
		if inputSchema.Properties == nil {
			inputSchema.Properties = map[string]any{}
		}
		if len(tool.InputSchema.Required) > 0 {
			inputSchema.Required = tool.InputSchema.Required
		}
		if tool.InputSchema.Defs != nil {
			inputSchema.ExtraFields = map[string]any{
				"$defs": tool.InputSchema.Defs,
			}
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
		if tool.Description != "" {
			result[i].OfTool.Description = anthropic.String(tool.Description)
		}
	}

	return result
}
