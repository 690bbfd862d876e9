package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateConversation(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		wantErr  error
	}{
		{
			name:    "empty",
			wantErr: ErrEmptyConversation,
		},
		{
			name: "plain exchange",
			messages: []Message{
				{Role: RoleSystem, Content: "be brief"},
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, Content: "hello"},
			},
		},
		{
			name: "tool answer after assistant call",
			messages: []Message{
				{Role: RoleUser, Content: "alerts?"},
				{Role: RoleAssistant, ToolCalls: []ToolCallRef{{ID: "c1", Type: "function", Function: FunctionCall{Name: "opsgenie.getAlerts", Arguments: "{}"}}}},
				{Role: RoleTool, ToolCallID: "c1", Content: "No alerts found."},
			},
		},
		{
			name: "tool answer without call",
			messages: []Message{
				{Role: RoleUser, Content: "alerts?"},
				{Role: RoleTool, ToolCallID: "c1", Content: "No alerts found."},
			},
			wantErr: ErrOrphanToolMessage,
		},
		{
			name: "tool answer before call",
			messages: []Message{
				{Role: RoleTool, ToolCallID: "c1"},
				{Role: RoleAssistant, ToolCalls: []ToolCallRef{{ID: "c1"}}},
			},
			wantErr: ErrOrphanToolMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConversation(tt.messages)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateConversation_UnknownRole(t *testing.T) {
	err := ValidateConversation([]Message{{Role: "robot", Content: "beep"}})
	assert.ErrorContains(t, err, `unknown role "robot"`)
}

func TestChatOptionsMerge(t *testing.T) {
	temp := 0.2
	maxTokens := 512
	defaults := ChatOptions{Model: "llama", Temperature: &temp, MaxTokens: &maxTokens}

	override := 0.9
	got := ChatOptions{Temperature: &override}.Merge(defaults)

	assert.Equal(t, "llama", got.Model)
	assert.Equal(t, 0.9, *got.Temperature)
	assert.Equal(t, 512, *got.MaxTokens)
	assert.Nil(t, got.TopP)
}
