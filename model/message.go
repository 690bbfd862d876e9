package model

import (
	"errors"
	"fmt"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is one turn of a conversation, in OpenAI chat wire shape.
type Message struct {
	Role       Role          `json:"role"`
	Content    string        `json:"content"`
	ToolCalls  []ToolCallRef `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// ToolCallRef is an assistant-issued tool invocation recorded in the conversation.
type ToolCallRef struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

var (
	ErrEmptyConversation = errors.New("conversation has no messages")
	ErrOrphanToolMessage = errors.New("tool message does not reference a prior assistant tool call")
)

// ValidateConversation checks roles and that every tool message answers a
// tool call issued by an earlier assistant message.
func ValidateConversation(messages []Message) error {
	if len(messages) == 0 {
		return ErrEmptyConversation
	}

	issued := make(map[string]bool)
	for i, msg := range messages {
		if !msg.Role.Valid() {
			return fmt.Errorf("message %d: unknown role %q", i, msg.Role)
		}
		switch msg.Role {
		case RoleAssistant:
			for _, call := range msg.ToolCalls {
				issued[call.ID] = true
			}
		case RoleTool:
			if msg.ToolCallID == "" || !issued[msg.ToolCallID] {
				return fmt.Errorf("message %d (%q): %w", i, msg.ToolCallID, ErrOrphanToolMessage)
			}
		}
	}
	return nil
}

// FirstContent returns the first message's content, used to title new chats.
func FirstContent(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[0].Content
}

// Last returns the final message and whether there is one.
func Last(messages []Message) (Message, bool) {
	if len(messages) == 0 {
		return Message{}, false
	}
	return messages[len(messages)-1], true
}
