// Package context manages conversation history for an LLM-backed agent:
// appending messages, keeping the running token count within budget, and
// pruning older turns when that budget is exceeded. The package name
// shadows the standard library's context package within this directory,
// so files here alias it as stdctx where a context.Context is needed.
package context

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of a conversation.
type Message struct {
	ID         string            `json:"id"`
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	TokenCount int               `json:"token_count"`
	CreatedAt  time.Time         `json:"created_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`

	// Preserve exempts a message from every pruning strategy: it is never
	// dropped, summarized away, or truncated, regardless of age or
	// position. Used for system prompts and other load-bearing turns.
	Preserve bool `json:"preserve"`
}

// NewMessage creates a Message with a generated ID and the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]string),
	}
}

// NewPreservedMessage creates a Message exempt from pruning.
func NewPreservedMessage(role Role, content string) Message {
	m := NewMessage(role, content)
	m.Preserve = true
	return m
}

// FormatForPrompt renders the message the way it is fed back into an LLM
// prompt: "role: content".
func (m Message) FormatForPrompt() string {
	return string(m.Role) + ": " + m.Content
}
