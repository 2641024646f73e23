package core

import (
	"context"
	"time"
)

// Role identifies the author category of a message.
type Role string

// Known message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ToolCall records a single tool invocation made by an agent while
// producing a message. It is an audit record; tool execution itself lives
// outside the orchestration core.
type ToolCall struct {
	Tool   string         `json:"tool"`
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Message is one entry in a conversation. Immutable after creation;
// insertion order is conversational order and is never changed.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Role           Role       `json:"role"`
	Content        string     `json:"content"`
	AgentName      string     `json:"agent_name,omitempty"`
	Thoughts       []string   `json:"thoughts,omitempty"`
	ToolCalls      []ToolCall `json:"tool_calls,omitempty"`
	TokensUsed     int        `json:"tokens_used"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Conversation is a container for an ordered message sequence. It
// exclusively owns its messages and task executions; deleting it cascades
// both, while agent memories only lose their originating reference.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationStore persists conversations and their message sequences.
//
// Contract:
//   - AppendMessage preserves insertion order per conversation
//   - Messages returns the full ordered sequence
//   - Delete cascades messages (and, via the owning service, executions)
//   - unreachable backends surface StoreUnavailableError, unknown ids
//     surface NotFoundError
type ConversationStore interface {
	Create(ctx context.Context, userID, title string) (*Conversation, error)
	Get(ctx context.Context, id string) (*Conversation, error)
	List(ctx context.Context, userID string) ([]*Conversation, error)
	Delete(ctx context.Context, id string) error
	SetSummary(ctx context.Context, id, summary string) error
	AppendMessage(ctx context.Context, msg *Message) error
	Messages(ctx context.Context, conversationID string) ([]*Message, error)
}
