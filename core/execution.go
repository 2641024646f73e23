package core

import (
	"context"
	"time"
)

// ExecutionStatus is the lifecycle state of one agent invocation record.
// Legal transitions are pending -> running -> completed|failed; nothing
// else.
type ExecutionStatus string

// Task execution states.
const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// TaskExecution records the lifecycle of a single agent invocation:
// status, timing, input/output snapshots and error. Duration is always
// computed from the record's own start/completion timestamps.
type TaskExecution struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	AgentName      string          `json:"agent_name"`
	TaskType       string          `json:"task_type"`
	Description    string          `json:"description,omitempty"`
	Status         ExecutionStatus `json:"status"`
	Input          map[string]any  `json:"input,omitempty"`
	Output         map[string]any  `json:"output,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	Duration       time.Duration   `json:"duration"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ExecutionStore persists task execution records. Transition discipline is
// enforced by the tracker on top of this contract.
type ExecutionStore interface {
	Insert(ctx context.Context, rec *TaskExecution) error
	Get(ctx context.Context, id string) (*TaskExecution, error)
	Update(ctx context.Context, rec *TaskExecution) error
	ListByConversation(ctx context.Context, conversationID string) ([]*TaskExecution, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}
