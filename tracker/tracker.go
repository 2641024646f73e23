package tracker

import (
	"context"
	"time"

	"github.com/hupe1980/staffmesh/core"
	"github.com/hupe1980/staffmesh/logging"
)

// Options configure a Tracker.
type Options struct {
	// Clock overrides time.Now for tests.
	Clock func() time.Time
	// Logger receives lifecycle events.
	Logger logging.Logger
}

// Tracker wraps a core.ExecutionStore with transition discipline: every
// invocation is recorded as pending, moved to running when work starts,
// and closed exactly once as completed or failed. Duration is derived
// from the record's own timestamps.
type Tracker struct {
	store core.ExecutionStore
	opts  Options
}

// New creates a tracker over the given execution store.
func New(store core.ExecutionStore, optFns ...func(o *Options)) *Tracker {
	opts := Options{
		Clock:  time.Now,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Tracker{store: store, opts: opts}
}

// Begin records a new execution and immediately marks it running. The
// returned id is the handle for Complete or Fail.
func (t *Tracker) Begin(ctx context.Context, conversationID, agentName, taskType string, input map[string]any) (string, error) {
	if agentName == "" {
		return "", core.NewValidationError("agent_name", "must not be empty")
	}
	now := t.opts.Clock()
	rec := &core.TaskExecution{
		ID:             core.NewID(),
		ConversationID: conversationID,
		AgentName:      agentName,
		TaskType:       taskType,
		Status:         core.ExecutionPending,
		Input:          input,
		CreatedAt:      now,
	}
	if err := t.store.Insert(ctx, rec); err != nil {
		return "", err
	}

	rec.Status = core.ExecutionRunning
	rec.StartedAt = t.opts.Clock()
	if err := t.store.Update(ctx, rec); err != nil {
		return "", err
	}
	t.opts.Logger.Debug("execution started", "execution_id", rec.ID,
		"agent", agentName, "task_type", taskType)
	return rec.ID, nil
}

// Complete closes a running execution as completed with its output
// snapshot. Closing an already terminal execution is a validation error.
func (t *Tracker) Complete(ctx context.Context, id string, output map[string]any) error {
	return t.finish(ctx, id, core.ExecutionCompleted, output, "")
}

// Fail closes a running execution as failed with an error message.
func (t *Tracker) Fail(ctx context.Context, id, errorMessage string) error {
	return t.finish(ctx, id, core.ExecutionFailed, nil, errorMessage)
}

func (t *Tracker) finish(ctx context.Context, id string, status core.ExecutionStatus, output map[string]any, errorMessage string) error {
	rec, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status == core.ExecutionCompleted || rec.Status == core.ExecutionFailed {
		return core.NewValidationError("status",
			"execution "+id+" already terminal ("+string(rec.Status)+")")
	}

	now := t.opts.Clock()
	rec.Status = status
	rec.Output = output
	rec.ErrorMessage = errorMessage
	rec.CompletedAt = now
	if !rec.StartedAt.IsZero() {
		rec.Duration = now.Sub(rec.StartedAt)
	}
	if err := t.store.Update(ctx, rec); err != nil {
		return err
	}
	t.opts.Logger.Debug("execution finished", "execution_id", id,
		"status", string(status), "duration", rec.Duration)
	return nil
}

// Get returns a single execution record.
func (t *Tracker) Get(ctx context.Context, id string) (*core.TaskExecution, error) {
	return t.store.Get(ctx, id)
}

// History returns the execution records of a conversation, oldest first.
func (t *Tracker) History(ctx context.Context, conversationID string) ([]*core.TaskExecution, error) {
	return t.store.ListByConversation(ctx, conversationID)
}

// Purge removes all execution records of a conversation.
func (t *Tracker) Purge(ctx context.Context, conversationID string) error {
	return t.store.DeleteByConversation(ctx, conversationID)
}
