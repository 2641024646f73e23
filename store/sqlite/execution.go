package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/hupe1980/staffmesh/core"
)

// ExecutionStore is the SQLite-backed core.ExecutionStore.
type ExecutionStore struct {
	db *sql.DB
}

var _ core.ExecutionStore = (*ExecutionStore)(nil)

// Insert implements core.ExecutionStore.
func (s *ExecutionStore) Insert(ctx context.Context, rec *core.TaskExecution) error {
	if rec.ID == "" {
		return core.NewValidationError("id", "must not be empty")
	}
	input, output, err := marshalSnapshots(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO executions (id, conversation_id, agent_name, task_type, description,
			status, input, output, error_message, duration_ns, started_at, completed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ConversationID, rec.AgentName, rec.TaskType, rec.Description,
		string(rec.Status), input, output, rec.ErrorMessage, int64(rec.Duration),
		toUnixNano(rec.StartedAt), toUnixNano(rec.CompletedAt), toUnixNano(rec.CreatedAt))
	return storeErr("execution insert", err)
}

// Get implements core.ExecutionStore.
func (s *ExecutionStore) Get(ctx context.Context, id string) (*core.TaskExecution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, agent_name, task_type, description, status,
			input, output, error_message, duration_ns, started_at, completed_at, created_at
		 FROM executions WHERE id = ?`, id)

	rec, err := scanExecution(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("execution", id)
	}
	if err != nil {
		return nil, storeErr("execution get", err)
	}
	return rec, nil
}

// Update implements core.ExecutionStore.
func (s *ExecutionStore) Update(ctx context.Context, rec *core.TaskExecution) error {
	input, output, err := marshalSnapshots(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE executions SET status = ?, input = ?, output = ?, error_message = ?,
			duration_ns = ?, started_at = ?, completed_at = ? WHERE id = ?`,
		string(rec.Status), input, output, rec.ErrorMessage, int64(rec.Duration),
		toUnixNano(rec.StartedAt), toUnixNano(rec.CompletedAt), rec.ID)
	if err != nil {
		return storeErr("execution update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("execution update", err)
	}
	if n == 0 {
		return core.NewNotFoundError("execution", rec.ID)
	}
	return nil
}

// ListByConversation implements core.ExecutionStore; oldest first.
func (s *ExecutionStore) ListByConversation(ctx context.Context, conversationID string) ([]*core.TaskExecution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, agent_name, task_type, description, status,
			input, output, error_message, duration_ns, started_at, completed_at, created_at
		 FROM executions WHERE conversation_id = ? ORDER BY created_at, rowid`, conversationID)
	if err != nil {
		return nil, storeErr("execution list", err)
	}
	defer rows.Close()

	var out []*core.TaskExecution
	for rows.Next() {
		rec, err := scanExecution(rows.Scan)
		if err != nil {
			return nil, storeErr("execution list", err)
		}
		out = append(out, rec)
	}
	return out, storeErr("execution list", rows.Err())
}

// DeleteByConversation implements core.ExecutionStore.
func (s *ExecutionStore) DeleteByConversation(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM executions WHERE conversation_id = ?`, conversationID)
	return storeErr("execution delete", err)
}

func marshalSnapshots(rec *core.TaskExecution) (string, string, error) {
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return "", "", core.NewValidationError("input", err.Error())
	}
	output, err := json.Marshal(rec.Output)
	if err != nil {
		return "", "", core.NewValidationError("output", err.Error())
	}
	return string(input), string(output), nil
}

func scanExecution(scan func(dest ...any) error) (*core.TaskExecution, error) {
	var rec core.TaskExecution
	var status, input, output string
	var duration, started, completed, created int64
	err := scan(&rec.ID, &rec.ConversationID, &rec.AgentName, &rec.TaskType,
		&rec.Description, &status, &input, &output, &rec.ErrorMessage,
		&duration, &started, &completed, &created)
	if err != nil {
		return nil, err
	}
	rec.Status = core.ExecutionStatus(status)
	rec.Duration = time.Duration(duration)
	rec.StartedAt = fromUnixNano(started)
	rec.CompletedAt = fromUnixNano(completed)
	rec.CreatedAt = fromUnixNano(created)
	if err := json.Unmarshal([]byte(input), &rec.Input); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(output), &rec.Output); err != nil {
		return nil, err
	}
	return &rec, nil
}
