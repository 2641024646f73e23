package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/hupe1980/staffmesh/core"
)

// ConversationStore is the SQLite-backed core.ConversationStore.
type ConversationStore struct {
	db *sql.DB
}

var _ core.ConversationStore = (*ConversationStore)(nil)

// Create implements core.ConversationStore.
func (s *ConversationStore) Create(ctx context.Context, userID, title string) (*core.Conversation, error) {
	if title == "" {
		title = "New Conversation"
	}
	now := time.Now().UTC()
	conv := &core.Conversation{
		ID:        core.NewID(),
		UserID:    userID,
		Title:     title,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, title, active, created_at, updated_at)
		 VALUES (?, ?, ?, 1, ?, ?)`,
		conv.ID, conv.UserID, conv.Title, toUnixNano(now), toUnixNano(now))
	if err != nil {
		return nil, storeErr("conversation create", err)
	}
	return conv, nil
}

// Get implements core.ConversationStore.
func (s *ConversationStore) Get(ctx context.Context, id string) (*core.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, summary, active, created_at, updated_at
		 FROM conversations WHERE id = ?`, id)
	return scanConversation(row, id)
}

func scanConversation(row *sql.Row, id string) (*core.Conversation, error) {
	var conv core.Conversation
	var active int
	var created, updated int64
	err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.Summary, &active, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("conversation", id)
	}
	if err != nil {
		return nil, storeErr("conversation get", err)
	}
	conv.Active = active != 0
	conv.CreatedAt = fromUnixNano(created)
	conv.UpdatedAt = fromUnixNano(updated)
	return &conv, nil
}

// List implements core.ConversationStore; newest first.
func (s *ConversationStore) List(ctx context.Context, userID string) ([]*core.Conversation, error) {
	query := `SELECT id, user_id, title, summary, active, created_at, updated_at
		FROM conversations`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("conversation list", err)
	}
	defer rows.Close()

	var out []*core.Conversation
	for rows.Next() {
		var conv core.Conversation
		var active int
		var created, updated int64
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.Summary, &active, &created, &updated); err != nil {
			return nil, storeErr("conversation list", err)
		}
		conv.Active = active != 0
		conv.CreatedAt = fromUnixNano(created)
		conv.UpdatedAt = fromUnixNano(updated)
		out = append(out, &conv)
	}
	return out, storeErr("conversation list", rows.Err())
}

// Delete implements core.ConversationStore; messages cascade via the
// foreign key.
func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return storeErr("conversation delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("conversation delete", err)
	}
	if n == 0 {
		return core.NewNotFoundError("conversation", id)
	}
	return nil
}

// SetSummary implements core.ConversationStore.
func (s *ConversationStore) SetSummary(ctx context.Context, id, summary string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET summary = ?, updated_at = ? WHERE id = ?`,
		summary, toUnixNano(time.Now().UTC()), id)
	if err != nil {
		return storeErr("conversation set summary", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("conversation set summary", err)
	}
	if n == 0 {
		return core.NewNotFoundError("conversation", id)
	}
	return nil
}

// AppendMessage implements core.ConversationStore. Insertion order is
// preserved by rowid.
func (s *ConversationStore) AppendMessage(ctx context.Context, msg *core.Message) error {
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	thoughts, err := json.Marshal(msg.Thoughts)
	if err != nil {
		return core.NewValidationError("thoughts", err.Error())
	}
	toolCalls, err := json.Marshal(msg.ToolCalls)
	if err != nil {
		return core.NewValidationError("tool_calls", err.Error())
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, agent_name, thoughts, tool_calls, tokens_used, created_at)
		 SELECT ?, id, ?, ?, ?, ?, ?, ?, ? FROM conversations WHERE id = ?`,
		msg.ID, string(msg.Role), msg.Content, msg.AgentName,
		string(thoughts), string(toolCalls), msg.TokensUsed,
		toUnixNano(msg.CreatedAt), msg.ConversationID)
	if err != nil {
		return storeErr("message append", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("message append", err)
	}
	if n == 0 {
		return core.NewNotFoundError("conversation", msg.ConversationID)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		toUnixNano(time.Now().UTC()), msg.ConversationID)
	return storeErr("message append", err)
}

// Messages implements core.ConversationStore, in insertion order.
func (s *ConversationStore) Messages(ctx context.Context, conversationID string) ([]*core.Message, error) {
	if _, err := s.Get(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, agent_name, thoughts, tool_calls, tokens_used, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY rowid`, conversationID)
	if err != nil {
		return nil, storeErr("messages", err)
	}
	defer rows.Close()

	var out []*core.Message
	for rows.Next() {
		var msg core.Message
		var role, thoughts, toolCalls string
		var created int64
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content,
			&msg.AgentName, &thoughts, &toolCalls, &msg.TokensUsed, &created); err != nil {
			return nil, storeErr("messages", err)
		}
		msg.Role = core.Role(role)
		msg.CreatedAt = fromUnixNano(created)
		if err := json.Unmarshal([]byte(thoughts), &msg.Thoughts); err != nil {
			return nil, storeErr("messages", err)
		}
		if err := json.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
			return nil, storeErr("messages", err)
		}
		out = append(out, &msg)
	}
	return out, storeErr("messages", rows.Err())
}
