package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/staffmesh/core"
)

// InMemoryStore is a process-local core.ConversationStore. Message order is
// insertion order per conversation and is never changed.
//
// Concurrency: protected by RWMutex. Reads return copies, so callers
// never share mutable state with the store.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*core.Conversation
	messages      map[string][]*core.Message // conversationID -> ordered messages
	clock         func() time.Time
}

var _ core.ConversationStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]*core.Conversation),
		messages:      make(map[string][]*core.Message),
		clock:         time.Now,
	}
}

// Create implements core.ConversationStore.
func (s *InMemoryStore) Create(ctx context.Context, userID, title string) (*core.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if title == "" {
		title = "New Conversation"
	}
	now := s.clock()
	conv := &core.Conversation{
		ID:        core.NewID(),
		UserID:    userID,
		Title:     title,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID] = conv
	cp := *conv
	return &cp, nil
}

// Get implements core.ConversationStore.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*core.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, core.NewNotFoundError("conversation", id)
	}
	cp := *conv
	return &cp, nil
}

// List implements core.ConversationStore; newest first. An empty userID
// lists all conversations.
func (s *InMemoryStore) List(ctx context.Context, userID string) ([]*core.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		if userID != "" && conv.UserID != userID {
			continue
		}
		cp := *conv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete implements core.ConversationStore, cascading the message
// sequence. Task executions and memory references are handled by their
// owning components.
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return core.NewNotFoundError("conversation", id)
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

// SetSummary implements core.ConversationStore.
func (s *InMemoryStore) SetSummary(ctx context.Context, id, summary string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return core.NewNotFoundError("conversation", id)
	}
	conv.Summary = summary
	conv.UpdatedAt = s.clock()
	return nil
}

// AppendMessage implements core.ConversationStore.
func (s *InMemoryStore) AppendMessage(ctx context.Context, msg *core.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return core.NewNotFoundError("conversation", msg.ConversationID)
	}
	cp := *msg
	if cp.ID == "" {
		cp.ID = core.NewID()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.clock()
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], &cp)
	conv.UpdatedAt = s.clock()
	msg.ID = cp.ID
	msg.CreatedAt = cp.CreatedAt
	return nil
}

// Messages implements core.ConversationStore, returning the full ordered
// sequence as copies.
func (s *InMemoryStore) Messages(ctx context.Context, conversationID string) ([]*core.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, core.NewNotFoundError("conversation", conversationID)
	}
	msgs := s.messages[conversationID]
	out := make([]*core.Message, len(msgs))
	for i, m := range msgs {
		cp := *m
		out[i] = &cp
	}
	return out, nil
}
