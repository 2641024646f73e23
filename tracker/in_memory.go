package tracker

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/staffmesh/core"
)

// InMemoryStore is a process-local core.ExecutionStore backed by a map.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*core.TaskExecution
}

var _ core.ExecutionStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty execution store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*core.TaskExecution)}
}

// Insert implements core.ExecutionStore.
func (s *InMemoryStore) Insert(ctx context.Context, rec *core.TaskExecution) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return core.NewValidationError("id", "must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return core.NewValidationError("id", "already exists")
	}
	cp := cloneExecution(rec)
	s.records[rec.ID] = cp
	return nil
}

// Get implements core.ExecutionStore.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*core.TaskExecution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, core.NewNotFoundError("execution", id)
	}
	return cloneExecution(rec), nil
}

// Update implements core.ExecutionStore, replacing the stored record.
func (s *InMemoryStore) Update(ctx context.Context, rec *core.TaskExecution) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; !ok {
		return core.NewNotFoundError("execution", rec.ID)
	}
	s.records[rec.ID] = cloneExecution(rec)
	return nil
}

// ListByConversation implements core.ExecutionStore; oldest first.
func (s *InMemoryStore) ListByConversation(ctx context.Context, conversationID string) ([]*core.TaskExecution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*core.TaskExecution
	for _, rec := range s.records {
		if rec.ConversationID == conversationID {
			out = append(out, cloneExecution(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteByConversation implements core.ExecutionStore.
func (s *InMemoryStore) DeleteByConversation(ctx context.Context, conversationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if rec.ConversationID == conversationID {
			delete(s.records, id)
		}
	}
	return nil
}

func cloneExecution(rec *core.TaskExecution) *core.TaskExecution {
	cp := *rec
	if rec.Input != nil {
		cp.Input = make(map[string]any, len(rec.Input))
		for k, v := range rec.Input {
			cp.Input[k] = v
		}
	}
	if rec.Output != nil {
		cp.Output = make(map[string]any, len(rec.Output))
		for k, v := range rec.Output {
			cp.Output[k] = v
		}
	}
	return &cp
}
