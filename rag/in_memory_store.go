package rag

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/staffmesh/core"
)

// InMemoryDocumentStore is a process-local core.DocumentStore. Chunk sets
// are replaced atomically under the store lock.
type InMemoryDocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*core.Document
	chunks    map[string][]*core.DocumentChunk
	clock     func() time.Time
}

var _ core.DocumentStore = (*InMemoryDocumentStore)(nil)

// NewInMemoryDocumentStore creates an empty document store.
func NewInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{
		documents: make(map[string]*core.Document),
		chunks:    make(map[string][]*core.DocumentChunk),
		clock:     time.Now,
	}
}

// CreateDocument implements core.DocumentStore.
func (s *InMemoryDocumentStore) CreateDocument(ctx context.Context, doc *core.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.ID == "" {
		return core.NewValidationError("id", "must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return core.NewValidationError("id", "already exists")
	}
	cp := *doc
	s.documents[doc.ID] = &cp
	return nil
}

// GetDocument implements core.DocumentStore.
func (s *InMemoryDocumentStore) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, core.NewNotFoundError("document", id)
	}
	cp := *doc
	return &cp, nil
}

// ListDocuments implements core.DocumentStore; newest first. An empty
// userID lists all documents.
func (s *InMemoryDocumentStore) ListDocuments(ctx context.Context, userID string) ([]*core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		if userID != "" && doc.UserID != userID {
			continue
		}
		cp := *doc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SetStatus implements core.DocumentStore.
func (s *InMemoryDocumentStore) SetStatus(ctx context.Context, id string, status core.ProcessingStatus, errMsg string, chunkCount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return core.NewNotFoundError("document", id)
	}
	doc.Status = status
	doc.Error = errMsg
	doc.ChunkCount = chunkCount
	doc.UpdatedAt = s.clock()
	return nil
}

// PutChunks implements core.DocumentStore, replacing the full chunk set.
func (s *InMemoryDocumentStore) PutChunks(ctx context.Context, documentID string, chunks []*core.DocumentChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[documentID]; !ok {
		return core.NewNotFoundError("document", documentID)
	}
	cps := make([]*core.DocumentChunk, len(chunks))
	for i, c := range chunks {
		cp := *c
		cp.Embedding = append([]float32(nil), c.Embedding...)
		cps[i] = &cp
	}
	s.chunks[documentID] = cps
	return nil
}

// Chunks implements core.DocumentStore, ordered by chunk index.
func (s *InMemoryDocumentStore) Chunks(ctx context.Context, documentID string) ([]*core.DocumentChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.documents[documentID]; !ok {
		return nil, core.NewNotFoundError("document", documentID)
	}
	stored := s.chunks[documentID]
	out := make([]*core.DocumentChunk, len(stored))
	for i, c := range stored {
		cp := *c
		cp.Embedding = append([]float32(nil), c.Embedding...)
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// DeleteDocument implements core.DocumentStore, cascading the chunk set.
func (s *InMemoryDocumentStore) DeleteDocument(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return core.NewNotFoundError("document", id)
	}
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}
