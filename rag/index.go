package rag

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/staffmesh/core"
)

// Entry is one indexed chunk vector.
type Entry struct {
	ChunkID    string
	DocumentID string
	Content    string
	Embedding  []float32
}

// Match is one nearest-neighbor result. Embedding is retained so callers
// can suppress near-duplicate chunks.
type Match struct {
	ChunkID    string
	DocumentID string
	Content    string
	Embedding  []float32
	Similarity float64
}

// VectorIndex is the nearest-neighbor search contract for chunk vectors.
// Implementations must support scoping a query to a document id subset.
type VectorIndex interface {
	Add(ctx context.Context, entries []Entry) error
	Query(ctx context.Context, embedding []float32, k int, documentIDs []string) ([]Match, error)
	Remove(ctx context.Context, documentID string) error
}

// InMemoryIndex is an exact-scan VectorIndex backed by a slice. Suitable
// for tests and small corpora.
type InMemoryIndex struct {
	mu      sync.RWMutex
	entries []Entry
}

var _ VectorIndex = (*InMemoryIndex)(nil)

// NewInMemoryIndex creates an empty index.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{}
}

// Add implements VectorIndex.
func (idx *InMemoryIndex) Add(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, e := range entries {
		e.Embedding = append([]float32(nil), e.Embedding...)
		idx.entries = append(idx.entries, e)
	}
	return nil
}

// Query implements VectorIndex with an exact cosine scan, best first.
func (idx *InMemoryIndex) Query(ctx context.Context, embedding []float32, k int, documentIDs []string) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, core.NewValidationError("k", "must be positive")
	}

	var scope map[string]struct{}
	if len(documentIDs) > 0 {
		scope = make(map[string]struct{}, len(documentIDs))
		for _, id := range documentIDs {
			scope[id] = struct{}{}
		}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]Match, 0, len(idx.entries))
	for _, e := range idx.entries {
		if scope != nil {
			if _, ok := scope[e.DocumentID]; !ok {
				continue
			}
		}
		matches = append(matches, Match{
			ChunkID:    e.ChunkID,
			DocumentID: e.DocumentID,
			Content:    e.Content,
			Embedding:  e.Embedding,
			Similarity: core.CosineSimilarity(embedding, e.Embedding),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Remove implements VectorIndex, dropping all entries of a document.
func (idx *InMemoryIndex) Remove(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	kept := idx.entries[:0]
	for _, e := range idx.entries {
		if e.DocumentID != documentID {
			kept = append(kept, e)
		}
	}
	idx.entries = kept
	return nil
}
