package rag

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
)

// ChromemIndex is a VectorIndex backed by a chromem-go collection.
type ChromemIndex struct {
	collection *chromem.Collection
}

var _ VectorIndex = (*ChromemIndex)(nil)

// NewChromemIndex creates an index over a fresh in-process chromem
// collection.
func NewChromemIndex(name string) (*ChromemIndex, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create chromem collection: %w", err)
	}
	return &ChromemIndex{collection: col}, nil
}

// NewChromemIndexFromCollection wraps an existing collection, e.g. one
// opened from a persistent chromem DB.
func NewChromemIndexFromCollection(col *chromem.Collection) *ChromemIndex {
	return &ChromemIndex{collection: col}
}

// Add implements VectorIndex.
func (idx *ChromemIndex) Add(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		err := idx.collection.AddDocument(ctx, chromem.Document{
			ID:        e.ChunkID,
			Content:   e.Content,
			Embedding: e.Embedding,
			Metadata:  map[string]string{"document_id": e.DocumentID},
		})
		if err != nil {
			return fmt.Errorf("add chunk %s: %w", e.ChunkID, err)
		}
	}
	return nil
}

// Query implements VectorIndex. A single-document scope is pushed down as
// a metadata filter; multi-document scopes are filtered client-side since
// chromem metadata filters match one value only.
func (idx *ChromemIndex) Query(ctx context.Context, embedding []float32, k int, documentIDs []string) ([]Match, error) {
	count := idx.collection.Count()
	if count == 0 {
		return nil, nil
	}

	var where map[string]string
	n := k
	if len(documentIDs) == 1 {
		where = map[string]string{"document_id": documentIDs[0]}
	} else if len(documentIDs) > 1 {
		// Over-fetch so client-side scoping still fills k.
		n = count
	}
	if n > count {
		n = count
	}

	results, err := idx.collection.QueryEmbedding(ctx, embedding, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query chromem collection: %w", err)
	}

	var scope map[string]struct{}
	if len(documentIDs) > 1 {
		scope = make(map[string]struct{}, len(documentIDs))
		for _, id := range documentIDs {
			scope[id] = struct{}{}
		}
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		docID := r.Metadata["document_id"]
		if scope != nil {
			if _, ok := scope[docID]; !ok {
				continue
			}
		}
		matches = append(matches, Match{
			ChunkID:    r.ID,
			DocumentID: docID,
			Content:    r.Content,
			Embedding:  r.Embedding,
			Similarity: float64(r.Similarity),
		})
		if len(matches) == k {
			break
		}
	}
	return matches, nil
}

// Remove implements VectorIndex.
func (idx *ChromemIndex) Remove(ctx context.Context, documentID string) error {
	err := idx.collection.Delete(ctx, map[string]string{"document_id": documentID}, nil)
	if err != nil {
		return fmt.Errorf("delete document %s chunks: %w", documentID, err)
	}
	return nil
}
