package gateway

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/hupe1980/staffmesh/core"
)

// Mock is a lightweight in-memory Gateway useful for tests and examples.
// Embeddings are deterministic unit vectors derived from a hash of the
// input text, so identical texts always embed identically and similarity
// comparisons behave sensibly without a real model.
type Mock struct {
	mu          sync.RWMutex
	dimension   int
	responses   map[string]string
	embedErr    error
	completeErr error
}

// NewMock constructs a Mock gateway with the given embedding dimension.
func NewMock(dimension int) *Mock {
	return &Mock{dimension: dimension, responses: make(map[string]string)}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *Mock) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// SetEmbedErr makes subsequent Embed calls fail with err (nil clears).
func (m *Mock) SetEmbedErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedErr = err
}

// SetCompleteErr makes subsequent Complete calls fail with err (nil clears).
func (m *Mock) SetCompleteErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeErr = err
}

// Embed implements core.Embedder with a hash-seeded pseudo-random unit
// vector.
func (m *Mock) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	dim, failErr := m.dimension, m.embedErr
	m.mu.RUnlock()
	if failErr != nil {
		return nil, failErr
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(embedding), nil
}

// Dimension implements core.Embedder.
func (m *Mock) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimension
}

// Complete implements core.Completer; returns the canned response for the
// prompt or a generic echo.
func (m *Mock) Complete(ctx context.Context, prompt, contextText string) (core.Completion, error) {
	if err := ctx.Err(); err != nil {
		return core.Completion{}, err
	}
	m.mu.RLock()
	resp, ok := m.responses[prompt]
	failErr := m.completeErr
	m.mu.RUnlock()
	if failErr != nil {
		return core.Completion{}, failErr
	}
	if !ok {
		resp = fmt.Sprintf("Mock response to: %s", prompt)
	}
	return core.Completion{Text: resp, TokensUsed: (len(prompt) + len(contextText) + len(resp)) / 4}, nil
}

// normalize scales vec to unit length.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
