package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/staffmesh/core"
	"github.com/hupe1980/staffmesh/gateway"
)

const testDimension = 64

func newTestPipeline(t *testing.T) (*Pipeline, *InMemoryDocumentStore, *gateway.Mock) {
	t.Helper()
	store := NewInMemoryDocumentStore()
	mock := gateway.NewMock(testDimension)
	splitter := NewSplitter(func(o *SplitterOptions) {
		o.ChunkSize = 200
		o.ChunkOverlap = 40
	})
	p := NewPipeline(store, NewInMemoryIndex(), mock, splitter)
	return p, store, mock
}

func TestIngestCompletesWithContiguousChunks(t *testing.T) {
	ctx := context.Background()
	p, store, _ := newTestPipeline(t)

	content := strings.Repeat("The quarterly report covers revenue and headcount. ", 20)
	doc, err := p.Ingest(ctx, "user-1", "report.txt", "txt", []byte(content))
	require.NoError(t, err)
	assert.Equal(t, core.ProcessingCompleted, doc.Status)
	assert.Greater(t, doc.ChunkCount, 1)
	assert.NotEmpty(t, doc.ContentHash)

	chunks, err := store.Chunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, doc.ChunkCount)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Len(t, c.Embedding, testDimension)
	}
}

func TestIngestRejectsEmptyContent(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPipeline(t)

	_, err := p.Ingest(ctx, "user-1", "empty.txt", "txt", nil)
	assert.True(t, core.IsValidation(err))

	_, err = p.Ingest(ctx, "user-1", "", "txt", []byte("content"))
	assert.True(t, core.IsValidation(err))
}

func TestIngestEmbedFailureMarksDocumentFailed(t *testing.T) {
	ctx := context.Background()
	p, store, mock := newTestPipeline(t)
	mock.SetEmbedErr(errors.New("model unavailable"))

	_, err := p.Ingest(ctx, "user-1", "doomed.txt", "txt",
		[]byte(strings.Repeat("some content here. ", 30)))
	require.Error(t, err)

	docs, err := store.ListDocuments(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, core.ProcessingFailed, docs[0].Status)
	assert.NotEmpty(t, docs[0].Error)
	assert.Zero(t, docs[0].ChunkCount)

	// A failed document must never surface in retrieval.
	mock.SetEmbedErr(nil)
	text, sources, err := p.Query(ctx, "some content here",
		func(o *QueryOptions) { o.MinSimilarity = 0 })
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Empty(t, sources)
}

func TestQueryExactTextRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPipeline(t)

	passage := "The offsite is scheduled for the second week of October in Lisbon."
	doc, err := p.Ingest(ctx, "user-1", "offsite.txt", "txt", []byte(passage))
	require.NoError(t, err)

	// The mock embedder is deterministic, so the exact passage embeds
	// identically and must come back as the top match.
	text, sources, err := p.Query(ctx, passage)
	require.NoError(t, err)
	assert.Contains(t, text, "Lisbon")
	require.Len(t, sources, 1)
	assert.Equal(t, doc.ID, sources[0].DocumentID)
	assert.Equal(t, "offsite.txt", sources[0].Filename)
	assert.InDelta(t, 1.0, sources[0].Similarity, 1e-6)
}

func TestQueryScopedToDocuments(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPipeline(t)

	first, err := p.Ingest(ctx, "user-1", "a.txt", "txt",
		[]byte("Notes about the marketing campaign and launch timeline."))
	require.NoError(t, err)
	_, err = p.Ingest(ctx, "user-1", "b.txt", "txt",
		[]byte("Notes about the marketing campaign and launch timeline."))
	require.NoError(t, err)

	_, sources, err := p.Query(ctx, "marketing campaign",
		func(o *QueryOptions) { o.DocumentIDs = []string{first.ID} })
	require.NoError(t, err)
	for _, s := range sources {
		assert.Equal(t, first.ID, s.DocumentID)
	}
}

func TestQueryBelowThresholdReturnsNothing(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPipeline(t)

	_, err := p.Ingest(ctx, "user-1", "doc.txt", "txt",
		[]byte("Entirely unrelated material about gardening."))
	require.NoError(t, err)

	text, sources, err := p.Query(ctx, "quantum chromodynamics lattice simulations",
		func(o *QueryOptions) { o.MinSimilarity = 0.99 })
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Empty(t, sources)
}

func TestQuerySuppressesNearDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryDocumentStore()
	mock := gateway.NewMock(testDimension)
	// Oversized chunks so each short document is a single chunk.
	splitter := NewSplitter()
	p := NewPipeline(store, NewInMemoryIndex(), mock, splitter)

	// Identical content in two documents embeds identically; the second
	// hit is a near-duplicate of the first and must be suppressed.
	passage := "The board approved the budget for next fiscal year."
	_, err := p.Ingest(ctx, "user-1", "minutes-1.txt", "txt", []byte(passage))
	require.NoError(t, err)
	_, err = p.Ingest(ctx, "user-1", "minutes-2.txt", "txt", []byte(passage))
	require.NoError(t, err)

	text, sources, err := p.Query(ctx, passage)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(text, "approved the budget"))
	assert.Len(t, sources, 1)
}

func TestDeleteRemovesFromRetrieval(t *testing.T) {
	ctx := context.Background()
	p, store, _ := newTestPipeline(t)

	passage := "Vendor contract renewal terms and pricing tiers."
	doc, err := p.Ingest(ctx, "user-1", "contract.txt", "txt", []byte(passage))
	require.NoError(t, err)

	require.NoError(t, p.Delete(ctx, doc.ID))

	_, err = store.GetDocument(ctx, doc.ID)
	assert.True(t, core.IsNotFound(err))

	text, sources, err := p.Query(ctx, passage)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Empty(t, sources)
}

func TestReindexRestoresRetrieval(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryDocumentStore()
	mock := gateway.NewMock(testDimension)
	splitter := NewSplitter()
	p := NewPipeline(store, NewInMemoryIndex(), mock, splitter)

	passage := "Hiring plan for the platform team in the second half."
	doc, err := p.Ingest(ctx, "user-1", "hiring.txt", "txt", []byte(passage))
	require.NoError(t, err)

	// Fresh index over the same store simulates a restart.
	restarted := NewPipeline(store, NewInMemoryIndex(), mock, splitter)
	require.NoError(t, restarted.Reindex(ctx))

	_, sources, err := restarted.Query(ctx, passage)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, doc.ID, sources[0].DocumentID)
}
