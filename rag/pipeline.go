package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/staffmesh/core"
	"github.com/hupe1980/staffmesh/logging"
)

// Options configure a Pipeline.
type Options struct {
	// RetrievalK and MinSimilarity apply to corpus-wide queries.
	RetrievalK    int
	MinSimilarity float64
	// ScopedK and ScopedSimilarity apply when a query is restricted to
	// explicit document ids; the caller asked about these documents, so
	// the threshold is permissive.
	ScopedK          int
	ScopedSimilarity float64
	// DedupeCeiling suppresses a candidate chunk whose embedding is more
	// similar than this to an already accepted chunk.
	DedupeCeiling float64
	// MaxConcurrentEmbeds bounds the embedding fan-out during ingestion.
	MaxConcurrentEmbeds int
	// Clock overrides time.Now for tests.
	Clock func() time.Time
	// Logger receives ingestion and query reporting.
	Logger logging.Logger
}

// Pipeline ties together the document store, the vector index, and the
// embedder. Ingestion is all-or-nothing: a document is queryable only
// after its full chunk set is embedded and persisted.
type Pipeline struct {
	store    core.DocumentStore
	index    VectorIndex
	embedder core.Embedder
	splitter *Splitter
	opts     Options
}

// NewPipeline creates a retrieval pipeline.
func NewPipeline(store core.DocumentStore, index VectorIndex, embedder core.Embedder, splitter *Splitter, optFns ...func(o *Options)) *Pipeline {
	opts := Options{
		RetrievalK:          5,
		MinSimilarity:       0.7,
		ScopedK:             8,
		ScopedSimilarity:    0.2,
		DedupeCeiling:       0.97,
		MaxConcurrentEmbeds: 4,
		Clock:               time.Now,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Pipeline{
		store:    store,
		index:    index,
		embedder: embedder,
		splitter: splitter,
		opts:     opts,
	}
}

// Ingest registers a document, chunks and embeds its content, and makes
// it queryable. On any failure the document is marked failed and no
// partial chunk set is ever surfaced by Query.
func (p *Pipeline) Ingest(ctx context.Context, userID, filename, fileType string, content []byte) (*core.Document, error) {
	if filename == "" {
		return nil, core.NewValidationError("filename", "must not be empty")
	}
	if len(content) == 0 {
		return nil, core.NewValidationError("content", "must not be empty")
	}

	hash := sha256.Sum256(content)
	now := p.opts.Clock()
	doc := &core.Document{
		ID:          core.NewID(),
		UserID:      userID,
		Filename:    filename,
		FileType:    fileType,
		FileSize:    int64(len(content)),
		ContentHash: hex.EncodeToString(hash[:]),
		Status:      core.ProcessingPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := p.store.SetStatus(ctx, doc.ID, core.ProcessingInProgress, "", 0); err != nil {
		return nil, err
	}

	if err := p.process(ctx, doc, string(content)); err != nil {
		if setErr := p.store.SetStatus(ctx, doc.ID, core.ProcessingFailed, err.Error(), 0); setErr != nil {
			p.opts.Logger.Error("mark document failed", "document_id", doc.ID, "error", setErr)
		}
		return nil, err
	}
	return p.store.GetDocument(ctx, doc.ID)
}

func (p *Pipeline) process(ctx context.Context, doc *core.Document, text string) error {
	parts := p.splitter.Split(text)
	if len(parts) == 0 {
		return core.NewValidationError("content", "document produced no chunks")
	}

	embeddings := make([][]float32, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxConcurrentEmbeds)
	for i, part := range parts {
		g.Go(func() error {
			emb, err := p.embedder.Embed(gctx, part)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			embeddings[i] = emb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	now := p.opts.Clock()
	chunks := make([]*core.DocumentChunk, len(parts))
	entries := make([]Entry, len(parts))
	for i, part := range parts {
		chunks[i] = &core.DocumentChunk{
			ID:         core.NewID(),
			DocumentID: doc.ID,
			Index:      i,
			Content:    part,
			Embedding:  embeddings[i],
			CreatedAt:  now,
		}
		entries[i] = Entry{
			ChunkID:    chunks[i].ID,
			DocumentID: doc.ID,
			Content:    part,
			Embedding:  embeddings[i],
		}
	}

	if err := p.store.PutChunks(ctx, doc.ID, chunks); err != nil {
		return err
	}
	if err := p.index.Add(ctx, entries); err != nil {
		return err
	}
	if err := p.store.SetStatus(ctx, doc.ID, core.ProcessingCompleted, "", len(chunks)); err != nil {
		return err
	}
	p.opts.Logger.Info("document ingested", "document_id", doc.ID,
		"filename", doc.Filename, "chunks", len(chunks))
	return nil
}

// QueryOptions scope a retrieval query.
type QueryOptions struct {
	// DocumentIDs restricts retrieval to the named documents.
	DocumentIDs []string
	// K overrides the result budget; zero keeps the configured default.
	K int
	// MinSimilarity overrides the relevance floor; negative keeps the
	// configured default.
	MinSimilarity float64
}

// Query embeds the query text and assembles context from the most
// relevant completed-document chunks, with near-duplicate suppression and
// per-document source attribution.
func (p *Pipeline) Query(ctx context.Context, query string, optFns ...func(o *QueryOptions)) (string, []core.Source, error) {
	if strings.TrimSpace(query) == "" {
		return "", nil, core.NewValidationError("query", "must not be empty")
	}

	opts := QueryOptions{MinSimilarity: -1}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.K <= 0 {
		if len(opts.DocumentIDs) > 0 {
			opts.K = p.opts.ScopedK
		} else {
			opts.K = p.opts.RetrievalK
		}
	}
	if opts.MinSimilarity < 0 {
		if len(opts.DocumentIDs) > 0 {
			opts.MinSimilarity = p.opts.ScopedSimilarity
		} else {
			opts.MinSimilarity = p.opts.MinSimilarity
		}
	}

	emb, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return "", nil, err
	}

	// Over-fetch so status filtering and dedupe still fill k.
	candidates, err := p.index.Query(ctx, emb, opts.K*4, opts.DocumentIDs)
	if err != nil {
		return "", nil, err
	}

	docs := make(map[string]*core.Document)
	var accepted []Match
	for _, m := range candidates {
		if m.Similarity < opts.MinSimilarity {
			continue
		}
		doc, ok := docs[m.DocumentID]
		if !ok {
			doc, err = p.store.GetDocument(ctx, m.DocumentID)
			if err != nil {
				if core.IsNotFound(err) {
					continue
				}
				return "", nil, err
			}
			docs[m.DocumentID] = doc
		}
		if doc.Status != core.ProcessingCompleted {
			continue
		}
		if p.nearDuplicate(m, accepted) {
			continue
		}
		accepted = append(accepted, m)
		if len(accepted) == opts.K {
			break
		}
	}
	if len(accepted) == 0 {
		return "", nil, nil
	}

	parts := make([]string, len(accepted))
	bestByDoc := make(map[string]int)
	var sources []core.Source
	for i, m := range accepted {
		parts[i] = m.Content
		if j, ok := bestByDoc[m.DocumentID]; ok {
			if m.Similarity > sources[j].Similarity {
				sources[j].Similarity = m.Similarity
			}
			continue
		}
		bestByDoc[m.DocumentID] = len(sources)
		sources = append(sources, core.Source{
			DocumentID: m.DocumentID,
			Filename:   docs[m.DocumentID].Filename,
			Similarity: m.Similarity,
		})
	}
	return strings.Join(parts, "\n\n---\n\n"), sources, nil
}

func (p *Pipeline) nearDuplicate(candidate Match, accepted []Match) bool {
	for _, a := range accepted {
		if core.CosineSimilarity(candidate.Embedding, a.Embedding) > p.opts.DedupeCeiling {
			return true
		}
	}
	return false
}

// Delete removes a document, its chunk set, and its index entries.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	if err := p.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	return p.index.Remove(ctx, documentID)
}

// Reindex rebuilds the vector index from the persisted chunk sets of all
// completed documents. Used when pairing a persistent store with a fresh
// in-process index at startup.
func (p *Pipeline) Reindex(ctx context.Context) error {
	docs, err := p.store.ListDocuments(ctx, "")
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if doc.Status != core.ProcessingCompleted {
			continue
		}
		chunks, err := p.store.Chunks(ctx, doc.ID)
		if err != nil {
			return err
		}
		entries := make([]Entry, len(chunks))
		for i, c := range chunks {
			entries[i] = Entry{
				ChunkID:    c.ID,
				DocumentID: doc.ID,
				Content:    c.Content,
				Embedding:  c.Embedding,
			}
		}
		if err := p.index.Add(ctx, entries); err != nil {
			return err
		}
	}
	return nil
}
