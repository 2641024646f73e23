package core

import (
	"context"
	"time"
)

// ProcessingStatus tracks document ingestion progress.
type ProcessingStatus string

// Document processing states.
const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// Document is an uploaded text source for retrieval. It owns an ordered,
// zero-based chunk sequence; chunk indexes are contiguous and never
// renumbered.
type Document struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id,omitempty"`
	Filename    string           `json:"filename"`
	FileType    string           `json:"file_type,omitempty"`
	FileSize    int64            `json:"file_size"`
	ContentHash string           `json:"content_hash,omitempty"`
	Status      ProcessingStatus `json:"processing_status"`
	ChunkCount  int              `json:"chunk_count"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// DocumentChunk is one embedded slice of a document.
type DocumentChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// DocumentStore persists documents and their chunk sets.
//
// Contract:
//   - PutChunks persists a document's full chunk set atomically; after a
//     failed ingestion no partial chunk set is queryable
//   - DeleteDocument cascades the chunk set
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	ListDocuments(ctx context.Context, userID string) ([]*Document, error)
	SetStatus(ctx context.Context, id string, status ProcessingStatus, errMsg string, chunkCount int) error
	PutChunks(ctx context.Context, documentID string, chunks []*DocumentChunk) error
	Chunks(ctx context.Context, documentID string) ([]*DocumentChunk, error)
	DeleteDocument(ctx context.Context, id string) error
}
