package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hupe1980/staffmesh/core"
)

// DocumentStore is the SQLite-backed core.DocumentStore.
type DocumentStore struct {
	db *sql.DB
}

var _ core.DocumentStore = (*DocumentStore)(nil)

// CreateDocument implements core.DocumentStore.
func (s *DocumentStore) CreateDocument(ctx context.Context, doc *core.Document) error {
	if doc.ID == "" {
		return core.NewValidationError("id", "must not be empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, filename, file_type, file_size,
			content_hash, status, chunk_count, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.Filename, doc.FileType, doc.FileSize,
		doc.ContentHash, string(doc.Status), doc.ChunkCount, doc.Error,
		toUnixNano(doc.CreatedAt), toUnixNano(doc.UpdatedAt))
	return storeErr("document create", err)
}

// GetDocument implements core.DocumentStore.
func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, filename, file_type, file_size, content_hash,
			status, chunk_count, error, created_at, updated_at
		 FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("document", id)
	}
	if err != nil {
		return nil, storeErr("document get", err)
	}
	return doc, nil
}

// ListDocuments implements core.DocumentStore; newest first.
func (s *DocumentStore) ListDocuments(ctx context.Context, userID string) ([]*core.Document, error) {
	query := `SELECT id, user_id, filename, file_type, file_size, content_hash,
		status, chunk_count, error, created_at, updated_at FROM documents`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("document list", err)
	}
	defer rows.Close()

	var out []*core.Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, storeErr("document list", err)
		}
		out = append(out, doc)
	}
	return out, storeErr("document list", rows.Err())
}

// SetStatus implements core.DocumentStore.
func (s *DocumentStore) SetStatus(ctx context.Context, id string, status core.ProcessingStatus, errMsg string, chunkCount int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error = ?, chunk_count = ?, updated_at = strftime('%s','now') * 1000000000
		 WHERE id = ?`,
		string(status), errMsg, chunkCount, id)
	if err != nil {
		return storeErr("document set status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("document set status", err)
	}
	if n == 0 {
		return core.NewNotFoundError("document", id)
	}
	return nil
}

// PutChunks implements core.DocumentStore: the full chunk set is replaced
// in one transaction.
func (s *DocumentStore) PutChunks(ctx context.Context, documentID string, chunks []*core.DocumentChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("chunks put", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM documents WHERE id = ?`, documentID).Scan(&exists)
	if err != nil {
		return storeErr("chunks put", err)
	}
	if exists == 0 {
		return core.NewNotFoundError("document", documentID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = ?`, documentID); err != nil {
		return storeErr("chunks put", err)
	}
	for _, c := range chunks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, documentID, c.Index, c.Content, encodeVector(c.Embedding), toUnixNano(c.CreatedAt))
		if err != nil {
			return storeErr("chunks put", err)
		}
	}
	return storeErr("chunks put", tx.Commit())
}

// Chunks implements core.DocumentStore, ordered by chunk index.
func (s *DocumentStore) Chunks(ctx context.Context, documentID string) ([]*core.DocumentChunk, error) {
	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, chunk_index, content, embedding, created_at
		 FROM document_chunks WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, storeErr("chunks", err)
	}
	defer rows.Close()

	var out []*core.DocumentChunk
	for rows.Next() {
		var c core.DocumentChunk
		var blob []byte
		var created int64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &blob, &created); err != nil {
			return nil, storeErr("chunks", err)
		}
		c.CreatedAt = fromUnixNano(created)
		c.Embedding, err = decodeVector(blob)
		if err != nil {
			return nil, storeErr("chunks", err)
		}
		out = append(out, &c)
	}
	return out, storeErr("chunks", rows.Err())
}

// DeleteDocument implements core.DocumentStore; chunks cascade via the
// foreign key.
func (s *DocumentStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return storeErr("document delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("document delete", err)
	}
	if n == 0 {
		return core.NewNotFoundError("document", id)
	}
	return nil
}

func scanDocument(scan func(dest ...any) error) (*core.Document, error) {
	var doc core.Document
	var status string
	var created, updated int64
	err := scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.FileType, &doc.FileSize,
		&doc.ContentHash, &status, &doc.ChunkCount, &doc.Error, &created, &updated)
	if err != nil {
		return nil, err
	}
	doc.Status = core.ProcessingStatus(status)
	doc.CreatedAt = fromUnixNano(created)
	doc.UpdatedAt = fromUnixNano(updated)
	return &doc, nil
}
