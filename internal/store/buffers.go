package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/rlmtools/rlm/internal/chunk"
	rlmerr "github.com/rlmtools/rlm/internal/errors"
)

// IngestBuffer persists a buffer with its chunks and optional embeddings in
// a single transaction. On any failure nothing is visible. Returns the
// assigned buffer id. vectors may be nil (embeddings pending) or must have
// one entry per chunk.
func (s *Store) IngestBuffer(ctx context.Context, buf *Buffer, chunks []chunk.Chunk, vectors [][]float32, modelID string) (int64, error) {
	if vectors != nil && len(vectors) != len(chunks) {
		return 0, rlmerr.Newf(rlmerr.ErrCodeInvalidInput,
			"vector count %d does not match chunk count %d", len(vectors), len(chunks))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return 0, err
	}

	if existing, err := s.bufferIDByName(ctx, buf.Name); err != nil {
		return 0, err
	} else if existing != 0 {
		return 0, rlmerr.Newf(rlmerr.ErrCodeDuplicateName, "buffer name already exists: %s", buf.Name).
			WithSuggestion("use 'rlm update-buffer' to replace its content, or pick another name")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO buffers (name, content, source_path, content_type, content_hash,
			size, line_count, chunk_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		buf.Name, buf.Content, nullable(buf.Source), nullable(buf.ContentType), buf.Hash,
		buf.Size, buf.LineCount, len(chunks), ts, ts)
	if err != nil {
		return 0, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	bufferID, err := res.LastInsertId()
	if err != nil {
		return 0, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}

	chunkIDs, err := insertChunks(ctx, tx, bufferID, chunks, ts)
	if err != nil {
		return 0, err
	}

	if vectors != nil {
		if err := insertEmbeddings(ctx, tx, chunkIDs, vectors, modelID, ts); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	buf.ID = bufferID
	buf.ChunkCount = len(chunks)
	buf.CreatedAt = ts
	buf.UpdatedAt = ts
	return bufferID, nil
}

// ReplaceBufferContent replaces a buffer's content and chunks in one
// transaction, keeping embeddings for chunks whose (index, content hash)
// pair is unchanged. Returns the ids of chunks that still need embeddings.
func (s *Store) ReplaceBufferContent(ctx context.Context, bufferID int64, buf *Buffer, chunks []chunk.Chunk) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return nil, err
	}

	// Snapshot embeddings of unchanged chunks, keyed by (index, hash).
	type keep struct {
		vector  []byte
		dims    int
		modelID sql.NullString
	}
	kept := make(map[string]keep)
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_index, c.content_hash, e.embedding, e.dimensions, e.model_id
		FROM chunks c JOIN chunk_embeddings e ON e.chunk_id = c.id
		WHERE c.buffer_id = ?`, bufferID)
	if err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	for rows.Next() {
		var idx int
		var hash sql.NullString
		var k keep
		if err := rows.Scan(&idx, &hash, &k.vector, &k.dims, &k.modelID); err != nil {
			_ = rows.Close()
			return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
		}
		kept[strconv.Itoa(idx)+":"+hash.String] = k
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := now()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunk_embeddings WHERE chunk_id IN (SELECT id FROM chunks WHERE buffer_id = ?)`,
		bufferID); err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE buffer_id = ?`, bufferID); err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE buffers SET content = ?, content_hash = ?, size = ?, line_count = ?,
			chunk_count = ?, updated_at = ?
		WHERE id = ?`,
		buf.Content, buf.Hash, buf.Size, buf.LineCount, len(chunks), ts, bufferID); err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}

	chunkIDs, err := insertChunks(ctx, tx, bufferID, chunks, ts)
	if err != nil {
		return nil, err
	}

	var pending []int64
	for i, c := range chunks {
		k, ok := kept[strconv.Itoa(c.Index)+":"+c.ContentHash]
		if !ok {
			pending = append(pending, chunkIDs[i])
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunk_embeddings (chunk_id, embedding, dimensions, model_id, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			chunkIDs[i], k.vector, k.dims, k.modelID, ts); err != nil {
			return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return pending, nil
}

// GetBuffer returns a buffer by id, or nil when absent.
func (s *Store) GetBuffer(ctx context.Context, id int64) (*Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return nil, err
	}
	return s.getBuffer(ctx, id)
}

func (s *Store) getBuffer(ctx context.Context, id int64) (*Buffer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, content, source_path, content_type, content_hash,
			size, line_count, chunk_count, created_at, updated_at
		FROM buffers WHERE id = ?`, id)
	return scanBuffer(row)
}

// GetBufferByName returns a buffer by its unique name, or nil when absent.
func (s *Store) GetBufferByName(ctx context.Context, name string) (*Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, content, source_path, content_type, content_hash,
			size, line_count, chunk_count, created_at, updated_at
		FROM buffers WHERE name = ?`, name)
	return scanBuffer(row)
}

// ResolveBuffer accepts a numeric id or a buffer name and returns the
// buffer, or BufferNotFound.
func (s *Store) ResolveBuffer(ctx context.Context, identifier string) (*Buffer, error) {
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		buf, err := s.GetBuffer(ctx, id)
		if err != nil {
			return nil, err
		}
		if buf != nil {
			return buf, nil
		}
	}
	buf, err := s.GetBufferByName(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, rlmerr.BufferNotFound(identifier)
	}
	return buf, nil
}

// ListBuffers returns all buffers ordered by id, without content loaded.
func (s *Store) ListBuffers(ctx context.Context) ([]*Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, '', source_path, content_type, content_hash,
			size, line_count, chunk_count, created_at, updated_at
		FROM buffers ORDER BY id`)
	if err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	defer rows.Close()

	var buffers []*Buffer
	for rows.Next() {
		buf, err := scanBufferRows(rows)
		if err != nil {
			return nil, err
		}
		buffers = append(buffers, buf)
	}
	if err := rows.Err(); err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return buffers, nil
}

// DeleteBuffer removes a buffer, cascading to its chunks, embeddings, and
// FTS entries.
func (s *Store) DeleteBuffer(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	defer func() { _ = tx.Rollback() }()

	// Explicit child deletes so the FTS sync triggers fire for every chunk.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunk_embeddings WHERE chunk_id IN (SELECT id FROM chunks WHERE buffer_id = ?)`,
		id); err != nil {
		return rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE buffer_id = ?`, id); err != nil {
		return rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM buffers WHERE id = ?`, id)
	if err != nil {
		return rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return rlmerr.BufferNotFound(strconv.FormatInt(id, 10))
	}
	if err := tx.Commit(); err != nil {
		return rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return nil
}

func (s *Store) bufferIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM buffers WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuffer(row *sql.Row) (*Buffer, error) {
	buf, err := scanBufferFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return buf, err
}

func scanBufferRows(rows *sql.Rows) (*Buffer, error) {
	return scanBufferFrom(rows)
}

func scanBufferFrom(r rowScanner) (*Buffer, error) {
	var buf Buffer
	var source, contentType, hash sql.NullString
	err := r.Scan(&buf.ID, &buf.Name, &buf.Content, &source, &contentType, &hash,
		&buf.Size, &buf.LineCount, &buf.ChunkCount, &buf.CreatedAt, &buf.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	buf.Source = source.String
	buf.ContentType = contentType.String
	buf.Hash = hash.String
	return &buf, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
