package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"

	rlmerr "github.com/rlmtools/rlm/internal/errors"
)

// encodeVector serializes an f32 vector as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector deserializes little-endian bytes back into an f32 vector.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// insertEmbeddings writes embedding rows within tx, replacing existing ones.
func insertEmbeddings(ctx context.Context, tx *sql.Tx, chunkIDs []int64, vectors [][]float32, modelID string, ts int64) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunk_embeddings (chunk_id, embedding, dimensions, model_id, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	defer stmt.Close()

	for i, id := range chunkIDs {
		if _, err := stmt.ExecContext(ctx, id, encodeVector(vectors[i]), len(vectors[i]), modelID, ts); err != nil {
			return rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
		}
	}
	return nil
}

// StoreEmbeddings persists vectors for the given chunk ids in one
// transaction, replacing any existing rows.
func (s *Store) StoreEmbeddings(ctx context.Context, chunkIDs []int64, vectors [][]float32, modelID string) error {
	if len(chunkIDs) != len(vectors) {
		return rlmerr.Newf(rlmerr.ErrCodeInvalidInput,
			"vector count %d does not match chunk count %d", len(vectors), len(chunkIDs))
	}

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

	if err := insertEmbeddings(ctx, tx, chunkIDs, vectors, modelID, now()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return nil
}

// GetEmbedding returns a chunk's vector, or nil when absent.
func (s *Store) GetEmbedding(ctx context.Context, chunkID int64) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return nil, err
	}

	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding FROM chunk_embeddings WHERE chunk_id = ?`, chunkID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return decodeVector(blob), nil
}

// AllEmbeddings streams every stored embedding, optionally restricted to a
// buffer (bufferID > 0). Results are ordered by chunk id.
func (s *Store) AllEmbeddings(ctx context.Context, bufferID int64) ([]int64, [][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return nil, nil, err
	}

	query := `SELECT chunk_id, embedding FROM chunk_embeddings ORDER BY chunk_id`
	args := []any{}
	if bufferID > 0 {
		query = `
			SELECT e.chunk_id, e.embedding FROM chunk_embeddings e
			JOIN chunks c ON c.id = e.chunk_id
			WHERE c.buffer_id = ? ORDER BY e.chunk_id`
		args = append(args, bufferID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	defer rows.Close()

	var ids []int64
	var vectors [][]float32
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
		}
		ids = append(ids, id)
		vectors = append(vectors, decodeVector(blob))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return ids, vectors, nil
}

// HasEmbedding reports whether a chunk has a stored vector.
func (s *Store) HasEmbedding(ctx context.Context, chunkID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return false, err
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunk_embeddings WHERE chunk_id = ?`, chunkID).Scan(&count)
	if err != nil {
		return false, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return count > 0, nil
}

// EmbeddingCount returns the total number of stored embeddings.
func (s *Store) EmbeddingCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_embeddings`).Scan(&count); err != nil {
		return 0, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return count, nil
}

// EmbeddingCoverage summarizes embedding coverage for one buffer.
type EmbeddingCoverage struct {
	BufferID   int64
	BufferName string
	Chunks     int
	Embedded   int
}

// EmbeddingStatus returns per-buffer embedding coverage ordered by buffer id.
func (s *Store) EmbeddingStatus(ctx context.Context) ([]EmbeddingCoverage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.name, COUNT(c.id), COUNT(e.chunk_id)
		FROM buffers b
		LEFT JOIN chunks c ON c.buffer_id = b.id
		LEFT JOIN chunk_embeddings e ON e.chunk_id = c.id
		GROUP BY b.id ORDER BY b.id`)
	if err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	defer rows.Close()

	var coverage []EmbeddingCoverage
	for rows.Next() {
		var c EmbeddingCoverage
		if err := rows.Scan(&c.BufferID, &c.BufferName, &c.Chunks, &c.Embedded); err != nil {
			return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
		}
		coverage = append(coverage, c)
	}
	if err := rows.Err(); err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return coverage, nil
}

// PendingChunks returns ids and contents of chunks without embeddings,
// optionally restricted to a buffer.
func (s *Store) PendingChunks(ctx context.Context, bufferID int64) ([]int64, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return nil, nil, err
	}

	query := `
		SELECT c.id, c.content FROM chunks c
		LEFT JOIN chunk_embeddings e ON e.chunk_id = c.id
		WHERE e.chunk_id IS NULL`
	args := []any{}
	if bufferID > 0 {
		query += ` AND c.buffer_id = ?`
		args = append(args, bufferID)
	}
	query += ` ORDER BY c.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	defer rows.Close()

	var ids []int64
	var contents []string
	for rows.Next() {
		var id int64
		var content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
		}
		ids = append(ids, id)
		contents = append(contents, content)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return ids, contents, nil
}
