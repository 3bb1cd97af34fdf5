package store

import (
	"context"
	"database/sql"

	"github.com/rlmtools/rlm/internal/chunk"
	rlmerr "github.com/rlmtools/rlm/internal/errors"
)

// insertChunks writes chunk rows within tx and returns the assigned ids in
// input order. The FTS sync triggers index the content as a side effect.
func insertChunks(ctx context.Context, tx *sql.Tx, bufferID int64, chunks []chunk.Chunk, ts int64) ([]int64, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (buffer_id, content, byte_start, byte_end, chunk_index,
			token_count, has_overlap, strategy, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	defer stmt.Close()

	ids := make([]int64, len(chunks))
	for i, c := range chunks {
		var tokens any
		if c.TokenCount > 0 {
			tokens = c.TokenCount
		}
		res, err := stmt.ExecContext(ctx, bufferID, c.Content, c.Start, c.End, c.Index,
			tokens, boolToInt(c.HasOverlap), c.Strategy, c.ContentHash, ts)
		if err != nil {
			return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
		}
		if ids[i], err = res.LastInsertId(); err != nil {
			return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
		}
	}
	return ids, nil
}

// GetChunk dereferences a chunk by its globally unique id.
func (s *Store) GetChunk(ctx context.Context, id int64) (*chunk.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, buffer_id, content, byte_start, byte_end, chunk_index,
			token_count, has_overlap, strategy, content_hash
		FROM chunks WHERE id = ?`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, rlmerr.ChunkNotFound(id)
	}
	return c, err
}

// GetChunksByBuffer returns all chunks of a buffer in index order.
func (s *Store) GetChunksByBuffer(ctx context.Context, bufferID int64) ([]chunk.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, buffer_id, content, byte_start, byte_end, chunk_index,
			token_count, has_overlap, strategy, content_hash
		FROM chunks WHERE buffer_id = ? ORDER BY chunk_index`, bufferID)
	if err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	defer rows.Close()

	var chunks []chunk.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return chunks, nil
}

// ChunkCount returns the number of chunks in a buffer.
func (s *Store) ChunkCount(ctx context.Context, bufferID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE buffer_id = ?`, bufferID).Scan(&count)
	if err != nil {
		return 0, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return count, nil
}

// ChunkIndexInfo resolves a chunk id to its owning buffer and position.
type ChunkIndexInfo struct {
	BufferID int64
	Index    int
}

// ChunkInfos resolves buffer ids and positions for a set of chunk ids.
func (s *Store) ChunkInfos(ctx context.Context, ids []int64) (map[int64]ChunkIndexInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return nil, err
	}

	infos := make(map[int64]ChunkIndexInfo, len(ids))
	stmt, err := s.db.PrepareContext(ctx,
		`SELECT buffer_id, chunk_index FROM chunks WHERE id = ?`)
	if err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	defer stmt.Close()

	for _, id := range ids {
		var info ChunkIndexInfo
		err := stmt.QueryRowContext(ctx, id).Scan(&info.BufferID, &info.Index)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
		}
		infos[id] = info
	}
	return infos, nil
}

func scanChunk(r rowScanner) (*chunk.Chunk, error) {
	var c chunk.Chunk
	var tokens sql.NullInt64
	var overlap int
	var strategy, hash sql.NullString
	err := r.Scan(&c.ID, &c.BufferID, &c.Content, &c.Start, &c.End, &c.Index,
		&tokens, &overlap, &strategy, &hash)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	c.TokenCount = int(tokens.Int64)
	c.HasOverlap = overlap != 0
	c.Strategy = strategy.String
	c.ContentHash = hash.String
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
