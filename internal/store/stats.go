package store

import (
	"context"
	"os"

	rlmerr "github.com/rlmtools/rlm/internal/errors"
)

// Stats summarizes the store: counts, total content size, db size on disk,
// and the schema version.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{DBPath: s.path}

	initialized, err := s.initialized(ctx)
	if err != nil {
		return nil, err
	}
	stats.Initialized = initialized
	if !initialized {
		return stats, nil
	}

	if stats.SchemaVersion, err = s.schemaVersion(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM buffers),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COALESCE(SUM(size), 0) FROM buffers),
			(SELECT COUNT(*) FROM chunk_embeddings)`)
	if err := row.Scan(&stats.BufferCount, &stats.ChunkCount,
		&stats.TotalContentBytes, &stats.EmbeddingCount); err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}

	if s.path != "" {
		if info, err := os.Stat(s.path); err == nil {
			stats.DBSizeBytes = info.Size()
		}
	}
	return stats, nil
}
