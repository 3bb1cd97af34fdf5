package store

import (
	"context"
	"strings"

	rlmerr "github.com/rlmtools/rlm/internal/errors"
)

// EscapeFTSQuery shapes a user query for the FTS5 MATCH grammar. Every
// whitespace-separated term is wrapped in double quotes (internal quotes
// doubled) so operator characters like *, (, ), :, - and ^ are matched
// literally; terms are joined with OR for forgiving multi-term matching.
func EscapeFTSQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}
	escaped := make([]string, len(terms))
	for i, term := range terms {
		escaped[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return strings.Join(escaped, " OR ")
}

// SearchBM25 issues the shaped query against the FTS5 index and returns up
// to limit chunk ids with their BM25 scores, best match first. bufferID > 0
// restricts results to one buffer. FTS5 bm25() returns negative values
// (more negative is better); scores are negated so higher is better.
func (s *Store) SearchBM25(ctx context.Context, query string, limit int, bufferID int64) ([]BM25Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return nil, err
	}

	shaped := EscapeFTSQuery(query)
	if shaped == "" {
		return nil, nil
	}

	sqlQuery := `
		SELECT f.rowid, -bm25(chunks_fts) AS score
		FROM chunks_fts f
		WHERE chunks_fts MATCH ?`
	args := []any{shaped}
	if bufferID > 0 {
		sqlQuery += ` AND f.rowid IN (SELECT id FROM chunks WHERE buffer_id = ?)`
		args = append(args, bufferID)
	}
	sqlQuery += ` ORDER BY score DESC, f.rowid ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		// FTS5 reports malformed MATCH expressions as errors; the escaping
		// above should prevent them, but treat any residue as no matches.
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, rlmerr.Wrap(rlmerr.ErrCodeSearchFailed, err)
	}
	defer rows.Close()

	var results []BM25Result
	for rows.Next() {
		var r BM25Result
		if err := rows.Scan(&r.ChunkID, &r.Score); err != nil {
			return nil, rlmerr.Wrap(rlmerr.ErrCodeSearchFailed, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeSearchFailed, err)
	}
	return results, nil
}
