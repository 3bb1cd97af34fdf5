package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rlmtools/rlm/internal/embed"
	rlmerr "github.com/rlmtools/rlm/internal/errors"
	"github.com/rlmtools/rlm/internal/store"
)

// Engine runs hybrid searches against the store. The optional dense index
// accelerates vector search; without it every stored embedding is scored
// exactly.
type Engine struct {
	store    *store.Store
	embedder embed.Embedder
	dense    *store.DenseIndex // may be nil
}

// NewEngine creates a search engine. dense may be nil.
func NewEngine(s *store.Store, embedder embed.Embedder, dense *store.DenseIndex) (*Engine, error) {
	if s == nil {
		return nil, rlmerr.Newf(rlmerr.ErrCodeInternal, "search engine requires a store")
	}
	if embedder == nil {
		return nil, rlmerr.Newf(rlmerr.ErrCodeInternal, "search engine requires an embedder")
	}
	return &Engine{store: s, embedder: embedder, dense: dense}, nil
}

// Search runs the dense and sparse branches in parallel per the mode, fuses
// their rankings with RRF, and returns at most TopK results. When one
// branch of a hybrid search fails the other's results are kept, with the
// degradation logged.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	opts = opts.withDefaults()
	if !opts.Mode.Valid() {
		return nil, rlmerr.Newf(rlmerr.ErrCodeInvalidInput, "unknown search mode: %s", opts.Mode).
			WithSuggestion("valid modes: hybrid, semantic, bm25")
	}

	fetch := opts.TopK * candidateFactor

	var denseResults []store.VectorResult
	var sparseResults []store.BM25Result
	var denseErr, sparseErr error

	g, gctx := errgroup.WithContext(ctx)
	if opts.Mode != ModeBM25 {
		g.Go(func() error {
			denseResults, denseErr = e.denseSearch(gctx, query, fetch, opts)
			if opts.Mode == ModeSemantic {
				return denseErr
			}
			return nil
		})
	}
	if opts.Mode != ModeSemantic {
		g.Go(func() error {
			sparseResults, sparseErr = e.store.SearchBM25(gctx, query, fetch, opts.BufferID)
			if opts.Mode == ModeBM25 {
				return sparseErr
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Hybrid degrades to the surviving branch on a single failure.
	if opts.Mode == ModeHybrid {
		if denseErr != nil && sparseErr != nil {
			return nil, denseErr
		}
		if denseErr != nil {
			slog.Warn("dense search failed, continuing with BM25 only",
				slog.String("error", denseErr.Error()))
			denseResults = nil
		}
		if sparseErr != nil {
			slog.Warn("BM25 search failed, continuing with dense only",
				slog.String("error", sparseErr.Error()))
			sparseResults = nil
		}
	}

	semanticScores := make(map[int64]float32, len(denseResults))
	denseRanked := make([]int64, len(denseResults))
	for i, r := range denseResults {
		denseRanked[i] = r.ChunkID
		semanticScores[r.ChunkID] = r.Score
	}
	bm25Scores := make(map[int64]float64, len(sparseResults))
	sparseRanked := make([]int64, len(sparseResults))
	for i, r := range sparseResults {
		sparseRanked[i] = r.ChunkID
		bm25Scores[r.ChunkID] = r.Score
	}

	var fused []Fused
	switch opts.Mode {
	case ModeSemantic:
		fused = singleSource(denseRanked, func(id int64) float64 {
			return float64(semanticScores[id])
		})
	case ModeBM25:
		fused = singleSource(sparseRanked, func(id int64) float64 {
			return bm25Scores[id]
		})
	default:
		fused = ReciprocalRankFusion([][]int64{denseRanked, sparseRanked}, opts.RRFK)
	}

	if len(fused) > opts.TopK {
		fused = fused[:opts.TopK]
	}

	ids := make([]int64, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
	}
	infos, err := e.store.ChunkInfos(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(fused))
	for _, f := range fused {
		info, ok := infos[f.ChunkID]
		if !ok {
			continue
		}
		r := Result{
			ChunkID:  f.ChunkID,
			BufferID: info.BufferID,
			Index:    info.Index,
			Score:    f.Score,
		}
		if s, ok := semanticScores[f.ChunkID]; ok {
			sem := s
			r.SemanticScore = &sem
		}
		if s, ok := bm25Scores[f.ChunkID]; ok {
			bm := s
			r.BM25Score = &bm
		}
		results = append(results, r)
	}
	return results, nil
}

// singleSource converts one ranked list into results carrying the source's
// own score as the fused score.
func singleSource(ranked []int64, score func(int64) float64) []Fused {
	fused := make([]Fused, len(ranked))
	for i, id := range ranked {
		fused[i] = Fused{ChunkID: id, Score: score(id)}
	}
	return fused
}

// denseSearch embeds the query and scores stored vectors, via the HNSW
// index when present and compatible, otherwise by exact scan. The
// similarity threshold applies here, at the source.
func (e *Engine) denseSearch(ctx context.Context, query string, k int, opts Options) ([]store.VectorResult, error) {
	vectors, err := e.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeEmbeddingFailed, err)
	}
	queryVec := vectors[0]

	var results []store.VectorResult
	// The sidecar index holds all buffers; use it only for unrestricted
	// searches so buffer filtering stays exact.
	if e.dense != nil && opts.BufferID == 0 && e.dense.Dimensions() == len(queryVec) {
		results, err = e.dense.Search(queryVec, k)
		if err != nil {
			return nil, rlmerr.Wrap(rlmerr.ErrCodeSearchFailed, err)
		}
	} else {
		results, err = e.exactSearch(ctx, queryVec, k, opts.BufferID)
		if err != nil {
			return nil, err
		}
	}

	if opts.Threshold > 0 {
		filtered := results[:0]
		for _, r := range results {
			if r.Score >= opts.Threshold {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}
	return results, nil
}

// exactSearch scores every stored embedding by cosine similarity.
func (e *Engine) exactSearch(ctx context.Context, queryVec []float32, k int, bufferID int64) ([]store.VectorResult, error) {
	ids, vectors, err := e.store.AllEmbeddings(ctx, bufferID)
	if err != nil {
		return nil, err
	}

	results := make([]store.VectorResult, 0, len(ids))
	for i, id := range ids {
		results = append(results, store.VectorResult{
			ChunkID: id,
			Score:   embed.CosineSimilarity(queryVec, vectors[i]),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
