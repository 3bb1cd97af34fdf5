package chunk

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/rlmtools/rlm/internal/errors"
)

// ParallelChunker wraps another strategy and materializes its chunks on a
// worker pool. Boundary discovery runs as a single sequential pass over the
// text (it is a cheap scan), so the produced byte ranges are identical to
// the wrapped strategy run sequentially; the expensive work per chunk
// (content extraction, hashing, token estimation) is spread across workers.
// Worker failures are fail-fast: the first error cancels remaining work.
type ParallelChunker struct {
	inner   Chunker
	workers int
}

// NewParallelChunker wraps inner with data-parallel materialization.
// Returns an error when the inner strategy does not support parallel runs.
func NewParallelChunker(inner Chunker) (*ParallelChunker, error) {
	if !inner.SupportsParallel() {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"strategy %q does not support parallel chunking", inner.Name())
	}
	if _, ok := inner.(planner); !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"strategy %q cannot plan boundaries for parallel chunking", inner.Name())
	}
	return &ParallelChunker{
		inner:   inner,
		workers: runtime.NumCPU(),
	}, nil
}

// Name returns the stable strategy name.
func (p *ParallelChunker) Name() string { return "parallel" }

// SupportsParallel reports true; the wrapper is itself parallel.
func (p *ParallelChunker) SupportsParallel() bool { return true }

// Chunk segments text with the inner strategy's boundaries, materializing
// segments concurrently.
func (p *ParallelChunker) Chunk(bufferID int64, text string, cfg Config) ([]Chunk, error) {
	spans, err := p.inner.(planner).plan(text, cfg)
	if err != nil {
		return nil, err
	}
	spans = dedupeSpans(spans)
	if len(spans) == 0 {
		return nil, nil
	}

	workers := p.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(spans) {
		workers = len(spans)
	}

	// Partition the span list into contiguous groups, one per worker.
	groupSize := (len(spans) + workers - 1) / workers
	chunks := make([]Chunk, len(spans))

	var g errgroup.Group
	g.SetLimit(workers)
	for off := 0; off < len(spans); off += groupSize {
		lo, hi := off, off+groupSize
		if hi > len(spans) {
			hi = len(spans)
		}
		g.Go(func() error {
			part := materialize(bufferID, text, spans[lo:hi], lo, p.inner.Name())
			copy(chunks[lo:hi], part)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return chunks, nil
}

// dedupeSpans removes spans with duplicate (start, end) ranges, keeping the
// earliest occurrence. Input order is preserved.
func dedupeSpans(spans []span) []span {
	type key struct{ start, end int }
	seen := make(map[key]struct{}, len(spans))
	out := spans[:0]
	for _, s := range spans {
		k := key{s.start, s.end}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}
