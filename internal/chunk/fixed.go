package chunk

import (
	"github.com/rlmtools/rlm/internal/textutil"
)

// FixedChunker splits text into fixed-size segments with optional overlap.
// Boundaries are snapped down to UTF-8 codepoint starts, so chunks never
// split a multi-byte character.
type FixedChunker struct{}

// NewFixedChunker creates a fixed-size chunker.
func NewFixedChunker() *FixedChunker {
	return &FixedChunker{}
}

// Name returns the stable strategy name.
func (f *FixedChunker) Name() string { return "fixed" }

// SupportsParallel reports that fixed chunking can be parallelized.
func (f *FixedChunker) SupportsParallel() bool { return true }

// Chunk segments text into fixed-size chunks.
func (f *FixedChunker) Chunk(bufferID int64, text string, cfg Config) ([]Chunk, error) {
	spans, err := f.plan(text, cfg)
	if err != nil {
		return nil, err
	}
	return materialize(bufferID, text, spans, 0, f.Name()), nil
}

// plan computes the chunk boundaries without materializing content.
func (f *FixedChunker) plan(text string, cfg Config) ([]span, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	var spans []span
	cursor := 0
	for cursor < len(text) {
		start := textutil.FloorBoundary(text, cursor)
		end := textutil.FloorBoundary(text, start+cfg.ChunkSize)
		if end <= start {
			// A multi-byte codepoint swallowed the whole step; skip one
			// codepoint to guarantee progress.
			cursor = textutil.NextRuneStart(text, start)
			continue
		}

		spans = append(spans, span{
			start:      start,
			end:        end,
			hasOverlap: cfg.Overlap > 0 && len(spans) > 0,
		})
		if end >= len(text) {
			break
		}

		next := end - cfg.Overlap
		if next <= start {
			next = textutil.NextRuneStart(text, start)
		}
		cursor = next
	}

	return capSpans(spans, cfg)
}
