package chunk

import (
	"github.com/rlmtools/rlm/internal/textutil"
)

// minSearchWindow bounds the semantic break search from below so that small
// chunk sizes still reach a nearby sentence break.
const minSearchWindow = 32

// SemanticChunker behaves like the fixed strategy but snaps each chunk end
// backward to a break found within the search window, preferring a blank
// line, then a newline, then a sentence end, then whitespace. A snap never
// leaves a chunk shorter than chunk_size/4; the terminal chunk is not
// snapped and may be shorter.
type SemanticChunker struct{}

// NewSemanticChunker creates a semantic-boundary chunker.
func NewSemanticChunker() *SemanticChunker {
	return &SemanticChunker{}
}

// Name returns the stable strategy name.
func (s *SemanticChunker) Name() string { return "semantic" }

// SupportsParallel reports that semantic chunking can be parallelized.
func (s *SemanticChunker) SupportsParallel() bool { return true }

// Chunk segments text at semantic boundaries.
func (s *SemanticChunker) Chunk(bufferID int64, text string, cfg Config) ([]Chunk, error) {
	spans, err := s.plan(text, cfg)
	if err != nil {
		return nil, err
	}
	return materialize(bufferID, text, spans, 0, s.Name()), nil
}

// searchWindow is 1/5 of the chunk size, bounded below by minSearchWindow.
func searchWindow(chunkSize int) int {
	w := chunkSize / 5
	if w < minSearchWindow {
		w = minSearchWindow
	}
	return w
}

// plan computes the chunk boundaries without materializing content.
func (s *SemanticChunker) plan(text string, cfg Config) ([]span, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	window := searchWindow(cfg.ChunkSize)
	minSize := cfg.ChunkSize / 4

	var spans []span
	cursor := 0
	for cursor < len(text) {
		start := textutil.FloorBoundary(text, cursor)
		end := textutil.FloorBoundary(text, start+cfg.ChunkSize)
		if end <= start {
			cursor = textutil.NextRuneStart(text, start)
			continue
		}

		// Snap non-terminal chunks to a semantic break, but never shrink
		// below a quarter of the target size.
		if end < len(text) && cfg.PreserveSentences {
			if b := textutil.SemanticBreak(text, end, window); b > start && b-start >= minSize {
				end = b
			}
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
