// Package chunk implements the text chunking strategies: fixed, semantic,
// code-aware, and a data-parallel wrapper. All strategies produce ordered
// chunks with UTF-8-aligned byte ranges over the source text.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/rlmtools/rlm/internal/errors"
)

// Chunking limits and defaults.
const (
	// DefaultChunkSize is the target chunk length in bytes.
	DefaultChunkSize = 3000

	// MaxChunkSize is the hard maximum chunk length.
	MaxChunkSize = 50000

	// DefaultOverlap is the number of bytes shared with the previous chunk.
	DefaultOverlap = 500
)

// Chunk is an ordered slice of a buffer's content.
// ID is zero until the chunk is persisted.
type Chunk struct {
	ID          int64
	BufferID    int64
	Content     string
	Start       int // byte offset, inclusive
	End         int // byte offset, exclusive
	Index       int // position within the buffer, 0-based dense
	TokenCount  int // estimated, 0 when unknown
	HasOverlap  bool
	Strategy    string
	ContentHash string
}

// Size returns the chunk length in bytes.
func (c *Chunk) Size() int {
	return c.End - c.Start
}

// Config carries the options recognized by all strategies.
type Config struct {
	// ChunkSize is the target chunk length in bytes.
	ChunkSize int

	// Overlap is the number of bytes shared with the previous chunk.
	// Must be strictly less than ChunkSize.
	Overlap int

	// PreserveSentences lets the semantic strategy snap chunk ends to a
	// semantic break; when false its chunks end at the raw size cut.
	PreserveSentences bool

	// MaxChunks caps the number of chunks produced (0 = unlimited).
	MaxChunks int

	// Source is the originating file path, used by the code strategy for
	// language detection.
	Source string
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:         DefaultChunkSize,
		Overlap:           DefaultOverlap,
		PreserveSentences: true,
	}
}

// Validate checks the configuration bounds shared by all strategies.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfig, "chunk_size must be > 0, got %d", c.ChunkSize)
	}
	if c.ChunkSize > MaxChunkSize {
		return errors.Newf(errors.ErrCodeChunkTooLarge, "chunk size %d exceeds maximum %d", c.ChunkSize, MaxChunkSize)
	}
	if c.Overlap < 0 {
		return errors.Newf(errors.ErrCodeInvalidConfig, "overlap must be >= 0, got %d", c.Overlap)
	}
	if c.Overlap >= c.ChunkSize {
		return errors.Newf(errors.ErrCodeOverlapTooLarge, "overlap %d must be less than chunk size %d", c.Overlap, c.ChunkSize)
	}
	return nil
}

// Chunker is the contract implemented by every strategy.
type Chunker interface {
	// Chunk segments text into ordered chunks for the given buffer.
	Chunk(bufferID int64, text string, cfg Config) ([]Chunk, error)

	// Name returns the stable strategy name stored in chunk.Strategy.
	Name() string

	// SupportsParallel reports whether the strategy may be wrapped by the
	// data-parallel chunker.
	SupportsParallel() bool
}

// span is a planned chunk boundary before materialization.
type span struct {
	start, end int
	hasOverlap bool
}

// planner is implemented by strategies whose boundary discovery can run as a
// cheap sequential pass, independent of chunk materialization. The parallel
// wrapper relies on it.
type planner interface {
	plan(text string, cfg Config) ([]span, error)
}

// hashContent returns the SHA-256 hex digest of the content.
func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// materialize turns planned spans into chunks: extracts content, computes
// hashes and token estimates, and assigns dense indices starting at base.
func materialize(bufferID int64, text string, spans []span, base int, strategy string) []Chunk {
	chunks := make([]Chunk, 0, len(spans))
	for i, s := range spans {
		content := text[s.start:s.end]
		chunks = append(chunks, Chunk{
			BufferID:    bufferID,
			Content:     content,
			Start:       s.start,
			End:         s.end,
			Index:       base + i,
			TokenCount:  EstimateTokens(content),
			HasOverlap:  s.hasOverlap,
			Strategy:    strategy,
			ContentHash: hashContent(content),
		})
	}
	return chunks
}

// capSpans enforces the MaxChunks safety limit.
func capSpans(spans []span, cfg Config) ([]span, error) {
	if cfg.MaxChunks > 0 && len(spans) > cfg.MaxChunks {
		return nil, errors.Newf(errors.ErrCodeChunkTooLarge,
			"chunking produced %d chunks, exceeding the limit of %d", len(spans), cfg.MaxChunks)
	}
	return spans, nil
}
