package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelChunker_MatchesSequential(t *testing.T) {
	// With overlap=0 the parallel wrapper must produce byte ranges
	// identical to the wrapped strategy run sequentially.
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)

	for _, inner := range []Chunker{NewFixedChunker(), NewSemanticChunker()} {
		t.Run(inner.Name(), func(t *testing.T) {
			sequential, err := inner.Chunk(1, text, cfg(300, 0))
			require.NoError(t, err)

			par, err := NewParallelChunker(inner)
			require.NoError(t, err)
			parallel, err := par.Chunk(1, text, cfg(300, 0))
			require.NoError(t, err)

			require.Len(t, parallel, len(sequential))
			for i := range sequential {
				assert.Equal(t, sequential[i].Start, parallel[i].Start, "chunk %d", i)
				assert.Equal(t, sequential[i].End, parallel[i].End, "chunk %d", i)
				assert.Equal(t, sequential[i].Content, parallel[i].Content, "chunk %d", i)
				assert.Equal(t, i, parallel[i].Index)
			}
		})
	}
}

func TestParallelChunker_WithOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 100)
	par, err := NewParallelChunker(NewFixedChunker())
	require.NoError(t, err)

	chunks, err := par.Chunk(1, text, cfg(64, 16))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	seen := make(map[[2]int]bool)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, text[c.Start:c.End], c.Content)
		key := [2]int{c.Start, c.End}
		assert.False(t, seen[key], "duplicate range %v", key)
		seen[key] = true
	}
}

func TestParallelChunker_EmptyText(t *testing.T) {
	par, err := NewParallelChunker(NewSemanticChunker())
	require.NoError(t, err)
	chunks, err := par.Chunk(1, "", DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestParallelChunker_PropagatesValidationError(t *testing.T) {
	par, err := NewParallelChunker(NewFixedChunker())
	require.NoError(t, err)
	_, err = par.Chunk(1, "text", cfg(10, 10))
	assert.Error(t, err)
}

func TestParallelChunker_StrategyName(t *testing.T) {
	par, err := NewParallelChunker(NewSemanticChunker())
	require.NoError(t, err)
	assert.Equal(t, "parallel", par.Name())
	assert.True(t, par.SupportsParallel())

	chunks, err := par.Chunk(1, strings.Repeat("word ", 100), cfg(50, 0))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	// Chunks carry the inner strategy's name.
	assert.Equal(t, "semantic", chunks[0].Strategy)
}

func TestDedupeSpans(t *testing.T) {
	spans := []span{{start: 0, end: 4}, {start: 4, end: 8}, {start: 0, end: 4}}
	got := dedupeSpans(spans)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].start)
	assert.Equal(t, 4, got[1].start)
}
