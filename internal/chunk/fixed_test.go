package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlmtools/rlm/internal/errors"
	"github.com/rlmtools/rlm/internal/textutil"
)

func cfg(size, overlap int) Config {
	c := DefaultConfig()
	c.ChunkSize = size
	c.Overlap = overlap
	return c
}

func TestFixedChunker_ASCII(t *testing.T) {
	// "abcdefghij" with size 4, overlap 1 -> [0,4) [3,7) [6,10)
	chunker := NewFixedChunker()
	chunks, err := chunker.Chunk(1, "abcdefghij", cfg(4, 1))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 4, chunks[0].End)
	assert.Equal(t, "abcd", chunks[0].Content)

	assert.Equal(t, 3, chunks[1].Start)
	assert.Equal(t, 7, chunks[1].End)
	assert.Equal(t, "defg", chunks[1].Content)

	assert.Equal(t, 6, chunks[2].Start)
	assert.Equal(t, 10, chunks[2].End)
	assert.Equal(t, "ghij", chunks[2].Content)

	assert.False(t, chunks[0].HasOverlap)
	assert.True(t, chunks[1].HasOverlap)
	assert.True(t, chunks[2].HasOverlap)
}

func TestFixedChunker_UTF8Snap(t *testing.T) {
	// Three 4-byte emoji with size 6: raw cut at 6 snaps down to 4.
	chunker := NewFixedChunker()
	chunks, err := chunker.Chunk(1, "😀😀😀", cfg(6, 0))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	wantRanges := [][2]int{{0, 4}, {4, 8}, {8, 12}}
	for i, want := range wantRanges {
		assert.Equal(t, want[0], chunks[i].Start, "chunk %d start", i)
		assert.Equal(t, want[1], chunks[i].End, "chunk %d end", i)
		assert.Equal(t, "😀", chunks[i].Content)
	}
}

func TestFixedChunker_EmptyText(t *testing.T) {
	chunks, err := NewFixedChunker().Chunk(1, "", cfg(100, 0))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestFixedChunker_SingleByte(t *testing.T) {
	chunks, err := NewFixedChunker().Chunk(1, "x", cfg(3000, 500))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 1, chunks[0].End)
}

func TestFixedChunker_OverlapAlmostChunkSize(t *testing.T) {
	// overlap = chunk_size - 1 must still make at least one byte of
	// progress per step.
	text := strings.Repeat("a", 12)
	chunks, err := NewFixedChunker().Chunk(1, text, cfg(4, 3))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	prev := -1
	for _, c := range chunks {
		assert.Greater(t, c.Start, prev)
		prev = c.Start
	}
	assert.Equal(t, len(text), chunks[len(chunks)-1].End)
}

func TestFixedChunker_InvalidConfig(t *testing.T) {
	chunker := NewFixedChunker()

	_, err := chunker.Chunk(1, "test", cfg(0, 0))
	assert.Equal(t, errors.ErrCodeInvalidConfig, errors.GetCode(err))

	_, err = chunker.Chunk(1, "test", cfg(10, 10))
	assert.Equal(t, errors.ErrCodeOverlapTooLarge, errors.GetCode(err))

	_, err = chunker.Chunk(1, "test", cfg(MaxChunkSize+1, 0))
	assert.Equal(t, errors.ErrCodeChunkTooLarge, errors.GetCode(err))
}

func TestFixedChunker_MaxChunks(t *testing.T) {
	c := cfg(4, 0)
	c.MaxChunks = 2
	_, err := NewFixedChunker().Chunk(1, "abcdefghijklmnop", c)
	assert.Equal(t, errors.ErrCodeChunkTooLarge, errors.GetCode(err))
}

func TestFixedChunker_Invariants(t *testing.T) {
	text := "The quick brown fox. " + strings.Repeat("Lorem ipsum dolor sit amet. ", 40) + "世界 done"
	chunks, err := NewFixedChunker().Chunk(7, text, cfg(100, 20))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, int64(7), c.BufferID)
		assert.True(t, c.Start < c.End)
		assert.True(t, textutil.IsBoundary(text, c.Start))
		assert.True(t, textutil.IsBoundary(text, c.End))
		assert.Equal(t, text[c.Start:c.End], c.Content)
		assert.Equal(t, "fixed", c.Strategy)
		assert.NotEmpty(t, c.ContentHash)
		if i > 0 {
			// No gaps, and every step makes forward progress.
			assert.LessOrEqual(t, c.Start, chunks[i-1].End)
			assert.Greater(t, c.Start, chunks[i-1].Start)
		}
	}
	assert.Equal(t, len(text), chunks[len(chunks)-1].End)

	// Concatenating with overlap removed reconstructs the content.
	var rebuilt strings.Builder
	last := 0
	for _, c := range chunks {
		if c.Start < last {
			rebuilt.WriteString(c.Content[last-c.Start:])
		} else {
			rebuilt.WriteString(c.Content)
		}
		last = c.End
	}
	assert.Equal(t, text, rebuilt.String())
}
