package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemanticChunker_SentenceSnap(t *testing.T) {
	// The first raw cut lands at byte 16 but snaps back to the sentence
	// break after ". " at byte 12.
	text := "Alpha beta. Gamma delta. Epsilon."
	chunks, err := NewSemanticChunker().Chunk(1, text, cfg(16, 0))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 12, chunks[0].End)
	assert.Equal(t, "Alpha beta. ", chunks[0].Content)
	assert.Equal(t, 12, chunks[1].Start)
}

func TestSemanticChunker_SmallText(t *testing.T) {
	text := "Hello, world!"
	chunks, err := NewSemanticChunker().Chunk(1, text, cfg(100, 0))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Content)
	assert.Equal(t, "semantic", chunks[0].Strategy)
}

func TestSemanticChunker_EmptyText(t *testing.T) {
	chunks, err := NewSemanticChunker().Chunk(1, "", DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSemanticChunker_ParagraphPreferred(t *testing.T) {
	text := "First paragraph here.\n\nSecond paragraph with more words in it to push past the cut."
	chunks, err := NewSemanticChunker().Chunk(1, text, cfg(40, 0))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	// The first chunk ends right after the blank line.
	assert.Equal(t, 23, chunks[0].End)
}

func TestSemanticChunker_MinChunkSize(t *testing.T) {
	// Snapping never produces a non-terminal chunk shorter than a quarter
	// of the target size.
	text := strings.Repeat("Word word word word. ", 50)
	chunks, err := NewSemanticChunker().Chunk(1, text, cfg(80, 0))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks[:len(chunks)-1] {
		assert.GreaterOrEqual(t, c.Size(), 80/4, "chunk %d too small", i)
	}
}

func TestSemanticChunker_PreserveSentencesOff(t *testing.T) {
	text := "Alpha beta. Gamma delta. Epsilon."
	chunks, err := NewSemanticChunker().Chunk(1, text, Config{ChunkSize: 16, PreserveSentences: false})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	// Without the hint the raw cut stands.
	assert.Equal(t, 16, chunks[0].End)
}

func TestSemanticChunker_ReconstructsContent(t *testing.T) {
	text := strings.Repeat("One sentence here. Another follows!\n\nNew paragraph. ", 30)
	chunks, err := NewSemanticChunker().Chunk(1, text, cfg(120, 0))
	require.NoError(t, err)

	var rebuilt strings.Builder
	for _, c := range chunks {
		rebuilt.WriteString(c.Content)
	}
	assert.Equal(t, text, rebuilt.String())

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, text[c.Start:c.End], c.Content)
	}
}
