package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackEmbedder_Deterministic(t *testing.T) {
	e := NewFallbackEmbedder(FallbackDimensions)
	a, err := e.EmbedBatch(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	b, err := e.EmbedBatch(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	assert.Equal(t, a[0], b[0])
}

func TestFallbackEmbedder_Dimensions(t *testing.T) {
	e := NewFallbackEmbedder(0)
	assert.Equal(t, FallbackDimensions, e.Dimensions())
	assert.Equal(t, "fallback-256", e.ModelID())

	vecs, err := e.EmbedBatch(context.Background(), []string{"test"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Len(t, vecs[0], FallbackDimensions)
}

func TestFallbackEmbedder_Normalized(t *testing.T) {
	e := NewFallbackEmbedder(FallbackDimensions)
	vecs, err := e.EmbedBatch(context.Background(), []string{"some interesting content"})
	require.NoError(t, err)

	var sum float64
	for _, v := range vecs[0] {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestFallbackEmbedder_EmptyText(t *testing.T) {
	e := NewFallbackEmbedder(FallbackDimensions)
	vecs, err := e.EmbedBatch(context.Background(), []string{""})
	require.NoError(t, err)
	for _, v := range vecs[0] {
		assert.Zero(t, v)
	}
}

func TestFallbackEmbedder_LexicalOverlap(t *testing.T) {
	e := NewFallbackEmbedder(FallbackDimensions)
	vecs, err := e.EmbedBatch(context.Background(), []string{
		"the quick brown fox",
		"the quick brown dog",
		"completely unrelated gibberish elsewhere",
	})
	require.NoError(t, err)

	simClose := CosineSimilarity(vecs[0], vecs[1])
	simFar := CosineSimilarity(vecs[0], vecs[2])
	assert.Greater(t, simClose, simFar)
}

func TestFallbackEmbedder_Closed(t *testing.T) {
	e := NewFallbackEmbedder(FallbackDimensions)
	require.NoError(t, e.Close())
	_, err := e.EmbedBatch(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, float64(CosineSimilarity([]float32{1, 0}, []float32{2, 0})), 1e-6)
	assert.InDelta(t, 0.0, float64(CosineSimilarity([]float32{1, 0}, []float32{0, 1})), 1e-6)
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity(nil, nil))
}

func TestCachedEmbedder(t *testing.T) {
	inner := NewFallbackEmbedder(FallbackDimensions)
	cached, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)

	assert.Equal(t, inner.Dimensions(), cached.Dimensions())
	assert.Equal(t, inner.ModelID(), cached.ModelID())

	first, err := cached.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, 2, cached.Len())

	// Second call mixes hits and a miss.
	second, err := cached.EmbedBatch(context.Background(), []string{"beta", "gamma", "alpha"})
	require.NoError(t, err)
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, 3, cached.Len())
}
