package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlmtools/rlm/internal/errors"
)

func TestNew_KnownStrategies(t *testing.T) {
	for _, name := range Names() {
		chunker, err := New(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, chunker.Name())
	}
}

func TestNew_UnknownStrategy(t *testing.T) {
	_, err := New("recursive")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownStrategy, errors.GetCode(err))
	assert.NotEmpty(t, errors.GetSuggestion(err))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Greater(t, EstimateTokens("hello world"), 0)
	assert.Equal(t, 1, heuristicTokens("ab"))
	assert.Equal(t, 3, heuristicTokens("abcdefghij"))
}
