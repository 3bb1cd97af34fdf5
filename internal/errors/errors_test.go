package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeBufferNotFound, "buffer not found: 42", nil)
	assert.Equal(t, ErrCodeBufferNotFound, err.Code)
	assert.Equal(t, CategoryStore, err.Category)
	assert.Equal(t, "[ERR_302_BUFFER_NOT_FOUND] buffer not found: 42", err.Error())
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("disk failure")
	err := Wrap(ErrCodeTransaction, cause)
	require.NotNil(t, err)
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, stderrors.Is(err, cause))

	assert.Nil(t, Wrap(ErrCodeTransaction, nil))
}

func TestIs_MatchesByCode(t *testing.T) {
	err := BufferNotFound("notes")
	assert.True(t, stderrors.Is(err, New(ErrCodeBufferNotFound, "", nil)))
	assert.False(t, stderrors.Is(err, New(ErrCodeChunkNotFound, "", nil)))
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code string
		want Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodePathTraversal, CategoryIO},
		{ErrCodeMigration, CategoryStore},
		{ErrCodeOverlapTooLarge, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{"bad", CategoryInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categoryFromCode(tt.code), tt.code)
	}
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "InvalidUtf8", KindName(ErrCodeInvalidUTF8))
	assert.Equal(t, "OverlapTooLarge", KindName(ErrCodeOverlapTooLarge))
	assert.Equal(t, "Generic", KindName(ErrCodeFileRead))
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, ErrCodeNotInitialized, NotInitialized().Code)
	assert.NotEmpty(t, NotInitialized().Suggestion)

	err := InvalidUTF8(17)
	assert.Contains(t, err.Message, "17")

	assert.Equal(t, "", GetCode(fmt.Errorf("plain")))
	assert.Equal(t, ErrCodeChunkNotFound, GetCode(ChunkNotFound(9)))
	assert.Equal(t, "", GetSuggestion(fmt.Errorf("plain")))
}
