package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_IsMatchesByCode(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("ingest: %w", Wrap(cause, CodeEmbeddingFailed, "embed segments"))

	assert.True(t, stderrors.Is(err, ErrEmbeddingFailed))
	assert.False(t, stderrors.Is(err, ErrVectorDB))
	assert.True(t, stderrors.Is(err, cause))
}

func TestAppError_WithErrorDoesNotMutateSentinel(t *testing.T) {
	wrapped := ErrConfiguration.WithError(stderrors.New("bad dimension"))

	require.NotNil(t, wrapped.Err)
	assert.Nil(t, ErrConfiguration.Err)
	assert.True(t, stderrors.Is(wrapped, ErrConfiguration))
}

func TestAsAppError(t *testing.T) {
	t.Run("wrapped app error", func(t *testing.T) {
		inner := New(CodeInvalidParam, "query is required")
		got := AsAppError(fmt.Errorf("outer: %w", inner))
		assert.Same(t, inner, got)
		assert.Equal(t, http.StatusBadRequest, got.HTTPStatus)
	})

	t.Run("plain error", func(t *testing.T) {
		got := AsAppError(stderrors.New("boom"))
		assert.Equal(t, CodeUnknown, got.Code)
		assert.Equal(t, http.StatusInternalServerError, got.HTTPStatus)
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeVectorDBError, CodeOf(Wrap(stderrors.New("x"), CodeVectorDBError, "query")))
	assert.Equal(t, CodeUnknown, CodeOf(stderrors.New("x")))
	assert.Equal(t, CodeUnknown, CodeOf(nil))
}
