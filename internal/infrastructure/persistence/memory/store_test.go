package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/pkg/errors"
)

func entry(id string, vec ...float32) retrieval.IndexEntry {
	return retrieval.IndexEntry{
		ID:     id,
		Text:   "text " + id,
		Vector: vec,
		Meta:   retrieval.SegmentMeta{Source: "doc", TotalChunks: 1, Timestamp: 1},
	}
}

func TestStore_QueryEmptyIndex(t *testing.T) {
	s := NewStore(2)
	got, err := s.Query(context.Background(), []float32{1, 0}, 4)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_QueryOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := NewStore(2)
	require.NoError(t, s.Add(ctx, []retrieval.IndexEntry{
		entry("far", 0, 1),
		entry("near", 1, 0.1),
		entry("mid", 1, 1),
	}))

	got, err := s.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestStore_AddUpsertsByID(t *testing.T) {
	ctx := context.Background()
	s := NewStore(2)
	require.NoError(t, s.Add(ctx, []retrieval.IndexEntry{entry("a", 1, 0)}))

	replaced := entry("a", 0, 1)
	replaced.Text = "replaced"
	require.NoError(t, s.Add(ctx, []retrieval.IndexEntry{replaced}))

	assert.Equal(t, 1, s.Len())
	got, err := s.Query(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "replaced", got[0].Text)
}

func TestStore_DimensionMismatch(t *testing.T) {
	s := NewStore(3)
	err := s.Add(context.Background(), []retrieval.IndexEntry{entry("a", 1, 0)})
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	assert.Equal(t, 0, s.Len())
}
