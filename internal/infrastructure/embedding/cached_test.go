package embedding

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-qa-api/internal/testutil/mocks"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapCache) GetOrLoad(_ context.Context, key string, _ time.Duration, loader func() ([]byte, error)) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	v, err := loader()
	if err != nil {
		return nil, err
	}
	m.data[key] = v
	return v, nil
}

func TestCachedEmbedder_SingleQueryHitsCache(t *testing.T) {
	inner := &mocks.MockEmbedder{Dimension: 8}
	cache := &mapCache{data: map[string][]byte{}}
	e := NewCachedEmbedder(inner, cache, "nomic-embed-text", time.Minute)

	first, err := e.EmbedStrings(context.Background(), []string{"what is a widget?"})
	require.NoError(t, err)
	second, err := e.EmbedStrings(context.Background(), []string{"what is a widget?"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.Calls())
}

func TestCachedEmbedder_BatchBypassesCache(t *testing.T) {
	inner := &mocks.MockEmbedder{Dimension: 8}
	cache := &mapCache{data: map[string][]byte{}}
	e := NewCachedEmbedder(inner, cache, "m", time.Minute)

	_, err := e.EmbedStrings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, cache.data)
}

func TestNewCachedEmbedder_DisabledReturnsInner(t *testing.T) {
	inner := &mocks.MockEmbedder{Dimension: 8}
	assert.Same(t, inner, NewCachedEmbedder(inner, nil, "m", time.Minute))
	assert.Same(t, inner, NewCachedEmbedder(inner, &mapCache{}, "m", 0))
}

func TestCachedEmbedder_BackendFailureOnMissSurfaces(t *testing.T) {
	inner := &mocks.MockEmbedder{Dimension: 8}
	cache := &mapCache{data: map[string][]byte{}}
	e := NewCachedEmbedder(inner, cache, "m", time.Minute)

	_, err := e.EmbedStrings(context.Background(), []string{"cached question"})
	require.NoError(t, err)

	inner.EmbedStringsFn = func(context.Context, []string) ([][]float64, error) {
		return nil, stderrors.New("model down")
	}
	_, err = e.EmbedStrings(context.Background(), []string{"new question"})
	assert.ErrorContains(t, err, "model down")
	assert.NotContains(t, cache.data, e.(*CachedEmbedder).key("new question"))
}
