package embedding

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-qa-api/internal/config"
	"doc-qa-api/pkg/errors"
)

type fixedEmbedder struct {
	vecs [][]float64
	err  error
}

func (f fixedEmbedder) EmbedStrings(_ context.Context, _ []string, _ ...embedding.Option) ([][]float64, error) {
	return f.vecs, f.err
}

func TestNewEmbedder_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.EmbeddingConfig
	}{
		{"missing endpoint", config.EmbeddingConfig{Provider: "ollama", Dimension: 768}},
		{"zero dimension", config.EmbeddingConfig{Provider: "ollama", Endpoint: "http://x"}},
		{"unknown provider", config.EmbeddingConfig{Provider: "cohere", Endpoint: "http://x", Dimension: 768}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEmbedder(context.Background(), &tt.cfg)
			assert.True(t, stderrors.Is(err, errors.ErrConfiguration))
		})
	}
}

func TestNewEmbedder_Providers(t *testing.T) {
	emb, err := NewEmbedder(context.Background(), &config.EmbeddingConfig{
		Provider: config.EmbeddingProviderOllama, Endpoint: "http://localhost:11434", Dimension: 768,
	})
	require.NoError(t, err)
	assert.IsType(t, &Client{}, emb)

	emb, err = NewEmbedder(context.Background(), &config.EmbeddingConfig{
		Provider: config.EmbeddingProviderOpenAI, Endpoint: "http://localhost:11434/v1",
		Model: "nomic-embed-text", APIKey: "ollama", Dimension: 768,
	})
	require.NoError(t, err)
	assert.NotNil(t, emb)
}

func TestProbeDimension(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, ProbeDimension(ctx, fixedEmbedder{vecs: [][]float64{{1, 2, 3}}}, 3))

	err := ProbeDimension(ctx, fixedEmbedder{vecs: [][]float64{{1, 2}}}, 3)
	assert.True(t, stderrors.Is(err, errors.ErrConfiguration))
	assert.Contains(t, errors.AsAppError(err).Detail, "dimension 2")

	err = ProbeDimension(ctx, fixedEmbedder{err: stderrors.New("connection refused")}, 3)
	assert.True(t, stderrors.Is(err, errors.ErrEmbeddingFailed))
}
