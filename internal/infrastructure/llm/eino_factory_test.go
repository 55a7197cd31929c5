package llm

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-qa-api/internal/config"
	"doc-qa-api/pkg/errors"
)

func ollamaConfig() *config.LLMConfig {
	return &config.LLMConfig{
		DefaultProvider: "ollama",
		Providers: map[string]config.ProviderConfig{
			"ollama":  {BaseURL: "http://localhost:11434/v1", APIKey: "ollama", Model: "llama3.2"},
			"nomodel": {BaseURL: "http://localhost:11434/v1"},
			"openai":  {BaseURL: "https://api.openai.com/v1", APIKey: "sk-test", Model: "gpt-4o-mini", MaxTokens: 512},
		},
	}
}

func TestEinoFactory_CachesPerProvider(t *testing.T) {
	f, err := NewEinoFactory(ollamaConfig())
	require.NoError(t, err)

	a, err := f.Get(context.Background(), "")
	require.NoError(t, err)
	b, err := f.Get(context.Background(), "ollama")
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := f.Get(context.Background(), "openai")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestEinoFactory_ProviderErrors(t *testing.T) {
	f, err := NewEinoFactory(ollamaConfig())
	require.NoError(t, err)

	_, err = f.Get(context.Background(), "missing")
	assert.True(t, stderrors.Is(err, errors.ErrConfiguration))
	assert.Contains(t, errors.AsAppError(err).Detail, "missing")

	_, err = f.Get(context.Background(), "nomodel")
	assert.True(t, stderrors.Is(err, errors.ErrConfiguration))
	assert.ErrorContains(t, err, "model is required")
}

func TestNewEinoFactory_DefaultProviderMustExist(t *testing.T) {
	_, err := NewEinoFactory(&config.LLMConfig{})
	assert.True(t, stderrors.Is(err, errors.ErrConfiguration))

	_, err = NewEinoFactory(&config.LLMConfig{DefaultProvider: "ollama"})
	assert.True(t, stderrors.Is(err, errors.ErrConfiguration))
}
