package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"

	"doc-qa-api/internal/config"
	"doc-qa-api/pkg/errors"
)

// NewEmbedder 按 provider 创建 Embedder。
// ollama 走原生 /api/embed；openai 走 OpenAI 兼容 /embeddings（Ollama 的 /v1 同样可用）。
func NewEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.ErrConfiguration.WithDetail("embedding endpoint is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.ErrConfiguration.WithDetail("embedding dimension must be positive")
	}

	switch cfg.Provider {
	case config.EmbeddingProviderOllama:
		return NewClient(cfg), nil
	case config.EmbeddingProviderOpenAI, "":
		emb, err := openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.Endpoint,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, errors.ErrConfiguration.WithError(fmt.Errorf("create openai embedder: %w", err))
		}
		return emb, nil
	default:
		return nil, errors.ErrConfiguration.WithDetail("unsupported embedding provider: " + cfg.Provider)
	}
}

// ProbeDimension 用一次真实调用确认模型输出维度与配置一致
func ProbeDimension(ctx context.Context, emb embedding.Embedder, want int) error {
	vecs, err := emb.EmbedStrings(ctx, []string{"dimension probe"})
	if err != nil {
		return errors.ErrEmbeddingFailed.WithError(err)
	}
	if len(vecs) != 1 {
		return errors.ErrEmbeddingFailed.WithDetail(fmt.Sprintf("probe returned %d vectors", len(vecs)))
	}
	if got := len(vecs[0]); got != want {
		return errors.ErrConfiguration.WithDetail(
			fmt.Sprintf("embedding model returned dimension %d, configured %d", got, want))
	}
	return nil
}
