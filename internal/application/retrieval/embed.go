package retrieval

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"

	"doc-qa-api/pkg/errors"
)

// embedTexts 调用 Embedder 并转换为 float32，逐条校验数量与维度。
// 失败不会返回零向量，也不做重试。
func embedTexts(ctx context.Context, embedder embedding.Embedder, texts []string, dimension int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	v64, err := embedder.EmbedStrings(ctx, texts)
	if err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.ErrEmbeddingFailed.WithError(err)
	}
	if len(v64) != len(texts) {
		return nil, errors.ErrEmbeddingFailed.WithDetail(
			fmt.Sprintf("embedding count mismatch: want %d, got %d", len(texts), len(v64)))
	}

	out := make([][]float32, len(v64))
	for idx, vec := range v64 {
		if len(vec) == 0 {
			return nil, errors.ErrEmbeddingFailed.WithDetail("empty embedding result")
		}
		if dimension > 0 && len(vec) != dimension {
			return nil, errors.ErrConfiguration.WithDetail(
				fmt.Sprintf("embedding dimension mismatch: want %d, got %d", dimension, len(vec)))
		}
		f32 := make([]float32, len(vec))
		for j, x := range vec {
			f32[j] = float32(x)
		}
		out[idx] = f32
	}
	return out, nil
}
