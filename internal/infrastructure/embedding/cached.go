package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"doc-qa-api/pkg/logger"
)

// ByteCache 查询向量缓存后端（Redis 实现见 persistence/redis.Cache）
type ByteCache interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader func() ([]byte, error)) ([]byte, error)
}

// CachedEmbedder 对单条文本（检索查询）做读穿缓存；批量入库请求直接透传。
type CachedEmbedder struct {
	inner embedding.Embedder
	cache ByteCache
	model string
	ttl   time.Duration
}

// NewCachedEmbedder 包装 Embedder；cache 为 nil 或 ttl<=0 时返回原 Embedder
func NewCachedEmbedder(inner embedding.Embedder, cache ByteCache, model string, ttl time.Duration) embedding.Embedder {
	if cache == nil || ttl <= 0 {
		return inner
	}
	return &CachedEmbedder{inner: inner, cache: cache, model: model, ttl: ttl}
}

func (e *CachedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) != 1 {
		return e.inner.EmbedStrings(ctx, texts, opts...)
	}

	var direct [][]float64
	raw, err := e.cache.GetOrLoad(ctx, e.key(texts[0]), e.ttl, func() ([]byte, error) {
		vecs, err := e.inner.EmbedStrings(ctx, texts, opts...)
		if err != nil {
			return nil, err
		}
		direct = vecs
		return json.Marshal(vecs)
	})
	if err != nil {
		return nil, err
	}
	if direct != nil {
		return direct, nil
	}

	var vecs [][]float64
	if err := json.Unmarshal(raw, &vecs); err != nil {
		// 缓存内容损坏时回源
		logger.Warn(ctx, "query embedding cache entry unreadable", "error", err.Error())
		return e.inner.EmbedStrings(ctx, texts, opts...)
	}
	return vecs, nil
}

func (e *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + e.model + ":" + hex.EncodeToString(sum[:])
}
