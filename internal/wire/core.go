// Package wire 手工组装应用依赖（启动时构造一次，注入各层）
package wire

import (
	"context"
	stderrors "errors"
	"fmt"

	einoembedding "github.com/cloudwego/eino/components/embedding"

	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/internal/config"
	infraembedding "doc-qa-api/internal/infrastructure/embedding"
	"doc-qa-api/internal/infrastructure/persistence/memory"
	"doc-qa-api/internal/infrastructure/persistence/milvus"
	"doc-qa-api/internal/infrastructure/persistence/pgvector"
	"doc-qa-api/internal/interfaces/http/handler"
	"doc-qa-api/pkg/errors"
	"doc-qa-api/pkg/logger"
)

// Core 入库与检索共用的核心依赖
type Core struct {
	Embedder      einoembedding.Embedder
	Index         retrieval.VectorIndex
	Indexer       *retrieval.Indexer
	VectorChecker handler.HealthChecker
}

// NewCore 构造 Embedder、向量索引与入库流水线
func NewCore(ctx context.Context, cfg *config.Config) (*Core, func(), error) {
	embedder, err := infraembedding.NewEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("init embedder: %w", err)
	}
	// 维度不一致直接拒绝启动；服务暂不可达只告警，首个请求时再报错
	if err := infraembedding.ProbeDimension(ctx, embedder, cfg.Embedding.Dimension); err != nil {
		if stderrors.Is(err, errors.ErrConfiguration) {
			return nil, nil, fmt.Errorf("init embedder: %w", err)
		}
		logger.Warn(ctx, "embedding service not reachable at startup", "error", err.Error())
	}

	index, checker, cleanup, err := NewVectorIndex(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	// 已有集合/表的维度与配置不符时拒绝启动；后端暂不可达时留到首个请求再建
	if err := index.EnsureReady(ctx); err != nil {
		if stderrors.Is(err, errors.ErrConfiguration) {
			cleanup()
			return nil, nil, fmt.Errorf("init vector index: %w", err)
		}
		logger.Warn(ctx, "vector index not ready at startup", "backend", cfg.Vector.Backend, "error", err.Error())
	}

	indexer := retrieval.NewIndexer(embedder, index, retrieval.IndexerOptions{
		Dimension:    cfg.Embedding.Dimension,
		BatchSize:    cfg.Ingest.EmbedBatchSize,
		Parallelism:  cfg.Ingest.EmbedParallelism,
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	})

	return &Core{
		Embedder:      embedder,
		Index:         index,
		Indexer:       indexer,
		VectorChecker: checker,
	}, cleanup, nil
}

// NewVectorIndex 按 vector.backend 选择向量索引实现
func NewVectorIndex(ctx context.Context, cfg *config.Config) (retrieval.VectorIndex, handler.HealthChecker, func(), error) {
	dim := cfg.Embedding.Dimension

	switch cfg.Vector.Backend {
	case config.VectorBackendMilvus:
		client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
		if err != nil {
			return nil, nil, nil, err
		}
		repo := milvus.NewRepository(client, dim)
		cleanup := func() {
			if err := client.Close(); err != nil {
				logger.Error(ctx, "failed to close milvus client", err)
			}
		}
		return milvus.NewRetrievalVectorIndex(repo), client, cleanup, nil

	case config.VectorBackendPGVector:
		client, err := pgvector.NewClient(ctx, &cfg.Vector.PGVector)
		if err != nil {
			return nil, nil, nil, err
		}
		store, err := pgvector.NewStore(client, cfg.Vector.PGVector.Table, dim)
		if err != nil {
			_ = client.Close()
			return nil, nil, nil, err
		}
		cleanup := func() {
			if err := client.Close(); err != nil {
				logger.Error(ctx, "failed to close postgres client", err)
			}
		}
		return store, client, cleanup, nil

	case config.VectorBackendMemory:
		logger.Warn(ctx, "using in-memory vector index; data is lost on restart")
		return memory.NewStore(dim), nil, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}
}
