package wire

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"doc-qa-api/internal/application/answer"
	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/internal/config"
	infraembedding "doc-qa-api/internal/infrastructure/embedding"
	"doc-qa-api/internal/infrastructure/llm"
	"doc-qa-api/internal/infrastructure/pdftext"
	"doc-qa-api/internal/infrastructure/persistence/redis"
	"doc-qa-api/internal/infrastructure/ratelimit"
	"doc-qa-api/internal/interfaces/http/handler"
	"doc-qa-api/internal/interfaces/http/middleware"
	"doc-qa-api/internal/interfaces/http/router"
	"doc-qa-api/pkg/logger"
)

// App HTTP 应用
type App struct {
	router *router.Router
}

// Engine 返回 Gin Engine
func (a *App) Engine() *gin.Engine {
	return a.router.Engine()
}

// InitializeApp 组装 HTTP 服务所需的全部依赖
func InitializeApp(ctx context.Context, cfg *config.Config, version string) (*App, func(), error) {
	core, cleanupCore, err := NewCore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanups := []func(){cleanupCore}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Redis 可选：连接失败时降级为进程内限流、不缓存查询向量
	var (
		redisClient *redis.Client
		limiter     middleware.RateLimiter
	)
	queryEmbedder := core.Embedder
	if cfg.Cache.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, &cfg.Cache.Redis)
		if err != nil {
			logger.Warn(ctx, "redis unavailable, falling back to in-process rate limiting without query cache", "error", err.Error())
			redisClient = nil
		} else {
			cleanups = append(cleanups, func() { _ = redisClient.Close() })
			limiter = redis.NewRateLimiter(redisClient)
			queryEmbedder = infraembedding.NewCachedEmbedder(core.Embedder, redis.NewCache(redisClient),
				cfg.Embedding.Model, cfg.Cache.Redis.QueryEmbeddingTTL)
		}
	}
	if limiter == nil && cfg.Security.RateLimit.Enabled {
		limiter = ratelimit.NewLocalLimiter()
	}

	engine := retrieval.NewEngine(queryEmbedder, core.Index, cfg.Embedding.Dimension,
		cfg.Retrieval.TopK, cfg.Retrieval.MaxTopK)
	models, err := llm.NewEinoFactory(&cfg.LLM)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init llm factory: %w", err)
	}
	if _, err := models.Get(ctx, cfg.LLM.DefaultProvider); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init chat model: %w", err)
	}
	answerSvc := answer.NewService(engine, models, cfg.LLM.DefaultProvider, cfg.Retrieval.TopK)

	extractor := pdftext.New(cfg.PDF.PdftotextPath)
	if err := extractor.CheckAvailable(); err != nil {
		logger.Warn(ctx, "pdf upload will fail until pdftotext is installed", "error", err.Error())
	}

	required := map[string]handler.HealthChecker{}
	if core.VectorChecker != nil {
		required[cfg.Vector.Backend] = core.VectorChecker
	}
	optional := map[string]handler.HealthChecker{}
	if redisClient != nil {
		optional["redis"] = redisClient
	}

	r := router.New(cfg, router.Handlers{
		Health:   handler.NewHealthHandler(version, required, optional),
		Document: handler.NewDocumentHandler(core.Indexer, extractor, cfg.Ingest.MaxUploadBytes),
		Chat:     handler.NewChatHandler(answerSvc),
	}, limiter)

	return &App{router: r}, cleanup, nil
}
