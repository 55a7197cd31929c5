package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"doc-qa-api/internal/domain/service"
	"doc-qa-api/pkg/errors"
	"doc-qa-api/pkg/logger"
	"doc-qa-api/pkg/metrics"
	"doc-qa-api/pkg/tracer"
)

const (
	DefaultTopK    = 4
	defaultMaxTopK = 50
)

// Engine 检索器：查询向量化 + 向量近邻检索，不做额外过滤或重排
type Engine struct {
	embedder embedding.Embedder
	index    VectorIndex

	dimension int
	topK      int
	maxTopK   int
}

func NewEngine(embedder embedding.Embedder, index VectorIndex, dimension, topK, maxTopK int) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if maxTopK <= 0 {
		maxTopK = defaultMaxTopK
	}
	return &Engine{
		embedder:  embedder,
		index:     index,
		dimension: dimension,
		topK:      topK,
		maxTopK:   maxTopK,
	}
}

func (e *Engine) Enabled() bool {
	return e != nil && e.embedder != nil && e.index != nil
}

// Retrieve 返回至多 k 条按相似度降序的片段；k 为 0 时使用默认值，超过上限时截断。
func (e *Engine) Retrieve(ctx context.Context, query string, k int) (segs []RetrievedSegment, err error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, errors.ErrInvalidParam.WithDetail("query is required")
	}
	if k < 0 {
		return nil, errors.ErrInvalidParam.WithDetail(fmt.Sprintf("k must be positive, got %d", k))
	}
	if !e.Enabled() {
		return nil, ErrVectorDisabled
	}
	if k == 0 {
		k = e.topK
	}
	if k > e.maxTopK {
		k = e.maxTopK
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "retrieval.Retrieve", trace.WithAttributes(attribute.Int("top_k", k)))
	ctx = service.WithWorkflow(ctx, service.WorkflowRetrieve)
	defer func() {
		metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
		tracer.EndWithError(span, err)
	}()

	vecs, err := embedTexts(ctx, e.embedder, []string{q}, e.dimension)
	if err != nil {
		return nil, err
	}

	segs, err = e.index.Query(ctx, vecs[0], k)
	if err != nil {
		return nil, wrapIndexError(err, "query segments")
	}
	if len(segs) > k {
		segs = segs[:k]
	}

	metrics.RetrievalResults.Observe(float64(len(segs)))
	logger.Debug(ctx, "segments retrieved",
		"top_k", k,
		"results", len(segs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return segs, nil
}
