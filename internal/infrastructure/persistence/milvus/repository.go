package milvus

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"doc-qa-api/pkg/errors"
	"doc-qa-api/pkg/metrics"
)

const (
	backendLabel     = "milvus"
	defaultSearchEf  = 128
	defaultHNSWM     = 16
	defaultHNSWEfCon = 200
)

// Repository 向量检索仓储
type Repository struct {
	client    *Client
	dimension int
	ready     atomic.Bool
}

// NewRepository 创建向量检索仓储
func NewRepository(client *Client, dimension int) *Repository {
	if dimension <= 0 {
		dimension = DefaultVectorDimension
	}
	return &Repository{client: client, dimension: dimension}
}

// SearchResult 检索结果；Score 为 COSINE 相似度（越大越相近）
type SearchResult struct {
	Segment
	Score float32
}

func (r *Repository) configured() error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	return nil
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	if err := r.configured(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	schema.CollectionName = r.client.CollectionName(schema.CollectionName)

	err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// CreateIndex 创建 HNSW 索引（COSINE）
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	if err := r.configured(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	m, efc := r.client.config.HNSWM, r.client.config.HNSWEfConstruction
	if m <= 0 {
		m = defaultHNSWM
	}
	if efc <= 0 {
		efc = defaultHNSWEfCon
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, m, efc)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = r.client.milvus.CreateIndex(ctx, r.client.CollectionName(collection), fieldVector, idx, false)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// EnsureSegmentsCollection 确保 document_segments 集合与索引可用（不存在则创建）。
// 约束：不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsureSegmentsCollection(ctx context.Context) error {
	if err := r.configured(); err != nil {
		return err
	}
	if r.ready.Load() {
		return nil
	}

	exists, err := r.client.HasCollection(ctx, CollectionSegments)
	if err != nil {
		return err
	}
	if exists {
		// 已有集合可能是按其它 Embedding 模型建的，维度不符属于配置错误
		coll, err := r.client.DescribeCollection(ctx, CollectionSegments)
		if err != nil {
			return fmt.Errorf("failed to describe collection: %w", err)
		}
		if err := checkVectorDimension(coll.Schema, r.dimension); err != nil {
			return err
		}
	} else {
		if err := r.CreateCollection(ctx, SegmentsSchema(r.dimension)); err != nil {
			return err
		}
		// 未建索引的集合无法 Load，索引失败直接返回
		if err := r.CreateIndex(ctx, CollectionSegments); err != nil {
			return err
		}
	}

	// 尝试确保集合已加载（若已加载，Milvus 会返回成功）
	if err := r.client.LoadCollection(ctx, CollectionSegments); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	r.ready.Store(true)
	return nil
}

// checkVectorDimension 比较集合向量字段的 dim 与配置维度
func checkVectorDimension(schema *entity.Schema, want int) error {
	if schema == nil {
		return errors.ErrConfiguration.WithDetail("milvus collection has no schema")
	}
	for _, f := range schema.Fields {
		if f.Name != fieldVector {
			continue
		}
		got, err := strconv.Atoi(f.TypeParams["dim"])
		if err != nil {
			return errors.ErrConfiguration.WithDetail(
				fmt.Sprintf("milvus field %s has unreadable dim %q", fieldVector, f.TypeParams["dim"]))
		}
		if got != want {
			return errors.ErrConfiguration.WithDetail(fmt.Sprintf(
				"milvus collection %s stores %d-dimensional vectors, embedding dimension is %d",
				schema.CollectionName, got, want))
		}
		return nil
	}
	return errors.ErrConfiguration.WithDetail(
		fmt.Sprintf("milvus collection %s has no %s field", schema.CollectionName, fieldVector))
}

// UpsertSegments 按主键写入片段，重复 ID 覆盖
func (r *Repository) UpsertSegments(ctx context.Context, segments []*Segment) (err error) {
	if err := r.configured(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.UpsertSegments",
		trace.WithAttributes(attribute.Int("count", len(segments))))
	defer func() {
		metrics.VectorOpsTotal.WithLabelValues(backendLabel, "upsert", metrics.StatusLabel(err)).Inc()
		span.End()
	}()

	if len(segments) == 0 {
		return nil
	}

	n := len(segments)
	ids := make([]string, n)
	vectors := make([][]float32, n)
	sources := make([]string, n)
	chunkIndexes := make([]int64, n)
	totals := make([]int64, n)
	pages := make([]int64, n)
	timestamps := make([]int64, n)
	texts := make([]string, n)

	for i, seg := range segments {
		if len(seg.Vector) != r.dimension {
			return fmt.Errorf("vector dimension mismatch for %s: want %d, got %d", seg.ID, r.dimension, len(seg.Vector))
		}
		ids[i] = seg.ID
		vectors[i] = seg.Vector
		sources[i] = seg.Source
		chunkIndexes[i] = seg.ChunkIndex
		totals[i] = seg.TotalChunks
		pages[i] = seg.NumPages
		timestamps[i] = seg.Timestamp
		texts[i] = seg.TextContent
	}

	_, err = r.client.milvus.Upsert(ctx, r.client.CollectionName(CollectionSegments), "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldVector, r.dimension, vectors),
		entity.NewColumnVarChar(fieldSource, sources),
		entity.NewColumnInt64(fieldChunkIndex, chunkIndexes),
		entity.NewColumnInt64(fieldTotalChunks, totals),
		entity.NewColumnInt64(fieldNumPages, pages),
		entity.NewColumnInt64(fieldTimestamp, timestamps),
		entity.NewColumnVarChar(fieldText, texts),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert segments: %w", err)
	}

	return nil
}

// SearchSegments 检索最相近的 topK 个片段，按相似度降序
func (r *Repository) SearchSegments(ctx context.Context, vector []float32, topK int) (results []*SearchResult, err error) {
	if err := r.configured(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchSegments",
		trace.WithAttributes(attribute.Int("top_k", topK)))
	start := time.Now()
	defer func() {
		metrics.VectorSearchDuration.WithLabelValues(backendLabel).Observe(time.Since(start).Seconds())
		metrics.VectorOpsTotal.WithLabelValues(backendLabel, "search", metrics.StatusLabel(err)).Inc()
		span.End()
	}()

	if len(vector) != r.dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: want %d, got %d", r.dimension, len(vector))
	}

	ef := r.client.config.HNSWEf
	if ef < topK {
		ef = max(topK, defaultSearchEf)
	}
	sp, err := entity.NewIndexHNSWSearchParam(ef)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	// 入库后立即提问的场景需要读到刚写入的数据
	res, err := r.client.milvus.Search(ctx,
		r.client.CollectionName(CollectionSegments),
		nil,
		"",
		outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector,
		entity.COSINE,
		topK,
		sp,
		client.WithSearchQueryConsistencyLevel(entity.ClStrong),
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results = make([]*SearchResult, 0, topK)
	for _, result := range res {
		for i := 0; i < result.ResultCount; i++ {
			results = append(results, parseResult(result, i))
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	return results, nil
}

func parseResult(result client.SearchResult, i int) *SearchResult {
	sr := &SearchResult{Score: result.Scores[i]}

	if col, ok := result.Fields.GetColumn(fieldID).(*entity.ColumnVarChar); ok {
		sr.ID = col.Data()[i]
	}
	if col, ok := result.Fields.GetColumn(fieldSource).(*entity.ColumnVarChar); ok {
		sr.Source = col.Data()[i]
	}
	if col, ok := result.Fields.GetColumn(fieldText).(*entity.ColumnVarChar); ok {
		sr.TextContent = col.Data()[i]
	}
	if col, ok := result.Fields.GetColumn(fieldChunkIndex).(*entity.ColumnInt64); ok {
		sr.ChunkIndex = col.Data()[i]
	}
	if col, ok := result.Fields.GetColumn(fieldTotalChunks).(*entity.ColumnInt64); ok {
		sr.TotalChunks = col.Data()[i]
	}
	if col, ok := result.Fields.GetColumn(fieldNumPages).(*entity.ColumnInt64); ok {
		sr.NumPages = col.Data()[i]
	}
	if col, ok := result.Fields.GetColumn(fieldTimestamp).(*entity.ColumnInt64); ok {
		sr.Timestamp = col.Data()[i]
	}
	return sr
}
