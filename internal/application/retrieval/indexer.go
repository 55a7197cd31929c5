package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"doc-qa-api/internal/domain/service"
	"doc-qa-api/pkg/errors"
	"doc-qa-api/pkg/logger"
	"doc-qa-api/pkg/metrics"
	"doc-qa-api/pkg/tracer"
)

const (
	defaultEmbeddingBatch       = 16
	defaultEmbeddingParallelism = 4
)

// IndexerOptions 入库参数；零值字段使用默认值
type IndexerOptions struct {
	Dimension    int
	BatchSize    int
	Parallelism  int
	ChunkSize    int
	ChunkOverlap int
	Now          func() time.Time
}

// Indexer 文档入库流水线：切分 -> 批量向量化 -> 写入向量索引
type Indexer struct {
	embedder embedding.Embedder
	index    VectorIndex

	dimension          int
	embeddingBatchSize int
	parallelism        int
	chunkSize          int
	chunkOverlap       int
	now                func() time.Time
}

func NewIndexer(embedder embedding.Embedder, index VectorIndex, opts IndexerOptions) *Indexer {
	i := &Indexer{
		embedder:           embedder,
		index:              index,
		dimension:          opts.Dimension,
		embeddingBatchSize: opts.BatchSize,
		parallelism:        opts.Parallelism,
		chunkSize:          opts.ChunkSize,
		chunkOverlap:       opts.ChunkOverlap,
		now:                opts.Now,
	}
	if i.embeddingBatchSize <= 0 {
		i.embeddingBatchSize = defaultEmbeddingBatch
	}
	if i.parallelism <= 0 {
		i.parallelism = defaultEmbeddingParallelism
	}
	if i.chunkSize <= 0 {
		i.chunkSize = DefaultChunkSize
		if i.chunkOverlap == 0 {
			i.chunkOverlap = DefaultChunkOverlap
		}
	}
	if i.now == nil {
		i.now = time.Now
	}
	return i
}

func (i *Indexer) Enabled() bool {
	return i != nil && i.embedder != nil && i.index != nil
}

// Ingest 将一篇文档切分、向量化并写入索引。
// 任一批次向量化失败时整体失败，索引不会被写入（单次 Add）。
func (i *Indexer) Ingest(ctx context.Context, in IngestInput) (result *IngestResult, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "retrieval.Ingest", trace.WithAttributes(
		attribute.String("document", in.DocumentName),
		attribute.Int("text_length", len(in.Text)),
	))
	defer func() {
		metrics.IngestDocumentsTotal.WithLabelValues(metrics.StatusLabel(err)).Inc()
		metrics.IngestDuration.Observe(time.Since(start).Seconds())
		tracer.EndWithError(span, err)
	}()

	name := strings.TrimSpace(in.DocumentName)
	if name == "" {
		return nil, errors.ErrInvalidParam.WithDetail("document name is required")
	}
	ctx = logger.WithContext(ctx, logger.DocumentKey, name)
	ctx = service.WithWorkflow(ctx, service.WorkflowIngest)

	chunkSize, overlap := in.ChunkSize, in.Overlap
	if chunkSize == 0 && overlap != 0 {
		return nil, errors.ErrInvalidParam.WithDetail("overlap requires chunk_size")
	}
	if chunkSize == 0 {
		chunkSize, overlap = i.chunkSize, i.chunkOverlap
	}
	chunks, err := SplitText(in.Text, chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 || strings.TrimSpace(in.Text) == "" {
		return nil, errors.ErrEmptyDocument
	}
	if !i.Enabled() {
		return nil, ErrVectorDisabled
	}

	ts := i.now().UnixMilli()
	docID := fmt.Sprintf("%s-%d", name, ts)
	entries := make([]IndexEntry, len(chunks))
	texts := make([]string, len(chunks))
	for idx, chunk := range chunks {
		meta := SegmentMeta{
			Source:      name,
			ChunkIndex:  idx,
			TotalChunks: len(chunks),
			NumPages:    in.NumPages,
			Timestamp:   ts,
		}
		if err := meta.Validate(); err != nil {
			return nil, err
		}
		entries[idx] = IndexEntry{
			ID:   fmt.Sprintf("%s-%d", docID, idx),
			Text: chunk,
			Meta: meta,
		}
		texts[idx] = chunk
	}

	if err := i.index.EnsureReady(ctx); err != nil {
		return nil, wrapIndexError(err, "ensure vector index")
	}

	vectors, err := i.embedAll(ctx, texts)
	if err != nil {
		logger.Error(ctx, "failed to embed document segments", err, "segments", len(chunks))
		return nil, err
	}
	for idx := range entries {
		entries[idx].Vector = vectors[idx]
	}

	if err := i.index.Add(ctx, entries); err != nil {
		return nil, wrapIndexError(err, "add segments")
	}

	metrics.IngestSegmentsTotal.Add(float64(len(entries)))
	logger.Info(ctx, "document ingested",
		"document_id", docID,
		"segments", len(entries),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &IngestResult{
		SegmentsIndexed: len(entries),
		DocumentID:      docID,
		Timestamp:       ts,
	}, nil
}

// embedAll 按批次并发向量化，并发度受 parallelism 限制；结果按原始顺序写回
func (i *Indexer) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.parallelism)
	for start := 0; start < len(texts); start += i.embeddingBatchSize {
		end := min(start+i.embeddingBatchSize, len(texts))
		g.Go(func() error {
			vecs, err := embedTexts(gctx, i.embedder, texts[start:end], i.dimension)
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func wrapIndexError(err error, op string) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.Wrap(err, errors.CodeVectorDBError, op)
}
