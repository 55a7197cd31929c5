package pgvector

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/pkg/errors"
	"doc-qa-api/pkg/metrics"
)

const (
	backendLabel = "pgvector"
	DefaultTable = "document_segments"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// segmentRow 表行
type segmentRow struct {
	ID          string          `db:"id"`
	Embedding   pgvector.Vector `db:"embedding"`
	Source      string          `db:"source"`
	ChunkIndex  int             `db:"chunk_index"`
	TotalChunks int             `db:"total_chunks"`
	NumPages    int             `db:"num_pages"`
	Timestamp   int64           `db:"timestamp"`
	TextContent string          `db:"text_content"`
}

type scoredRow struct {
	segmentRow
	Score float64 `db:"score"`
}

// Store 实现 retrieval.VectorIndex
type Store struct {
	client    *Client
	table     string
	dimension int
	ready     atomic.Bool
}

var _ retrieval.VectorIndex = (*Store)(nil)

// NewStore 创建 pgvector 向量索引；表名只允许小写标识符，避免拼接 SQL 注入
func NewStore(client *Client, table string, dimension int) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, errors.ErrConfiguration.WithDetail(fmt.Sprintf("invalid pgvector table name %q", table))
	}
	if dimension <= 0 {
		return nil, errors.ErrConfiguration.WithDetail("embedding dimension must be positive")
	}
	return &Store{client: client, table: table, dimension: dimension}, nil
}

// schemaStatements 中从该下标起为建索引语句
const indexStatementsFrom = 2

func (s *Store) schemaStatements() []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			source TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			total_chunks INTEGER NOT NULL,
			num_pages INTEGER NOT NULL DEFAULT 0,
			timestamp BIGINT NOT NULL,
			text_content TEXT NOT NULL
		)`, s.table, s.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_source_idx ON %s (source)`, s.table, s.table),
	}
}

// EnsureReady 建扩展、表与 HNSW 索引（幂等）
func (s *Store) EnsureReady(ctx context.Context) error {
	if s == nil || s.client == nil {
		return retrieval.ErrVectorDisabled
	}
	if s.ready.Load() {
		return nil
	}
	ctx, span := tracer.Start(ctx, "pgvector.EnsureReady",
		trace.WithAttributes(attribute.String("table", s.table)))
	defer span.End()

	stmts := s.schemaStatements()
	// 先建表再校验已有列的维度，维度不符时不再建索引
	for i, stmt := range stmts {
		if i == indexStatementsFrom {
			if err := s.verifyDimension(ctx); err != nil {
				span.RecordError(err)
				return err
			}
		}
		if _, err := s.client.db.ExecContext(ctx, stmt); err != nil {
			span.RecordError(err)
			return errors.ErrVectorDB.WithError(fmt.Errorf("init schema: %w", err))
		}
	}
	s.ready.Store(true)
	return nil
}

// verifyDimension 读取 embedding 列的 typmod（pgvector 中即向量维度）与配置比较
func (s *Store) verifyDimension(ctx context.Context) error {
	var typmod int
	err := s.client.db.GetContext(ctx, &typmod,
		`SELECT atttypmod FROM pg_attribute
		WHERE attrelid = $1::regclass AND attname = 'embedding' AND NOT attisdropped`, s.table)
	if err != nil {
		return errors.ErrVectorDB.WithError(fmt.Errorf("read embedding column: %w", err))
	}
	return checkColumnDimension(s.table, typmod, s.dimension)
}

// checkColumnDimension typmod<=0 表示列未声明维度，不做约束
func checkColumnDimension(table string, typmod, want int) error {
	if typmod <= 0 || typmod == want {
		return nil
	}
	return errors.ErrConfiguration.WithDetail(fmt.Sprintf(
		"table %s stores %d-dimensional vectors, embedding dimension is %d", table, typmod, want))
}

// Add 在单个事务内按主键 upsert，全部成功或全部回滚
func (s *Store) Add(ctx context.Context, entries []retrieval.IndexEntry) (err error) {
	if s == nil || s.client == nil {
		return retrieval.ErrVectorDisabled
	}
	ctx, span := tracer.Start(ctx, "pgvector.Add",
		trace.WithAttributes(attribute.Int("count", len(entries))))
	defer func() {
		metrics.VectorOpsTotal.WithLabelValues(backendLabel, "upsert", metrics.StatusLabel(err)).Inc()
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if len(e.Vector) != s.dimension {
			return errors.ErrConfiguration.WithDetail(
				fmt.Sprintf("vector dimension mismatch for %s: want %d, got %d", e.ID, s.dimension, len(e.Vector)))
		}
	}

	tx, err := s.client.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.ErrVectorDB.WithError(err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`INSERT INTO %s (id, embedding, source, chunk_index, total_chunks, num_pages, timestamp, text_content)
		VALUES (:id, :embedding, :source, :chunk_index, :total_chunks, :num_pages, :timestamp, :text_content)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			source = EXCLUDED.source,
			chunk_index = EXCLUDED.chunk_index,
			total_chunks = EXCLUDED.total_chunks,
			num_pages = EXCLUDED.num_pages,
			timestamp = EXCLUDED.timestamp,
			text_content = EXCLUDED.text_content`, s.table)

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return errors.ErrVectorDB.WithError(err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, toRow(e)); err != nil {
			return errors.ErrVectorDB.WithError(fmt.Errorf("upsert %s: %w", e.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.ErrVectorDB.WithError(err)
	}
	return nil
}

// Query 余弦距离升序，score = 1 - distance
func (s *Store) Query(ctx context.Context, vector []float32, k int) (out []retrieval.RetrievedSegment, err error) {
	if s == nil || s.client == nil {
		return nil, retrieval.ErrVectorDisabled
	}
	if k <= 0 {
		return []retrieval.RetrievedSegment{}, nil
	}
	if len(vector) != s.dimension {
		return nil, errors.ErrConfiguration.WithDetail(
			fmt.Sprintf("query vector dimension mismatch: want %d, got %d", s.dimension, len(vector)))
	}
	if err := s.EnsureReady(ctx); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "pgvector.Query", trace.WithAttributes(attribute.Int("top_k", k)))
	start := time.Now()
	defer func() {
		metrics.VectorSearchDuration.WithLabelValues(backendLabel).Observe(time.Since(start).Seconds())
		metrics.VectorOpsTotal.WithLabelValues(backendLabel, "search", metrics.StatusLabel(err)).Inc()
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	query := fmt.Sprintf(`SELECT id, embedding, source, chunk_index, total_chunks, num_pages, timestamp, text_content,
			1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, id
		LIMIT $2`, s.table)

	var rows []scoredRow
	if err := s.client.db.SelectContext(ctx, &rows, query, pgvector.NewVector(vector), k); err != nil {
		return nil, errors.ErrVectorDB.WithError(err)
	}

	out = make([]retrieval.RetrievedSegment, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	span.SetAttributes(attribute.Int("result_count", len(out)))
	return out, nil
}

func toRow(e retrieval.IndexEntry) segmentRow {
	return segmentRow{
		ID:          e.ID,
		Embedding:   pgvector.NewVector(e.Vector),
		Source:      e.Meta.Source,
		ChunkIndex:  e.Meta.ChunkIndex,
		TotalChunks: e.Meta.TotalChunks,
		NumPages:    e.Meta.NumPages,
		Timestamp:   e.Meta.Timestamp,
		TextContent: e.Text,
	}
}

func fromRow(r scoredRow) retrieval.RetrievedSegment {
	return retrieval.RetrievedSegment{
		ID:   r.ID,
		Text: r.TextContent,
		Meta: retrieval.SegmentMeta{
			Source:      r.Source,
			ChunkIndex:  r.ChunkIndex,
			TotalChunks: r.TotalChunks,
			NumPages:    r.NumPages,
			Timestamp:   r.Timestamp,
		},
		Score: r.Score,
	}
}
