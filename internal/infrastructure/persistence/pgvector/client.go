// Package pgvector 提供基于 PostgreSQL + pgvector 扩展的向量索引实现
package pgvector

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"doc-qa-api/internal/config"
)

var tracer = otel.Tracer("pgvector")

// Client PostgreSQL 客户端
type Client struct {
	db     *sqlx.DB
	config *config.PGVectorConfig
}

// NewClient 创建 PostgreSQL 客户端
func NewClient(ctx context.Context, cfg *config.PGVectorConfig) (*Client, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return &Client{db: db, config: cfg}, nil
}

// DSN 构造 lib/pq 连接串
func DSN(cfg *config.PGVectorConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode)
}

// DB 获取底层连接
func (c *Client) DB() *sqlx.DB {
	return c.db
}

// Close 关闭连接
func (c *Client) Close() error {
	return c.db.Close()
}

// HealthCheck 健康检查
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "pgvector.HealthCheck")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
