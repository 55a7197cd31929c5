package retrieval

import "context"

// VectorIndex 定义应用层对“向量存储/检索”的最小依赖（port）。
// 由基础设施层提供具体实现（Milvus / pgvector / 内存）。实现须支持并发调用。
type VectorIndex interface {
	// EnsureReady 确保集合/表与索引存在
	EnsureReady(ctx context.Context) error
	// Add 按 ID upsert；重复 ID 覆盖旧记录
	Add(ctx context.Context, entries []IndexEntry) error
	// Query 返回至多 k 条按余弦相似度降序的结果；空索引返回空切片
	Query(ctx context.Context, vector []float32, k int) ([]RetrievedSegment, error)
}
