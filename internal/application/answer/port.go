package answer

import (
	"context"

	"github.com/cloudwego/eino/components/model"

	"doc-qa-api/internal/application/retrieval"
)

// ChatModelFactory 定义对 LLM ChatModel 的最小依赖（port）。name 为空时返回默认提供商。
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// Retriever 查询 -> 按相似度降序的片段
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]retrieval.RetrievedSegment, error)
}
