package retrieval

import "doc-qa-api/pkg/errors"

var (
	// ErrVectorDisabled 表示向量检索/索引能力未配置（向量库或 Embedder 不可用）。
	ErrVectorDisabled = errors.New(errors.CodeServiceUnavailable, "vector retrieval is disabled")
)
