// Package mocks 提供测试用的 Embedder / ChatModel 模拟实现
package mocks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cloudwego/eino/components/embedding"
)

// MockEmbedder 默认按字符哈希生成确定性向量；设置 EmbedStringsFn 可覆盖行为
type MockEmbedder struct {
	Dimension      int
	EmbedStringsFn func(ctx context.Context, texts []string) ([][]float64, error)

	calls atomic.Int64
	mu    sync.Mutex
	texts []string
}

var _ embedding.Embedder = (*MockEmbedder)(nil)

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{Dimension: dimension}
}

func (m *MockEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.texts = append(m.texts, texts...)
	m.mu.Unlock()

	if m.EmbedStringsFn != nil {
		return m.EmbedStringsFn(ctx, texts)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = HashVector(t, m.Dimension)
	}
	return out, nil
}

// Calls EmbedStrings 调用次数
func (m *MockEmbedder) Calls() int {
	return int(m.calls.Load())
}

// Texts 所有被向量化过的文本（按调用完成顺序，不保证与输入顺序一致）
func (m *MockEmbedder) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// HashVector 字符频次向量：内容相近的文本余弦相似度更高
func HashVector(text string, dimension int) []float64 {
	if dimension <= 0 {
		dimension = 8
	}
	vec := make([]float64, dimension)
	for _, r := range text {
		vec[int(r)%dimension]++
	}
	// 保证非零向量
	vec[0] += 0.001
	return vec
}

// ToFloat32 将 HashVector 结果转换为向量索引使用的 float32
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
