// Package memory 提供进程内向量索引（暴力余弦相似度），用于本地开发与测试
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/pkg/errors"
)

// Store 进程内向量索引。按 ID upsert，保持首次写入顺序以便相似度相同时结果稳定。
type Store struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	entries   map[string]retrieval.IndexEntry
}

var _ retrieval.VectorIndex = (*Store)(nil)

// NewStore dimension 为 0 时不校验向量维度
func NewStore(dimension int) *Store {
	return &Store{
		dimension: dimension,
		entries:   make(map[string]retrieval.IndexEntry),
	}
}

func (s *Store) EnsureReady(ctx context.Context) error {
	return nil
}

func (s *Store) Add(ctx context.Context, entries []retrieval.IndexEntry) error {
	for _, e := range entries {
		if e.ID == "" {
			return errors.ErrVectorDB.WithDetail("entry id is required")
		}
		if s.dimension > 0 && len(e.Vector) != s.dimension {
			return errors.ErrConfiguration.WithDetail(
				fmt.Sprintf("vector dimension mismatch: want %d, got %d", s.dimension, len(e.Vector)))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if _, ok := s.entries[e.ID]; !ok {
			s.order = append(s.order, e.ID)
		}
		e.Vector = append([]float32(nil), e.Vector...)
		s.entries[e.ID] = e
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]retrieval.RetrievedSegment, error) {
	if k <= 0 {
		return []retrieval.RetrievedSegment{}, nil
	}
	if s.dimension > 0 && len(vector) != s.dimension {
		return nil, errors.ErrConfiguration.WithDetail(
			fmt.Sprintf("query vector dimension mismatch: want %d, got %d", s.dimension, len(vector)))
	}

	s.mu.RLock()
	out := make([]retrieval.RetrievedSegment, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		out = append(out, retrieval.RetrievedSegment{
			ID:    e.ID,
			Text:  e.Text,
			Meta:  e.Meta,
			Score: cosineSimilarity(vector, e.Vector),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Len 当前条目数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
