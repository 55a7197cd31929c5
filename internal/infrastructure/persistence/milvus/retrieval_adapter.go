package milvus

import (
	"context"
	stderrors "errors"

	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/pkg/errors"
)

// RetrievalVectorIndex 将 Repository 适配为检索层的 VectorIndex
type RetrievalVectorIndex struct {
	repo *Repository
}

func NewRetrievalVectorIndex(repo *Repository) *RetrievalVectorIndex {
	return &RetrievalVectorIndex{repo: repo}
}

var _ retrieval.VectorIndex = (*RetrievalVectorIndex)(nil)

func (r *RetrievalVectorIndex) EnsureReady(ctx context.Context) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	if err := r.repo.EnsureSegmentsCollection(ctx); err != nil {
		return wrapRepoError(err)
	}
	return nil
}

func (r *RetrievalVectorIndex) Add(ctx context.Context, entries []retrieval.IndexEntry) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	segments := make([]*Segment, 0, len(entries))
	for _, e := range entries {
		segments = append(segments, ToSegment(e))
	}
	if err := r.repo.UpsertSegments(ctx, segments); err != nil {
		return errors.ErrVectorDB.WithError(err)
	}
	return nil
}

func (r *RetrievalVectorIndex) Query(ctx context.Context, vector []float32, k int) ([]retrieval.RetrievedSegment, error) {
	if r == nil || r.repo == nil {
		return nil, retrieval.ErrVectorDisabled
	}
	if k <= 0 {
		return []retrieval.RetrievedSegment{}, nil
	}
	if err := r.repo.EnsureSegmentsCollection(ctx); err != nil {
		return nil, wrapRepoError(err)
	}

	results, err := r.repo.SearchSegments(ctx, vector, k)
	if err != nil {
		return nil, errors.ErrVectorDB.WithError(err)
	}
	out := make([]retrieval.RetrievedSegment, 0, len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		out = append(out, FromSearchResult(res))
	}
	return out, nil
}

// ToSegment 检索层条目 -> Milvus 行
func ToSegment(e retrieval.IndexEntry) *Segment {
	return &Segment{
		ID:          e.ID,
		Vector:      e.Vector,
		Source:      e.Meta.Source,
		ChunkIndex:  int64(e.Meta.ChunkIndex),
		TotalChunks: int64(e.Meta.TotalChunks),
		NumPages:    int64(e.Meta.NumPages),
		Timestamp:   e.Meta.Timestamp,
		TextContent: e.Text,
	}
}

// FromSearchResult Milvus 检索结果 -> 检索层片段
func FromSearchResult(res *SearchResult) retrieval.RetrievedSegment {
	return retrieval.RetrievedSegment{
		ID:   res.ID,
		Text: res.TextContent,
		Meta: retrieval.SegmentMeta{
			Source:      res.Source,
			ChunkIndex:  int(res.ChunkIndex),
			TotalChunks: int(res.TotalChunks),
			NumPages:    int(res.NumPages),
			Timestamp:   res.Timestamp,
		},
		Score: float64(res.Score),
	}
}

// wrapRepoError 配置错误原样透出，其余归为向量库错误
func wrapRepoError(err error) error {
	if stderrors.Is(err, errors.ErrConfiguration) {
		return err
	}
	return errors.ErrVectorDB.WithError(err)
}
