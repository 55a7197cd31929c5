package retrieval

import (
	"fmt"
	"strings"

	"doc-qa-api/pkg/errors"
)

// SegmentMeta 片段的入库元信息，随向量一起持久化。
// NumPages 仅 PDF 入库时可知，0 表示未知。
type SegmentMeta struct {
	Source      string `json:"source"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	NumPages    int    `json:"num_pages,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// Validate 在入库边界校验元信息
func (m SegmentMeta) Validate() error {
	switch {
	case strings.TrimSpace(m.Source) == "":
		return errors.ErrInvalidParam.WithDetail("segment source is required")
	case m.TotalChunks <= 0:
		return errors.ErrInvalidParam.WithDetail("segment total_chunks must be positive")
	case m.ChunkIndex < 0 || m.ChunkIndex >= m.TotalChunks:
		return errors.ErrInvalidParam.WithDetail(
			fmt.Sprintf("segment chunk_index %d out of range [0, %d)", m.ChunkIndex, m.TotalChunks))
	case m.NumPages < 0:
		return errors.ErrInvalidParam.WithDetail("segment num_pages must not be negative")
	case m.Timestamp <= 0:
		return errors.ErrInvalidParam.WithDetail("segment timestamp is required")
	}
	return nil
}

// IndexEntry 写入向量索引的一条记录（id、文本、向量、元信息按位置对齐）
type IndexEntry struct {
	ID     string
	Text   string
	Vector []float32
	Meta   SegmentMeta
}

// RetrievedSegment 检索结果，Score 为余弦相似度，按降序排列
type RetrievedSegment struct {
	ID    string
	Text  string
	Meta  SegmentMeta
	Score float64
}

// Citation 面向用户的引用：估算页码 + 截断摘录
type Citation struct {
	Page    int    `json:"page"`
	Content string `json:"content"`
}

// IngestInput 文档入库输入。ChunkSize 为 0 时 ChunkSize/Overlap 都取默认值，
// 此时 Overlap 必须为 0（单独指定 Overlap 会被拒绝，而不是静默忽略）。
type IngestInput struct {
	DocumentName string
	Text         string
	ChunkSize    int
	Overlap      int
	NumPages     int
}

// IngestResult 入库结果
type IngestResult struct {
	SegmentsIndexed int    `json:"segments_indexed"`
	DocumentID      string `json:"document_id"`
	Timestamp       int64  `json:"timestamp"`
}
