// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionSegments 文档片段集合
	CollectionSegments = "document_segments"

	// DefaultVectorDimension nomic-embed-text 的向量维度
	DefaultVectorDimension = 768

	fieldID          = "id"
	fieldVector      = "vector"
	fieldSource      = "source"
	fieldChunkIndex  = "chunk_index"
	fieldTotalChunks = "total_chunks"
	fieldNumPages    = "num_pages"
	fieldTimestamp   = "timestamp"
	fieldText        = "text_content"
)

// outputFields 检索时返回的标量字段
var outputFields = []string{
	fieldID, fieldSource, fieldChunkIndex, fieldTotalChunks, fieldNumPages, fieldTimestamp, fieldText,
}

// SegmentsSchema 文档片段 Collection Schema；dim 须与 Embedding 模型一致
func SegmentsSchema(dim int) *entity.Schema {
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	return &entity.Schema{
		CollectionName: CollectionSegments,
		Description:    "Document segments for semantic search",
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     fieldVector,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
			{
				Name:     fieldSource,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     fieldChunkIndex,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     fieldTotalChunks,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     fieldNumPages,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     fieldTimestamp,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     fieldText,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}

// Segment 文档片段数据结构
type Segment struct {
	ID          string    `json:"id"`
	Vector      []float32 `json:"vector"`
	Source      string    `json:"source"`
	ChunkIndex  int64     `json:"chunk_index"`
	TotalChunks int64     `json:"total_chunks"`
	NumPages    int64     `json:"num_pages"`
	Timestamp   int64     `json:"timestamp"`
	TextContent string    `json:"text_content"`
}
