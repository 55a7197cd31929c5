package dto

// IngestTextRequest 纯文本入库请求
type IngestTextRequest struct {
	Name      string `json:"name" binding:"required"`
	Text      string `json:"text" binding:"required"`
	ChunkSize int    `json:"chunk_size,omitempty"`
	Overlap   int    `json:"overlap,omitempty"`
}

// IngestResponse 入库响应
type IngestResponse struct {
	SegmentsIndexed int    `json:"segments_indexed"`
	DocumentID      string `json:"document_id"`
	Timestamp       int64  `json:"timestamp"`
	Pages           int    `json:"pages,omitempty"`
}
