package handler

import (
	"context"
	stderrors "errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/internal/infrastructure/pdftext"
	"doc-qa-api/internal/interfaces/http/dto"
	"doc-qa-api/pkg/errors"
	"doc-qa-api/pkg/logger"
)

const defaultMaxUploadBytes int64 = 32 << 20

// Ingester 文档入库
type Ingester interface {
	Ingest(ctx context.Context, in retrieval.IngestInput) (*retrieval.IngestResult, error)
}

// PDFExtractor PDF 文本抽取
type PDFExtractor interface {
	Extract(ctx context.Context, r io.Reader) (*pdftext.Result, error)
}

// DocumentHandler 文档入库处理器
type DocumentHandler struct {
	ingester       Ingester
	extractor      PDFExtractor
	maxUploadBytes int64
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(ingester Ingester, extractor PDFExtractor, maxUploadBytes int64) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &DocumentHandler{
		ingester:       ingester,
		extractor:      extractor,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadPDF 上传 PDF 并入库
// @Summary 上传 PDF
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF 文件"
// @Success 201 {object} dto.Response[dto.IngestResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 413 {object} dto.ErrorResponse
// @Failure 415 {object} dto.ErrorResponse
// @Router /v1/documents [post]
func (h *DocumentHandler) UploadPDF(c *gin.Context) {
	if c.Request.ContentLength > h.maxUploadBytes {
		dto.Error(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			dto.Error(c, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		dto.BadRequest(c, "No file provided")
		return
	}
	defer file.Close()

	if !isPDF(header.Header.Get("Content-Type")) {
		dto.AppError(c, errors.ErrUnsupportedMedia.WithDetail("Only PDF files are supported"))
		return
	}

	name := filepath.Base(header.Filename)
	ctx := logger.WithContext(c.Request.Context(), logger.DocumentKey, name)

	extracted, err := h.extractor.Extract(ctx, file)
	if err != nil {
		logger.Error(ctx, "pdf extraction failed", err)
		dto.AppError(c, err)
		return
	}

	result, err := h.ingester.Ingest(ctx, retrieval.IngestInput{
		DocumentName: name,
		Text:         extracted.Text,
		NumPages:     extracted.NumPages,
	})
	if err != nil {
		logger.Error(ctx, "document ingestion failed", err)
		dto.AppError(c, err)
		return
	}

	dto.Created(c, dto.IngestResponse{
		SegmentsIndexed: result.SegmentsIndexed,
		DocumentID:      result.DocumentID,
		Timestamp:       result.Timestamp,
		Pages:           extracted.NumPages,
	})
}

// IngestText 纯文本入库
// @Summary 纯文本入库
// @Tags Documents
// @Accept json
// @Produce json
// @Param body body dto.IngestTextRequest true "文档"
// @Success 201 {object} dto.Response[dto.IngestResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/documents/text [post]
func (h *DocumentHandler) IngestText(c *gin.Context) {
	var req dto.IngestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	// 请求携带的切分参数属于调用方输入
	if req.ChunkSize == 0 && req.Overlap != 0 {
		dto.BadRequest(c, "overlap requires chunk_size")
		return
	}
	if req.ChunkSize < 0 || (req.ChunkSize > 0 && (req.Overlap < 0 || req.Overlap >= req.ChunkSize)) {
		dto.BadRequest(c, "chunk_size must be positive and greater than overlap")
		return
	}

	ctx := logger.WithContext(c.Request.Context(), logger.DocumentKey, req.Name)
	result, err := h.ingester.Ingest(ctx, retrieval.IngestInput{
		DocumentName: req.Name,
		Text:         req.Text,
		ChunkSize:    req.ChunkSize,
		Overlap:      req.Overlap,
	})
	if err != nil {
		logger.Error(ctx, "document ingestion failed", err)
		dto.AppError(c, err)
		return
	}

	dto.Created(c, dto.IngestResponse{
		SegmentsIndexed: result.SegmentsIndexed,
		DocumentID:      result.DocumentID,
		Timestamp:       result.Timestamp,
	})
}

func isPDF(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/pdf"
}
