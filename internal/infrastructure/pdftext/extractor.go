// Package pdftext 通过 poppler 的 pdftotext 抽取 PDF 文本
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"doc-qa-api/pkg/errors"
)

const DefaultBinary = "pdftotext"

var tracer = otel.Tracer("pdftext")

// CommandRunner 外部命令执行器（测试可替换）
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Result 抽取结果
type Result struct {
	Text     string
	NumPages int
}

// Extractor PDF 文本抽取器
type Extractor struct {
	binary string
	runner CommandRunner
}

// New 创建抽取器；binary 为空时使用 PATH 中的 pdftotext
func New(binary string) *Extractor {
	return NewWithRunner(binary, execRunner{})
}

func NewWithRunner(binary string, runner CommandRunner) *Extractor {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Extractor{binary: binary, runner: runner}
}

// CheckAvailable 检查 pdftotext 是否可执行
func (e *Extractor) CheckAvailable() error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return errors.ErrConfiguration.WithDetail(fmt.Sprintf("%s not found: install poppler-utils", e.binary))
	}
	return nil
}

// Extract 将 PDF 内容落盘到临时文件后抽取
func (e *Extractor) Extract(ctx context.Context, r io.Reader) (*Result, error) {
	tmp, err := os.CreateTemp("", "doc-qa-*.pdf")
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return nil, errors.ErrInternalError.WithError(fmt.Errorf("buffer pdf: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}
	return e.ExtractFile(ctx, tmp.Name())
}

// ExtractFile 抽取文件文本；无可用文本时返回 ErrInvalidParam
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pdftext.Extract")
	defer span.End()

	out, err := e.runner.Run(ctx, e.binary, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		span.RecordError(err)
		return nil, errors.ErrExtractionFailed.WithError(fmt.Errorf("pdftotext failed: %w", err))
	}

	res := Parse(string(out))
	span.SetAttributes(attribute.Int("pdf.pages", res.NumPages), attribute.Int("pdf.chars", len(res.Text)))
	if strings.TrimSpace(res.Text) == "" {
		return nil, errors.ErrInvalidParam.WithDetail("could not extract text from PDF")
	}
	return res, nil
}

// Parse 按换页符统计页数；pdftotext 在每页末尾输出 \f
func Parse(out string) *Result {
	pages := strings.Count(out, "\f")
	if pages == 0 && strings.TrimSpace(out) != "" {
		pages = 1
	}
	text := strings.ReplaceAll(out, "\f", "\n")
	return &Result{Text: strings.TrimRight(text, "\n"), NumPages: pages}
}
