// Package main 单次文档入库命令行工具
//
// 用法：ingest [-name 文档名] [-chunk-size N -overlap M] <file.pdf|file.txt|file.md>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/internal/config"
	"doc-qa-api/internal/infrastructure/eino/callback"
	"doc-qa-api/internal/infrastructure/pdftext"
	"doc-qa-api/internal/wire"
	"doc-qa-api/pkg/logger"
)

func main() {
	var (
		name      = flag.String("name", "", "document name stored as segment source (default: file base name)")
		chunkSize = flag.Int("chunk-size", 0, "segment length in characters (default from config)")
		overlap   = flag.Int("overlap", 0, "characters shared by consecutive segments (used with -chunk-size)")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ingest [-name NAME] [-chunk-size N -overlap M] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	callback.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docName := *name
	if docName == "" {
		docName = filepath.Base(path)
	}

	text, pages, err := readDocument(ctx, cfg, path)
	if err != nil {
		logger.Fatal(ctx, "failed to read document", err, "path", path)
	}

	core, cleanup, err := wire.NewCore(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize", err)
	}
	defer cleanup()

	result, err := core.Indexer.Ingest(ctx, retrieval.IngestInput{
		DocumentName: docName,
		Text:         text,
		ChunkSize:    *chunkSize,
		Overlap:      *overlap,
		NumPages:     pages,
	})
	if err != nil {
		cleanup()
		logger.Fatal(ctx, "ingestion failed", err, "document", docName)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}

func readDocument(ctx context.Context, cfg *config.Config, path string) (string, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		res, err := pdftext.New(cfg.PDF.PdftotextPath).ExtractFile(ctx, path)
		if err != nil {
			return "", 0, err
		}
		return res.Text, res.NumPages, nil
	case ".txt", ".md", ".markdown":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", 0, err
		}
		return string(data), 0, nil
	default:
		return "", 0, fmt.Errorf("unsupported file type %q: expected .pdf, .txt or .md", filepath.Ext(path))
	}
}
