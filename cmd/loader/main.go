package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/askidc/corpus-assistant/internal/core/domain"
	"github.com/askidc/corpus-assistant/internal/infrastructure/corpusfs"
	"github.com/askidc/corpus-assistant/internal/observability/logging"
)

// loader seeds the corpus from a directory of .txt/.md files by
// posting them to the api's ingest endpoint.
func main() {
	_ = godotenv.Load()

	var (
		dir    = flag.String("dir", "./corpus", "directory of .txt/.md files to ingest")
		apiURL = flag.String("api", "http://localhost:8080", "base URL of the corpus-assistant api")
	)
	flag.Parse()

	logger := logging.NewJSONLogger("loader", os.Getenv("LOG_LEVEL"))
	slog.SetDefault(logger)

	if err := run(*dir, *apiURL, logger); err != nil {
		logger.Error("load corpus", "error", err)
		os.Exit(1)
	}
}

func run(dir, apiURL string, logger *slog.Logger) error {
	loader, err := corpusfs.NewLoader(dir)
	if err != nil {
		return err
	}
	docs, skipped, err := loader.Load()
	if err != nil {
		return err
	}
	for _, s := range skipped {
		logger.Warn("skipped file", "source_id", s.SourceID, "reason", s.Message)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no ingestible files under %s", dir)
	}

	report, err := postDocuments(apiURL, docs)
	if err != nil {
		return err
	}
	logger.Info("corpus ingested",
		"batch_id", report.BatchID,
		"generation_id", report.GenerationID,
		"documents_in", report.DocumentsIn,
		"documents_ok", report.DocumentsOK,
		"chunks_indexed", report.ChunksIndexed,
	)
	for _, e := range report.Errors {
		logger.Warn("document failed", "source_id", e.SourceID, "stage", e.Stage, "reason", e.Message)
	}
	return nil
}

func postDocuments(apiURL string, docs []domain.Document) (*domain.IngestReport, error) {
	body, err := json.Marshal(map[string]any{"documents": docs})
	if err != nil {
		return nil, fmt.Errorf("encode documents: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/v1/corpus/documents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post documents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("ingest rejected: status %d: %s", resp.StatusCode, msg)
	}
	var report domain.IngestReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}
