package ports

import (
	"context"

	"github.com/askidc/corpus-assistant/internal/core/domain"
)

// CorpusIngestor is the inbound contract for corpus build passes.
type CorpusIngestor interface {
	IngestBatch(ctx context.Context, docs []domain.Document) (*domain.IngestReport, error)
	RebuildCorpus(ctx context.Context) (*domain.IngestReport, error)
}

// Retriever is the inbound contract for the query-time pipeline.
type Retriever interface {
	Retrieve(ctx context.Context, query, sessionID string, k int) (*domain.RetrievedContext, error)
	Chat(ctx context.Context, query, sessionID string, k int) (*domain.ChatResult, error)
}

// DocumentReader is the inbound read model for document state.
type DocumentReader interface {
	GetBySourceID(ctx context.Context, sourceID string) (*domain.Document, error)
}
