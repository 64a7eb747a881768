package ports

import (
	"context"

	"github.com/askidc/corpus-assistant/internal/core/domain"
)

// DocumentRepository persists ingested documents and their status.
type DocumentRepository interface {
	Replace(ctx context.Context, doc *domain.Document) error
	GetBySourceID(ctx context.Context, sourceID string) (*domain.Document, error)
	ListAll(ctx context.Context) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, sourceID string, status domain.DocumentStatus, errMessage string) error
}

// Chunker splits a document into bounded, structure-aware chunks.
type Chunker interface {
	Split(doc domain.Document) []domain.Chunk
}

// Embedder builds unit-length vectors for chunks and query text. The
// query path applies the identical transformation as the build path.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex serves similarity search over the current corpus
// generation. Search returns at most k candidates ordered by descending
// semantic similarity, ties broken by chunk ID.
type VectorIndex interface {
	Upsert(entry domain.IndexEntry) error
	Delete(chunkID string)
	Search(queryVector []float32, k int) ([]domain.Candidate, error)
	GenerationID() string
	Len() int
}

// IndexStore is the durable layout behind the vector index: entries
// keyed by chunk ID within a generation, with an atomic activation
// step as the only externally observable consistency boundary.
type IndexStore interface {
	SaveGeneration(ctx context.Context, generationID string, dim int, entries []domain.IndexEntry) error
	ActivateGeneration(ctx context.Context, generationID string) error
	LoadActiveGeneration(ctx context.Context) (string, []domain.IndexEntry, error)
	PruneInactive(ctx context.Context, keep int) error
}

// SessionStore tracks bounded, TTL-scoped conversation turns. All
// operations take an explicit session ID; there is no ambient session.
type SessionStore interface {
	Append(sessionID string, turn domain.Turn)
	Recent(sessionID string, maxTurns int) []domain.Turn
	Clear(sessionID string)
}

// AnswerGenerator creates the final user-facing answer from the
// assembled context and recent history. Opaque text-completion service.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, contextBlock string, history []domain.Turn) (string, error)
}

// MessageQueue carries corpus build events between processes.
type MessageQueue interface {
	PublishRebuildRequested(ctx context.Context, batchID string) error
	SubscribeRebuildRequested(ctx context.Context, handler func(context.Context, string) error) error
	PublishGenerationActivated(ctx context.Context, generationID string) error
	SubscribeGenerationActivated(ctx context.Context, handler func(context.Context, string) error) error
}
