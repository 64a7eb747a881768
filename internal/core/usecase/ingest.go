package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askidc/corpus-assistant/internal/core/domain"
	"github.com/askidc/corpus-assistant/internal/core/ports"
)

// IngestUseCase turns document batches into an activated corpus
// generation: chunk, embed, persist entries, flip activation, notify.
// Per-document failures are isolated into the report; only generation
// persistence or activation failures abort the pass.
type IngestUseCase struct {
	repo            ports.DocumentRepository
	chunker         ports.Chunker
	embedder        ports.Embedder
	store           ports.IndexStore
	queue           ports.MessageQueue
	keepGenerations int
	now             func() time.Time
}

func NewIngestUseCase(
	repo ports.DocumentRepository,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.IndexStore,
	queue ports.MessageQueue,
	keepGenerations int,
) *IngestUseCase {
	if keepGenerations < 0 {
		keepGenerations = 0
	}
	return &IngestUseCase{
		repo:            repo,
		chunker:         chunker,
		embedder:        embedder,
		store:           store,
		queue:           queue,
		keepGenerations: keepGenerations,
		now:             time.Now,
	}
}

// IngestBatch persists the documents (replacing any prior version per
// source ID), then rebuilds the corpus generation from everything the
// registry holds, so a partial batch never leaves stale chunks behind.
func (uc *IngestUseCase) IngestBatch(ctx context.Context, docs []domain.Document) (*domain.IngestReport, error) {
	report := uc.newReport()
	report.DocumentsIn = len(docs)

	for _, doc := range docs {
		if err := validateDocument(doc); err != nil {
			report.AddError(doc.SourceID, "validate", err)
			continue
		}
		now := uc.now().UTC()
		doc.Status = domain.StatusReceived
		doc.Error = ""
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		doc.UpdatedAt = now
		if err := uc.repo.Replace(ctx, &doc); err != nil {
			report.AddError(doc.SourceID, "persist", err)
		}
	}

	all, err := uc.repo.ListAll(ctx)
	if err != nil {
		return report, fmt.Errorf("list documents: %w", err)
	}
	if err := uc.buildGeneration(ctx, all, report); err != nil {
		return report, err
	}

	report.FinishedAt = uc.now().UTC()
	return report, nil
}

// RebuildCorpus re-chunks and re-embeds every registered document into
// a fresh generation. Identical input yields identical chunk IDs, so a
// rebuild over unchanged documents activates an equivalent generation.
func (uc *IngestUseCase) RebuildCorpus(ctx context.Context) (*domain.IngestReport, error) {
	report := uc.newReport()

	docs, err := uc.repo.ListAll(ctx)
	if err != nil {
		return report, fmt.Errorf("list documents: %w", err)
	}
	report.DocumentsIn = len(docs)

	if err := uc.buildGeneration(ctx, docs, report); err != nil {
		return report, err
	}
	report.FinishedAt = uc.now().UTC()
	return report, nil
}

func (uc *IngestUseCase) buildGeneration(ctx context.Context, docs []domain.Document, report *domain.IngestReport) error {
	var chunks []domain.Chunk
	docChunks := make(map[string]int)

	for _, doc := range docs {
		split := uc.chunker.Split(doc)
		if len(split) == 0 {
			report.AddError(doc.SourceID, "chunk", domain.WrapError(domain.ErrInvalidDocument, "chunk document", fmt.Errorf("no usable text")))
			uc.markStatus(ctx, doc.SourceID, domain.StatusFailed, "no usable text")
			continue
		}
		docChunks[doc.SourceID] = len(split)
		chunks = append(chunks, split...)
	}

	entries, fallbacks := uc.embedChunks(ctx, chunks, report)
	report.EmbedFallback = fallbacks
	report.ChunksIndexed = len(entries)

	indexedPerDoc := make(map[string]int)
	for _, e := range entries {
		indexedPerDoc[e.Metadata["source_id"]]++
	}
	// A document counts as indexed when at least one of its chunks made
	// it into the generation; individual fallbacks stay in the report.
	for sourceID := range docChunks {
		if indexedPerDoc[sourceID] == 0 {
			uc.markStatus(ctx, sourceID, domain.StatusFailed, "embedding failure")
			continue
		}
		uc.markStatus(ctx, sourceID, domain.StatusIndexed, "")
		report.DocumentsOK++
	}

	if len(entries) == 0 {
		return nil
	}

	generationID := uuid.NewString()
	dim := len(entries[0].Vector)
	if err := uc.store.SaveGeneration(ctx, generationID, dim, entries); err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable, "save generation", err)
	}
	if err := uc.store.ActivateGeneration(ctx, generationID); err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable, "activate generation", err)
	}
	report.GenerationID = generationID

	if err := uc.queue.PublishGenerationActivated(ctx, generationID); err != nil {
		report.AddError("", "notify", err)
	}
	if err := uc.store.PruneInactive(ctx, uc.keepGenerations); err != nil {
		report.AddError("", "prune", err)
	}
	return nil
}

// embedChunks embeds all chunk texts in one pass; if the bulk call
// fails it retries items individually. An item that still fails is
// reported and left out — zero vectors are never indexed.
func (uc *IngestUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk, report *domain.IngestReport) ([]domain.IndexEntry, int) {
	if len(chunks) == 0 {
		return nil, 0
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	fallbacks := 0
	if err != nil || len(vectors) != len(chunks) {
		vectors = make([][]float32, len(chunks))
		for i, text := range texts {
			v, itemErr := uc.embedder.EmbedQuery(ctx, text)
			if itemErr != nil {
				report.AddError(chunks[i].SourceID, "embed", domain.WrapError(domain.ErrEmbedding, "embed chunk "+chunks[i].ID, itemErr))
				fallbacks++
				continue
			}
			vectors[i] = v
		}
	}

	entries := make([]domain.IndexEntry, 0, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) == 0 || isZeroVector(vectors[i]) {
			continue
		}
		entries = append(entries, domain.IndexEntry{
			ChunkID: c.ID,
			Vector:  vectors[i],
			Metadata: map[string]string{
				"source_id": c.SourceID,
				"text":      c.Text,
			},
		})
	}
	return entries, fallbacks
}

func (uc *IngestUseCase) markStatus(ctx context.Context, sourceID string, status domain.DocumentStatus, message string) {
	_ = uc.repo.UpdateStatus(ctx, sourceID, status, message)
}

func (uc *IngestUseCase) newReport() *domain.IngestReport {
	return &domain.IngestReport{
		BatchID:   uuid.NewString(),
		StartedAt: uc.now().UTC(),
	}
}

func validateDocument(doc domain.Document) error {
	if strings.TrimSpace(doc.SourceID) == "" {
		return domain.WrapError(domain.ErrInvalidDocument, "validate document", fmt.Errorf("empty source id"))
	}
	if len(doc.Segments) == 0 {
		return domain.WrapError(domain.ErrInvalidDocument, "validate document", fmt.Errorf("no segments"))
	}
	return nil
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
