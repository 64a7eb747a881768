package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/askidc/corpus-assistant/internal/core/domain"
)

type fakeChunker struct {
	perDoc map[string][]domain.Chunk
}

func (f *fakeChunker) Split(doc domain.Document) []domain.Chunk {
	return f.perDoc[doc.SourceID]
}

type fakeEmbedder struct {
	vectors   map[string][]float32
	batchErr  error
	failTexts map[string]bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if f.failTexts[text] {
			return nil, fmt.Errorf("embed failed for %q", text)
		}
		out[i] = f.vectorFor(text)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.failTexts[text] {
		return nil, fmt.Errorf("embed failed for %q", text)
	}
	return f.vectorFor(text), nil
}

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	return []float32{1, 0}
}

type fakeDocRepo struct {
	mu       sync.Mutex
	docs     map[string]domain.Document
	statuses map[string]domain.DocumentStatus
	listErr  error
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{
		docs:     make(map[string]domain.Document),
		statuses: make(map[string]domain.DocumentStatus),
	}
}

func (f *fakeDocRepo) Replace(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.SourceID] = *doc
	f.statuses[doc.SourceID] = doc.Status
	return nil
}

func (f *fakeDocRepo) GetBySourceID(_ context.Context, sourceID string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[sourceID]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("source id %s", sourceID))
	}
	return &doc, nil
}

func (f *fakeDocRepo) ListAll(_ context.Context) ([]domain.Document, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

func (f *fakeDocRepo) UpdateStatus(_ context.Context, sourceID string, status domain.DocumentStatus, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[sourceID] = status
	return nil
}

type fakeIndexStore struct {
	saved       map[string][]domain.IndexEntry
	activations []string
	saveErr     error
	activateErr error
	pruneCalls  []int
}

func newFakeIndexStore() *fakeIndexStore {
	return &fakeIndexStore{saved: make(map[string][]domain.IndexEntry)}
}

func (f *fakeIndexStore) SaveGeneration(_ context.Context, generationID string, _ int, entries []domain.IndexEntry) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[generationID] = entries
	return nil
}

func (f *fakeIndexStore) ActivateGeneration(_ context.Context, generationID string) error {
	if f.activateErr != nil {
		return f.activateErr
	}
	f.activations = append(f.activations, generationID)
	return nil
}

func (f *fakeIndexStore) LoadActiveGeneration(_ context.Context) (string, []domain.IndexEntry, error) {
	if len(f.activations) == 0 {
		return "", nil, nil
	}
	active := f.activations[len(f.activations)-1]
	return active, f.saved[active], nil
}

func (f *fakeIndexStore) PruneInactive(_ context.Context, keep int) error {
	f.pruneCalls = append(f.pruneCalls, keep)
	return nil
}

type fakeQueue struct {
	rebuilds    []string
	activations []string
}

func (f *fakeQueue) PublishRebuildRequested(_ context.Context, batchID string) error {
	f.rebuilds = append(f.rebuilds, batchID)
	return nil
}

func (f *fakeQueue) SubscribeRebuildRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

func (f *fakeQueue) PublishGenerationActivated(_ context.Context, generationID string) error {
	f.activations = append(f.activations, generationID)
	return nil
}

func (f *fakeQueue) SubscribeGenerationActivated(context.Context, func(context.Context, string) error) error {
	return nil
}

type fakeSessions struct {
	turns map[string][]domain.Turn
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{turns: make(map[string][]domain.Turn)}
}

func (f *fakeSessions) Append(sessionID string, turn domain.Turn) {
	f.turns[sessionID] = append(f.turns[sessionID], turn)
}

func (f *fakeSessions) Recent(sessionID string, maxTurns int) []domain.Turn {
	turns := f.turns[sessionID]
	if maxTurns < len(turns) {
		turns = turns[len(turns)-maxTurns:]
	}
	return turns
}

func (f *fakeSessions) Clear(sessionID string) {
	delete(f.turns, sessionID)
}

type fakeIndex struct {
	candidates []domain.Candidate
	searchErr  error
}

func (f *fakeIndex) Upsert(domain.IndexEntry) error { return nil }
func (f *fakeIndex) Delete(string)                  {}
func (f *fakeIndex) GenerationID() string           { return "g-test" }
func (f *fakeIndex) Len() int                       { return len(f.candidates) }

func (f *fakeIndex) Search(_ []float32, k int) ([]domain.Candidate, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := f.candidates
	if k < len(out) {
		out = out[:k]
	}
	return out, nil
}

type fakeGenerator struct {
	answer     string
	err        error
	gotQuery   string
	gotContext string
	gotHistory []domain.Turn
}

func (f *fakeGenerator) GenerateAnswer(_ context.Context, question, contextBlock string, history []domain.Turn) (string, error) {
	f.gotQuery = question
	f.gotContext = contextBlock
	f.gotHistory = history
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}
