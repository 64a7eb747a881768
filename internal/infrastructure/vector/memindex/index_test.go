package memindex

import (
	"fmt"
	"sync"
	"testing"

	"github.com/askidc/corpus-assistant/internal/core/domain"
)

func entry(chunkID string, vector []float32) domain.IndexEntry {
	return domain.IndexEntry{
		ChunkID: chunkID,
		Vector:  vector,
		Metadata: map[string]string{
			"source_id": "src-" + chunkID,
			"text":      "text of " + chunkID,
		},
	}
}

func TestSearchEmptyIndexReturnsEmpty(t *testing.T) {
	idx := New()
	got, err := idx.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestSearchOrdersByScoreThenChunkID(t *testing.T) {
	gen, err := NewGeneration("g1", []domain.IndexEntry{
		entry("c-b", []float32{1, 0}),
		entry("c-a", []float32{1, 0}),
		entry("c-far", []float32{0, 1}),
	})
	if err != nil {
		t.Fatalf("NewGeneration() error = %v", err)
	}
	idx := New()
	idx.Publish(gen)

	got, err := idx.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0].ChunkID != "c-a" || got[1].ChunkID != "c-b" {
		t.Fatalf("expected tie broken by chunk id, got %s then %s", got[0].ChunkID, got[1].ChunkID)
	}
	if got[2].ChunkID != "c-far" {
		t.Fatalf("expected lowest score last, got %s", got[2].ChunkID)
	}
	if got[0].SourceID != "src-c-a" || got[0].Text == "" {
		t.Fatalf("candidate missing metadata: %+v", got[0])
	}
}

func TestSearchCapsAtK(t *testing.T) {
	entries := make([]domain.IndexEntry, 0, 10)
	for i := 0; i < 10; i++ {
		entries = append(entries, entry(fmt.Sprintf("c-%02d", i), []float32{1, float32(i) / 10}))
	}
	gen, err := NewGeneration("g1", entries)
	if err != nil {
		t.Fatalf("NewGeneration() error = %v", err)
	}
	idx := New()
	idx.Publish(gen)

	got, err := idx.Search([]float32{1, 0}, 4)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(got))
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	gen, err := NewGeneration("g1", []domain.IndexEntry{entry("c1", []float32{1, 0, 0})})
	if err != nil {
		t.Fatalf("NewGeneration() error = %v", err)
	}
	idx := New()
	idx.Publish(gen)

	if _, err := idx.Search([]float32{1, 0}, 5); !domain.IsKind(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected index unavailable error, got %v", err)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	idx := New()
	if err := idx.Upsert(entry("c1", []float32{1, 0})); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := idx.Upsert(entry("c1", []float32{0, 1})); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected 1 entry after re-upsert, got %d", idx.Len())
	}

	got, err := idx.Search([]float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].SemanticScore < 0.99 {
		t.Fatalf("expected replaced vector to win, got %+v", got)
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	idx := New()
	if err := idx.Upsert(entry("c1", []float32{1, 0})); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := idx.Upsert(entry("c2", []float32{0, 1})); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	idx.Delete("c1")
	if idx.Len() != 1 {
		t.Fatalf("expected 1 entry after delete, got %d", idx.Len())
	}
	idx.Delete("missing")
	if idx.Len() != 1 {
		t.Fatalf("delete of unknown id must be a no-op, got %d", idx.Len())
	}
}

func TestGenerationNormalizesVectors(t *testing.T) {
	gen, err := NewGeneration("g1", []domain.IndexEntry{entry("c1", []float32{3, 4})})
	if err != nil {
		t.Fatalf("NewGeneration() error = %v", err)
	}
	got, err := gen.Search([]float32{0.6, 0.8}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got[0].SemanticScore < 0.999 || got[0].SemanticScore > 1.001 {
		t.Fatalf("expected unit-vector dot close to 1, got %f", got[0].SemanticScore)
	}
}

func TestGenerationRejectsMixedDimensions(t *testing.T) {
	_, err := NewGeneration("g1", []domain.IndexEntry{
		entry("c1", []float32{1, 0}),
		entry("c2", []float32{1, 0, 0}),
	})
	if err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestPublishSwapsAtomicallyUnderConcurrentSearch(t *testing.T) {
	idx := New()
	first, err := NewGeneration("g1", []domain.IndexEntry{entry("c1", []float32{1, 0})})
	if err != nil {
		t.Fatalf("NewGeneration() error = %v", err)
	}
	idx.Publish(first)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, err := idx.Search([]float32{1, 0}, 5)
				if err != nil {
					t.Errorf("Search() error = %v", err)
					return
				}
				// Either generation is fine; a half-written one is not.
				if n := len(got); n != 1 && n != 2 {
					t.Errorf("saw torn generation with %d entries", n)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		second, err := NewGeneration("g2", []domain.IndexEntry{
			entry("c1", []float32{1, 0}),
			entry("c2", []float32{0, 1}),
		})
		if err != nil {
			t.Fatalf("NewGeneration() error = %v", err)
		}
		idx.Publish(second)
		idx.Publish(first)
	}
	close(stop)
	wg.Wait()
}
