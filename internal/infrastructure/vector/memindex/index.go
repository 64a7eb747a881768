package memindex

import (
	"sync"
	"sync/atomic"

	"github.com/askidc/corpus-assistant/internal/core/domain"
)

// Index serves similarity search over the currently published
// generation. Reads go through an atomic pointer and never block;
// writers clone the current generation under a mutex and publish the
// replacement atomically, so in-flight searches always observe a
// complete snapshot.
type Index struct {
	current atomic.Pointer[Generation]
	writeMu sync.Mutex
}

func New() *Index {
	return &Index{}
}

// Publish swaps the current generation. The swap is the only mutually
// exclusive step of a rebuild.
func (x *Index) Publish(gen *Generation) {
	x.current.Store(gen)
}

func (x *Index) Search(queryVector []float32, k int) ([]domain.Candidate, error) {
	gen := x.current.Load()
	candidates, err := gen.Search(queryVector, k)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "index search", err)
	}
	return candidates, nil
}

// Upsert replaces or inserts a single entry. Re-inserting the same
// chunk ID replaces the prior vector and metadata; a concurrent search
// sees either the old or the new generation, never a mix.
func (x *Index) Upsert(entry domain.IndexEntry) error {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	gen := x.current.Load()
	byID := gen.snapshot()
	byID[entry.ChunkID] = entry

	next, err := NewGeneration(gen.ID(), flatten(byID))
	if err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable, "index upsert", err)
	}
	x.current.Store(next)
	return nil
}

func (x *Index) Delete(chunkID string) {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	gen := x.current.Load()
	byID := gen.snapshot()
	if _, ok := byID[chunkID]; !ok {
		return
	}
	delete(byID, chunkID)

	// Entries already validated on the way in; rebuilding the snapshot
	// from them cannot fail.
	next, err := NewGeneration(gen.ID(), flatten(byID))
	if err != nil {
		return
	}
	x.current.Store(next)
}

func (x *Index) GenerationID() string {
	gen := x.current.Load()
	if gen == nil {
		return ""
	}
	return gen.ID()
}

func (x *Index) Len() int {
	return x.current.Load().Len()
}

func flatten(byID map[string]domain.IndexEntry) []domain.IndexEntry {
	out := make([]domain.IndexEntry, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	return out
}
