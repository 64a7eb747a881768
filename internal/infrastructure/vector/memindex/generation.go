package memindex

import (
	"fmt"
	"math"
	"sort"

	"github.com/askidc/corpus-assistant/internal/core/domain"
)

// Generation is one immutable, internally consistent snapshot of the
// corpus index. Readers never see a generation under construction;
// mutation always produces a new one.
type Generation struct {
	id      string
	dim     int
	entries []domain.IndexEntry
}

// NewGeneration builds a snapshot from entries. Later entries with the
// same chunk ID replace earlier ones, vectors are L2-normalized before
// storage, and the dimension is fixed for the generation's lifetime.
func NewGeneration(id string, entries []domain.IndexEntry) (*Generation, error) {
	byID := make(map[string]domain.IndexEntry, len(entries))
	dim := 0
	for _, e := range entries {
		if e.ChunkID == "" {
			return nil, fmt.Errorf("index entry without chunk id")
		}
		if len(e.Vector) == 0 {
			return nil, fmt.Errorf("index entry %s has empty vector", e.ChunkID)
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			return nil, fmt.Errorf("index entry %s dimension %d, generation dimension %d", e.ChunkID, len(e.Vector), dim)
		}
		e.Vector = normalized(e.Vector)
		byID[e.ChunkID] = e
	}

	sorted := make([]domain.IndexEntry, 0, len(byID))
	for _, e := range byID {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ChunkID < sorted[j].ChunkID })

	return &Generation{id: id, dim: dim, entries: sorted}, nil
}

func (g *Generation) ID() string {
	if g == nil {
		return ""
	}
	return g.id
}

func (g *Generation) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entries)
}

// Search scans all entries and returns at most k candidates by
// descending dot product (cosine over unit vectors), ties broken by
// chunk ID ascending for determinism.
func (g *Generation) Search(queryVector []float32, k int) ([]domain.Candidate, error) {
	if g == nil || len(g.entries) == 0 || k <= 0 {
		return []domain.Candidate{}, nil
	}
	if len(queryVector) != g.dim {
		return nil, fmt.Errorf("query dimension %d, generation dimension %d", len(queryVector), g.dim)
	}

	scored := make([]domain.Candidate, 0, len(g.entries))
	for _, e := range g.entries {
		scored = append(scored, domain.Candidate{
			ChunkID:       e.ChunkID,
			SourceID:      e.Metadata["source_id"],
			Text:          e.Metadata["text"],
			SemanticScore: dot(queryVector, e.Vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].SemanticScore != scored[j].SemanticScore {
			return scored[i].SemanticScore > scored[j].SemanticScore
		}
		return scored[i].ChunkID < scored[j].ChunkID
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

func (g *Generation) snapshot() map[string]domain.IndexEntry {
	out := make(map[string]domain.IndexEntry, g.Len())
	if g == nil {
		return out
	}
	for _, e := range g.entries {
		out[e.ChunkID] = e
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func normalized(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	if math.Abs(norm-1) < 1e-6 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
