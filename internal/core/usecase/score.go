package usecase

import (
	"sort"
	"strings"
	"unicode"

	"github.com/askidc/corpus-assistant/internal/core/domain"
)

// lexicalScore measures query-term coverage: the share of distinct
// query terms present in the text, boosted by 1.5 and capped at 1.0.
func lexicalScore(queryTerms []string, text string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	docTerms := make(map[string]struct{})
	for _, term := range tokenize(text) {
		docTerms[term] = struct{}{}
	}

	matched := 0
	for _, term := range queryTerms {
		if _, ok := docTerms[term]; ok {
			matched++
		}
	}
	score := float64(matched) / float64(len(queryTerms)) * 1.5
	if score > 1 {
		return 1
	}
	return score
}

// tokenize lowercases and splits on any non-alphanumeric rune,
// deduplicating the result.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// rankCandidates fuses semantic and lexical evidence. Both raw score
// sets are min-max normalized across the candidate set before the
// weighted sum; when a set is degenerate (max == min) the raw values
// clamped to [0,1] stand in, so a lone candidate keeps its real score
// instead of collapsing to an arbitrary endpoint. Ordering is fused
// score descending, ties broken by chunk ID, truncated to topK.
func rankCandidates(query string, candidates []domain.Candidate, semanticWeight, lexicalWeight float64, topK int) []domain.Candidate {
	if len(candidates) == 0 || topK <= 0 {
		return []domain.Candidate{}
	}

	queryTerms := tokenize(query)
	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)

	semantic := make([]float64, len(out))
	lexical := make([]float64, len(out))
	for i := range out {
		out[i].LexicalScore = lexicalScore(queryTerms, out[i].Text)
		semantic[i] = out[i].SemanticScore
		lexical[i] = out[i].LexicalScore
	}

	semanticNorm := minMaxNormalize(semantic)
	lexicalNorm := minMaxNormalize(lexical)
	for i := range out {
		out[i].FusedScore = semanticWeight*semanticNorm[i] + lexicalWeight*lexicalNorm[i]
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].ChunkID < out[j].ChunkID
	})

	if topK < len(out) {
		out = out[:topK]
	}
	return out
}

func minMaxNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == min {
		for i, v := range values {
			out[i] = clamp01(v)
		}
		return out
	}
	for i, v := range values {
		out[i] = (v - min) / (max - min)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
