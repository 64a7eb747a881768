package usecase

import (
	"fmt"
	"strings"

	"github.com/askidc/corpus-assistant/internal/core/domain"
)

const contextSeparator = "\n---\n"

// assembleContext packs candidates greedily in fused order into a
// single context string bounded by budget runes. A block that would
// overflow the budget is skipped whole, never truncated; later smaller
// blocks may still fit. Citations are the source IDs of included
// blocks, deduplicated in first-seen order.
func assembleContext(candidates []domain.Candidate, budget int) (string, []string) {
	if len(candidates) == 0 || budget <= 0 {
		return "", nil
	}

	var blocks []string
	used := 0
	citations := make([]string, 0, len(candidates))
	cited := make(map[string]struct{}, len(candidates))

	for _, c := range candidates {
		block := fmt.Sprintf("Source: %s\nContent: %s", c.SourceID, c.Text)
		cost := len([]rune(block))
		if len(blocks) > 0 {
			cost += len([]rune(contextSeparator))
		}
		if used+cost > budget {
			continue
		}
		blocks = append(blocks, block)
		used += cost

		if _, ok := cited[c.SourceID]; !ok {
			cited[c.SourceID] = struct{}{}
			citations = append(citations, c.SourceID)
		}
	}

	if len(blocks) == 0 {
		return "", nil
	}
	return strings.Join(blocks, contextSeparator), citations
}
