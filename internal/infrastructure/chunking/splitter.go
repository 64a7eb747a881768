package chunking

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/askidc/corpus-assistant/internal/core/domain"
)

// Splitter turns documents into bounded chunks. Structural segments are
// the first split level; a segment longer than ChunkSize is split by
// paragraph, then sentence, then word, then a raw rune window.
// Consecutive chunks of the same segment share at most Overlap runes.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// span is a half-open rune range within a cleaned segment.
type span struct {
	start int
	end   int
}

func (s *Splitter) Split(doc domain.Document) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(doc.Segments))
	for segIdx, seg := range doc.Segments {
		cleaned := normalizeWhitespace(seg.Text)
		if cleaned == "" {
			continue
		}
		runes := []rune(cleaned)
		for _, sp := range s.splitSegment(runes) {
			text := strings.TrimSpace(string(runes[sp.start:sp.end]))
			if text == "" {
				continue
			}
			out = append(out, domain.Chunk{
				ID:           chunkID(doc.SourceID, segIdx, sp.start, sp.end),
				SourceID:     doc.SourceID,
				SegmentIndex: segIdx,
				StartOffset:  sp.start,
				EndOffset:    sp.end,
				Text:         text,
			})
		}
	}
	return out
}

func (s *Splitter) splitSegment(runes []rune) []span {
	if len(runes) <= s.ChunkSize {
		return []span{{start: 0, end: len(runes)}}
	}
	pieces := s.splitSpan(runes, span{start: 0, end: len(runes)}, 0)
	return s.packWithOverlap(pieces)
}

var separators = []string{"\n\n", "\n", ". ", " "}

// splitSpan recursively breaks sp into pieces no longer than ChunkSize,
// trying coarser separators first and falling back to a fixed rune
// window when nothing else applies.
func (s *Splitter) splitSpan(runes []rune, sp span, level int) []span {
	if sp.end-sp.start <= s.ChunkSize {
		return []span{sp}
	}
	if level >= len(separators) {
		return s.windowSpan(sp)
	}

	parts := cutAtSeparator(runes, sp, []rune(separators[level]))
	if len(parts) <= 1 {
		return s.splitSpan(runes, sp, level+1)
	}

	out := make([]span, 0, len(parts))
	for _, part := range parts {
		if part.end-part.start <= s.ChunkSize {
			out = append(out, part)
			continue
		}
		out = append(out, s.splitSpan(runes, part, level+1)...)
	}
	return out
}

// cutAtSeparator splits sp at every occurrence of sep, keeping the
// separator runes attached to the preceding part.
func cutAtSeparator(runes []rune, sp span, sep []rune) []span {
	out := make([]span, 0, 8)
	start := sp.start
	for i := sp.start; i+len(sep) <= sp.end; i++ {
		if !runesEqual(runes[i:i+len(sep)], sep) {
			continue
		}
		end := i + len(sep)
		out = append(out, span{start: start, end: end})
		start = end
		i = end - 1
	}
	if start < sp.end {
		out = append(out, span{start: start, end: sp.end})
	}
	return out
}

func (s *Splitter) windowSpan(sp span) []span {
	out := make([]span, 0, (sp.end-sp.start)/s.ChunkSize+1)
	for start := sp.start; start < sp.end; start += s.ChunkSize {
		end := start + s.ChunkSize
		if end > sp.end {
			end = sp.end
		}
		out = append(out, span{start: start, end: end})
	}
	return out
}

// packWithOverlap greedily merges adjacent pieces into chunks of at
// most ChunkSize runes. Each new chunk starts at a piece boundary no
// more than Overlap runes before the previous chunk's end.
func (s *Splitter) packWithOverlap(pieces []span) []span {
	if len(pieces) == 0 {
		return nil
	}

	out := make([]span, 0, len(pieces))
	i := 0
	for i < len(pieces) {
		chunk := pieces[i]
		j := i + 1
		for j < len(pieces) && pieces[j].end-chunk.start <= s.ChunkSize {
			chunk.end = pieces[j].end
			j++
		}
		out = append(out, chunk)
		if j >= len(pieces) {
			break
		}

		// Walk back over trailing pieces of the emitted chunk to find
		// the overlap start for the next one.
		next := j
		for k := j - 1; k > i; k-- {
			if chunk.end-pieces[k].start > s.Overlap {
				break
			}
			next = k
		}
		if next == i {
			next = i + 1
		}
		i = next
	}
	return out
}

func normalizeWhitespace(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	newlines := 0
	pendingSpace := false
	wrote := false
	for _, r := range text {
		switch {
		case r == '\n':
			newlines++
			pendingSpace = false
		case unicode.IsSpace(r):
			if newlines == 0 {
				pendingSpace = true
			}
		default:
			if wrote {
				if newlines >= 2 {
					b.WriteString("\n\n")
				} else if newlines == 1 {
					b.WriteByte('\n')
				} else if pendingSpace {
					b.WriteByte(' ')
				}
			}
			newlines = 0
			pendingSpace = false
			b.WriteRune(r)
			wrote = true
		}
	}
	return b.String()
}

func runesEqual(a, b []rune) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// chunkID derives a stable identifier from the chunk's provenance so
// re-chunking identical input yields identical IDs.
func chunkID(sourceID string, segIdx, start, end int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d-%d", sourceID, segIdx, start, end)))
	return hex.EncodeToString(sum[:8])
}
