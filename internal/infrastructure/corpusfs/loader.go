package corpusfs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/askidc/corpus-assistant/internal/core/domain"
)

// Loader reads a directory of plaintext and markdown files and turns
// each file into one document. It exists for seeding a corpus from a
// checkout of the knowledge base without going through an authoring UI.
type Loader struct {
	root string
}

func NewLoader(root string) (*Loader, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat corpus dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus path %s is not a directory", root)
	}
	return &Loader{root: root}, nil
}

// Load walks the root and builds one document per .txt or .md file.
// The source ID is the slash-separated path relative to the root with
// the extension dropped, so a re-run over the same tree replaces the
// same documents. Binary and empty files are skipped with an error in
// the returned slice rather than aborting the walk.
func (l *Loader) Load() ([]domain.Document, []domain.IngestItemError, error) {
	var docs []domain.Document
	var skipped []domain.IngestItemError

	err := filepath.WalkDir(l.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}

		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		sourceID := sourceIDFromPath(rel)

		doc, err := l.loadFile(path, sourceID, ext)
		if err != nil {
			skipped = append(skipped, domain.IngestItemError{
				SourceID: sourceID,
				Stage:    "extract",
				Message:  err.Error(),
			})
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk corpus dir: %w", err)
	}
	return docs, skipped, nil
}

func (l *Loader) loadFile(path, sourceID, ext string) (domain.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read file: %w", err)
	}
	if !utf8.Valid(raw) {
		return domain.Document{}, fmt.Errorf("not valid utf-8: %s", path)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return domain.Document{}, fmt.Errorf("empty file: %s", path)
	}

	return domain.Document{
		SourceID: sourceID,
		Segments: segmentsFromText(text, ext),
	}, nil
}

func sourceIDFromPath(rel string) string {
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, filepath.Ext(rel))
}

// segmentsFromText splits on blank lines so each paragraph becomes its
// own segment. Markdown question headings ("## Q: ...") mark the
// following paragraph as FAQ content.
func segmentsFromText(text, ext string) []domain.Segment {
	blocks := splitBlocks(text)
	segments := make([]domain.Segment, 0, len(blocks))
	faqNext := false
	for _, block := range blocks {
		kind := domain.KindParagraph
		if ext == ".md" {
			if isFAQHeading(block) {
				faqNext = true
			}
			if faqNext {
				kind = domain.KindFAQ
			}
			if strings.HasPrefix(block, "#") && !isFAQHeading(block) {
				faqNext = false
				kind = domain.KindParagraph
			}
		}
		segments = append(segments, domain.Segment{Text: block, Kind: kind})
	}
	return segments
}

func splitBlocks(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(normalized, "\n\n")
	blocks := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			blocks = append(blocks, p)
		}
	}
	return blocks
}

func isFAQHeading(block string) bool {
	line := strings.TrimLeft(block, "# ")
	return strings.HasPrefix(strings.ToLower(line), "q:")
}
