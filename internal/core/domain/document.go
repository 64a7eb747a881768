package domain

import "time"

type DocumentStatus string

const (
	StatusReceived DocumentStatus = "received"
	StatusIndexed  DocumentStatus = "indexed"
	StatusFailed   DocumentStatus = "failed"
)

// SegmentKind tags the structural shape a segment was resolved to at
// ingestion time. Unknown shapes fall back to KindParagraph.
type SegmentKind string

const (
	KindParagraph SegmentKind = "paragraph"
	KindFAQ       SegmentKind = "faq"
	KindSlide     SegmentKind = "slide"
	KindTable     SegmentKind = "table"
)

// Segment is one extracted text span of a document together with its
// structural metadata (heading level, slide index and so on).
type Segment struct {
	Text string            `json:"text"`
	Kind SegmentKind       `json:"kind"`
	Meta map[string]string `json:"structural_metadata,omitempty"`
}

// Document is an immutable source unit. Re-ingesting the same SourceID
// replaces the document wholesale; it is never patched in place.
type Document struct {
	SourceID  string         `json:"source_id"`
	Segments  []Segment      `json:"segments"`
	Status    DocumentStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Chunk is the atomic retrieval unit: a bounded span of one document's
// text. ID is a deterministic hash of (source ID, segment index, rune
// offsets), so re-chunking identical input yields identical IDs.
type Chunk struct {
	ID           string `json:"id"`
	SourceID     string `json:"source_id"`
	SegmentIndex int    `json:"segment_index"`
	StartOffset  int    `json:"start_offset"`
	EndOffset    int    `json:"end_offset"`
	Text         string `json:"text"`
}

// IngestItemError records one skipped document inside a batch.
type IngestItemError struct {
	SourceID string `json:"source_id"`
	Stage    string `json:"stage"`
	Message  string `json:"message"`
}

// IngestReport aggregates the outcome of one corpus build pass.
// Per-item failures are isolated here; they never abort the batch.
type IngestReport struct {
	BatchID       string            `json:"batch_id"`
	GenerationID  string            `json:"generation_id,omitempty"`
	DocumentsIn   int               `json:"documents_in"`
	DocumentsOK   int               `json:"documents_ok"`
	ChunksIndexed int               `json:"chunks_indexed"`
	EmbedFallback int               `json:"embed_fallbacks"`
	Errors        []IngestItemError `json:"errors,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
}

func (r *IngestReport) AddError(sourceID, stage string, err error) {
	if err == nil {
		return
	}
	r.Errors = append(r.Errors, IngestItemError{
		SourceID: sourceID,
		Stage:    stage,
		Message:  err.Error(),
	})
}
