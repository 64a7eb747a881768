package domain

// IndexEntry is what the vector index persists per chunk. Vectors are
// L2-normalized before storage, so cosine similarity reduces to a dot
// product at search time.
type IndexEntry struct {
	ChunkID  string            `json:"chunk_id"`
	Vector   []float32         `json:"vector"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Candidate is the ephemeral per-query scoring record. It is never
// persisted.
type Candidate struct {
	ChunkID       string  `json:"chunk_id"`
	SourceID      string  `json:"source_id"`
	Text          string  `json:"text"`
	SemanticScore float64 `json:"semantic_score"`
	LexicalScore  float64 `json:"lexical_score"`
	FusedScore    float64 `json:"fused_score"`
}

// RetrievedContext is the pipeline output handed to the answer
// generator: assembled context plus source attribution.
type RetrievedContext struct {
	Context    string      `json:"context"`
	Citations  []string    `json:"citations"`
	TurnsUsed  int         `json:"turns_used"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// ChatResult is the user-facing answer together with the retrieval
// evidence it was grounded on.
type ChatResult struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
	TurnsUsed int      `json:"turns_used"`
	NoContext bool     `json:"no_context"`
}
