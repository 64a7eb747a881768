package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/askidc/corpus-assistant/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	source_id TEXT PRIMARY KEY,
	segments JSONB NOT NULL DEFAULT '[]'::jsonb,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

CREATE TABLE IF NOT EXISTS corpus_generations (
	id TEXT PRIMARY KEY,
	dim INTEGER NOT NULL,
	state TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	activated_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_generations_state ON corpus_generations(state);

CREATE TABLE IF NOT EXISTS index_entries (
	generation_id TEXT NOT NULL REFERENCES corpus_generations(id) ON DELETE CASCADE,
	chunk_id TEXT NOT NULL,
	vector JSONB NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (generation_id, chunk_id)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Replace upserts the full document: a re-ingest of the same source ID
// overwrites segments and resets status, keeping the original
// created_at for pre-existing rows.
func (r *DocumentRepository) Replace(ctx context.Context, doc *domain.Document) error {
	segmentsJSON, err := json.Marshal(doc.Segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (source_id, segments, status, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (source_id) DO UPDATE
SET segments = EXCLUDED.segments,
	status = EXCLUDED.status,
	error_message = EXCLUDED.error_message,
	updated_at = EXCLUDED.updated_at
`,
		doc.SourceID, segmentsJSON, string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetBySourceID(ctx context.Context, sourceID string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT source_id, segments, status, error_message, created_at, updated_at
FROM documents
WHERE source_id = $1
`, sourceID)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("source id %s", sourceID))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) ListAll(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT source_id, segments, status, error_message, created_at, updated_at
FROM documents
ORDER BY source_id
`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, sourceID string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE source_id = $1
`, sourceID, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document status", fmt.Errorf("source id %s", sourceID))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var segmentsRaw []byte
	var status string

	err := row.Scan(&doc.SourceID, &segmentsRaw, &status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(segmentsRaw, &doc.Segments); err != nil {
		return nil, fmt.Errorf("unmarshal segments: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}
