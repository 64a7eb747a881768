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

const (
	generationStatePending  = "pending"
	generationStateActive   = "active"
	generationStateInactive = "inactive"
)

// IndexRepository persists corpus generations. Entries are written
// under a pending generation, and the activation flip is a single
// transaction, so readers loading the active generation always see a
// complete entry set.
type IndexRepository struct {
	db *sql.DB
}

func NewIndexRepository(db *sql.DB) *IndexRepository {
	return &IndexRepository{db: db}
}

func (r *IndexRepository) SaveGeneration(ctx context.Context, generationID string, dim int, entries []domain.IndexEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save generation tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO corpus_generations (id, dim, state, created_at)
VALUES ($1,$2,$3,$4)
`, generationID, dim, generationStatePending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert generation %s: %w", generationID, err)
	}

	for _, entry := range entries {
		vectorJSON, err := json.Marshal(entry.Vector)
		if err != nil {
			return fmt.Errorf("marshal vector %s: %w", entry.ChunkID, err)
		}
		metadataJSON, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata %s: %w", entry.ChunkID, err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO index_entries (generation_id, chunk_id, vector, metadata)
VALUES ($1,$2,$3,$4)
`, generationID, entry.ChunkID, vectorJSON, metadataJSON)
		if err != nil {
			return fmt.Errorf("insert index entry %s: %w", entry.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save generation tx: %w", err)
	}
	return nil
}

// ActivateGeneration demotes the current active generation and
// promotes the given one in one transaction.
func (r *IndexRepository) ActivateGeneration(ctx context.Context, generationID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
UPDATE corpus_generations SET state = $1 WHERE state = $2
`, generationStateInactive, generationStateActive)
	if err != nil {
		return fmt.Errorf("demote active generation: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
UPDATE corpus_generations SET state = $2, activated_at = $3 WHERE id = $1
`, generationID, generationStateActive, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("promote generation %s: %w", generationID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("promote generation %s: unknown generation", generationID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activate tx: %w", err)
	}
	return nil
}

// LoadActiveGeneration returns the active generation's ID and entries.
// A fresh database with no activation yet returns an empty ID and no
// error.
func (r *IndexRepository) LoadActiveGeneration(ctx context.Context) (string, []domain.IndexEntry, error) {
	var generationID string
	err := r.db.QueryRowContext(ctx, `
SELECT id FROM corpus_generations WHERE state = $1
`, generationStateActive).Scan(&generationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("select active generation: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT chunk_id, vector, metadata
FROM index_entries
WHERE generation_id = $1
ORDER BY chunk_id
`, generationID)
	if err != nil {
		return "", nil, fmt.Errorf("select index entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.IndexEntry
	for rows.Next() {
		var entry domain.IndexEntry
		var vectorRaw, metadataRaw []byte
		if err := rows.Scan(&entry.ChunkID, &vectorRaw, &metadataRaw); err != nil {
			return "", nil, fmt.Errorf("scan index entry: %w", err)
		}
		if err := json.Unmarshal(vectorRaw, &entry.Vector); err != nil {
			return "", nil, fmt.Errorf("unmarshal vector %s: %w", entry.ChunkID, err)
		}
		if err := json.Unmarshal(metadataRaw, &entry.Metadata); err != nil {
			return "", nil, fmt.Errorf("unmarshal metadata %s: %w", entry.ChunkID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return "", nil, fmt.Errorf("iterate index entries: %w", err)
	}
	return generationID, entries, nil
}

// PruneInactive deletes all but the newest keep non-active generations.
// Cascade removes their entries.
func (r *IndexRepository) PruneInactive(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}
	_, err := r.db.ExecContext(ctx, `
DELETE FROM corpus_generations
WHERE state != $1
AND id NOT IN (
	SELECT id FROM corpus_generations
	WHERE state != $1
	ORDER BY created_at DESC
	LIMIT $2
)
`, generationStateActive, keep)
	if err != nil {
		return fmt.Errorf("prune inactive generations: %w", err)
	}
	return nil
}
