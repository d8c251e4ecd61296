package storage

import (
	"context"
	"fmt"

	"studybuddy/internal/models"
)

type ChunkRecord struct {
	ChunkID         string
	MaterialID      string
	ChunkIndex      int
	Text            string
	Chapter         string
	EmbeddingVector *string
	Version         string
}

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceChunks swaps a material's chunk collection in one transaction so
// re-indexing never leaves a mix of old and new chunks behind.
func (r *ChunkRepo) ReplaceChunks(ctx context.Context, materialID string, chunks []ChunkRecord) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE material_id=$1`, materialID); err != nil {
		return fmt.Errorf("clear chunks for %s: %w", materialID, err)
	}
	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO chunks (chunk_id, material_id, chunk_index, text, chapter, embedding, embedding_version)
VALUES ($1, $2, $3, $4, $5, CASE WHEN $6::text IS NULL THEN NULL ELSE $6::vector END, $7)`,
			c.ChunkID, c.MaterialID, c.ChunkIndex, c.Text, c.Chapter, c.EmbeddingVector, c.Version,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkRepo) DeleteChunks(ctx context.Context, materialID string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM chunks WHERE material_id=$1`, materialID); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", materialID, err)
	}
	return nil
}

func (r *ChunkRepo) ListChunksByMaterial(ctx context.Context, materialID string) ([]models.Chunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT chunk_id, material_id, chunk_index, text, chapter, created_at
FROM chunks
WHERE material_id=$1
ORDER BY chunk_index ASC`, materialID)
	if err != nil {
		return nil, fmt.Errorf("list chunks by material: %w", err)
	}
	defer rows.Close()
	out := make([]models.Chunk, 0, 64)
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ChunkID, &c.MaterialID, &c.ChunkIndex, &c.Text, &c.Chapter, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}
