package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"studybuddy/internal/models"
	"studybuddy/internal/util"

	"github.com/jackc/pgx/v5"
)

type MaterialRepo struct {
	db *DB
}

func NewMaterialRepo(db *DB) *MaterialRepo {
	return &MaterialRepo{db: db}
}

const materialColumns = `material_id, user_id, title, description, material_type, file_type, file_path,
       author, page_count, word_count, topics, chapters, chunk_count,
       embedding_status, error_message, created_at, updated_at`

func (r *MaterialRepo) CreateMaterial(ctx context.Context, m models.Material) error {
	topics, chapters := marshalStructure(m.Metadata)
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO materials (material_id, user_id, title, description, material_type, file_type, file_path,
                       content_text, author, page_count, word_count, topics, chapters, chunk_count,
                       embedding_status, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		m.MaterialID, m.UserID, m.Title, m.Description, m.MaterialType, m.FileType, m.FilePath,
		m.ContentText, m.Metadata.Author, m.Metadata.PageCount, m.Metadata.WordCount,
		topics, chapters, m.ChunkCount, string(m.EmbeddingStatus), m.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("create material: %w", err)
	}
	return nil
}

// UpdateExtraction writes the extracted text and structural metadata produced
// by the ingestion pipeline.
func (r *MaterialRepo) UpdateExtraction(ctx context.Context, materialID, contentText string, meta models.MaterialMetadata, chunkCount int) error {
	topics, chapters := marshalStructure(meta)
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE materials
SET content_text=$2, author=$3, page_count=$4, word_count=$5, topics=$6, chapters=$7,
    chunk_count=$8, updated_at=NOW()
WHERE material_id=$1`,
		materialID, contentText, meta.Author, meta.PageCount, meta.WordCount, topics, chapters, chunkCount)
	if err != nil {
		return fmt.Errorf("update material extraction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return util.ErrMaterialNotFound
	}
	return nil
}

func (r *MaterialRepo) UpdateStatus(ctx context.Context, materialID string, status models.EmbeddingStatus, errorMessage string) error {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE materials SET embedding_status=$2, error_message=$3, updated_at=NOW() WHERE material_id=$1`,
		materialID, string(status), errorMessage)
	if err != nil {
		return fmt.Errorf("update material status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return util.ErrMaterialNotFound
	}
	return nil
}

// MarkAllDisabled flags every non-completed material as disabled. Used at
// startup when no embedding backend is configured.
func (r *MaterialRepo) MarkAllDisabled(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE materials SET embedding_status='disabled', updated_at=NOW()
WHERE embedding_status IN ('pending','processing','failed')`)
	if err != nil {
		return fmt.Errorf("mark materials disabled: %w", err)
	}
	return nil
}

func (r *MaterialRepo) GetMaterial(ctx context.Context, userID, materialID string) (models.Material, error) {
	row := r.db.Pool.QueryRow(ctx, `
SELECT `+materialColumns+` FROM materials WHERE material_id=$1 AND user_id=$2`, materialID, userID)
	m, err := scanMaterial(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Material{}, util.ErrMaterialNotFound
	}
	if err != nil {
		return models.Material{}, fmt.Errorf("get material: %w", err)
	}
	return m, nil
}

// GetMaterialAny looks a material up without an ownership filter. The worker
// uses it because ingestion jobs carry only the material id.
func (r *MaterialRepo) GetMaterialAny(ctx context.Context, materialID string) (models.Material, error) {
	row := r.db.Pool.QueryRow(ctx, `
SELECT `+materialColumns+` FROM materials WHERE material_id=$1`, materialID)
	m, err := scanMaterial(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Material{}, util.ErrMaterialNotFound
	}
	if err != nil {
		return models.Material{}, fmt.Errorf("get material: %w", err)
	}
	return m, nil
}

func (r *MaterialRepo) GetContent(ctx context.Context, userID, materialID string) (string, error) {
	var content string
	err := r.db.Pool.QueryRow(ctx, `
SELECT content_text FROM materials WHERE material_id=$1 AND user_id=$2`, materialID, userID).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", util.ErrMaterialNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get material content: %w", err)
	}
	return content, nil
}

func (r *MaterialRepo) ListMaterials(ctx context.Context, userID string) ([]models.Material, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+materialColumns+` FROM materials WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()

	out := make([]models.Material, 0)
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate materials: %w", err)
	}
	return out, nil
}

// ListMaterialsByIDs returns the requested materials in input order; missing
// ids are simply absent from the result.
func (r *MaterialRepo) ListMaterialsByIDs(ctx context.Context, userID string, materialIDs []string) ([]models.Material, error) {
	if len(materialIDs) == 0 {
		return []models.Material{}, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+materialColumns+` FROM materials WHERE user_id=$1 AND material_id = ANY($2)`, userID, materialIDs)
	if err != nil {
		return nil, fmt.Errorf("list materials by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.Material, len(materialIDs))
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material by id: %w", err)
		}
		byID[m.MaterialID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate materials by ids: %w", err)
	}
	out := make([]models.Material, 0, len(byID))
	for _, id := range materialIDs {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// DeleteMaterial removes the record; chunk rows cascade.
func (r *MaterialRepo) DeleteMaterial(ctx context.Context, userID, materialID string) (string, error) {
	var filePath string
	err := r.db.Pool.QueryRow(ctx, `
DELETE FROM materials WHERE material_id=$1 AND user_id=$2 RETURNING file_path`, materialID, userID).Scan(&filePath)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", util.ErrMaterialNotFound
	}
	if err != nil {
		return "", fmt.Errorf("delete material: %w", err)
	}
	return filePath, nil
}

func scanMaterial(row pgx.Row) (models.Material, error) {
	var (
		m        models.Material
		status   string
		topics   []byte
		chapters []byte
	)
	err := row.Scan(
		&m.MaterialID, &m.UserID, &m.Title, &m.Description, &m.MaterialType, &m.FileType, &m.FilePath,
		&m.Metadata.Author, &m.Metadata.PageCount, &m.Metadata.WordCount, &topics, &chapters,
		&m.ChunkCount, &status, &m.ErrorMessage, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return models.Material{}, err
	}
	m.EmbeddingStatus = models.EmbeddingStatus(status)
	_ = json.Unmarshal(topics, &m.Metadata.Topics)
	_ = json.Unmarshal(chapters, &m.Metadata.Chapters)
	return m, nil
}

func marshalStructure(meta models.MaterialMetadata) ([]byte, []byte) {
	topics, err := json.Marshal(meta.Topics)
	if err != nil || meta.Topics == nil {
		topics = []byte("[]")
	}
	chapters, err := json.Marshal(meta.Chapters)
	if err != nil || meta.Chapters == nil {
		chapters = []byte("[]")
	}
	return topics, chapters
}
