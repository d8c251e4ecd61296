package activities

import "studybuddy/internal/models"

type SetMaterialStatusInput struct {
	MaterialID   string `json:"material_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type SetMaterialStatusOutput struct {
	// Found is false when the material no longer exists.
	Found bool `json:"found"`
}

type ExtractTextInput struct {
	MaterialID string `json:"material_id"`
}

type ExtractTextOutput struct {
	Text     string                  `json:"text"`
	Metadata models.MaterialMetadata `json:"metadata"`
}

type ChunkTextInput struct {
	MaterialID string                  `json:"material_id"`
	Text       string                  `json:"text"`
	Metadata   models.MaterialMetadata `json:"metadata"`
}

type ChunkTextOutput struct {
	Chunks []models.Chunk `json:"chunks"`
}

type SaveContentInput struct {
	MaterialID string                  `json:"material_id"`
	Text       string                  `json:"text"`
	Metadata   models.MaterialMetadata `json:"metadata"`
	ChunkCount int                     `json:"chunk_count"`
}

type SaveContentOutput struct {
	// Deleted is set when the material vanished while the workflow ran.
	Deleted bool `json:"deleted"`
}

type EmbedAndIndexInput struct {
	MaterialID string         `json:"material_id"`
	Chunks     []models.Chunk `json:"chunks"`
}

type EmbedAndIndexOutput struct {
	IndexedChunks int `json:"indexed_chunks"`
	// Disabled reports that no embedding backend is configured; the
	// material keeps its text but never becomes searchable.
	Disabled bool `json:"disabled"`
}

type DropChunksInput struct {
	MaterialID string `json:"material_id"`
}
