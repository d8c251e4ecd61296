package workflows

type MaterialIngestInput struct {
	MaterialID string `json:"material_id"`
	UserID     string `json:"user_id"`
}

type MaterialIngestProgress struct {
	MaterialID  string            `json:"material_id"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	Steps       map[string]string `json:"steps"`
	ChunkCount  int               `json:"chunk_count"`
	FailReason  string            `json:"fail_reason,omitempty"`
}
