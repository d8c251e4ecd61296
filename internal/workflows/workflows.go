package workflows

import (
	"errors"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"studybuddy/internal/activities"
	"studybuddy/internal/models"
)

const QueryGetIngestProgress = "GetIngestProgress"

// MaterialIngestWorkflow runs the extraction pipeline for one uploaded
// material: extract text, chunk, embed, index. The material's embedding
// status tracks the workflow; terminal extraction problems mark it failed
// instead of erroring the workflow out.
func MaterialIngestWorkflow(ctx workflow.Context, input MaterialIngestInput) (string, error) {
	progress := MaterialIngestProgress{
		MaterialID:  input.MaterialID,
		CurrentStep: "init",
		Status:      "processing",
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetIngestProgress, func() (MaterialIngestProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	_ = workflow.ExecuteActivity(ctx, "SetMaterialStatusActivity", activities.SetMaterialStatusInput{
		MaterialID: input.MaterialID,
		Status:     string(models.EmbeddingProcessing),
	}).Get(ctx, nil)

	progress.CurrentStep = "extract_text"
	progress.Steps[progress.CurrentStep] = "processing"
	var textOut activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", activities.ExtractTextInput{MaterialID: input.MaterialID}).Get(ctx, &textOut); err != nil {
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) && appErr.Type() == activities.TerminalExtractionError {
			return failIngest(ctx, &progress, input.MaterialID, appErr.Message())
		}
		return "", err
	}
	progress.Steps[progress.CurrentStep] = "done"

	progress.CurrentStep = "chunk_text"
	progress.Steps[progress.CurrentStep] = "processing"
	var chunkOut activities.ChunkTextOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkTextActivity", activities.ChunkTextInput{
		MaterialID: input.MaterialID,
		Text:       textOut.Text,
		Metadata:   textOut.Metadata,
	}).Get(ctx, &chunkOut); err != nil {
		return "", err
	}
	progress.ChunkCount = len(chunkOut.Chunks)
	progress.Steps[progress.CurrentStep] = "done"

	progress.CurrentStep = "save_content"
	progress.Steps[progress.CurrentStep] = "processing"
	var saveOut activities.SaveContentOutput
	if err := workflow.ExecuteActivity(ctx, "SaveContentActivity", activities.SaveContentInput{
		MaterialID: input.MaterialID,
		Text:       textOut.Text,
		Metadata:   textOut.Metadata,
		ChunkCount: len(chunkOut.Chunks),
	}).Get(ctx, &saveOut); err != nil {
		return "", err
	}
	if saveOut.Deleted {
		progress.Status = "discarded"
		return progress.Status, nil
	}
	progress.Steps[progress.CurrentStep] = "done"

	progress.CurrentStep = "embed_and_index"
	progress.Steps[progress.CurrentStep] = "processing"
	var embedOut activities.EmbedAndIndexOutput
	if err := workflow.ExecuteActivity(ctx, "EmbedAndIndexActivity", activities.EmbedAndIndexInput{
		MaterialID: input.MaterialID,
		Chunks:     chunkOut.Chunks,
	}).Get(ctx, &embedOut); err != nil {
		return failIngest(ctx, &progress, input.MaterialID, "embedding failed: "+rootMessage(err))
	}
	progress.Steps[progress.CurrentStep] = "done"

	finalStatus := models.EmbeddingCompleted
	if embedOut.Disabled {
		finalStatus = models.EmbeddingDisabled
	}
	var statusOut activities.SetMaterialStatusOutput
	if err := workflow.ExecuteActivity(ctx, "SetMaterialStatusActivity", activities.SetMaterialStatusInput{
		MaterialID: input.MaterialID,
		Status:     string(finalStatus),
	}).Get(ctx, &statusOut); err != nil {
		return "", err
	}
	if !statusOut.Found {
		// Deleted between indexing and here; drop the orphaned vectors.
		_ = workflow.ExecuteActivity(ctx, "DropChunksActivity", activities.DropChunksInput{MaterialID: input.MaterialID}).Get(ctx, nil)
		progress.Status = "discarded"
		return progress.Status, nil
	}

	progress.CurrentStep = "done"
	progress.Status = string(finalStatus)
	return progress.Status, nil
}

func failIngest(ctx workflow.Context, progress *MaterialIngestProgress, materialID, reason string) (string, error) {
	progress.Status = "failed"
	progress.FailReason = reason
	progress.Steps[progress.CurrentStep] = "failed"
	_ = workflow.ExecuteActivity(ctx, "SetMaterialStatusActivity", activities.SetMaterialStatusInput{
		MaterialID:   materialID,
		Status:       string(models.EmbeddingFailed),
		ErrorMessage: reason,
	}).Get(ctx, nil)
	return progress.Status, nil
}

// rootMessage strips Temporal's activity error wrapping, which ends with
// "): ", leaving the underlying message for user-facing status text.
func rootMessage(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, "): "); idx >= 0 && idx+3 < len(msg) {
		return msg[idx+3:]
	}
	return msg
}
