package activities

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"

	"studybuddy/internal/config"
	"studybuddy/internal/extract"
	"studybuddy/internal/models"
	"studybuddy/internal/storage"
	"studybuddy/internal/util"
	"studybuddy/internal/vector"
)

// TerminalExtractionError is the application error type for extraction
// failures that retrying cannot fix. The ingest workflow matches on it to
// mark the material failed instead of erroring out.
const TerminalExtractionError = "TerminalExtraction"

type Activities struct {
	cfg       config.Config
	materials *storage.MaterialRepo
	indexer   vector.Indexer
}

func New(cfg config.Config, db *storage.DB, indexer vector.Indexer) *Activities {
	return &Activities{
		cfg:       cfg,
		materials: storage.NewMaterialRepo(db),
		indexer:   indexer,
	}
}

func (a *Activities) SetMaterialStatusActivity(ctx context.Context, in SetMaterialStatusInput) (SetMaterialStatusOutput, error) {
	err := a.materials.UpdateStatus(ctx, in.MaterialID, models.EmbeddingStatus(in.Status), in.ErrorMessage)
	if errors.Is(err, util.ErrMaterialNotFound) {
		// Material was deleted mid-flight; nothing left to update.
		return SetMaterialStatusOutput{}, nil
	}
	if err != nil {
		return SetMaterialStatusOutput{}, err
	}
	return SetMaterialStatusOutput{Found: true}, nil
}

func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	m, err := a.materials.GetMaterialAny(ctx, in.MaterialID)
	if err != nil {
		return ExtractTextOutput{}, classifyExtractError(err)
	}
	data, err := os.ReadFile(m.FilePath)
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("read upload %s: %w", m.FilePath, err)
	}
	text, meta, err := extract.Extract(data, m.FileType)
	if err != nil {
		return ExtractTextOutput{}, classifyExtractError(err)
	}
	return ExtractTextOutput{Text: text, Metadata: meta}, nil
}

// classifyExtractError wraps errors no retry can fix (bad file, empty file,
// deleted material) as typed non-retryable application errors.
func classifyExtractError(err error) error {
	switch {
	case errors.Is(err, util.ErrUnsupportedFormat),
		errors.Is(err, util.ErrExtractionFailed),
		errors.Is(err, util.ErrNoExtractableText),
		errors.Is(err, util.ErrMaterialNotFound):
		return temporal.NewNonRetryableApplicationError(err.Error(), TerminalExtractionError, err)
	default:
		return err
	}
}

func (a *Activities) ChunkTextActivity(ctx context.Context, in ChunkTextInput) (ChunkTextOutput, error) {
	_ = ctx
	texts := util.ChunkText(in.Text, a.cfg.ChunkSize, a.cfg.ChunkOverlap)
	offsets := util.ChunkOffsets(len([]rune(in.Text)), a.cfg.ChunkSize, a.cfg.ChunkOverlap)
	chunks := make([]models.Chunk, 0, len(texts))
	for i, t := range texts {
		chapter := ""
		if i < len(offsets) {
			chapter = chapterAt(in.Metadata.Chapters, offsets[i][0])
		}
		chunks = append(chunks, models.Chunk{
			ChunkID:    uuid.NewString(),
			MaterialID: in.MaterialID,
			ChunkIndex: i,
			Text:       t,
			Chapter:    chapter,
		})
	}
	return ChunkTextOutput{Chunks: chunks}, nil
}

// chapterAt returns the title of the last chapter starting at or before the
// given rune offset.
func chapterAt(chapters []models.Chapter, offset int) string {
	title := ""
	for _, ch := range chapters {
		if ch.Position > offset {
			break
		}
		title = ch.Title
	}
	return title
}

func (a *Activities) SaveContentActivity(ctx context.Context, in SaveContentInput) (SaveContentOutput, error) {
	err := a.materials.UpdateExtraction(ctx, in.MaterialID, in.Text, in.Metadata, in.ChunkCount)
	if errors.Is(err, util.ErrMaterialNotFound) {
		return SaveContentOutput{Deleted: true}, nil
	}
	if err != nil {
		return SaveContentOutput{}, err
	}
	return SaveContentOutput{}, nil
}

func (a *Activities) EmbedAndIndexActivity(ctx context.Context, in EmbedAndIndexInput) (EmbedAndIndexOutput, error) {
	if !a.indexer.Enabled() {
		return EmbedAndIndexOutput{Disabled: true}, nil
	}
	if err := a.indexer.Index(ctx, in.MaterialID, in.Chunks); err != nil {
		return EmbedAndIndexOutput{}, err
	}
	return EmbedAndIndexOutput{IndexedChunks: len(in.Chunks)}, nil
}

// DropChunksActivity removes any indexed chunks for a material that was
// deleted while ingestion was still running.
func (a *Activities) DropChunksActivity(ctx context.Context, in DropChunksInput) error {
	return a.indexer.Delete(ctx, in.MaterialID)
}
