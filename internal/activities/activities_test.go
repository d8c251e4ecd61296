package activities

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"studybuddy/internal/config"
	"studybuddy/internal/models"
	"studybuddy/internal/util"
)

func TestChunkTextActivityAssignsChaptersByOffset(t *testing.T) {
	a := New(config.Config{ChunkSize: 100, ChunkOverlap: 20}, nil, nil)

	text := strings.Repeat("a", 150) + strings.Repeat("b", 150)
	out, err := a.ChunkTextActivity(context.Background(), ChunkTextInput{
		MaterialID: "m1",
		Text:       text,
		Metadata: models.MaterialMetadata{Chapters: []models.Chapter{
			{Title: "Intro", Level: 1, Position: 0},
			{Title: "Advanced", Level: 1, Position: 150},
		}},
	})
	require.NoError(t, err)
	require.Len(t, out.Chunks, 4)

	for i, c := range out.Chunks {
		require.Equal(t, i, c.ChunkIndex)
		require.Equal(t, "m1", c.MaterialID)
		require.NotEmpty(t, c.ChunkID)
	}
	// Chunk starts: 0, 80, 160, 240.
	require.Equal(t, "Intro", out.Chunks[0].Chapter)
	require.Equal(t, "Intro", out.Chunks[1].Chapter)
	require.Equal(t, "Advanced", out.Chunks[2].Chapter)
	require.Equal(t, "Advanced", out.Chunks[3].Chapter)
}

func TestChunkTextActivityEmptyText(t *testing.T) {
	a := New(config.Config{ChunkSize: 100, ChunkOverlap: 20}, nil, nil)
	out, err := a.ChunkTextActivity(context.Background(), ChunkTextInput{MaterialID: "m1"})
	require.NoError(t, err)
	require.Empty(t, out.Chunks)
}

func TestClassifyExtractErrorWrapsTerminalSentinels(t *testing.T) {
	terminal := []error{
		fmt.Errorf("%w: open pdf: malformed xref table", util.ErrExtractionFailed),
		fmt.Errorf("%w: xyz", util.ErrUnsupportedFormat),
		util.ErrNoExtractableText,
		util.ErrMaterialNotFound,
	}
	for _, in := range terminal {
		out := classifyExtractError(in)
		var appErr *temporal.ApplicationError
		require.ErrorAs(t, out, &appErr, "input: %v", in)
		require.Equal(t, TerminalExtractionError, appErr.Type())
		require.True(t, appErr.NonRetryable())
	}
}

func TestClassifyExtractErrorPassesRetryableThrough(t *testing.T) {
	in := errors.New("read upload /tmp/m1.pdf: i/o timeout")
	require.Equal(t, in, classifyExtractError(in))
}
