package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkTextSlidingWindow(t *testing.T) {
	text := strings.Repeat("a", 400) + strings.Repeat("b", 400) + strings.Repeat("c", 400)
	chunks := ChunkText(text, 500, 100)

	require.Len(t, chunks, 3)
	require.Equal(t, text[0:500], chunks[0])
	require.Equal(t, text[400:900], chunks[1])
	require.Equal(t, text[800:1200], chunks[2])
}

func TestChunkTextCoversEveryRune(t *testing.T) {
	text := strings.Repeat("studying helps retention ", 200)
	chunks := ChunkText(text, 300, 60)

	// Reconstruct from the non-overlapping spans.
	step := 300 - 60
	var b strings.Builder
	for i, c := range chunks {
		if i == len(chunks)-1 {
			b.WriteString(c)
			break
		}
		b.WriteString(c[:step])
	}
	require.Equal(t, text, b.String())
}

func TestChunkTextShortInput(t *testing.T) {
	chunks := ChunkText("tiny", 1000, 200)
	require.Equal(t, []string{"tiny"}, chunks)
}

func TestChunkTextEmpty(t *testing.T) {
	require.Nil(t, ChunkText("", 1000, 200))
}

func TestChunkTextNoTrimming(t *testing.T) {
	text := "  leading and trailing spaces kept  "
	chunks := ChunkText(text, 1000, 200)
	require.Equal(t, []string{text}, chunks)
}

func TestChunkTextBadOverlapFallsBack(t *testing.T) {
	text := strings.Repeat("x", 30)
	chunks := ChunkText(text, 10, 10)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		require.Len(t, c, 10)
	}
}

func TestChunkOffsetsMatchChunkText(t *testing.T) {
	text := strings.Repeat("0123456789", 33)
	chunks := ChunkText(text, 120, 20)
	offsets := ChunkOffsets(len([]rune(text)), 120, 20)

	require.Len(t, offsets, len(chunks))
	for i, off := range offsets {
		require.Equal(t, text[off[0]:off[1]], chunks[i])
	}
}
