package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"studybuddy/internal/models"
	"studybuddy/internal/util"
)

func TestToLiteral(t *testing.T) {
	require.Equal(t, "[0.500000,-1.000000,0.000000]", ToLiteral([]float32{0.5, -1, 0}))
	require.Equal(t, "[]", ToLiteral(nil))
}

func TestDisabledIndexer(t *testing.T) {
	idx := NewDisabledIndexer()
	require.False(t, idx.Enabled())

	err := idx.Index(context.Background(), "m1", []models.Chunk{{ChunkID: "c1"}})
	require.ErrorIs(t, err, util.ErrBackendUnavailable)

	_, err = idx.Search(context.Background(), "m1", "query", 5)
	require.ErrorIs(t, err, util.ErrBackendUnavailable)

	// Delete is a no-op so material cleanup works without a backend.
	require.NoError(t, idx.Delete(context.Background(), "m1"))
}
