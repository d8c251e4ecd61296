package vector

import (
	"context"
	"fmt"
	"sync"

	"studybuddy/internal/models"
	"studybuddy/internal/providers"
	"studybuddy/internal/storage"
	"studybuddy/internal/util"
)

// Indexer maintains the per-material chunk collections used for similarity
// search. Call sites depend only on this interface; a disabled implementation
// is selected at startup when no embedding backend is configured.
type Indexer interface {
	Enabled() bool
	// Index embeds the chunks and replaces the material's collection.
	Index(ctx context.Context, materialID string, chunks []models.Chunk) error
	// Search embeds the query and returns topK chunks by similarity. The
	// caller is responsible for checking the material's embedding status.
	Search(ctx context.Context, materialID, query string, topK int) ([]models.ChunkResult, error)
	Delete(ctx context.Context, materialID string) error
}

type PGIndexer struct {
	providers *providers.Manager
	chunks    *storage.ChunkRepo
	searcher  *Searcher
	dim       int
	version   string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewPGIndexer(pm *providers.Manager, db *storage.DB, dim int, version string) *PGIndexer {
	return &PGIndexer{
		providers: pm,
		chunks:    storage.NewChunkRepo(db),
		searcher:  NewSearcher(db.Pool),
		dim:       dim,
		version:   version,
		locks:     map[string]*sync.Mutex{},
	}
}

func (x *PGIndexer) Enabled() bool { return true }

// materialLock serializes concurrent Index calls for the same material so
// interleaved partial writes cannot occur. Different materials proceed
// independently.
func (x *PGIndexer) materialLock(materialID string) *sync.Mutex {
	x.mu.Lock()
	defer x.mu.Unlock()
	l, ok := x.locks[materialID]
	if !ok {
		l = &sync.Mutex{}
		x.locks[materialID] = l
	}
	return l
}

func (x *PGIndexer) Index(ctx context.Context, materialID string, chunks []models.Chunk) error {
	l := x.materialLock(materialID)
	l.Lock()
	defer l.Unlock()

	inputs := make([]string, 0, len(chunks))
	for _, c := range chunks {
		inputs = append(inputs, c.Text)
	}
	vectors, err := x.embed(ctx, "index_chunks", inputs)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(vectors), len(chunks))
	}

	records := make([]storage.ChunkRecord, 0, len(chunks))
	for i, c := range chunks {
		lit := ToLiteral(vectors[i])
		records = append(records, storage.ChunkRecord{
			ChunkID:         c.ChunkID,
			MaterialID:      materialID,
			ChunkIndex:      c.ChunkIndex,
			Text:            c.Text,
			Chapter:         c.Chapter,
			EmbeddingVector: &lit,
			Version:         x.version,
		})
	}
	return x.chunks.ReplaceChunks(ctx, materialID, records)
}

func (x *PGIndexer) Search(ctx context.Context, materialID, query string, topK int) ([]models.ChunkResult, error) {
	vectors, err := x.embed(ctx, "query_embed", []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", util.ErrBackendUnavailable)
	}
	return x.searcher.SearchChunks(ctx, materialID, vectors[0], topK)
}

func (x *PGIndexer) Delete(ctx context.Context, materialID string) error {
	return x.chunks.DeleteChunks(ctx, materialID)
}

// embed tries each configured embedding provider in preference order.
func (x *PGIndexer) embed(ctx context.Context, op string, inputs []string) ([][]float32, error) {
	var lastErr error
	for _, idx := range x.providers.PreferredEmbedOrder() {
		p, _ := x.providers.EmbedProviderByIndex(idx)
		vectors, _, err := p.Embed(ctx, providers.EmbedRequest{
			Operation: op,
			Inputs:    inputs,
			Dimension: x.dim,
		})
		if err == nil && len(vectors) == len(inputs) {
			return vectors, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = util.ErrBackendUnavailable
	}
	return nil, fmt.Errorf("embed %s: %w", op, lastErr)
}

// DisabledIndexer is the no-op implementation used when the provider list is
// "none". Every operation reports the backend as unavailable.
type DisabledIndexer struct{}

func NewDisabledIndexer() *DisabledIndexer { return &DisabledIndexer{} }

func (DisabledIndexer) Enabled() bool { return false }

func (DisabledIndexer) Index(ctx context.Context, materialID string, chunks []models.Chunk) error {
	return util.ErrBackendUnavailable
}

func (DisabledIndexer) Search(ctx context.Context, materialID, query string, topK int) ([]models.ChunkResult, error) {
	return nil, util.ErrBackendUnavailable
}

func (DisabledIndexer) Delete(ctx context.Context, materialID string) error {
	return nil
}
