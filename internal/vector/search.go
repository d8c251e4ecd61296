package vector

import (
	"context"
	"fmt"
	"strings"

	"studybuddy/internal/models"
	"studybuddy/internal/util"

	"github.com/jackc/pgx/v5"
)

type Searcher struct {
	q Queryer
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

// SearchChunks ranks a material's chunks by cosine similarity to queryVec.
// Ties are broken by chunk_index ascending so results are stable.
func (s *Searcher) SearchChunks(ctx context.Context, materialID string, queryVec []float32, topK int) ([]models.ChunkResult, error) {
	if topK <= 0 {
		topK = 5
	}
	vecLiteral := ToLiteral(queryVec)

	query := `
SELECT c.material_id,
       m.title,
       c.chunk_id,
       c.chunk_index,
       c.chapter,
       1 - (c.embedding <=> $2::vector) AS score,
       c.text
FROM chunks c
JOIN materials m ON m.material_id = c.material_id
WHERE c.material_id = $1
  AND c.embedding IS NOT NULL
ORDER BY c.embedding <=> $2::vector, c.chunk_index ASC
LIMIT $3`

	rows, err := s.q.Query(ctx, query, materialID, vecLiteral, topK)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.ChunkResult, 0, topK)
	for rows.Next() {
		var r models.ChunkResult
		if err := rows.Scan(&r.MaterialID, &r.Title, &r.ChunkID, &r.ChunkIndex, &r.Chapter, &r.Score, &r.ChunkText); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		r.Snippet = util.DisplaySnippet(r.ChunkText, 420)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
