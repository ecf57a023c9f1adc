package vector

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"

	"docsearch/internal/models"
)

// ContentLimit bounds the chunk text copied into an index entry, in runes.
const ContentLimit = 6000

type Hit struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// Index is a similarity index keyed by chunk id. Every entry carries its
// workspace and Search only ever returns entries of the requested one.
type Index interface {
	Upsert(ctx context.Context, rec models.EmbeddingRecord) error
	Search(ctx context.Context, workspace string, vec []float32, k int) ([]Hit, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	SetWorkspace(ctx context.Context, documentID, workspace string) error
}

func truncateContent(s string) string {
	if utf8.RuneCountInString(s) <= ContentLimit {
		return s
	}
	r := []rune(s)
	return string(r[:ContentLimit])
}

func checkDim(vec []float32, dim int) error {
	if dim > 0 && len(vec) != dim {
		return fmt.Errorf("vector dimension %d, index expects %d", len(vec), dim)
	}
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
