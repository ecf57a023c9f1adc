package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docsearch/internal/models"
)

// MemoryIndex is a brute-force cosine index held in process memory. It backs
// the dev profile and tests.
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	records map[string]models.EmbeddingRecord
}

func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{dim: dim, records: make(map[string]models.EmbeddingRecord)}
}

func (m *MemoryIndex) Upsert(ctx context.Context, rec models.EmbeddingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkDim(rec.Vector, m.dim); err != nil {
		return fmt.Errorf("upsert embedding %s: %w", rec.ChunkID, err)
	}
	rec.Vector = append([]float32(nil), rec.Vector...)
	rec.Content = truncateContent(rec.Content)
	m.mu.Lock()
	m.records[rec.ChunkID] = rec
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, workspace string, vec []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Hit{}, nil
	}
	if err := checkDim(vec, m.dim); err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	m.mu.RLock()
	hits := make([]Hit, 0, len(m.records))
	for _, r := range m.records {
		if r.Workspace != workspace {
			continue
		}
		hits = append(hits, Hit{
			ChunkID:    r.ChunkID,
			DocumentID: r.DocumentID,
			ChunkIndex: r.ChunkIndex,
			Content:    r.Content,
			Score:      cosine(vec, r.Vector),
		})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].ChunkID < hits[j].ChunkID
		}
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if r.DocumentID == documentID {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *MemoryIndex) SetWorkspace(ctx context.Context, documentID, workspace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if r.DocumentID == documentID {
			r.Workspace = workspace
			m.records[id] = r
		}
	}
	return nil
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
