package storage

import (
	"context"
	"fmt"
	"strings"

	"docsearch/internal/models"
)

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) InsertChunk(ctx context.Context, c models.Chunk) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO chunks (chunk_id, document_id, content, chunk_index, workspace, project_name)
VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ChunkID, c.DocumentID, c.Content, c.ChunkIndex, c.Workspace, c.ProjectName,
	)
	return Classify(fmt.Sprintf("insert chunk %d of %s", c.ChunkIndex, c.DocumentID), err)
}

// KeywordSearch returns chunks of the workspace whose content contains query,
// case-insensitively. Scores are left for the caller to assign.
func (r *ChunkRepo) KeywordSearch(ctx context.Context, workspace, query string, limit int) ([]models.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []models.Candidate{}, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT c.chunk_id, c.document_id, d.file_name, c.chunk_index, c.content
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE c.workspace = $1
  AND d.workspace = $1
  AND c.content ILIKE $2 ESCAPE '\'
ORDER BY d.upload_date DESC, c.chunk_index ASC
LIMIT $3`, workspace, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, Classify("keyword search", err)
	}
	defer rows.Close()

	out := make([]models.Candidate, 0, limit)
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.DocumentName, &c.ChunkIndex, &c.Content); err != nil {
			return nil, fmt.Errorf("scan keyword hit: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("iterate keyword hits", err)
	}
	return out, nil
}

func (r *ChunkRepo) ListChunksByDocument(ctx context.Context, documentID string) ([]models.Chunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT chunk_id, document_id, COALESCE(workspace, ''), project_name, chunk_index, content, created_at
FROM chunks
WHERE document_id=$1
ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, Classify("list chunks by document", err)
	}
	defer rows.Close()
	out := make([]models.Chunk, 0, 64)
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Workspace, &c.ProjectName, &c.ChunkIndex, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("iterate chunks", err)
	}
	return out, nil
}
