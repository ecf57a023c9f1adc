package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"docsearch/internal/models"
	"docsearch/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	minEFSearch = 100
	maxEFSearch = 1000
)

// PGIndex stores embeddings in a pgvector table next to the corpus tables.
type PGIndex struct {
	q   Queryer
	dim int
	// iterative is set when the extension supports hnsw.iterative_scan (0.8+).
	iterative bool
}

func NewPGIndex(q Queryer, dim int) *PGIndex {
	return &PGIndex{q: q, dim: dim}
}

func (p *PGIndex) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunk_embeddings (
    chunk_id    TEXT PRIMARY KEY,
    document_id TEXT NOT NULL,
    workspace   TEXT NOT NULL,
    chunk_index INT NOT NULL,
    content     VARCHAR(%d) NOT NULL,
    embedding   vector(%d) NOT NULL
)`, ContentLimit, p.dim),
		`CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_document ON chunk_embeddings (document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_workspace ON chunk_embeddings (workspace)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_hnsw ON chunk_embeddings USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, s := range stmts {
		if _, err := p.q.Exec(ctx, s); err != nil {
			return storage.Classify("ensure pgvector schema", err)
		}
	}
	rows, err := p.q.Query(ctx, `SELECT extversion FROM pg_extension WHERE extname = 'vector'`)
	if err != nil {
		return storage.Classify("read pgvector version", err)
	}
	version, err := pgx.CollectOneRow(rows, pgx.RowTo[string])
	if err != nil {
		return storage.Classify("read pgvector version", err)
	}
	p.iterative = supportsIterativeScan(version)
	return nil
}

func supportsIterativeScan(version string) bool {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return false
	}
	major, err1 := strconv.Atoi(parts[0])
	minor, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return false
	}
	return major > 0 || minor >= 8
}

// efSearch sizes the HNSW candidate list for a filtered top-k query.
func efSearch(k int) int {
	return min(max(k*10, minEFSearch), maxEFSearch)
}

func (p *PGIndex) Upsert(ctx context.Context, rec models.EmbeddingRecord) error {
	if err := checkDim(rec.Vector, p.dim); err != nil {
		return fmt.Errorf("upsert embedding %s: %w", rec.ChunkID, err)
	}
	_, err := p.q.Exec(ctx, `
INSERT INTO chunk_embeddings (chunk_id, document_id, workspace, chunk_index, content, embedding)
VALUES ($1, $2, $3, $4, $5, $6::vector)
ON CONFLICT (chunk_id)
DO UPDATE SET
  workspace = EXCLUDED.workspace,
  content = EXCLUDED.content,
  embedding = EXCLUDED.embedding`,
		rec.ChunkID, rec.DocumentID, rec.Workspace, rec.ChunkIndex, truncateContent(rec.Content), ToLiteral(rec.Vector),
	)
	return storage.Classify("upsert embedding", err)
}

func (p *PGIndex) Search(ctx context.Context, workspace string, vec []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}
	if err := checkDim(vec, p.dim); err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	// The workspace filter runs after the approximate index scan, which only
	// yields ef_search candidates across all workspaces. Widen the candidate
	// list, and on 0.8+ keep scanning until k rows pass the filter.
	tx, err := p.q.Begin(ctx)
	if err != nil {
		return nil, storage.Classify("begin vector search", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	settings := []string{fmt.Sprintf(`SET LOCAL hnsw.ef_search = %d`, efSearch(k))}
	if p.iterative {
		settings = append(settings, `SET LOCAL hnsw.iterative_scan = strict_order`)
	}
	for _, stmt := range settings {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return nil, storage.Classify("tune vector search", err)
		}
	}

	rows, err := tx.Query(ctx, `
SELECT chunk_id, document_id, chunk_index, content,
       1 - (embedding <=> $2::vector) AS score
FROM chunk_embeddings
WHERE workspace = $1
ORDER BY embedding <=> $2::vector
LIMIT $3`, workspace, ToLiteral(vec), k)
	if err != nil {
		return nil, storage.Classify("query vector search", err)
	}
	defer rows.Close()

	out := make([]Hit, 0, k)
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.ChunkIndex, &h.Content, &h.Score); err != nil {
			return nil, fmt.Errorf("scan vector hit: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Classify("iterate vector hits", err)
	}
	return out, nil
}

func (p *PGIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := p.q.Exec(ctx, `DELETE FROM chunk_embeddings WHERE document_id=$1`, documentID)
	return storage.Classify("delete document embeddings", err)
}

func (p *PGIndex) SetWorkspace(ctx context.Context, documentID, workspace string) error {
	_, err := p.q.Exec(ctx, `UPDATE chunk_embeddings SET workspace=$2 WHERE document_id=$1`, documentID, workspace)
	return storage.Classify("move document embeddings", err)
}

// ToLiteral renders v in pgvector's text input form.
func ToLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
