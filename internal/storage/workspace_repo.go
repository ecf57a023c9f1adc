package storage

import (
	"context"
	"fmt"

	"docsearch/internal/models"
	"docsearch/internal/util"

	"github.com/jackc/pgx/v5"
)

const workspaceColumns = `id, name, description, color, icon, access_level, created_at, updated_at`

type WorkspaceRepo struct {
	db *DB
}

func NewWorkspaceRepo(db *DB) *WorkspaceRepo {
	return &WorkspaceRepo{db: db}
}

func scanWorkspace(row pgx.Row, extra ...any) (models.Workspace, error) {
	var w models.Workspace
	dest := append([]any{&w.ID, &w.Name, &w.Description, &w.Color, &w.Icon, &w.AccessLevel, &w.CreatedAt, &w.UpdatedAt}, extra...)
	err := row.Scan(dest...)
	return w, err
}

func (r *WorkspaceRepo) CreateWorkspace(ctx context.Context, w models.Workspace) (models.Workspace, error) {
	out, err := scanWorkspace(r.db.Pool.QueryRow(ctx, `
INSERT INTO workspaces (id, name, description, color, icon, access_level)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+workspaceColumns,
		w.ID, w.Name, w.Description, w.Color, w.Icon, w.AccessLevel,
	))
	if err != nil {
		return models.Workspace{}, Classify("create workspace", err)
	}
	return out, nil
}

func (r *WorkspaceRepo) GetWorkspace(ctx context.Context, id string) (models.Workspace, error) {
	w, err := scanWorkspace(r.db.Pool.QueryRow(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE id=$1`, id))
	if isNoRows(err) {
		return models.Workspace{}, fmt.Errorf("get workspace %s: %w", id, util.ErrWorkspaceNotFound)
	}
	if err != nil {
		return models.Workspace{}, Classify("get workspace", err)
	}
	return w, nil
}

// ListWorkspaces returns every workspace with its document and chunk counts,
// main first and the rest by creation time.
func (r *WorkspaceRepo) ListWorkspaces(ctx context.Context) ([]models.WorkspaceStats, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT w.id, w.name, w.description, w.color, w.icon, w.access_level, w.created_at, w.updated_at,
       COALESCE(ds.document_count, 0), COALESCE(cs.chunk_count, 0)
FROM workspaces w
LEFT JOIN (
    SELECT workspace, COUNT(*) AS document_count FROM documents GROUP BY workspace
) ds ON ds.workspace = w.id
LEFT JOIN (
    SELECT d.workspace, COUNT(c.chunk_id) AS chunk_count
    FROM documents d JOIN chunks c ON c.document_id = d.id
    GROUP BY d.workspace
) cs ON cs.workspace = w.id
ORDER BY CASE WHEN w.id = 'main' THEN 0 ELSE 1 END, w.created_at ASC`)
	if err != nil {
		return nil, Classify("list workspaces", err)
	}
	defer rows.Close()

	out := make([]models.WorkspaceStats, 0)
	for rows.Next() {
		var s models.WorkspaceStats
		w, err := scanWorkspace(rows, &s.DocumentCount, &s.ChunkCount)
		if err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		s.Workspace = w
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("iterate workspaces", err)
	}
	return out, nil
}

func (r *WorkspaceRepo) UpdateWorkspace(ctx context.Context, w models.Workspace) (models.Workspace, error) {
	out, err := scanWorkspace(r.db.Pool.QueryRow(ctx, `
UPDATE workspaces
SET name=$2, description=$3, color=$4, icon=$5, access_level=$6, updated_at=NOW()
WHERE id=$1
RETURNING `+workspaceColumns,
		w.ID, w.Name, w.Description, w.Color, w.Icon, w.AccessLevel,
	))
	if isNoRows(err) {
		return models.Workspace{}, fmt.Errorf("update workspace %s: %w", w.ID, util.ErrWorkspaceNotFound)
	}
	if err != nil {
		return models.Workspace{}, Classify("update workspace", err)
	}
	return out, nil
}

// DeleteWorkspace removes the workspace and its documents (chunks cascade)
// in one transaction and returns the ids of the removed documents.
func (r *WorkspaceRepo) DeleteWorkspace(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, Classify("begin tx delete workspace", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `DELETE FROM documents WHERE workspace=$1 RETURNING id`, id)
	if err != nil {
		return nil, Classify("delete workspace documents", err)
	}
	docIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, Classify("collect deleted documents", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM workspaces WHERE id=$1`, id)
	if err != nil {
		return nil, Classify("delete workspace", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("delete workspace %s: %w", id, util.ErrWorkspaceNotFound)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, Classify("commit delete workspace", err)
	}
	return docIDs, nil
}
