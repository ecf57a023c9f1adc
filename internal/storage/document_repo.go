package storage

import (
	"context"
	"fmt"

	"docsearch/internal/models"
	"docsearch/internal/util"

	"github.com/jackc/pgx/v5"
)

const documentColumns = `id, file_name, project_name, COALESCE(workspace, ''), file_type, file_size, content_hash,
       status, chunks_created, chunks_total, status_message, upload_date, updated_at`

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func scanDocument(row pgx.Row) (models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.FileName, &d.ProjectName, &d.Workspace, &d.FileType, &d.FileSize, &d.ContentHash,
		&d.Status, &d.ChunksCreated, &d.ChunksTotal, &d.StatusMessage, &d.UploadDate, &d.UpdatedAt)
	return d, err
}

func (r *DocumentRepo) CreateDocument(ctx context.Context, d models.Document) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (id, file_name, project_name, workspace, file_type, file_size, content_hash, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.FileName, d.ProjectName, d.Workspace, d.FileType, d.FileSize, d.ContentHash, d.Status,
	)
	return Classify("insert document", err)
}

func (r *DocumentRepo) UpdateDocumentStatus(ctx context.Context, id, status string, saved, total int, message string) error {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE documents
SET status=$2, chunks_created=$3, chunks_total=$4, status_message=$5, updated_at=NOW()
WHERE id=$1`, id, status, saved, total, message)
	if err != nil {
		return Classify("update document status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update document status %s: %w", id, util.ErrDocumentNotFound)
	}
	return nil
}

func (r *DocumentRepo) GetDocument(ctx context.Context, id string) (models.Document, error) {
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id))
	if isNoRows(err) {
		return models.Document{}, fmt.Errorf("get document %s: %w", id, util.ErrDocumentNotFound)
	}
	if err != nil {
		return models.Document{}, Classify("get document", err)
	}
	return d, nil
}

// ListDocuments returns the newest documents of a workspace first; limit <= 0 means no limit.
func (r *DocumentRepo) ListDocuments(ctx context.Context, workspace string, limit int) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE workspace=$1 ORDER BY upload_date DESC`
	args := []any{workspace}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, Classify("list documents", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("iterate documents", err)
	}
	return out, nil
}

func (r *DocumentRepo) CountDocuments(ctx context.Context, workspace string) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE workspace=$1`, workspace).Scan(&n); err != nil {
		return 0, Classify("count documents", err)
	}
	return n, nil
}

// DeleteDocument removes the document row; its chunks go with it through the
// foreign key cascade.
func (r *DocumentRepo) DeleteDocument(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM documents WHERE id=$1`, id)
	if err != nil {
		return Classify("delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete document %s: %w", id, util.ErrDocumentNotFound)
	}
	return nil
}

// FindDocumentByHash returns the newest complete document with this content
// in the workspace. Processing, failed and partial rows never match.
func (r *DocumentRepo) FindDocumentByHash(ctx context.Context, workspace, hash string) (models.Document, bool, error) {
	if hash == "" {
		return models.Document{}, false, nil
	}
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE workspace=$1 AND content_hash=$2
  AND status='completed' AND chunks_total > 0 AND chunks_created = chunks_total
ORDER BY upload_date DESC
LIMIT 1`, workspace, hash))
	if isNoRows(err) {
		return models.Document{}, false, nil
	}
	if err != nil {
		return models.Document{}, false, Classify("find document by hash", err)
	}
	return d, true, nil
}

// DocumentNames maps document ids to their original file names.
func (r *DocumentRepo) DocumentNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT id, file_name FROM documents WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, Classify("list document names", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan document name: %w", err)
		}
		out[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("iterate document names", err)
	}
	return out, nil
}

// ListOrphanDocumentIDs finds documents with no workspace or one that no
// longer exists in the registry.
func (r *DocumentRepo) ListOrphanDocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT d.id
FROM documents d
LEFT JOIN workspaces w ON w.id = d.workspace
WHERE d.workspace IS NULL OR w.id IS NULL
ORDER BY d.upload_date ASC`)
	if err != nil {
		return nil, Classify("list orphan documents", err)
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan orphan document: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("iterate orphan documents", err)
	}
	return out, nil
}

// SetDocumentWorkspace moves a document and its chunks together so the two
// tables never disagree on ownership.
func (r *DocumentRepo) SetDocumentWorkspace(ctx context.Context, id, workspace string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return Classify("begin tx set document workspace", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `UPDATE documents SET workspace=$2, updated_at=NOW() WHERE id=$1`, id, workspace)
	if err != nil {
		return Classify("update document workspace", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set workspace of %s: %w", id, util.ErrDocumentNotFound)
	}
	if _, err := tx.Exec(ctx, `UPDATE chunks SET workspace=$2 WHERE document_id=$1`, id, workspace); err != nil {
		return Classify("update chunk workspace", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Classify("commit set document workspace", err)
	}
	return nil
}
