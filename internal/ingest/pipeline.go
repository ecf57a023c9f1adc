package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"docsearch/internal/extract"
	"docsearch/internal/logging"
	"docsearch/internal/models"
	"docsearch/internal/util"
	"docsearch/internal/vector"

	"github.com/google/uuid"
)

type Extractor interface {
	Extract(ctx context.Context, path string) (extract.Extraction, error)
}

type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

type DocumentStore interface {
	CreateDocument(ctx context.Context, d models.Document) error
	UpdateDocumentStatus(ctx context.Context, id, status string, saved, total int, message string) error
}

type ChunkStore interface {
	InsertChunk(ctx context.Context, c models.Chunk) error
}

type WorkspaceLookup interface {
	GetWorkspace(ctx context.Context, id string) (models.Workspace, error)
}

// ChunkFunc splits extracted text into ordered chunks of at most maxChars runes.
type ChunkFunc func(text string, maxChars int) []string

type Config struct {
	Extractor     Extractor
	Chunk         ChunkFunc
	ChunkMaxChars int
	Encoder       Encoder
	Documents     DocumentStore
	Chunks        ChunkStore
	Workspaces    WorkspaceLookup
	Index         vector.Index
	Logger        *slog.Logger
}

type Request struct {
	Path         string `json:"path"`
	FileName     string `json:"file_name,omitempty"`
	ProjectLabel string `json:"project_label,omitempty"`
	Workspace    string `json:"workspace,omitempty"`
	ContentHash  string `json:"content_hash,omitempty"`
}

type Result struct {
	Success     bool   `json:"success"`
	DocumentID  string `json:"document_id,omitempty"`
	FileName    string `json:"file_name"`
	Workspace   string `json:"workspace"`
	SavedChunks int    `json:"saved_chunks"`
	TotalChunks int    `json:"total_chunks"`
	Method      string `json:"method,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
}

type Pipeline struct {
	extractor  Extractor
	chunk      ChunkFunc
	maxChars   int
	encoder    Encoder
	documents  DocumentStore
	chunks     ChunkStore
	workspaces WorkspaceLookup
	index      vector.Index
	log        *slog.Logger
}

func New(cfg Config) *Pipeline {
	p := &Pipeline{
		extractor:  cfg.Extractor,
		chunk:      cfg.Chunk,
		maxChars:   cfg.ChunkMaxChars,
		encoder:    cfg.Encoder,
		documents:  cfg.Documents,
		chunks:     cfg.Chunks,
		workspaces: cfg.Workspaces,
		index:      cfg.Index,
		log:        logging.OrDefault(cfg.Logger),
	}
	if p.chunk == nil {
		p.chunk = util.ChunkText
	}
	if p.maxChars <= 0 {
		p.maxChars = util.DefaultChunkMaxChars
	}
	return p
}

// Ingest runs one file through extraction, chunking and embedding. The
// document row is written as processing before extraction starts and always
// ends completed or failed. Per-chunk failures are counted, not returned.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (Result, error) {
	res := Result{FileName: req.FileName, Workspace: req.Workspace}
	if res.FileName == "" {
		res.FileName = filepath.Base(req.Path)
	}
	if res.Workspace == "" {
		res.Workspace = models.MainWorkspaceID
	}

	if _, err := p.workspaces.GetWorkspace(ctx, res.Workspace); err != nil {
		return res.withErr(fmt.Errorf("ingest %s: %w", res.FileName, err))
	}
	info, err := os.Stat(req.Path)
	if err != nil {
		return res.withErr(fmt.Errorf("stat %s: %w: %w", req.Path, util.ErrExtraction, err))
	}
	fileType, _ := extract.FileTypeOf(req.Path)

	doc := models.Document{
		ID:          uuid.NewString(),
		FileName:    res.FileName,
		ProjectName: req.ProjectLabel,
		Workspace:   res.Workspace,
		FileType:    fileType,
		FileSize:    info.Size(),
		ContentHash: req.ContentHash,
		Status:      models.StatusProcessing,
	}
	if err := p.documents.CreateDocument(ctx, doc); err != nil {
		return res.withErr(err)
	}
	res.DocumentID = doc.ID
	log := p.log.With("document_id", doc.ID, "file", res.FileName, "workspace", res.Workspace)

	ext, err := p.extractor.Extract(ctx, req.Path)
	if err != nil {
		return p.fail(ctx, log, res, err)
	}
	res.Method = ext.Method

	parts := p.chunk(ext.Text, p.maxChars)
	res.TotalChunks = len(parts)
	if len(parts) == 0 {
		return p.fail(ctx, log, res, fmt.Errorf("chunk %s: no chunks: %w", res.FileName, util.ErrExtraction))
	}

	for i, content := range parts {
		if err := ctx.Err(); err != nil {
			return p.fail(ctx, log, res, fmt.Errorf("ingest canceled after %d of %d chunks: %w", i, len(parts), err))
		}
		if err := p.saveChunk(ctx, doc, i, content); err != nil {
			log.Warn("chunk not saved", "chunk_index", i, "error", err)
			continue
		}
		res.SavedChunks++
	}
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, log, res, fmt.Errorf("ingest canceled: %w", err))
	}

	msg := ""
	if res.SavedChunks < res.TotalChunks {
		msg = fmt.Sprintf("saved %d of %d chunks", res.SavedChunks, res.TotalChunks)
	}
	if err := p.documents.UpdateDocumentStatus(ctx, doc.ID, models.StatusCompleted, res.SavedChunks, res.TotalChunks, msg); err != nil {
		return res.withErr(err)
	}
	res.Success = true
	log.Info("document ingested", "method", res.Method, "saved", res.SavedChunks, "total", res.TotalChunks)
	return res, nil
}

// saveChunk writes the chunk row, then its embedding. The chunk counts as
// saved only when both land.
func (p *Pipeline) saveChunk(ctx context.Context, doc models.Document, idx int, content string) error {
	c := models.Chunk{
		ChunkID:     uuid.NewString(),
		DocumentID:  doc.ID,
		Workspace:   doc.Workspace,
		ProjectName: doc.ProjectName,
		ChunkIndex:  idx,
		Content:     content,
	}
	if err := p.chunks.InsertChunk(ctx, c); err != nil {
		return err
	}
	vec, err := p.encoder.Encode(ctx, content)
	if err != nil {
		return err
	}
	return p.index.Upsert(ctx, models.EmbeddingRecord{
		ChunkID:    c.ChunkID,
		DocumentID: doc.ID,
		Workspace:  doc.Workspace,
		ChunkIndex: idx,
		Vector:     vec,
		Content:    content,
	})
}

func (p *Pipeline) fail(ctx context.Context, log *slog.Logger, res Result, cause error) (Result, error) {
	// the status write must land even when ctx is what failed
	sctx := context.WithoutCancel(ctx)
	if err := p.documents.UpdateDocumentStatus(sctx, res.DocumentID, models.StatusFailed, res.SavedChunks, res.TotalChunks, cause.Error()); err != nil {
		log.Error("mark document failed", "error", err)
		cause = errors.Join(cause, err)
	}
	log.Warn("document ingestion failed", "kind", util.ErrorKind(cause), "error", cause)
	return res.withErr(cause)
}

func (r Result) withErr(err error) (Result, error) {
	r.Success = false
	r.Error = err.Error()
	r.ErrorKind = util.ErrorKind(err)
	return r, err
}
