package activities

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"docsearch/internal/extract"
	"docsearch/internal/ingest"
	"docsearch/internal/logging"
	"docsearch/internal/models"
	"docsearch/internal/util"
)

type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

type DuplicateFinder interface {
	FindDocumentByHash(ctx context.Context, workspace, hash string) (models.Document, bool, error)
}

type Activities struct {
	dataOutRoot string
	pipeline    Ingester
	duplicates  DuplicateFinder
	log         *slog.Logger
}

func New(dataOutRoot string, pipeline Ingester, duplicates DuplicateFinder, logger *slog.Logger) *Activities {
	return &Activities{
		dataOutRoot: dataOutRoot,
		pipeline:    pipeline,
		duplicates:  duplicates,
		log:         logging.OrDefault(logger),
	}
}

// ListFilesActivity returns the ingestible files directly inside InputDir,
// sorted by path.
func (a *Activities) ListFilesActivity(ctx context.Context, in ListFilesInput) (ListFilesOutput, error) {
	_ = ctx
	entries, err := os.ReadDir(in.InputDir)
	if err != nil {
		return ListFilesOutput{}, fmt.Errorf("read input dir: %w", err)
	}
	paths := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := extract.FileTypeOf(e.Name()); ok {
			paths = append(paths, filepath.Join(in.InputDir, e.Name()))
		}
	}
	sort.Strings(paths)
	return ListFilesOutput{Paths: paths}, nil
}

// IngestDocumentActivity runs one file through the pipeline. Document-level
// failures come back in the output so the batch can record them; only a
// cancelled context is returned as an error.
func (a *Activities) IngestDocumentActivity(ctx context.Context, in IngestDocumentInput) (IngestDocumentOutput, error) {
	workspace := in.Workspace
	if workspace == "" {
		workspace = models.MainWorkspaceID
	}
	out := IngestDocumentOutput{FileName: filepath.Base(in.Path)}

	hash, _, err := util.SHA256File(in.Path)
	if err != nil {
		out.Error = err.Error()
		out.ErrorKind = util.KindExtraction
		return out, nil
	}
	if a.duplicates != nil {
		existing, found, err := a.duplicates.FindDocumentByHash(ctx, workspace, hash)
		if err != nil {
			a.log.Warn("duplicate check failed", "path", in.Path, "error", err)
		}
		if found && existing.Complete() {
			out.Success = true
			out.Skipped = true
			out.DocumentID = existing.ID
			out.SavedChunks = existing.ChunksCreated
			out.TotalChunks = existing.ChunksTotal
			return out, nil
		}
	}

	res, err := a.pipeline.Ingest(ctx, ingest.Request{
		Path:         in.Path,
		ProjectLabel: in.ProjectLabel,
		Workspace:    workspace,
		ContentHash:  hash,
	})
	out.Success = res.Success
	out.DocumentID = res.DocumentID
	out.SavedChunks = res.SavedChunks
	out.TotalChunks = res.TotalChunks
	out.Method = res.Method
	out.Error = res.Error
	out.ErrorKind = res.ErrorKind
	if err != nil && ctx.Err() != nil {
		return out, err
	}
	return out, nil
}

func (a *Activities) WriteBatchSummaryActivity(ctx context.Context, in WriteBatchSummaryInput) (WriteBatchSummaryOutput, error) {
	_ = ctx
	path := filepath.Join(a.dataOutRoot, "batches", in.BatchID, "batch_summary.json")
	if err := util.WriteJSONAtomic(path, in.Summary); err != nil {
		return WriteBatchSummaryOutput{}, err
	}
	return WriteBatchSummaryOutput{Path: path}, nil
}
