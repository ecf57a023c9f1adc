package activities

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"docsearch/internal/ingest"
	"docsearch/internal/logging"
	"docsearch/internal/models"
	"docsearch/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngester struct {
	calls []ingest.Request
	res   ingest.Result
	err   error
}

func (f *fakeIngester) Ingest(_ context.Context, req ingest.Request) (ingest.Result, error) {
	f.calls = append(f.calls, req)
	return f.res, f.err
}

type fakeDuplicates map[string]models.Document

func (f fakeDuplicates) FindDocumentByHash(_ context.Context, ws, hash string) (models.Document, bool, error) {
	d, ok := f[ws+"/"+hash]
	return d, ok, nil
}

func TestListFilesActivityKeepsIngestibleFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.txt", "c.docx", "skip.exe", "scan.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755))

	a := New(t.TempDir(), &fakeIngester{}, nil, logging.Nop())
	out, err := a.ListFilesActivity(context.Background(), ListFilesInput{InputDir: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.pdf"),
		filepath.Join(dir, "c.docx"),
		filepath.Join(dir, "scan.png"),
	}, out.Paths)
}

func TestIngestDocumentActivityReportsFailureInOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))
	ing := &fakeIngester{
		res: ingest.Result{DocumentID: "d1", Error: "scanned", ErrorKind: util.KindUnsupportedScan},
		err: util.ErrUnsupportedScannedDocument,
	}
	a := New(t.TempDir(), ing, fakeDuplicates{}, logging.Nop())

	out, err := a.IngestDocumentActivity(context.Background(), IngestDocumentInput{Path: path})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "d1", out.DocumentID)
	assert.Equal(t, util.KindUnsupportedScan, out.ErrorKind)
	require.Len(t, ing.calls, 1)
	assert.Equal(t, models.MainWorkspaceID, ing.calls[0].Workspace)
	assert.Len(t, ing.calls[0].ContentHash, 64)
}

func TestIngestDocumentActivitySkipsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	hash, _, err := util.SHA256File(path)
	require.NoError(t, err)

	ing := &fakeIngester{}
	dups := fakeDuplicates{"ws_a/" + hash: {ID: "existing", Status: models.StatusCompleted, ChunksCreated: 3, ChunksTotal: 3}}
	a := New(t.TempDir(), ing, dups, logging.Nop())

	out, err := a.IngestDocumentActivity(context.Background(), IngestDocumentInput{Path: path, Workspace: "ws_a"})
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Equal(t, "existing", out.DocumentID)
	assert.Empty(t, ing.calls)
}

func TestIngestDocumentActivityReingestsStuckOrPartialDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	hash, _, err := util.SHA256File(path)
	require.NoError(t, err)

	for name, prior := range map[string]models.Document{
		"processing": {ID: "stuck", Status: models.StatusProcessing},
		"partial":    {ID: "partial", Status: models.StatusCompleted, ChunksCreated: 2, ChunksTotal: 3},
	} {
		t.Run(name, func(t *testing.T) {
			ing := &fakeIngester{}
			a := New(t.TempDir(), ing, fakeDuplicates{"ws_a/" + hash: prior}, logging.Nop())

			out, err := a.IngestDocumentActivity(context.Background(), IngestDocumentInput{Path: path, Workspace: "ws_a"})
			require.NoError(t, err)
			assert.False(t, out.Skipped)
			require.Len(t, ing.calls, 1)
		})
	}
}

func TestIngestDocumentActivityMissingFile(t *testing.T) {
	a := New(t.TempDir(), &fakeIngester{}, nil, logging.Nop())
	out, err := a.IngestDocumentActivity(context.Background(), IngestDocumentInput{Path: "/nonexistent/a.pdf"})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, util.KindExtraction, out.ErrorKind)
}

func TestWriteBatchSummaryActivity(t *testing.T) {
	root := t.TempDir()
	a := New(root, &fakeIngester{}, nil, logging.Nop())
	out, err := a.WriteBatchSummaryActivity(context.Background(), WriteBatchSummaryInput{
		BatchID: "b1",
		Summary: map[string]any{"total": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "batches", "b1", "batch_summary.json"), out.Path)

	raw, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.EqualValues(t, 2, got["total"])
}
