package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"docsearch/internal/extract"
	"docsearch/internal/logging"
	"docsearch/internal/models"
	"docsearch/internal/util"
	"docsearch/internal/vector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pages []string

func (p pages) PageTexts(context.Context, string) ([]string, error) { return p, nil }

type fakeDocs struct {
	mu        sync.Mutex
	created   []models.Document
	statuses  map[string]string
	saved     map[string]int
	total     map[string]int
	messages  map[string]string
	createErr error
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{statuses: map[string]string{}, saved: map[string]int{}, total: map[string]int{}, messages: map[string]string{}}
}

func (f *fakeDocs) CreateDocument(_ context.Context, d models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, d)
	f.statuses[d.ID] = d.Status
	return nil
}

func (f *fakeDocs) UpdateDocumentStatus(ctx context.Context, id, status string, saved, total int, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	f.saved[id] = saved
	f.total[id] = total
	f.messages[id] = message
	return nil
}

type fakeChunks struct {
	mu     sync.Mutex
	chunks []models.Chunk
	err    error
}

func (f *fakeChunks) InsertChunk(_ context.Context, c models.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.chunks = append(f.chunks, c)
	return nil
}

type fakeWorkspaces map[string]bool

func (f fakeWorkspaces) GetWorkspace(_ context.Context, id string) (models.Workspace, error) {
	if !f[id] {
		return models.Workspace{}, util.ErrWorkspaceNotFound
	}
	return models.Workspace{ID: id}, nil
}

// fakeEncoder fails for any chunk containing failOn and cancels after
// cancelAfter calls when set.
type fakeEncoder struct {
	failOn      string
	calls       int
	cancelAfter int
	cancel      context.CancelFunc
}

func (f *fakeEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.cancel != nil && f.calls == f.cancelAfter {
		f.cancel()
	}
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, util.ErrEmbedding
	}
	return []float32{1, float32(len(text))}, nil
}

type fixture struct {
	docs   *fakeDocs
	chunks *fakeChunks
	enc    *fakeEncoder
	index  *vector.MemoryIndex
}

func newPipeline(t *testing.T, ex Extractor) (*Pipeline, *fixture) {
	t.Helper()
	fx := &fixture{docs: newFakeDocs(), chunks: &fakeChunks{}, enc: &fakeEncoder{}, index: vector.NewMemoryIndex(2)}
	p := New(Config{
		Extractor:     ex,
		ChunkMaxChars: 1000,
		Encoder:       fx.enc,
		Documents:     fx.docs,
		Chunks:        fx.chunks,
		Workspaces:    fakeWorkspaces{models.MainWorkspaceID: true, "ws_a": true},
		Index:         fx.index,
		Logger:        logging.Nop(),
	})
	return p, fx
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestBornDigitalDocument(t *testing.T) {
	ex := extract.New(extract.Config{TextLayer: pages{
		strings.Repeat("a", 399),
		strings.Repeat("b", 399),
		strings.Repeat("c", 399),
	}})
	p, fx := newPipeline(t, ex)
	path := writeFile(t, "tender.pdf", "%PDF-1.4")

	res, err := p.Ingest(context.Background(), Request{Path: path, ProjectLabel: "roads"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.TotalChunks)
	assert.Equal(t, 2, res.SavedChunks)
	assert.Equal(t, extract.MethodText, res.Method)
	assert.Equal(t, "tender.pdf", res.FileName)
	assert.Equal(t, models.MainWorkspaceID, res.Workspace)

	assert.Equal(t, models.StatusCompleted, fx.docs.statuses[res.DocumentID])
	assert.Equal(t, 2, fx.docs.saved[res.DocumentID])
	require.Len(t, fx.docs.created, 1)
	assert.Equal(t, models.StatusProcessing, fx.docs.created[0].Status)
	assert.Equal(t, extract.TypePDF, fx.docs.created[0].FileType)
	assert.Equal(t, 2, fx.index.Len())
}

func TestIngestChunkIndicesAreContiguous(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 25; i++ {
		b.WriteString(strings.Repeat("x", 300))
		b.WriteString("\n")
	}
	p, fx := newPipeline(t, extract.New(extract.Config{}))
	path := writeFile(t, "notes.txt", b.String())

	res, err := p.Ingest(context.Background(), Request{Path: path, Workspace: "ws_a"})
	require.NoError(t, err)
	require.Equal(t, res.TotalChunks, len(fx.chunks.chunks))
	for i, c := range fx.chunks.chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, "ws_a", c.Workspace)
		assert.Equal(t, res.DocumentID, c.DocumentID)
	}
}

func TestIngestScannedDocumentWithoutOCRFails(t *testing.T) {
	ex := extract.New(extract.Config{TextLayer: pages{"", " ", ""}})
	p, fx := newPipeline(t, ex)
	path := writeFile(t, "scan.pdf", "%PDF-1.4")

	res, err := p.Ingest(context.Background(), Request{Path: path})
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrUnsupportedScannedDocument)
	assert.False(t, res.Success)
	assert.Equal(t, util.KindUnsupportedScan, res.ErrorKind)
	assert.Equal(t, models.StatusFailed, fx.docs.statuses[res.DocumentID])
	assert.NotEmpty(t, fx.docs.messages[res.DocumentID])
	assert.Empty(t, fx.chunks.chunks)
}

func TestIngestPartialEmbeddingFailureStillCompletes(t *testing.T) {
	text := strings.Repeat("a", 900) + "\n" + strings.Repeat("b", 900) + "\n" + strings.Repeat("c", 900) + "\n"
	p, fx := newPipeline(t, extract.New(extract.Config{}))
	fx.enc.failOn = "bbb"
	path := writeFile(t, "three.txt", text)

	res, err := p.Ingest(context.Background(), Request{Path: path})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.TotalChunks)
	assert.Equal(t, 2, res.SavedChunks)
	assert.Equal(t, models.StatusCompleted, fx.docs.statuses[res.DocumentID])
	assert.Equal(t, "saved 2 of 3 chunks", fx.docs.messages[res.DocumentID])
	assert.Equal(t, 2, fx.index.Len())
}

func TestIngestUnknownWorkspaceWritesNothing(t *testing.T) {
	p, fx := newPipeline(t, extract.New(extract.Config{}))
	path := writeFile(t, "a.txt", "hello")

	res, err := p.Ingest(context.Background(), Request{Path: path, Workspace: "ws_missing"})
	require.ErrorIs(t, err, util.ErrWorkspaceNotFound)
	assert.Equal(t, util.KindWorkspaceNotFound, res.ErrorKind)
	assert.Empty(t, fx.docs.created)
}

func TestIngestStoreUnavailable(t *testing.T) {
	p, fx := newPipeline(t, extract.New(extract.Config{}))
	fx.docs.createErr = util.ErrStoreUnavailable
	path := writeFile(t, "a.txt", "hello")

	res, err := p.Ingest(context.Background(), Request{Path: path})
	require.ErrorIs(t, err, util.ErrStoreUnavailable)
	assert.False(t, res.Success)
	assert.Empty(t, res.DocumentID)
}

func TestIngestChunkStoreFailureCountsZeroSaved(t *testing.T) {
	p, fx := newPipeline(t, extract.New(extract.Config{}))
	fx.chunks.err = errors.New("disk full")
	path := writeFile(t, "a.txt", "hello\nworld\n")

	res, err := p.Ingest(context.Background(), Request{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 0, res.SavedChunks)
	assert.Equal(t, models.StatusCompleted, fx.docs.statuses[res.DocumentID])
	assert.Equal(t, 0, fx.enc.calls)
}

func TestIngestCancellationMarksFailed(t *testing.T) {
	text := strings.Repeat("a", 900) + "\n" + strings.Repeat("b", 900) + "\n" + strings.Repeat("c", 900) + "\n"
	p, fx := newPipeline(t, extract.New(extract.Config{}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fx.enc.cancel = cancel
	fx.enc.cancelAfter = 1
	path := writeFile(t, "three.txt", text)

	res, err := p.Ingest(ctx, Request{Path: path})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.Success)
	assert.Equal(t, models.StatusFailed, fx.docs.statuses[res.DocumentID])
	assert.Equal(t, 1, fx.enc.calls)
}

func TestIngestUsesRequestFileName(t *testing.T) {
	p, fx := newPipeline(t, extract.New(extract.Config{}))
	path := writeFile(t, "upload-123.txt", "hello")

	res, err := p.Ingest(context.Background(), Request{Path: path, FileName: "Report.txt", ContentHash: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "Report.txt", res.FileName)
	assert.Equal(t, "Report.txt", fx.docs.created[0].FileName)
	assert.Equal(t, "abc", fx.docs.created[0].ContentHash)
	assert.Equal(t, int64(5), fx.docs.created[0].FileSize)
}
