package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"docsearch/internal/config"
	"docsearch/internal/extract"
	"docsearch/internal/ingest"
	"docsearch/internal/logging"
	"docsearch/internal/models"
	"docsearch/internal/retrieval"
	"docsearch/internal/util"
	"docsearch/internal/workflows"
	"docsearch/internal/workspace"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

const (
	defaultDocumentLimit = 100
	// parts beyond this are spooled to temp files by the multipart reader
	uploadMemoryLimit = 128 << 20
)

type Workspaces interface {
	Create(ctx context.Context, in workspace.CreateInput) (models.Workspace, error)
	List(ctx context.Context) ([]models.WorkspaceStats, error)
	Get(ctx context.Context, id string) (models.Workspace, error)
	Update(ctx context.Context, id string, p workspace.Patch) (models.Workspace, error)
	Delete(ctx context.Context, id string) (int, error)
	MigrateOrphans(ctx context.Context) (workspace.MigrateReport, error)
	AssignDocument(ctx context.Context, documentID, workspace string) error
	ListDocuments(ctx context.Context, workspace string, limit int) ([]models.Document, error)
	GetDocument(ctx context.Context, id string) (models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

type Searcher interface {
	Search(ctx context.Context, query, workspace string, topK int) (retrieval.Result, error)
	Describe(ctx context.Context, workspace string, res retrieval.Result) (string, error)
}

type DuplicateFinder interface {
	FindDocumentByHash(ctx context.Context, workspace, hash string) (models.Document, bool, error)
}

// WorkflowClient is the part of the Temporal client the server uses.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type Deps struct {
	Config     config.Config
	Workspaces Workspaces
	Pipeline   Ingester
	Retriever  Searcher
	Duplicates DuplicateFinder
	// Temporal may be nil; batch ingestion then answers 503.
	Temporal WorkflowClient
	Logger   *slog.Logger
}

type Server struct {
	cfg        config.Config
	workspaces Workspaces
	pipeline   Ingester
	retriever  Searcher
	duplicates DuplicateFinder
	temporal   WorkflowClient
	log        *slog.Logger

	uploadMemory int64
}

func NewServer(d Deps) *Server {
	return &Server{
		cfg:        d.Config,
		workspaces: d.Workspaces,
		pipeline:   d.Pipeline,
		retriever:  d.Retriever,
		duplicates: d.Duplicates,
		temporal:   d.Temporal,
		log:        logging.OrDefault(d.Logger),

		uploadMemory: uploadMemoryLimit,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/workspaces", s.handleWorkspaces)
	mux.HandleFunc("/workspaces/", s.handleWorkspaceScoped)
	mux.HandleFunc("/documents/", s.handleDocumentScoped)
	mux.HandleFunc("/admin/migrate-orphans", s.handleMigrateOrphans)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleWorkspaces(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.workspaces.List(r.Context())
		if err != nil {
			s.writeKindErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"workspaces": list})
	case http.MethodPost:
		var req workspace.CreateInput
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		ws, err := s.workspaces.Create(r.Context(), req)
		if err != nil {
			s.writeKindErr(w, err)
			return
		}
		if err := util.EnsureDir(filepath.Join(s.cfg.DataInRoot, ws.ID)); err != nil {
			s.writeKindErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ws)
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleWorkspaceScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/workspaces/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	wsID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			ws, err := s.workspaces.Get(r.Context(), wsID)
			if err != nil {
				s.writeKindErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, ws)
		case http.MethodPatch:
			var p workspace.Patch
			if err := decodeJSON(r, &p); err != nil {
				writeErr(w, http.StatusBadRequest, err)
				return
			}
			ws, err := s.workspaces.Update(r.Context(), wsID, p)
			if err != nil {
				s.writeKindErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, ws)
		case http.MethodDelete:
			n, err := s.workspaces.Delete(r.Context(), wsID)
			if err != nil {
				s.writeKindErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted": wsID, "documents_removed": n})
		default:
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		}
		return
	}

	if len(parts) != 2 {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	route := map[string]struct {
		method  string
		handler func(http.ResponseWriter, *http.Request, string)
	}{
		"documents": {http.MethodGet, s.handleListDocuments},
		"upload":    {http.MethodPost, s.handleUpload},
		"ingest":    {http.MethodPost, s.handleIngest},
		"progress":  {http.MethodGet, s.handleProgress},
		"search":    {http.MethodPost, s.handleSearch},
	}
	h, ok := route[parts[1]]
	if !ok {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != h.method {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	h.handler(w, r, wsID)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request, wsID string) {
	limit := defaultDocumentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid limit"))
			return
		}
		limit = n
	}
	docs, err := s.workspaces.ListDocuments(r.Context(), wsID, limit)
	if err != nil {
		s.writeKindErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspace": wsID, "documents": docs})
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchHit struct {
	ChunkID      string   `json:"chunk_id"`
	DocumentID   string   `json:"document_id"`
	DocumentName string   `json:"document_name"`
	ChunkIndex   int      `json:"chunk_index"`
	Content      string   `json:"content"`
	Snippet      string   `json:"snippet"`
	Source       string   `json:"source"`
	Score        *float64 `json:"score,omitempty"`
	ScoreKind    string   `json:"score_kind"`
}

type stageJSON struct {
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

func toStage(st retrieval.StageStatus) stageJSON {
	out := stageJSON{Count: st.Count}
	if st.Err != nil {
		out.Error = util.ErrorKind(st.Err)
	}
	return out
}

// toHit hides placeholder scores; they only order keyword hits and are not
// a relevance measure.
func toHit(c models.Candidate, query string) searchHit {
	h := searchHit{
		ChunkID:      c.ChunkID,
		DocumentID:   c.DocumentID,
		DocumentName: c.DocumentName,
		ChunkIndex:   c.ChunkIndex,
		Content:      c.Content,
		Snippet:      util.Snippet(c.Content, query, util.DefaultSnippetRunes),
		Source:       c.Source,
		ScoreKind:    c.ScoreKind,
	}
	if c.ScoreKind != models.ScorePlaceholder {
		score := c.Score
		h.Score = &score
	}
	return h
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, wsID string) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}
	if _, err := s.workspaces.Get(r.Context(), wsID); err != nil {
		s.writeKindErr(w, err)
		return
	}
	res, err := s.retriever.Search(r.Context(), req.Query, wsID, req.TopK)
	if err != nil {
		s.writeKindErr(w, err)
		return
	}
	hits := make([]searchHit, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		hits = append(hits, toHit(c, req.Query))
	}
	body := map[string]any{
		"workspace": wsID,
		"query":     req.Query,
		"results":   hits,
		"reranked":  res.Reranked,
		"stages": map[string]stageJSON{
			"vector":  toStage(res.Vector),
			"keyword": toStage(res.Keyword),
			"rerank":  toStage(res.Rerank),
		},
	}
	if len(hits) == 0 {
		outcome, err := s.retriever.Describe(r.Context(), wsID, res)
		if err != nil {
			s.log.Warn("describe empty search", "workspace", wsID, "error", err)
		}
		if outcome != "" {
			body["outcome"] = outcome
		}
	}
	writeJSON(w, http.StatusOK, body)
}

type uploadResult struct {
	FileName    string `json:"file_name"`
	DocumentID  string `json:"document_id,omitempty"`
	Success     bool   `json:"success"`
	Duplicate   bool   `json:"duplicate,omitempty"`
	SavedChunks int    `json:"saved_chunks"`
	TotalChunks int    `json:"total_chunks"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
}

// handleUpload stores each file under the workspace input directory and
// ingests it before answering. Files already present by content hash are
// reported as duplicates and not ingested again.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, wsID string) {
	if _, err := s.workspaces.Get(r.Context(), wsID); err != nil {
		s.writeKindErr(w, err)
		return
	}
	if err := r.ParseMultipartForm(s.uploadMemory); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		if single, ok := firstSingleFile(r.MultipartForm.File); ok {
			files = append(files, single)
		}
	}
	if len(files) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}
	project := r.FormValue("project_label")

	inDir := filepath.Join(s.cfg.DataInRoot, wsID)
	if err := util.EnsureDir(inDir); err != nil {
		s.writeKindErr(w, err)
		return
	}

	out := make([]uploadResult, 0, len(files))
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if _, ok := extract.FileTypeOf(name); !ok {
			out = append(out, uploadResult{FileName: name, Error: "unsupported file type", ErrorKind: util.KindExtraction})
			continue
		}
		hash, savedPath, err := saveUploadedFile(inDir, fh)
		if err != nil {
			s.writeKindErr(w, err)
			return
		}
		if s.duplicates != nil {
			existing, found, err := s.duplicates.FindDocumentByHash(r.Context(), wsID, hash)
			if err != nil {
				s.log.Warn("duplicate check failed", "file", name, "error", err)
			}
			if found && existing.Complete() {
				out = append(out, uploadResult{
					FileName:    name,
					DocumentID:  existing.ID,
					Success:     true,
					Duplicate:   true,
					SavedChunks: existing.ChunksCreated,
					TotalChunks: existing.ChunksTotal,
				})
				continue
			}
		}
		res, err := s.pipeline.Ingest(r.Context(), ingest.Request{
			Path:         savedPath,
			FileName:     name,
			ProjectLabel: project,
			Workspace:    wsID,
			ContentHash:  hash,
		})
		if err != nil {
			s.log.Warn("upload ingest failed", "file", name, "kind", res.ErrorKind, "error", err)
		}
		out = append(out, uploadResult{
			FileName:    name,
			DocumentID:  res.DocumentID,
			Success:     res.Success,
			SavedChunks: res.SavedChunks,
			TotalChunks: res.TotalChunks,
			Error:       res.Error,
			ErrorKind:   res.ErrorKind,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspace": wsID, "uploaded": out})
}

func ingestWorkflowID(wsID string) string {
	return "ingest-" + wsID
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request, wsID string) {
	if s.temporal == nil {
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("workflow engine not configured"))
		return
	}
	if _, err := s.workspaces.Get(r.Context(), wsID); err != nil {
		s.writeKindErr(w, err)
		return
	}
	var req struct {
		ProjectLabel string `json:"project_label"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	batchID := wsID + "-" + uuid.NewString()[:8]
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       ingestWorkflowID(wsID),
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.BatchIngestWorkflow, workflows.BatchIngestInput{
		BatchID:               batchID,
		Workspace:             wsID,
		InputDir:              filepath.Join(s.cfg.DataInRoot, wsID),
		ProjectLabel:          req.ProjectLabel,
		MaxConcurrentChildren: s.cfg.IngestMaxChildren,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID(), "batch_id": batchID})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, wsID string) {
	if s.temporal != nil {
		resp, err := s.temporal.QueryWorkflow(r.Context(), ingestWorkflowID(wsID), "", workflows.QueryGetProgress)
		if err == nil {
			var prog workflows.BatchIngestProgress
			if err := resp.Get(&prog); err != nil {
				s.writeKindErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, prog)
			return
		}
	}
	// No workflow to ask: derive progress from document statuses.
	docs, err := s.workspaces.ListDocuments(r.Context(), wsID, 0)
	if err != nil {
		s.writeKindErr(w, err)
		return
	}
	prog := workflows.BatchIngestProgress{Workspace: wsID, Total: len(docs), PerFile: make(map[string]string, len(docs))}
	for _, d := range docs {
		prog.PerFile[d.FileName] = d.Status
		switch d.Status {
		case models.StatusCompleted:
			prog.Done++
		case models.StatusFailed:
			prog.Done++
			prog.Failed++
		}
	}
	writeJSON(w, http.StatusOK, prog)
}

func (s *Server) handleDocumentScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	docID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			doc, err := s.workspaces.GetDocument(r.Context(), docID)
			if err != nil {
				s.writeKindErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, doc)
		case http.MethodDelete:
			if err := s.workspaces.DeleteDocument(r.Context(), docID); err != nil {
				s.writeKindErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted": docID})
		default:
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		}
		return
	}
	if len(parts) == 2 && parts[1] == "workspace" {
		if r.Method != http.MethodPut {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var req struct {
			Workspace string `json:"workspace"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		if err := s.workspaces.AssignDocument(r.Context(), docID, req.Workspace); err != nil {
			s.writeKindErr(w, err)
			return
		}
		ws := req.Workspace
		if ws == "" {
			ws = models.MainWorkspaceID
		}
		writeJSON(w, http.StatusOK, map[string]any{"document_id": docID, "workspace": ws})
		return
	}
	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleMigrateOrphans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	rep, err := s.workspaces.MigrateOrphans(r.Context())
	if err != nil && rep.Moved == 0 && rep.Failed == 0 {
		s.writeKindErr(w, err)
		return
	}
	body := map[string]any{"moved": rep.Moved, "failed": rep.Failed}
	if err != nil {
		s.log.Warn("orphan migration incomplete", "error", err)
		body["error"] = util.ErrorKind(err)
	}
	writeJSON(w, http.StatusOK, body)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}
