package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"docsearch/internal/logging"
	"docsearch/internal/models"
	"docsearch/internal/util"
	"docsearch/internal/vector"

	"github.com/google/uuid"
)

const (
	DefaultColor = "#2196F3"
	DefaultIcon  = "📁"
)

type Registry interface {
	CreateWorkspace(ctx context.Context, w models.Workspace) (models.Workspace, error)
	GetWorkspace(ctx context.Context, id string) (models.Workspace, error)
	ListWorkspaces(ctx context.Context) ([]models.WorkspaceStats, error)
	UpdateWorkspace(ctx context.Context, w models.Workspace) (models.Workspace, error)
	DeleteWorkspace(ctx context.Context, id string) ([]string, error)
}

type Documents interface {
	GetDocument(ctx context.Context, id string) (models.Document, error)
	ListDocuments(ctx context.Context, workspace string, limit int) ([]models.Document, error)
	CountDocuments(ctx context.Context, workspace string) (int, error)
	DeleteDocument(ctx context.Context, id string) error
	ListOrphanDocumentIDs(ctx context.Context) ([]string, error)
	SetDocumentWorkspace(ctx context.Context, id, workspace string) error
}

type Service struct {
	registry  Registry
	documents Documents
	index     vector.Index
	log       *slog.Logger
}

func NewService(registry Registry, documents Documents, index vector.Index, logger *slog.Logger) *Service {
	return &Service{registry: registry, documents: documents, index: index, log: logging.OrDefault(logger)}
}

type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	AccessLevel string `json:"access_level"`
}

// Patch holds the fields to change; nil fields are left as they are.
type Patch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	Icon        *string `json:"icon"`
	AccessLevel *string `json:"access_level"`
}

type MigrateReport struct {
	Moved  int `json:"moved"`
	Failed int `json:"failed"`
}

func newWorkspaceID() string {
	return "ws_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func validAccess(level string) bool {
	return level == models.AccessPrivate || level == models.AccessPublic
}

func (s *Service) Create(ctx context.Context, in CreateInput) (models.Workspace, error) {
	w := models.Workspace{
		ID:          newWorkspaceID(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Color:       in.Color,
		Icon:        in.Icon,
		AccessLevel: in.AccessLevel,
	}
	if w.Name == "" {
		return models.Workspace{}, fmt.Errorf("create workspace: name is required: %w", util.ErrInvalidWorkspace)
	}
	if w.Color == "" {
		w.Color = DefaultColor
	}
	if w.Icon == "" {
		w.Icon = DefaultIcon
	}
	if w.AccessLevel == "" {
		w.AccessLevel = models.AccessPrivate
	}
	if !validAccess(w.AccessLevel) {
		return models.Workspace{}, fmt.Errorf("create workspace: access level %q: %w", w.AccessLevel, util.ErrInvalidWorkspace)
	}
	out, err := s.registry.CreateWorkspace(ctx, w)
	if err != nil {
		return models.Workspace{}, err
	}
	s.log.Info("workspace created", "workspace", out.ID, "name", out.Name)
	return out, nil
}

func (s *Service) List(ctx context.Context) ([]models.WorkspaceStats, error) {
	return s.registry.ListWorkspaces(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (models.Workspace, error) {
	return s.registry.GetWorkspace(ctx, id)
}

func (s *Service) Update(ctx context.Context, id string, p Patch) (models.Workspace, error) {
	w, err := s.registry.GetWorkspace(ctx, id)
	if err != nil {
		return models.Workspace{}, err
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return models.Workspace{}, fmt.Errorf("update workspace %s: name is required: %w", id, util.ErrInvalidWorkspace)
		}
		w.Name = name
	}
	if p.Description != nil {
		w.Description = strings.TrimSpace(*p.Description)
	}
	if p.Color != nil && *p.Color != "" {
		w.Color = *p.Color
	}
	if p.Icon != nil && *p.Icon != "" {
		w.Icon = *p.Icon
	}
	if p.AccessLevel != nil {
		if !validAccess(*p.AccessLevel) {
			return models.Workspace{}, fmt.Errorf("update workspace %s: access level %q: %w", id, *p.AccessLevel, util.ErrInvalidWorkspace)
		}
		w.AccessLevel = *p.AccessLevel
	}
	return s.registry.UpdateWorkspace(ctx, w)
}

// Delete removes a workspace with all of its documents. Index entries go
// first so a failure leaves the corpus intact and the call can be repeated.
// The main workspace cannot be deleted.
func (s *Service) Delete(ctx context.Context, id string) (int, error) {
	if id == models.MainWorkspaceID {
		return 0, fmt.Errorf("delete workspace %s: main cannot be deleted: %w", id, util.ErrInvalidWorkspace)
	}
	if _, err := s.registry.GetWorkspace(ctx, id); err != nil {
		return 0, err
	}
	docs, err := s.documents.ListDocuments(ctx, id, 0)
	if err != nil {
		return 0, err
	}
	cleared := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if err := s.index.DeleteByDocument(ctx, d.ID); err != nil {
			return 0, fmt.Errorf("delete workspace %s: %w", id, err)
		}
		cleared[d.ID] = struct{}{}
	}
	removed, err := s.registry.DeleteWorkspace(ctx, id)
	if err != nil {
		return 0, err
	}
	// documents ingested between the listing and the delete
	for _, docID := range removed {
		if _, ok := cleared[docID]; ok {
			continue
		}
		if err := s.index.DeleteByDocument(ctx, docID); err != nil {
			s.log.Warn("index entries left behind", "document_id", docID, "error", err)
		}
	}
	s.log.Info("workspace deleted", "workspace", id, "documents", len(removed))
	return len(removed), nil
}

// MigrateOrphans moves documents with no workspace, or one missing from the
// registry, into main along with their chunks and index entries.
func (s *Service) MigrateOrphans(ctx context.Context) (MigrateReport, error) {
	ids, err := s.documents.ListOrphanDocumentIDs(ctx)
	if err != nil {
		return MigrateReport{}, err
	}
	var (
		rep  MigrateReport
		errs []error
	)
	for _, id := range ids {
		if err := s.move(ctx, id, models.MainWorkspaceID); err != nil {
			if ctx.Err() != nil {
				return rep, err
			}
			rep.Failed++
			errs = append(errs, err)
			continue
		}
		rep.Moved++
	}
	if rep.Moved > 0 || rep.Failed > 0 {
		s.log.Info("orphan documents migrated", "moved", rep.Moved, "failed", rep.Failed)
	}
	return rep, errors.Join(errs...)
}

func (s *Service) AssignDocument(ctx context.Context, documentID, workspace string) error {
	if workspace == "" {
		workspace = models.MainWorkspaceID
	}
	if _, err := s.registry.GetWorkspace(ctx, workspace); err != nil {
		return err
	}
	if _, err := s.documents.GetDocument(ctx, documentID); err != nil {
		return err
	}
	return s.move(ctx, documentID, workspace)
}

func (s *Service) move(ctx context.Context, documentID, workspace string) error {
	if err := s.documents.SetDocumentWorkspace(ctx, documentID, workspace); err != nil {
		return err
	}
	if err := s.index.SetWorkspace(ctx, documentID, workspace); err != nil {
		return fmt.Errorf("move index entries of %s: %w", documentID, err)
	}
	return nil
}

func (s *Service) ListDocuments(ctx context.Context, workspace string, limit int) ([]models.Document, error) {
	if _, err := s.registry.GetWorkspace(ctx, workspace); err != nil {
		return nil, err
	}
	return s.documents.ListDocuments(ctx, workspace, limit)
}

func (s *Service) CountDocuments(ctx context.Context, workspace string) (int, error) {
	if _, err := s.registry.GetWorkspace(ctx, workspace); err != nil {
		return 0, err
	}
	return s.documents.CountDocuments(ctx, workspace)
}

func (s *Service) GetDocument(ctx context.Context, id string) (models.Document, error) {
	return s.documents.GetDocument(ctx, id)
}

// DeleteDocument drops the index entries, then the row; chunks follow the row.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.documents.GetDocument(ctx, id); err != nil {
		return err
	}
	if err := s.index.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if err := s.documents.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.log.Info("document deleted", "document_id", id)
	return nil
}
