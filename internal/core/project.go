package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/echotwin/echotwin/internal/apperr"
	"github.com/echotwin/echotwin/internal/store"
	"github.com/echotwin/echotwin/internal/vectorstore"
)

// ProjectService manages the logical containers that scope ingestion and
// retrieval independently of the owner's personal namespace.
type ProjectService struct {
	store   *store.SQLiteStore
	vectors vectorstore.Store
	logger  *zap.Logger
}

func NewProjectService(s *store.SQLiteStore, v vectorstore.Store, logger *zap.Logger) *ProjectService {
	return &ProjectService{store: s, vectors: v, logger: logger}
}

type ProjectParams struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"systemPrompt"`
	IsPublic     bool   `json:"isPublic"`
}

// Create rejects when the owner's live project count has reached their tier's
// project limit.
func (s *ProjectService) Create(ownerID string, params ProjectParams) (*store.Project, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, apperr.NewValidation("project name is required")
	}

	owner, err := s.store.GetUser(ownerID)
	if err != nil {
		return nil, apperr.NewInternal(err)
	}
	if owner == nil {
		return nil, apperr.NewNotFound("user")
	}

	count, err := s.store.CountProjects(ownerID)
	if err != nil {
		return nil, apperr.NewInternal(err)
	}
	if count >= owner.ProjectLimit {
		return nil, apperr.NewQuotaExceeded(count, owner.ProjectLimit, 1)
	}

	project, err := s.store.CreateProject(ownerID, params.Name, params.Description, params.SystemPrompt, params.IsPublic)
	if err != nil {
		return nil, apperr.NewInternal(err)
	}
	s.logger.Info("created project", zap.String("project", project.ID), zap.String("owner", ownerID))
	return project, nil
}

// Get is public-readable so project assistants can be shared by id.
func (s *ProjectService) Get(projectID string) (*store.Project, error) {
	project, err := s.store.GetProject(projectID)
	if err != nil {
		return nil, apperr.NewInternal(err)
	}
	if project == nil {
		return nil, apperr.NewNotFound("project")
	}
	return project, nil
}

func (s *ProjectService) List(ownerID string) ([]store.Project, error) {
	projects, err := s.store.ListProjects(ownerID)
	if err != nil {
		return nil, apperr.NewInternal(err)
	}
	return projects, nil
}

// Update is owner-only.
func (s *ProjectService) Update(ownerID, projectID string, params ProjectParams) (*store.Project, error) {
	project, err := s.ownedProject(ownerID, projectID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, apperr.NewValidation("project name is required")
	}

	project.Name = params.Name
	project.Description = params.Description
	project.SystemPrompt = params.SystemPrompt
	project.IsPublic = params.IsPublic
	if err := s.store.UpdateProject(project); err != nil {
		return nil, apperr.NewInternal(err)
	}
	return project, nil
}

// Delete cascades: every conversation and file under the project is removed
// (their character counts summed for the audit log), the owner's quota entry
// for the project is deleted outright, the project's entire vector namespace
// is purged, and finally the project row goes.
func (s *ProjectService) Delete(ctx context.Context, ownerID, projectID string) error {
	project, err := s.ownedProject(ownerID, projectID)
	if err != nil {
		return err
	}

	items, err := s.store.ListProjectItems(project.ID)
	if err != nil {
		return apperr.NewInternal(err)
	}
	var totalChars int64
	for _, item := range items {
		totalChars += item.CharacterCount
	}

	if err := s.store.DeleteProjectItems(project.ID); err != nil {
		return apperr.NewInternal(err)
	}
	if err := s.store.DeleteProjectUsage(ownerID, project.ID); err != nil {
		return apperr.NewInternal(err)
	}
	if err := s.vectors.DeleteNamespace(ctx, vectorstore.ProjectNamespace(project.ID)); err != nil {
		return apperr.NewInternal(err)
	}
	if err := s.store.DeleteProject(project.ID); err != nil {
		return apperr.NewInternal(err)
	}

	s.logger.Info("deleted project",
		zap.String("project", project.ID),
		zap.String("owner", ownerID),
		zap.Int("items", len(items)),
		zap.Int64("chars", totalChars))
	return nil
}

// ownedProject loads a project and enforces owner-only access.
func (s *ProjectService) ownedProject(ownerID, projectID string) (*store.Project, error) {
	project, err := s.store.GetProject(projectID)
	if err != nil {
		return nil, apperr.NewInternal(err)
	}
	if project == nil {
		return nil, apperr.NewNotFound("project")
	}
	if project.OwnerID != ownerID {
		return nil, apperr.NewPermission("only the project owner may do this")
	}
	return project, nil
}
