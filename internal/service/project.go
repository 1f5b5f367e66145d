package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/CipherStudio/internal/access"
	"github.com/atinyakov/CipherStudio/internal/common"
	"github.com/atinyakov/CipherStudio/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Messages returned to API callers.
const (
	MsgProjectNotFound  = "Project not found"
	MsgUserIDMissing    = "User id missing"
	MsgNameRequired     = "Project name is required"
	MsgFileIDRequired   = "File id is required"
	MsgUnauthorized     = "Unauthorized"
	msgDuplicateFileIDf = "Duplicate file id: %s"
)

// Default contents of a new project.
const (
	DefaultAppSource = `export default function App() {
  return (
    <div style={{ padding: '20px', fontFamily: 'Arial' }}>
      <h1>Welcome to CipherStudio</h1>
      <p>Start editing to see changes!</p>
    </div>
  );
}`

	DefaultIndexSource = `import React from 'react';
import ReactDOM from 'react-dom/client';
import App from './App';

const root = ReactDOM.createRoot(document.getElementById('root'));
root.render(<App />);`
)

// DefaultDependencies returns the dependency map of a new project.
func DefaultDependencies() map[string]string {
	return map[string]string{
		"react":     "^18.0.0",
		"react-dom": "^18.0.0",
	}
}

// ProjectRepository defines the persistence operations needed by the
// ProjectService.
type ProjectRepository interface {
	// CreateProject stores a new project document.
	CreateProject(ctx context.Context, p *models.Project) error
	// GetProject returns common.ErrNotFound when the project is absent.
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	// UpdateProject applies patch atomically and returns the stored document.
	UpdateProject(ctx context.Context, projectID string, patch models.ProjectPatch) (*models.Project, error)
	// DeleteProject returns common.ErrNotFound when the project is absent.
	DeleteProject(ctx context.Context, projectID string) error
	// ListProjectsByOwner returns the owner's projects, newest update first.
	ListProjectsByOwner(ctx context.Context, ownerID string) ([]models.Project, error)
}

// PreviewRenderer turns a project's files into an HTML document.
type PreviewRenderer interface {
	Render(files []models.File) string
}

// ProjectService implements project CRUD with access control.
type ProjectService struct {
	repo     ProjectRepository
	policy   access.Policy
	renderer PreviewRenderer
	log      *zap.Logger
	newID    func() string
}

// NewProjectService constructs a ProjectService.
func NewProjectService(repo ProjectRepository, policy access.Policy, renderer PreviewRenderer, log *zap.Logger) *ProjectService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProjectService{
		repo:     repo,
		policy:   policy,
		renderer: renderer,
		log:      log,
		newID:    uuid.NewString,
	}
}

// Create stores a new project with the default files, owned by ident.
// Guests get public projects, registered users private ones.
func (s *ProjectService) Create(ctx context.Context, ident access.Identity, name, description string) (*models.Project, error) {
	if !ident.Known() {
		return nil, common.NewError(common.ErrValidation, MsgUserIDMissing)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.NewError(common.ErrValidation, MsgNameRequired)
	}

	p := &models.Project{
		ProjectID:    s.newID(),
		OwnerID:      ident.ID,
		Name:         name,
		Description:  description,
		Files:        s.defaultFiles(),
		Dependencies: DefaultDependencies(),
		IsPublic:     access.DefaultVisibility(ident),
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}

	s.log.Info("project created",
		zap.String("project_id", p.ProjectID),
		zap.Bool("public", p.IsPublic),
	)
	return p, nil
}

func (s *ProjectService) defaultFiles() []models.File {
	return []models.File{
		{ID: s.newID(), Name: "App.jsx", Type: models.FileType, Language: "jsx", Content: DefaultAppSource},
		{ID: s.newID(), Name: "index.js", Type: models.FileType, Language: "javascript", Content: DefaultIndexSource},
	}
}

// Get returns the project if ident may read it.
func (s *ProjectService) Get(ctx context.Context, ident access.Identity, projectID string) (*models.Project, error) {
	p, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.AuthorizeRead(p, ident); err != nil {
		return nil, err
	}
	return p, nil
}

// Update applies patch if ident may write the project. Files and
// dependencies replace the stored values wholesale.
func (s *ProjectService) Update(ctx context.Context, ident access.Identity, projectID string, patch models.ProjectPatch) (*models.Project, error) {
	if err := normalizePatch(&patch); err != nil {
		return nil, err
	}

	p, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.AuthorizeWrite(p, ident); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return p, nil
	}

	updated, err := s.repo.UpdateProject(ctx, projectID, patch)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewError(common.ErrNotFound, MsgProjectNotFound)
	}
	if err != nil {
		return nil, err
	}
	updated.DropDanglingSelection()

	s.log.Debug("project updated",
		zap.String("project_id", projectID),
		zap.Int("files", len(updated.Files)),
	)
	return updated, nil
}

// Delete removes the project if ident may write it.
func (s *ProjectService) Delete(ctx context.Context, ident access.Identity, projectID string) error {
	p, err := s.load(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.policy.AuthorizeWrite(p, ident); err != nil {
		return err
	}

	err = s.repo.DeleteProject(ctx, projectID)
	if errors.Is(err, common.ErrNotFound) {
		return common.NewError(common.ErrNotFound, MsgProjectNotFound)
	}
	if err != nil {
		return err
	}

	s.log.Info("project deleted", zap.String("project_id", projectID))
	return nil
}

// ListByOwner returns the projects of an authenticated user.
func (s *ProjectService) ListByOwner(ctx context.Context, ident access.Identity) ([]models.Project, error) {
	if !ident.Authenticated {
		return nil, common.NewError(common.ErrUnauthorized, MsgUnauthorized)
	}
	projects, err := s.repo.ListProjectsByOwner(ctx, ident.ID)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		projects[i].DropDanglingSelection()
	}
	return projects, nil
}

// Preview renders the stored files of a readable project.
func (s *ProjectService) Preview(ctx context.Context, ident access.Identity, projectID string) (string, error) {
	p, err := s.Get(ctx, ident, projectID)
	if err != nil {
		return "", err
	}
	return s.renderer.Render(p.Files), nil
}

func (s *ProjectService) load(ctx context.Context, projectID string) (*models.Project, error) {
	p, err := s.repo.GetProject(ctx, projectID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewError(common.ErrNotFound, MsgProjectNotFound)
	}
	if err != nil {
		return nil, err
	}
	p.DropDanglingSelection()
	return p, nil
}

// normalizePatch rejects file lists with missing or repeated ids and fills in
// the file type.
func normalizePatch(patch *models.ProjectPatch) error {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return common.NewError(common.ErrValidation, MsgNameRequired)
	}

	seen := make(map[string]struct{}, len(patch.Files))
	for i := range patch.Files {
		f := &patch.Files[i]
		if f.ID == "" {
			return common.NewError(common.ErrValidation, MsgFileIDRequired)
		}
		if _, dup := seen[f.ID]; dup {
			return common.NewError(common.ErrValidation, fmt.Sprintf(msgDuplicateFileIDf, f.ID))
		}
		seen[f.ID] = struct{}{}
		if f.Type == "" {
			f.Type = models.FileType
		}
	}
	return nil
}
