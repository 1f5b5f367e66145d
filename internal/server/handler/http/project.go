package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/CipherStudio/internal/access"
	"github.com/atinyakov/CipherStudio/internal/middleware"
	"github.com/atinyakov/CipherStudio/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProjectService defines the project operations used by the HTTP handlers.
type ProjectService interface {
	Create(ctx context.Context, ident access.Identity, name, description string) (*models.Project, error)
	Get(ctx context.Context, ident access.Identity, projectID string) (*models.Project, error)
	Update(ctx context.Context, ident access.Identity, projectID string, patch models.ProjectPatch) (*models.Project, error)
	Delete(ctx context.Context, ident access.Identity, projectID string) error
	ListByOwner(ctx context.Context, ident access.Identity) ([]models.Project, error)
	Preview(ctx context.Context, ident access.Identity, projectID string) (string, error)
}

// MsgProjectDeleted confirms a delete.
const MsgProjectDeleted = "Project deleted successfully"

// previewCSP keeps the preview document in an opaque origin.
const previewCSP = "sandbox allow-scripts"

// ProjectHandler handles the /api/projects endpoints.
type ProjectHandler struct {
	// ProjectService performs the project operations.
	ProjectService ProjectService
	// Log records unexpected failures. Optional.
	Log *zap.Logger
}

// CreateProjectRequest is the body of POST /api/projects.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles POST /api/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidRequest})
		return
	}

	p, err := h.ProjectService.Create(r.Context(), middleware.IdentityFromContext(r.Context()), req.Name, req.Description)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Get handles GET /api/projects/{projectID}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.ProjectService.Get(r.Context(), middleware.IdentityFromContext(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Update handles PUT /api/projects/{projectID}. Only the fields present in
// the body change.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.ProjectPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidRequest})
		return
	}

	p, err := h.ProjectService.Update(r.Context(), middleware.IdentityFromContext(r.Context()), chi.URLParam(r, "projectID"), patch)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /api/projects/{projectID}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.ProjectService.Delete(r.Context(), middleware.IdentityFromContext(r.Context()), chi.URLParam(r, "projectID")); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: MsgProjectDeleted})
}

// ListMine handles GET /api/projects/user/projects.
func (h *ProjectHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	list, err := h.ProjectService.ListByOwner(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Preview handles GET /api/projects/{projectID}/preview and serves the
// rendered document as sandboxed HTML.
func (h *ProjectHandler) Preview(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ProjectService.Preview(r.Context(), middleware.IdentityFromContext(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", previewCSP)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}
