// Package http provides the JSON HTTP handlers and routing of the
// CipherStudio API.
package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/CipherStudio/internal/middleware"
	"github.com/atinyakov/CipherStudio/internal/models"
	"go.uber.org/zap"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// Register creates an account and returns a token for it.
	Register(ctx context.Context, email, password string) (*models.AuthResult, error)
	// Login checks credentials and returns a token.
	Login(ctx context.Context, email, password string) (*models.AuthResult, error)
	// Profile returns the account of a signed-in user.
	Profile(ctx context.Context, userID string) (*models.Profile, error)
}

// AuthHandler handles HTTP requests for user registration and login.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	// Log records unexpected failures. Optional.
	Log *zap.Logger
}

// CredentialsRequest represents the JSON payload for registration and login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register. It answers 201 with a token and
// the public user on success, 400 on invalid input or a taken email.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidRequest})
		return
	}

	res, err := h.AuthService.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidRequest})
		return
	}

	res, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Profile handles GET /api/auth/profile for a bearer-authenticated caller.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	p, err := h.AuthService.Profile(r.Context(), ident.ID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
