package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/atinyakov/CipherStudio/internal/access"
	"github.com/atinyakov/CipherStudio/internal/common"
	"github.com/atinyakov/CipherStudio/internal/models"
)

// fakeAuthService implements AuthService for testing.
type fakeAuthService struct {
	result     *models.AuthResult
	err        error
	profile    *models.Profile
	gotEmail   string
	gotProfile string
}

func (f *fakeAuthService) Register(ctx context.Context, email, password string) (*models.AuthResult, error) {
	f.gotEmail = email
	return f.result, f.err
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	f.gotEmail = email
	return f.result, f.err
}

func (f *fakeAuthService) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	f.gotProfile = userID
	return f.profile, f.err
}

// fakeProjectService implements ProjectService for testing.
type fakeProjectService struct {
	project  *models.Project
	list     []models.Project
	doc      string
	err      error
	gotIdent access.Identity
	gotID    string
	gotPatch models.ProjectPatch
	gotName  string
}

func (f *fakeProjectService) Create(ctx context.Context, ident access.Identity, name, description string) (*models.Project, error) {
	f.gotIdent, f.gotName = ident, name
	return f.project, f.err
}

func (f *fakeProjectService) Get(ctx context.Context, ident access.Identity, id string) (*models.Project, error) {
	f.gotIdent, f.gotID = ident, id
	return f.project, f.err
}

func (f *fakeProjectService) Update(ctx context.Context, ident access.Identity, id string, patch models.ProjectPatch) (*models.Project, error) {
	f.gotIdent, f.gotID, f.gotPatch = ident, id, patch
	return f.project, f.err
}

func (f *fakeProjectService) Delete(ctx context.Context, ident access.Identity, id string) error {
	f.gotIdent, f.gotID = ident, id
	return f.err
}

func (f *fakeProjectService) ListByOwner(ctx context.Context, ident access.Identity) ([]models.Project, error) {
	f.gotIdent = ident
	return f.list, f.err
}

func (f *fakeProjectService) Preview(ctx context.Context, ident access.Identity, id string) (string, error) {
	f.gotIdent, f.gotID = ident, id
	return f.doc, f.err
}

type fakeVerifier struct{}

func (fakeVerifier) UserIDFromToken(token string) (string, error) {
	if token == "good-token" {
		return "user-1", nil
	}
	return "", common.ErrInvalidToken
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func newTestRouter(as *fakeAuthService, ps *fakeProjectService, db Pinger) http.Handler {
	return NewRouter(
		&AuthHandler{AuthService: as},
		&ProjectHandler{ProjectService: ps},
		&HealthHandler{DB: db},
		RouterConfig{
			Verifier:       fakeVerifier{},
			AllowedOrigins: []string{"http://localhost:3000", "https://*.vercel.app"},
		},
	)
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestAuthHandler_Register(t *testing.T) {
	ok := &models.AuthResult{Message: "Account created", Token: "tok", User: models.PublicUser{ID: "u1", Email: "a@b.co"}}

	tests := []struct {
		name         string
		body         string
		service      *fakeAuthService
		expectedCode int
		expectedErr  string
	}{
		{
			name:         "invalid JSON",
			body:         `not a json`,
			service:      &fakeAuthService{},
			expectedCode: http.StatusBadRequest,
			expectedErr:  "invalid request",
		},
		{
			name:         "validation error",
			body:         `{"email":"bad","password":"secret1"}`,
			service:      &fakeAuthService{err: common.NewError(common.ErrValidation, "Please enter a valid email address")},
			expectedCode: http.StatusBadRequest,
			expectedErr:  "Please enter a valid email address",
		},
		{
			name:         "email taken",
			body:         `{"email":"a@b.co","password":"secret1"}`,
			service:      &fakeAuthService{err: common.NewError(common.ErrAlreadyExists, "taken")},
			expectedCode: http.StatusBadRequest,
			expectedErr:  "taken",
		},
		{
			name:         "internal error",
			body:         `{"email":"a@b.co","password":"secret1"}`,
			service:      &fakeAuthService{err: errors.New("db error")},
			expectedCode: http.StatusInternalServerError,
			expectedErr:  "Internal server error",
		},
		{
			name:         "created",
			body:         `{"email":"a@b.co","password":"secret1"}`,
			service:      &fakeAuthService{result: ok},
			expectedCode: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestRouter(tt.service, &fakeProjectService{}, nil), "POST", "/api/auth/register", tt.body, nil)

			if rec.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedCode, rec.Code, rec.Body.String())
			}
			if tt.expectedErr != "" {
				if got := errorBody(t, rec); got != tt.expectedErr {
					t.Errorf("error = %q; want %q", got, tt.expectedErr)
				}
				return
			}

			var got models.AuthResult
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode JSON: %v", err)
			}
			if got.Token != "tok" || got.User.ID != "u1" || got.Message == "" {
				t.Errorf("unexpected body: %+v", got)
			}
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	svc := &fakeAuthService{err: common.NewError(common.ErrUnauthorized, "Invalid credentials")}
	rec := do(t, newTestRouter(svc, &fakeProjectService{}, nil), "POST", "/api/auth/login", `{"email":"x@y.zz","password":"nope12"}`, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := errorBody(t, rec); got != "Invalid credentials" {
		t.Errorf("error = %q", got)
	}

	svc = &fakeAuthService{result: &models.AuthResult{Message: "Login successful", Token: "t"}}
	rec = do(t, newTestRouter(svc, &fakeProjectService{}, nil), "POST", "/api/auth/login", `{"email":"x@y.zz","password":"good12"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.gotEmail != "x@y.zz" {
		t.Errorf("service got email %q", svc.gotEmail)
	}
}

func TestAuthHandler_Profile(t *testing.T) {
	svc := &fakeAuthService{profile: &models.Profile{ID: "user-1", Email: "a@b.co"}}
	h := newTestRouter(svc, &fakeProjectService{}, nil)

	rec := do(t, h, "GET", "/api/auth/profile", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous profile: expected 401, got %d", rec.Code)
	}

	rec = do(t, h, "GET", "/api/auth/profile", "", map[string]string{"Authorization": "Bearer good-token"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.gotProfile != "user-1" {
		t.Errorf("profile requested for %q; want user-1", svc.gotProfile)
	}
}

func TestProjectHandler_Create(t *testing.T) {
	ps := &fakeProjectService{project: &models.Project{ProjectID: "p1", OwnerID: "guest-1", IsPublic: true}}
	h := newTestRouter(&fakeAuthService{}, ps, nil)

	rec := do(t, h, "POST", "/api/projects", `{"name":"demo","description":"d"}`, map[string]string{"user-id": "guest-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if ps.gotIdent != (access.Identity{ID: "guest-1"}) || ps.gotName != "demo" {
		t.Errorf("service got ident %+v name %q", ps.gotIdent, ps.gotName)
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["projectId"] != "p1" || got["isPublic"] != true {
		t.Errorf("unexpected body %v", got)
	}

	rec = do(t, h, "POST", "/api/projects", `{"name":"demo"}`, map[string]string{"Authorization": "Bearer good-token", "user-id": "guest-1"})
	if ps.gotIdent != (access.Identity{ID: "user-1", Authenticated: true}) {
		t.Errorf("bearer must win over the guest header, got %+v", ps.gotIdent)
	}

	ps.err = common.NewError(common.ErrValidation, "User id missing")
	rec = do(t, h, "POST", "/api/projects", `{"name":"demo"}`, nil)
	if rec.Code != http.StatusBadRequest || errorBody(t, rec) != "User id missing" {
		t.Errorf("expected 400 User id missing, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestProjectHandler_GetStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"ok", nil, http.StatusOK},
		{"forbidden", common.NewError(common.ErrForbidden, "Forbidden"), http.StatusForbidden},
		{"not found", common.NewError(common.ErrNotFound, "Project not found"), http.StatusNotFound},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := &fakeProjectService{project: &models.Project{ProjectID: "p1"}, err: tt.err}
			rec := do(t, newTestRouter(&fakeAuthService{}, ps, nil), "GET", "/api/projects/p1", "", nil)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			if ps.gotID != "p1" {
				t.Errorf("service got id %q", ps.gotID)
			}
		})
	}
}

func TestProjectHandler_UpdatePassesPatch(t *testing.T) {
	ps := &fakeProjectService{project: &models.Project{ProjectID: "p1"}}
	h := newTestRouter(&fakeAuthService{}, ps, nil)

	body := `{"files":[{"id":"f1","name":"App.jsx","content":"x"}],"selectedFile":"f1"}`
	rec := do(t, h, "PUT", "/api/projects/p1", body, map[string]string{"user-id": "guest-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(ps.gotPatch.Files) != 1 || ps.gotPatch.Files[0].ID != "f1" {
		t.Errorf("files not passed: %+v", ps.gotPatch.Files)
	}
	if ps.gotPatch.SelectedFileID == nil || *ps.gotPatch.SelectedFileID != "f1" {
		t.Errorf("selectedFile not passed")
	}
	if ps.gotPatch.Name != nil || ps.gotPatch.Dependencies != nil {
		t.Errorf("absent fields must stay nil: %+v", ps.gotPatch)
	}

	rec = do(t, h, "PUT", "/api/projects/p1", `{"files":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("truncated body: expected 400, got %d", rec.Code)
	}
}

func TestProjectHandler_Delete(t *testing.T) {
	ps := &fakeProjectService{}
	rec := do(t, newTestRouter(&fakeAuthService{}, ps, nil), "DELETE", "/api/projects/p1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), MsgProjectDeleted) {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestProjectHandler_ListMine(t *testing.T) {
	ps := &fakeProjectService{list: []models.Project{{ProjectID: "p2"}, {ProjectID: "p1"}}}
	h := newTestRouter(&fakeAuthService{}, ps, nil)

	rec := do(t, h, "GET", "/api/projects/user/projects", "", map[string]string{"user-id": "guest-1"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("guest: expected 401, got %d", rec.Code)
	}

	rec = do(t, h, "GET", "/api/projects/user/projects", "", map[string]string{"Authorization": "Bearer good-token"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []models.Project
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 || list[0].ProjectID != "p2" {
		t.Errorf("unexpected list %+v", list)
	}
	if ps.gotID != "" {
		t.Errorf("user/projects must not be routed as a project id, got %q", ps.gotID)
	}
}

func TestProjectHandler_Preview(t *testing.T) {
	ps := &fakeProjectService{doc: "<!DOCTYPE html><html></html>"}
	rec := do(t, newTestRouter(&fakeAuthService{}, ps, nil), "GET", "/api/projects/p1/preview", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if csp := rec.Header().Get("Content-Security-Policy"); csp != "sandbox allow-scripts" {
		t.Errorf("Content-Security-Policy = %q", csp)
	}
	if rec.Body.String() != ps.doc {
		t.Errorf("body = %q", rec.Body.String())
	}

	ps.err = common.NewError(common.ErrForbidden, "Forbidden")
	rec = do(t, newTestRouter(&fakeAuthService{}, ps, nil), "GET", "/api/projects/p1/preview", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name string
		db   Pinger
		want string
	}{
		{"connected", fakePinger{}, "connected"},
		{"disconnected", fakePinger{err: errors.New("down")}, "disconnected"},
		{"no database", nil, "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestRouter(&fakeAuthService{}, &fakeProjectService{}, tt.db), "GET", "/api/health", "", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var got HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Status != "Backend is running" || got.Database != tt.want {
				t.Errorf("unexpected health %+v", got)
			}
		})
	}
}

func TestRouter_RejectsNonJSONBodies(t *testing.T) {
	h := newTestRouter(&fakeAuthService{}, &fakeProjectService{}, nil)

	req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader("email=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", rec.Code)
	}
}

func TestRouter_CORS(t *testing.T) {
	h := newTestRouter(&fakeAuthService{}, &fakeProjectService{}, nil)

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost:3000", true},
		{"https://my-app.vercel.app", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("OPTIONS", "/api/projects/p1", nil)
		req.Header.Set("Origin", tt.origin)
		req.Header.Set("Access-Control-Request-Method", "PUT")
		req.Header.Set("Access-Control-Request-Headers", "user-id, content-type")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		got := rec.Header().Get("Access-Control-Allow-Origin")
		if tt.allowed && got != tt.origin {
			t.Errorf("origin %s: Allow-Origin = %q", tt.origin, got)
		}
		if !tt.allowed && got != "" {
			t.Errorf("origin %s should be rejected, got %q", tt.origin, got)
		}
		if tt.allowed && rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Errorf("origin %s: credentials not allowed", tt.origin)
		}
	}
}
