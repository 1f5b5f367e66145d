package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/atinyakov/CipherStudio/internal/access"
	"github.com/atinyakov/CipherStudio/internal/common"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
	status int
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	if d.status != 0 {
		w.WriteHeader(d.status)
	}
	_, _ = w.Write([]byte("hello"))
}

type staticVerifier struct{}

func (staticVerifier) UserIDFromToken(token string) (string, error) {
	if token == "valid" {
		return "user-1", nil
	}
	return "", common.ErrInvalidToken
}

func TestWithIdentity(t *testing.T) {
	tests := []struct {
		name  string
		auth  string
		guest string
		want  access.Identity
	}{
		{"bearer", "Bearer valid", "", access.Identity{ID: "user-1", Authenticated: true}},
		{"guest header", "", "guest-x", access.Identity{ID: "guest-x"}},
		{"invalid token, guest header", "Bearer junk", "guest-x", access.Identity{ID: "guest-x"}},
		{"nothing", "", "", access.Identity{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dummy := &dummyHandler{}
			h := WithIdentity(staticVerifier{})(dummy)

			req := httptest.NewRequest("GET", "/api/projects/p1", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			if tt.guest != "" {
				req.Header.Set("user-id", tt.guest)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if !dummy.called {
				t.Fatal("expected next handler to be called")
			}
			if got := IdentityFromContext(dummy.ctx); got != tt.want {
				t.Errorf("identity = %+v; want %+v", got, tt.want)
			}
		})
	}
}

func TestRequireUser(t *testing.T) {
	dummy := &dummyHandler{}
	h := RequireUser(dummy)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/projects/user/projects", nil)
	req = req.WithContext(ContextWithIdentity(req.Context(), access.Identity{ID: "guest-1"}))
	h.ServeHTTP(rec, req)

	if dummy.called {
		t.Error("did not expect next handler to be called for a guest")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 Unauthorized, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"Unauthorized"`) {
		t.Errorf("unexpected body %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/projects/user/projects", nil)
	req = req.WithContext(ContextWithIdentity(req.Context(), access.Identity{ID: "u1", Authenticated: true}))
	h.ServeHTTP(rec, req)
	if !dummy.called || rec.Code != http.StatusOK {
		t.Errorf("authenticated request: called=%v code=%d", dummy.called, rec.Code)
	}
}

func TestGetIdentityFromContext_Empty(t *testing.T) {
	if got := IdentityFromContext(context.Background()); got.Known() {
		t.Errorf("expected empty identity, got %+v", got)
	}
}

func TestWithRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&buf),
		zapcore.DebugLevel,
	)
	log := zap.New(core)

	tests := []struct {
		status    int
		wantLevel string
	}{
		{0, `"level":"info"`},
		{http.StatusNotFound, `"level":"warn"`},
		{http.StatusInternalServerError, `"level":"error"`},
	}

	for _, tt := range tests {
		buf.Reset()
		h := WithRequestLogging(log)(&dummyHandler{status: tt.status})
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/health", nil))

		out := buf.String()
		for _, want := range []string{tt.wantLevel, `"method":"GET"`, `"path":"/api/health"`, `"bytes":5`} {
			if !strings.Contains(out, want) {
				t.Errorf("status %d: log %q missing %s", tt.status, out, want)
			}
		}
	}
}
