// Package api is the HTTP client of the CipherStudio backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atinyakov/CipherStudio/internal/client/session"
	"github.com/atinyakov/CipherStudio/internal/common"
	"github.com/atinyakov/CipherStudio/internal/models"
)

// DefaultTimeout bounds every request made by a Client built with New.
const DefaultTimeout = 10 * time.Second

// StatusError is a non-2xx answer from the server. It unwraps to the
// matching common sentinel so callers can use errors.Is.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server answered %d", e.Status)
	}
	return e.Message
}

func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return common.ErrValidation
	case http.StatusUnauthorized:
		return common.ErrUnauthorized
	case http.StatusForbidden:
		return common.ErrForbidden
	case http.StatusNotFound:
		return common.ErrNotFound
	}
	return nil
}

// Client talks to one backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for baseURL. A nil httpClient gets DefaultTimeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: NormalizeBaseURL(baseURL), http: httpClient}
}

// NormalizeBaseURL trims trailing slashes and makes sure the URL ends with
// /api, so both "https://host" and "https://host/api/" work.
func NormalizeBaseURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if !strings.HasSuffix(u, "/api") {
		u += "/api"
	}
	return u
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, email, password string) (*models.AuthResult, error) {
	var res models.AuthResult
	if err := c.do(ctx, session.Session{}, http.MethodPost, "/auth/register", credentials{email, password}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	var res models.AuthResult
	if err := c.do(ctx, session.Session{}, http.MethodPost, "/auth/login", credentials{email, password}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Profile returns the signed-in user's account.
func (c *Client) Profile(ctx context.Context, s session.Session) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, s, http.MethodGet, "/auth/profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject creates a project with the server's default files.
func (c *Client) CreateProject(ctx context.Context, s session.Session, name, description string) (*models.Project, error) {
	body := struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}{name, description}

	var p models.Project
	if err := c.do(ctx, s, http.MethodPost, "/projects", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, s session.Session, projectID string) (*models.Project, error) {
	var p models.Project
	if err := c.do(ctx, s, http.MethodGet, projectPath(projectID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProject sends a partial update and returns the stored document.
func (c *Client) UpdateProject(ctx context.Context, s session.Session, projectID string, patch models.ProjectPatch) (*models.Project, error) {
	var p models.Project
	if err := c.do(ctx, s, http.MethodPut, projectPath(projectID), patch, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProject deletes a project.
func (c *Client) DeleteProject(ctx context.Context, s session.Session, projectID string) error {
	return c.do(ctx, s, http.MethodDelete, projectPath(projectID), nil, nil)
}

// ListProjects returns the signed-in user's projects, newest update first.
func (c *Client) ListProjects(ctx context.Context, s session.Session) ([]models.Project, error) {
	var list []models.Project
	if err := c.do(ctx, s, http.MethodGet, "/projects/user/projects", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Health reports the backend status and whether its database is reachable.
func (c *Client) Health(ctx context.Context) (status, database string, err error) {
	var res struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	if err := c.do(ctx, session.Session{}, http.MethodGet, "/health", nil, &res); err != nil {
		return "", "", err
	}
	return res.Status, res.Database, nil
}

func projectPath(projectID string) string {
	return "/projects/" + url.PathEscape(projectID)
}

func (c *Client) do(ctx context.Context, s session.Session, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	if s.GuestID != "" {
		req.Header.Set("user-id", s.GuestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &StatusError{Status: resp.StatusCode, Message: msg}
}

// IsNetwork reports whether err happened before the server answered.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	return !errors.As(err, &se)
}
