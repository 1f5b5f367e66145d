package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atinyakov/CipherStudio/internal/common"
	"github.com/atinyakov/CipherStudio/internal/models"
)

const projectColumns = `project_id, user_id, name, description, files, dependencies, selected_file, is_public, created_at, updated_at`

// PostgresProjectRepository stores project documents in PostgreSQL. Files
// and dependencies live in JSONB columns; deletes are soft.
type PostgresProjectRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresProjectRepository creates a new PostgresProjectRepository using the provided *sql.DB.
func NewPostgresProjectRepository(db *sql.DB) *PostgresProjectRepository {
	return &PostgresProjectRepository{DB: db}
}

// CreateProject inserts p and fills in its timestamps.
func (r *PostgresProjectRepository) CreateProject(ctx context.Context, p *models.Project) error {
	files, deps, err := encodeDocument(p.Files, p.Dependencies)
	if err != nil {
		return fmt.Errorf("CreateProject: %w", err)
	}

	err = r.DB.QueryRowContext(ctx, `
		INSERT INTO projects (project_id, user_id, name, description, files, dependencies, selected_file, is_public)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8)
		RETURNING created_at, updated_at
	`, p.ProjectID, p.OwnerID, p.Name, p.Description, files, deps, nullable(p.SelectedFileID), p.IsPublic).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("CreateProject: %w", err)
	}
	return nil
}

// GetProject returns the live project with the given id, or common.ErrNotFound.
func (r *PostgresProjectRepository) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE project_id = $1 AND deleted_at IS NULL`,
		projectID,
	)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetProject: %w", err)
	}
	return p, nil
}

// UpdateProject applies patch in a single statement and returns the stored
// document. Fields absent from the patch keep their values.
func (r *PostgresProjectRepository) UpdateProject(ctx context.Context, projectID string, patch models.ProjectPatch) (*models.Project, error) {
	var files, deps any
	if patch.Files != nil {
		b, err := json.Marshal(patch.Files)
		if err != nil {
			return nil, fmt.Errorf("UpdateProject: encode files: %w", err)
		}
		files = string(b)
	}
	if patch.Dependencies != nil {
		b, err := json.Marshal(patch.Dependencies)
		if err != nil {
			return nil, fmt.Errorf("UpdateProject: encode dependencies: %w", err)
		}
		deps = string(b)
	}

	row := r.DB.QueryRowContext(ctx, `
		UPDATE projects
		   SET files         = COALESCE($2::jsonb, files),
		       dependencies  = COALESCE($3::jsonb, dependencies),
		       name          = COALESCE($4, name),
		       description   = COALESCE($5, description),
		       selected_file = COALESCE($6, selected_file),
		       updated_at    = NOW()
		 WHERE project_id = $1 AND deleted_at IS NULL
		RETURNING `+projectColumns,
		projectID, files, deps, optional(patch.Name), optional(patch.Description), optional(patch.SelectedFileID),
	)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("UpdateProject: %w", err)
	}
	return p, nil
}

// DeleteProject soft-deletes the project. Deleting a missing or already
// deleted project yields common.ErrNotFound.
func (r *PostgresProjectRepository) DeleteProject(ctx context.Context, projectID string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE projects SET deleted_at = NOW() WHERE project_id = $1 AND deleted_at IS NULL`,
		projectID,
	)
	if err != nil {
		return fmt.Errorf("DeleteProject: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteProject: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// ListProjectsByOwner returns every live project owned by ownerID, most
// recently updated first.
func (r *PostgresProjectRepository) ListProjectsByOwner(ctx context.Context, ownerID string) ([]models.Project, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = $1 AND deleted_at IS NULL ORDER BY updated_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListProjectsByOwner: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListProjectsByOwner: %w", err)
	}
	return projects, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var (
		p        models.Project
		files    []byte
		deps     []byte
		selected sql.NullString
	)
	if err := row.Scan(&p.ProjectID, &p.OwnerID, &p.Name, &p.Description, &files, &deps,
		&selected, &p.IsPublic, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(files) > 0 {
		if err := json.Unmarshal(files, &p.Files); err != nil {
			return nil, fmt.Errorf("decode files: %w", err)
		}
	}
	if len(deps) > 0 {
		if err := json.Unmarshal(deps, &p.Dependencies); err != nil {
			return nil, fmt.Errorf("decode dependencies: %w", err)
		}
	}
	if p.Files == nil {
		p.Files = []models.File{}
	}
	if p.Dependencies == nil {
		p.Dependencies = map[string]string{}
	}
	p.SelectedFileID = selected.String
	return &p, nil
}

// encodeDocument renders the JSONB columns. lib/pq sends []byte as bytea, so
// the documents travel as text and are cast in SQL.
func encodeDocument(files []models.File, deps map[string]string) (string, string, error) {
	if files == nil {
		files = []models.File{}
	}
	if deps == nil {
		deps = map[string]string{}
	}
	f, err := json.Marshal(files)
	if err != nil {
		return "", "", fmt.Errorf("encode files: %w", err)
	}
	d, err := json.Marshal(deps)
	if err != nil {
		return "", "", fmt.Errorf("encode dependencies: %w", err)
	}
	return string(f), string(d), nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
