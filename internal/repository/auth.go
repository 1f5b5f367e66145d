// Package repository provides PostgreSQL persistence for users and projects.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/CipherStudio/internal/common"
	"github.com/atinyakov/CipherStudio/internal/models"
	"github.com/lib/pq"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// PostgresAuthRepository stores user credentials in PostgreSQL.
type PostgresAuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuthRepository creates a new PostgresAuthRepository with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{DB: db}
}

// EmailExists reports whether a user with the given email is registered.
// The comparison is case-insensitive.
func (r *PostgresAuthRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("EmailExists: %w", err)
	}
	return exists, nil
}

// CreateUser inserts u. A taken email yields common.ErrAlreadyExists.
func (r *PostgresAuthRepository) CreateUser(ctx context.Context, u *models.User) error {
	err := r.DB.QueryRowContext(
		ctx,
		`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3) RETURNING created_at`,
		u.ID, u.Email, u.PasswordHash,
	).Scan(&u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("CreateUser: %w", err)
	}
	return nil
}

// GetUserByEmail returns the user registered with email, or
// common.ErrNotFound.
func (r *PostgresAuthRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE LOWER(email) = LOWER($1)`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetUserByEmail: %w", err)
	}
	return &u, nil
}

// GetUserByID returns the user with the given id, or common.ErrNotFound.
func (r *PostgresAuthRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetUserByID: %w", err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
