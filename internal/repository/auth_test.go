package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/atinyakov/CipherStudio/internal/common"
	"github.com/atinyakov/CipherStudio/internal/models"
	"github.com/lib/pq"
)

func setupAuthMock(t *testing.T) (*PostgresAuthRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresAuthRepository(db)
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

func TestEmailExists(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{"taken", true},
		{"free", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupAuthMock(t)
			defer cleanup()

			mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`)).
				WithArgs("a@b.co").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			exists, err := repo.EmailExists(context.Background(), "a@b.co")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if exists != tt.exists {
				t.Errorf("exists = %v; want %v", exists, tt.exists)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestEmailExists_Error(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs("a@b.co").
		WillReturnError(errors.New("query failed"))

	if _, err := repo.EmailExists(context.Background(), "a@b.co"); err == nil {
		t.Errorf("expected error, got nil")
	}
}

func TestCreateUser_Success(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	u := &models.User{ID: "u1", Email: "a@b.co", PasswordHash: []byte("hash")}
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3) RETURNING created_at`)).
		WithArgs("u1", "a@b.co", []byte("hash")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !u.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v; want %v", u.CreatedAt, created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("u1", "a@b.co", []byte("hash")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	err := repo.CreateUser(context.Background(), &models.User{ID: "u1", Email: "a@b.co", PasswordHash: []byte("hash")})
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateUser_Error(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("u1", "a@b.co", []byte("hash")).
		WillReturnError(errors.New("insert failed"))

	err := repo.CreateUser(context.Background(), &models.User{ID: "u1", Email: "a@b.co", PasswordHash: []byte("hash")})
	if err == nil || errors.Is(err, common.ErrAlreadyExists) {
		t.Errorf("expected plain error, got %v", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	created := time.Now().UTC()
	query := regexp.QuoteMeta(`SELECT id, email, password_hash, created_at FROM users WHERE LOWER(email) = LOWER($1)`)
	mock.ExpectQuery(query).
		WithArgs("A@B.co").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
			AddRow("u1", "a@b.co", []byte("hash"), created))

	u, err := repo.GetUserByEmail(context.Background(), "A@B.co")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != "u1" || u.Email != "a@b.co" || string(u.PasswordHash) != "hash" {
		t.Errorf("unexpected user: %+v", u)
	}

	mock.ExpectQuery(query).
		WithArgs("missing@b.co").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}))

	if _, err := repo.GetUserByEmail(context.Background(), "missing@b.co"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetUserByID(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	query := regexp.QuoteMeta(`SELECT id, email, password_hash, created_at FROM users WHERE id = $1`)
	mock.ExpectQuery(query).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
			AddRow("u1", "a@b.co", []byte("hash"), time.Now()))
	mock.ExpectQuery(query).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}))
	mock.ExpectQuery(query).
		WithArgs("u3").
		WillReturnError(errors.New("conn reset"))

	if u, err := repo.GetUserByID(context.Background(), "u1"); err != nil || u.Email != "a@b.co" {
		t.Errorf("GetUserByID(u1) = %+v, %v", u, err)
	}
	if _, err := repo.GetUserByID(context.Background(), "u2"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetUserByID(context.Background(), "u3"); err == nil || errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected wrapped driver error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
