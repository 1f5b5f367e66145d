package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/atinyakov/CipherStudio/internal/db/migrations"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	retryCap = 30 * time.Second
)

// retryBase is the first backoff delay. Tests shorten it.
var retryBase = 2 * time.Second

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// InitPostgres opens the database, pings it with exponential backoff
// (capped at 30s, at most retries extra attempts) and applies migrations.
func InitPostgres(ctx context.Context, dsn string, retries uint64, log *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := Connect(ctx, db, retries, log); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := Migrate(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Connect pings db until it answers or the retry budget runs out.
func Connect(ctx context.Context, db *sql.DB, retries uint64, log *zap.Logger) error {
	backoff := retry.WithCappedDuration(retryCap, retry.WithMaxRetries(retries, retry.NewExponential(retryBase)))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.PingContext(ctx); err != nil {
			log.Warn("database not reachable", zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(fmt.Errorf("ping postgres: %w", err))
		}
		log.Info("database connected", zap.Int("attempt", attempt))
		return nil
	})
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{log.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through zap.
type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.s.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.s.Fatalf(strings.TrimSuffix(format, "\n"), v...)
}
