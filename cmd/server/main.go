// Package main initializes and starts the CipherStudio API server,
// setting up configuration, logging, database connections, repositories,
// services, handlers, and optional TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/CipherStudio/internal/access"
	"github.com/atinyakov/CipherStudio/internal/auth"
	"github.com/atinyakov/CipherStudio/internal/config"
	"github.com/atinyakov/CipherStudio/internal/db"
	"github.com/atinyakov/CipherStudio/internal/logger"
	"github.com/atinyakov/CipherStudio/internal/preview"
	"github.com/atinyakov/CipherStudio/internal/repository"
	"github.com/atinyakov/CipherStudio/internal/server/handler/http"
	"github.com/atinyakov/CipherStudio/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const (
	cleanInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Parse command-line, config file and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	zapLogger := log.Log

	if options.UsesFallbackSecret() {
		zapLogger.Warn("JWT_SECRET is not set, using the development fallback secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection and schema.
	postgresDB, err := db.InitPostgres(ctx, options.DatabaseDSN, options.DBRetries, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	// Purge soft-deleted projects in the background.
	db.StartSoftDeleteCleaner(ctx, postgresDB, cleanInterval, options.PurgeAfter, zapLogger)

	// Initialize repositories for users and projects.
	authRepo := repository.NewPostgresAuthRepository(postgresDB)
	projectRepo := repository.NewPostgresProjectRepository(postgresDB)

	// Initialize business-logic services.
	tokens := auth.NewTokenManager(options.Secret(), options.TokenTTL)
	authService := service.NewAuthService(authRepo, tokens, options.BcryptCost, zapLogger)
	projectService := service.NewProjectService(
		projectRepo,
		access.Policy{OpenWrites: options.OpenWrites},
		preview.NewRenderer(),
		zapLogger,
	)

	// Create HTTP handlers.
	authHandler := &http.AuthHandler{AuthService: authService, Log: zapLogger}
	projectHandler := &http.ProjectHandler{ProjectService: projectService, Log: zapLogger}
	healthHandler := &http.HealthHandler{DB: postgresDB}

	// Build the router with middleware and routes.
	router := http.NewRouter(authHandler, projectHandler, healthHandler, http.RouterConfig{
		Verifier:       tokens,
		AllowedOrigins: options.AllowedOrigins,
		Logger:         zapLogger,
	})

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if options.TLSCert != "" {
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	errCh := make(chan error, 1)
	go func() {
		if options.TLSCert != "" {
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Address))
			errCh <- server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
			return
		}
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Address))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
