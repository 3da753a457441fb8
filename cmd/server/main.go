// Package main initializes and starts the lab-report portal API server,
// setting up configuration, logging, the database connection, repositories,
// services, and handlers.
package main

import (
	"cmp"
	"context"
	"fmt"

	nethttp "net/http"

	"github.com/balalab/portal/internal/config"
	"github.com/balalab/portal/internal/db"
	"github.com/balalab/portal/internal/logger"
	"github.com/balalab/portal/internal/repository"
	"github.com/balalab/portal/internal/server/handler/http"
	"github.com/balalab/portal/internal/service"
	"github.com/balalab/portal/internal/storage"
	"github.com/balalab/portal/internal/token"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init("Info"); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	// Initialize PostgreSQL connection.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	// Initialize the on-disk blob store for uploaded files.
	blobs, err := storage.NewDiskStore(options.UploadDir)
	if err != nil {
		zapLogger.Fatal("cannot init upload dir", zap.Error(err))
	}

	// Sweep upload files whose report row is gone.
	db.StartOrphanFileCleaner(context.Background(), postgresDB,
		options.UploadDir,
		options.CleanInterval,
		zapLogger,
	)

	// Initialize repositories for users and report metadata.
	userRepo := repository.NewPostgresUserRepository(postgresDB)
	reportRepo := repository.NewPostgresReportRepository(postgresDB)

	// Initialize business-logic services and the token manager.
	authService := service.NewAuthService(userRepo)
	reportService := service.NewReportService(reportRepo, userRepo, blobs)
	tokens := token.NewManager(options.JWTSecret, options.TokenTTL)

	// Create HTTP handlers for auth, report, and user endpoints.
	authHandler := &http.AuthHandler{AuthService: authService, Tokens: tokens}
	reportHandler := &http.ReportHandler{ReportService: reportService}
	userHandler := &http.UserHandler{UserService: authService}

	// Build the router with middleware and routes.
	router := http.NewRouter(authHandler, reportHandler, userHandler, tokens, zapLogger)

	server := &nethttp.Server{
		Addr:    options.Port,
		Handler: router,
	}

	zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
