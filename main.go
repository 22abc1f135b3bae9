package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/ekaya-inc/field-tools/migrations"
	"github.com/ekaya-inc/field-tools/pkg/audit"
	"github.com/ekaya-inc/field-tools/pkg/config"
	"github.com/ekaya-inc/field-tools/pkg/database"
	"github.com/ekaya-inc/field-tools/pkg/handlers"
	"github.com/ekaya-inc/field-tools/pkg/logging"
	"github.com/ekaya-inc/field-tools/pkg/middleware"
	"github.com/ekaya-inc/field-tools/pkg/repositories"
	"github.com/ekaya-inc/field-tools/pkg/retry"
	"github.com/ekaya-inc/field-tools/pkg/seed"
	"github.com/ekaya-inc/field-tools/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	dbURL := cfg.Database.URL()
	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("listen_addr", cfg.ListenAddr()),
		zap.String("database", logging.SanitizeConnectionString(dbURL)),
		zap.Bool("docker", config.IsRunningInDocker()))

	ctx := context.Background()

	// The database may still be starting when both run under compose.
	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		db, err := database.NewConnection(ctx, dbURL, &cfg.Database)
		if err != nil {
			logger.Warn("Database not reachable yet", zap.String("error", logging.SanitizeError(err)))
		}
		return db, err
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if err := runMigrations(dbURL, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.String("error", logging.SanitizeError(err)))
	}

	// Repositories
	fieldRepo := repositories.NewFieldRepository()
	displayRepo := repositories.NewDisplayRepository()
	bundleRepo := repositories.NewBundleRepository()

	if cfg.SeedFile != "" {
		if err := applySeed(ctx, db, cfg.SeedFile, seed.Repositories{
			Fields:   fieldRepo,
			Displays: displayRepo,
			Bundles:  bundleRepo,
		}, logger); err != nil {
			logger.Fatal("Failed to apply seed file", zap.String("path", cfg.SeedFile), zap.Error(err))
		}
	}

	// Services
	fieldIndex := services.NewBundleFieldIndex(fieldRepo)
	synchronizer := services.NewDisplaySynchronizer(displayRepo, logger)
	fieldCloner := services.NewFieldCloner(fieldRepo, synchronizer, logger)
	displayCloner := services.NewDisplayCloner(displayRepo, fieldIndex, logger)
	bulkCloner := services.NewBulkCloner(fieldRepo, fieldCloner, displayCloner, logger)
	catalog := services.NewCatalogService(fieldRepo, displayRepo, bundleRepo, logger)

	mux := http.NewServeMux()
	scope := database.WithScopeContext(db, logger)
	auditor := audit.NewChangeAuditor(logger)

	// Register handlers
	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewFieldCloneHandler(catalog, fieldCloner, bulkCloner, auditor, logger).RegisterRoutes(mux, scope)
	handlers.NewDisplayCloneHandler(catalog, bulkCloner, auditor, logger).RegisterRoutes(mux, scope)

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting field-tools", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// runMigrations applies the embedded schema over a short-lived database/sql
// connection, which golang-migrate requires.
func runMigrations(dbURL string, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", dbURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, migrations.FS, logger)
}

func applySeed(ctx context.Context, db *database.DB, path string, repos seed.Repositories, logger *zap.Logger) error {
	doc, err := seed.LoadFile(path)
	if err != nil {
		return err
	}

	scopedCtx, cleanup, err := db.WithScope(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = seed.Apply(scopedCtx, doc, repos, logger)
	return err
}
