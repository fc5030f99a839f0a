// novacode server
//
// Serves project uploads, directory listings, and file content over HTTP:
// - PostgreSQL path records (optional; object storage alone otherwise)
// - S3, MinIO, or local object storage
// - JWT authentication when JWT_SECRET is set
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/novacode/novacode/internal/api"
	"github.com/novacode/novacode/internal/auth"
	"github.com/novacode/novacode/internal/config"
	"github.com/novacode/novacode/internal/listing"
	"github.com/novacode/novacode/internal/metadata/postgres"
	"github.com/novacode/novacode/internal/storage"
	"github.com/novacode/novacode/internal/upload"
	"github.com/novacode/novacode/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("configuration error", logging.Err(err))
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		logging.Warn("logger init failed, using defaults", logging.Err(err))
	}
	defer logging.Sync()

	logging.Info("novacode server starting", logging.String("version", version))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := api.Options{
		CORSOrigins:   cfg.CORSOrigins,
		MaxUploadSize: cfg.MaxUploadSize,
		Version:       version,
	}

	var (
		paths    listing.PathStore
		projects upload.ProjectStore
	)
	if cfg.DatabaseURL != "" {
		logging.Info("connecting to database", logging.String("driver", cfg.DatabaseDriver))
		store, err := postgres.New(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			logging.Fatal("database connection failed", logging.Err(err))
		}
		defer store.Close()

		if dir := findMigrationsDir(); dir != "" {
			logging.Info("running migrations", logging.String("dir", dir))
			if err := store.Migrate(dir); err != nil {
				logging.Fatal("migration failed", logging.Err(err))
			}
		}
		paths, projects, opts.DB = store, store, store
	} else {
		logging.Warn("DATABASE_URL not set, listings are served from object storage")
	}

	backend, err := storage.NewBackend(ctx, cfg)
	if err != nil {
		logging.Fatal("storage init failed", logging.Backend(cfg.StorageBackend), logging.Err(err))
	}
	defer backend.Close()
	logging.Info("storage ready", logging.Backend(backend.Type()))

	listings, err := listing.New(paths, backend, cfg.ListingCacheSize)
	if err != nil {
		logging.Fatal("listing service init failed", logging.Err(err))
	}

	opts.Listings = listings
	opts.Uploads = upload.New(backend, projects, listings, cfg.MaxUploadSize)
	opts.Backend = backend
	if cfg.JWTSecret != "" {
		opts.Auth = auth.New(cfg.JWTSecret)
	} else {
		logging.Warn("JWT_SECRET not set, API is unauthenticated")
	}

	srv := api.NewServer(opts)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn("graceful shutdown failed", logging.Err(err))
			httpServer.Close()
		}
	}()

	logging.Info("server listening", logging.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal("server error", logging.Err(err))
	}
}

func findMigrationsDir() string {
	candidates := []string{
		"migrations",
		"../migrations",
	}

	if exe, _ := os.Executable(); exe != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "migrations"))
	}

	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
