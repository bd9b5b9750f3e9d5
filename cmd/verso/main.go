// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/verso-cms/verso/internal/cache"
	"github.com/verso-cms/verso/internal/config"
	"github.com/verso-cms/verso/internal/handler/api"
	"github.com/verso-cms/verso/internal/logging"
	"github.com/verso-cms/verso/internal/middleware"
	"github.com/verso-cms/verso/internal/scheduler"
	"github.com/verso-cms/verso/internal/service"
	"github.com/verso-cms/verso/internal/session"
	"github.com/verso-cms/verso/internal/storage"
	"github.com/verso-cms/verso/internal/store"
	"github.com/verso-cms/verso/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	showHelp := flag.Bool("help", false, "print usage and exit")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: verso [flags]\n\nFlags:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  VERSO_SESSION_SECRET   Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  VERSO_DB_PATH          SQLite database path (default: ./data/verso.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  VERSO_SERVER_PORT      Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  VERSO_ENV              Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  VERSO_UPLOADS_DIR      Image upload directory (default: ./uploads)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  VERSO_REDIS_URL        Redis URL for distributed caching (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  VERSO_DO_SEED          Seed demo content on startup (default: false)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		_, _ = fmt.Printf("verso %s (commit: %s, built: %s)\n", version.Version, version.GitCommit, version.BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env if present (development).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade the logger so WARN and ERROR records also land in the
	// event log table.
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)

	ctx := context.Background()
	if err := store.Seed(ctx, db); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}
	if cfg.DoSeed {
		if err := store.SeedDemo(ctx, db); err != nil {
			return fmt.Errorf("seeding demo content: %w", err)
		}
	}

	sessionManager := session.New(db, cfg.IsDevelopment())
	slog.Info("session manager initialized")

	cacheBackend, err := cache.New(cache.Config{
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      time.Duration(cfg.CacheTTL) * time.Second,
		MaxSize:         cfg.CacheMaxSize,
		CleanupInterval: time.Minute,
	})
	if err != nil {
		slog.Warn("cache backend unavailable, falling back to memory", "error", err)
		cacheBackend = cache.NewDefault()
	}
	defer func() { _ = cacheBackend.Close() }()
	if cfg.UseRedisCache() {
		slog.Info("cache initialized", "backend", "redis", "url", cfg.RedisURL)
	} else {
		slog.Info("cache initialized", "backend", "memory")
	}
	postCache := cache.NewPostCache(cacheBackend, time.Duration(cfg.CacheTTL)*time.Second)

	fileStore, err := storage.NewLocal(cfg.UploadsDir, cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("initializing upload storage: %w", err)
	}

	sched := scheduler.New(logger)
	sched.Start()
	defer sched.Stop(30 * time.Second)

	// Nightly FTS index maintenance.
	if err := sched.AddJob("0 3 * * *", "fts optimize", func(ctx context.Context) error {
		_, err := db.ExecContext(ctx, `INSERT INTO posts_fts(posts_fts) VALUES ('optimize')`)
		return err
	}); err != nil {
		return fmt.Errorf("registering fts job: %w", err)
	}

	postService := service.NewPostService(db, logger, postCache)
	versionService := service.NewVersionService(db, logger, postCache)
	userService := service.NewUserService(db, logger)
	mediaService := service.NewMediaService(db, fileStore, sched, logger)

	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	slog.Info("login protection initialized")

	apiHandler := api.NewHandler(postService, versionService, userService, mediaService, logger)
	authHandler := api.NewAuthHandler(userService, sessionManager, loginProtection, logger)
	adminHandler := api.NewAdminHandler(db, logger)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(sessionManager.LoadAndSave)

	csrfMiddleware := middleware.CSRF(middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment()))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(csrfMiddleware)
		r.Use(middleware.LoadUser(sessionManager, db))

		r.Get("/status", apiHandler.Status)

		// Auth. Registration is open only until the first admin
		// exists; the service gates it after that.
		r.With(loginProtection.Middleware()).Post("/auth/login", authHandler.Login)
		r.With(loginProtection.Middleware()).Post("/auth/register", authHandler.Register)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/viewer", apiHandler.Viewer)

		// Public reads; visibility is enforced in the service layer.
		r.Get("/posts", apiHandler.ListPosts)
		r.Get("/posts/search", apiHandler.SearchPosts)
		r.Get("/posts/slug/{slug}", apiHandler.GetPostBySlug)
		r.Get("/posts/{id}", apiHandler.GetPost)
		r.Get("/authors", apiHandler.ListUsers)
		r.Get("/authors/{slug}", apiHandler.GetUserBySlug)
		r.Get("/images/{id}", apiHandler.GetImage)

		// Authenticated writes.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessionManager))

			r.Get("/slug-check", apiHandler.CheckSlug)
			r.Post("/versions", apiHandler.SaveDraft)
			r.Get("/versions/{id}", apiHandler.GetVersion)
			r.Post("/versions/{id}/publish", apiHandler.PublishPost)
			r.Get("/posts/{id}/history", apiHandler.GetPostHistory)
			r.Post("/users/slug", apiHandler.EnsureUserSlug)
			r.Put("/users/{id}", apiHandler.UpdateProfile)
			r.Post("/images", apiHandler.UploadImage)
		})

		// Admin-only surface.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin())

			r.Get("/admin/events", adminHandler.ListEvents)
		})
	})

	// Serve uploaded images.
	uploadsFS := http.StripPrefix("/uploads/", http.FileServer(http.Dir(fileStore.Dir())))
	r.Get("/uploads/*", func(w http.ResponseWriter, req *http.Request) {
		uploadsFS.ServeHTTP(w, req)
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
