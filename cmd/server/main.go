package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/crimecity3k/crimemap-backend-go/internal/api"
	"github.com/crimecity3k/crimemap-backend-go/internal/config"
	"github.com/crimecity3k/crimemap-backend-go/internal/database"
	"github.com/crimecity3k/crimemap-backend-go/internal/handler"
	"github.com/crimecity3k/crimemap-backend-go/internal/repository"
	"github.com/crimecity3k/crimemap-backend-go/internal/service"
	"github.com/crimecity3k/crimemap-backend-go/internal/taxonomy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	tax, err := taxonomy.Load(cfg.TaxonomyPath)
	if err != nil {
		slog.Error("failed to load event taxonomy", "path", cfg.TaxonomyPath, "error", err)
		os.Exit(1)
	}

	// The query API can start before the first scrape has produced a
	// database; requests report service unavailable until it exists.
	if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
		slog.Warn("database unavailable, serving degraded", "path", cfg.DBPath, "error", err)
	} else {
		db, _ := database.Get()
		if err := database.Migrate(db); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}
	defer database.Close()

	db, _ := database.Get()
	repo := repository.NewEventRepository(db)
	svc := service.NewEventService(repo, tax, cfg.PrivacyThreshold)
	h := handler.NewEventHandler(svc)

	router := api.SetupRouter(cfg, h)

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
