package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/crimecity3k/crimemap-backend-go/internal/config"
	"github.com/crimecity3k/crimemap-backend-go/internal/database"
	"github.com/crimecity3k/crimemap-backend-go/internal/ingest"
)

func main() {
	input := flag.String("input", "", "NDJSON events file to load")
	flag.Parse()
	if *input == "" {
		slog.Error("missing -input")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
		slog.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer database.Close()

	db, err := database.Get()
	if err != nil {
		slog.Error("database not ready", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	sum, err := ingest.LoadFile(db, *input, cfg.Resolutions)
	if err != nil {
		slog.Error("load failed, nothing committed", "input", *input, "error", err)
		os.Exit(1)
	}
	slog.Info("load complete",
		"input", *input,
		"events", sum.Events,
		"located", sum.Located,
		"cell_rows", sum.CellRows,
	)
}
