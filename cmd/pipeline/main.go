package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/crimecity3k/crimemap-backend-go/internal/config"
	"github.com/crimecity3k/crimemap-backend-go/internal/database"
	"github.com/crimecity3k/crimemap-backend-go/internal/pipeline"
	"github.com/crimecity3k/crimemap-backend-go/internal/population"
	"github.com/crimecity3k/crimemap-backend-go/internal/taxonomy"
)

// The pipeline is a one-shot batch run: optionally refresh the population
// artifacts from their source CSVs, then aggregate the event store onto
// every configured grid resolution and onto municipalities. Each output is
// published atomically, so a crashed run leaves the previous artifacts
// intact.
func main() {
	gridCSV := flag.String("grid-csv", "", "1km population grid centroid CSV to convert first (optional)")
	muniCSV := flag.String("municipality-csv", "", "SCB municipality population CSV to convert first (optional)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := database.Init(database.Config{Path: cfg.DBPath, MustExist: true}); err != nil {
		slog.Error("event store unavailable", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer database.Close()
	db, err := database.Get()
	if err != nil {
		slog.Error("database not ready", "error", err)
		os.Exit(1)
	}

	tax, err := taxonomy.Load(cfg.TaxonomyPath)
	if err != nil {
		slog.Error("failed to load event taxonomy", "path", cfg.TaxonomyPath, "error", err)
		os.Exit(1)
	}

	if *gridCSV != "" {
		for _, res := range cfg.Resolutions {
			out := gridPopulationPath(cfg.DataDir, res)
			sum, err := population.ConvertGridPopulation(*gridCSV, out, res)
			if err != nil {
				slog.Error("grid population conversion failed", "resolution", res, "error", err)
				os.Exit(1)
			}
			slog.Info("converted grid population",
				"resolution", res, "cells", sum.Cells, "population", sum.TotalPopulation)
		}
	}
	if *muniCSV != "" {
		out := municipalityPopulationPath(cfg.DataDir)
		n, err := population.ConvertMunicipalityPopulation(*muniCSV, out)
		if err != nil {
			slog.Error("municipality population conversion failed", "error", err)
			os.Exit(1)
		}
		slog.Info("converted municipality population", "municipalities", n)
	}

	for _, res := range cfg.Resolutions {
		sum, err := pipeline.AggregateGrid(
			db,
			gridPopulationPath(cfg.DataDir, res),
			gridAggregatePath(cfg.DataDir, res),
			res,
			cfg.MinPopulation,
			tax,
		)
		if err != nil {
			slog.Error("grid aggregation failed", "resolution", res, "error", err)
			os.Exit(1)
		}
		slog.Info("grid aggregation complete",
			"resolution", res,
			"cells", sum.Cells,
			"events", sum.Events,
			"populated_cells", sum.PopulatedCells,
		)
	}

	muniSum, err := pipeline.AggregateMunicipalities(
		db,
		municipalityPopulationPath(cfg.DataDir),
		municipalityAggregatePath(cfg.DataDir),
		cfg.MinPopulation,
		tax,
	)
	if err != nil {
		slog.Error("municipality aggregation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("municipality aggregation complete",
		"municipalities", muniSum.Municipalities,
		"events", muniSum.Events,
		"excluded_county", muniSum.ExcludedCounty,
		"unmatched", muniSum.Unmatched,
	)
}

func gridPopulationPath(dataDir string, resolution int) string {
	return filepath.Join(dataDir, fmt.Sprintf("population_r%d.ndjson.gz", resolution))
}

func gridAggregatePath(dataDir string, resolution int) string {
	return filepath.Join(dataDir, fmt.Sprintf("events_r%d.ndjson.gz", resolution))
}

func municipalityPopulationPath(dataDir string) string {
	return filepath.Join(dataDir, "municipality_population.ndjson.gz")
}

func municipalityAggregatePath(dataDir string) string {
	return filepath.Join(dataDir, "events_municipality.ndjson.gz")
}
