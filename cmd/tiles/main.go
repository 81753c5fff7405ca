package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/crimecity3k/crimemap-backend-go/internal/config"
	"github.com/crimecity3k/crimemap-backend-go/internal/export"
)

// Turns the pipeline's aggregate artifacts into PMTiles archives: one per
// grid resolution plus one municipality layer. Each archive is exported to
// a GeoJSONL intermediate and then tiled with tippecanoe; archives are
// published atomically so the server never reads a half-written file.
func main() {
	boundaries := flag.String("boundaries", "", "municipality boundaries GeoJSON (default <data-dir>/boundaries.geojson)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *boundaries == "" {
		*boundaries = filepath.Join(cfg.DataDir, "boundaries.geojson")
	}
	if err := os.MkdirAll(cfg.TilesDir, 0o755); err != nil {
		slog.Error("failed to create tiles directory", "path", cfg.TilesDir, "error", err)
		os.Exit(1)
	}

	for _, res := range cfg.Resolutions {
		aggregate := filepath.Join(cfg.DataDir, fmt.Sprintf("events_r%d.ndjson.gz", res))
		geojsonl := filepath.Join(cfg.DataDir, fmt.Sprintf("h3_r%d.geojsonl.gz", res))
		tiles := filepath.Join(cfg.TilesDir, fmt.Sprintf("h3_r%d.pmtiles", res))

		if err := export.ExportGridGeoJSONL(aggregate, geojsonl); err != nil {
			slog.Error("grid export failed", "resolution", res, "error", err)
			os.Exit(1)
		}
		job := export.GridTileJob(cfg.TippecanoePath, geojsonl, tiles, res)
		if err := job.Run(); err != nil {
			slog.Error("grid tiling failed", "resolution", res, "error", err)
			os.Exit(1)
		}
		slog.Info("grid tiles published", "resolution", res, "output", tiles)
	}

	aggregate := filepath.Join(cfg.DataDir, "events_municipality.ndjson.gz")
	geojsonl := filepath.Join(cfg.DataDir, "municipalities.geojsonl.gz")
	tiles := filepath.Join(cfg.TilesDir, "municipalities.pmtiles")

	if err := export.ExportMunicipalityGeoJSONL(*boundaries, aggregate, geojsonl); err != nil {
		slog.Error("municipality export failed", "error", err)
		os.Exit(1)
	}
	job := export.MunicipalityTileJob(cfg.TippecanoePath, geojsonl, tiles)
	if err := job.Run(); err != nil {
		slog.Error("municipality tiling failed", "error", err)
		os.Exit(1)
	}
	slog.Info("municipality tiles published", "output", tiles)
}
