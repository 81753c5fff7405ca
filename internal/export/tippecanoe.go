package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/crimecity3k/crimemap-backend-go/internal/spatial"
	"github.com/crimecity3k/crimemap-backend-go/internal/taxonomy"
)

// ErrTileTool covers every failure of the external tiling tool: binary
// missing, non-zero exit, or a run that produced no output file.
var ErrTileTool = errors.New("tile generation failed")

// TileJob describes one tippecanoe invocation.
type TileJob struct {
	Binary     string // tippecanoe executable, resolved via PATH
	InputPath  string // gzip GeoJSONL intermediate
	OutputPath string // .pmtiles archive
	Layer      string
	MinZoom    int
	MaxZoom    int
	// Attributes is the explicit allow-list retained in tiles; anything
	// else is stripped to bound tile size.
	Attributes []string
}

// GridTileJob builds the job for one grid resolution. The zoom range
// follows the hexagon size at that resolution.
func GridTileJob(binary, inputPath, outputPath string, resolution int) TileJob {
	minZoom, maxZoom := spatial.ZoomRange(resolution)
	attrs := []string{"h3_cell", "total_count"}
	for _, c := range taxonomy.Categories() {
		attrs = append(attrs, c+"_count")
	}
	attrs = append(attrs, "type_counts", "population", "rate_per_10000")
	return TileJob{
		Binary:     binary,
		InputPath:  inputPath,
		OutputPath: outputPath,
		Layer:      "h3_cells",
		MinZoom:    minZoom,
		MaxZoom:    maxZoom,
		Attributes: attrs,
	}
}

// MunicipalityTileJob builds the job for the municipality scheme, with a
// fixed wide zoom range since the polygons are visible at every scale.
func MunicipalityTileJob(binary, inputPath, outputPath string) TileJob {
	attrs := []string{"kommun_kod", "kommun_namn", "total_count"}
	for _, c := range taxonomy.Categories() {
		attrs = append(attrs, c+"_count")
	}
	attrs = append(attrs, "population", "rate_per_10000")
	return TileJob{
		Binary:     binary,
		InputPath:  inputPath,
		OutputPath: outputPath,
		Layer:      "municipalities",
		MinZoom:    3,
		MaxZoom:    10,
		Attributes: attrs,
	}
}

// Command returns the argv for the job, writing to the staged output
// path. The staged name keeps the .pmtiles suffix because the tool
// derives the archive format from it.
func (j TileJob) Command() []string {
	cmd := []string{
		j.Binary,
		"-o", j.stagedOutput(),
		"--layer=" + j.Layer,
		fmt.Sprintf("--minimum-zoom=%d", j.MinZoom),
		fmt.Sprintf("--maximum-zoom=%d", j.MaxZoom),
		"--simplification=10",
		"--force",
		"--drop-densest-as-needed",
		"--extend-zooms-if-still-dropping",
	}
	if strings.HasSuffix(j.InputPath, ".gz") || strings.HasSuffix(j.InputPath, ".geojsonl") {
		// newline-delimited input parses in parallel
		cmd = append(cmd, "-P")
	}
	for _, attr := range j.Attributes {
		cmd = append(cmd, "--include", attr)
	}
	cmd = append(cmd, j.InputPath)
	return cmd
}

func (j TileJob) stagedOutput() string {
	return strings.TrimSuffix(j.OutputPath, ".pmtiles") + ".tmp.pmtiles"
}

// Run invokes the tiling tool and publishes the archive atomically.
// Upstream missing-input errors surface before the tool is started.
func (j TileJob) Run() error {
	if _, err := os.Stat(j.InputPath); err != nil {
		return fmt.Errorf("input file not found: %w", err)
	}
	if _, err := exec.LookPath(j.Binary); err != nil {
		return fmt.Errorf("%w: %s not installed", ErrTileTool, j.Binary)
	}

	argv := j.Command()
	staged := j.stagedOutput()
	defer os.Remove(staged)

	slog.Info("generating tiles", "layer", j.Layer, "zoom_min", j.MinZoom, "zoom_max", j.MaxZoom)
	cmd := exec.Command(argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s exited: %v: %s", ErrTileTool, j.Binary, err, strings.TrimSpace(string(out)))
	}
	if _, err := os.Stat(staged); err != nil {
		return fmt.Errorf("%w: %s completed but produced no output", ErrTileTool, j.Binary)
	}
	if err := os.Rename(staged, j.OutputPath); err != nil {
		return fmt.Errorf("failed to publish %s: %w", j.OutputPath, err)
	}

	if info, err := os.Stat(j.OutputPath); err == nil {
		slog.Info("generated tiles", "output", j.OutputPath, "size_kb", info.Size()/1024)
	}
	return nil
}
