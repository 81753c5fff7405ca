package population

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"

	"github.com/crimecity3k/crimemap-backend-go/internal/fileutil"
	"github.com/crimecity3k/crimemap-backend-go/internal/models"
	"github.com/crimecity3k/crimemap-backend-go/internal/spatial"
)

// GridSummary reports what a grid conversion run produced.
type GridSummary struct {
	Cells           int
	TotalPopulation int
}

// ConvertGridPopulation maps the 1km population grid (centroid CSV with
// columns lat,lon,population,female,male) onto H3 cells at the given
// resolution and publishes the per-cell sums. Zero-population cells are
// dropped. Population is conserved: the published total equals the input
// total.
func ConvertGridPopulation(inputPath, outputPath string, resolution int) (GridSummary, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return GridSummary{}, fmt.Errorf("input file not found: %w", err)
	}
	defer f.Close()

	type cellPop struct{ population, female, male int }
	cells := make(map[string]*cellPop)
	inputTotal := 0

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return GridSummary{}, fmt.Errorf("failed to read %s: %w", inputPath, err)
	}
	col, err := columnIndex(header, "lat", "lon", "population", "female", "male")
	if err != nil {
		return GridSummary{}, fmt.Errorf("%s: %w", inputPath, err)
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return GridSummary{}, fmt.Errorf("failed to read %s: %w", inputPath, err)
		}

		lat, err1 := strconv.ParseFloat(record[col["lat"]], 64)
		lon, err2 := strconv.ParseFloat(record[col["lon"]], 64)
		pop, err3 := strconv.Atoi(record[col["population"]])
		female, err4 := strconv.Atoi(record[col["female"]])
		male, err5 := strconv.Atoi(record[col["male"]])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			return GridSummary{}, fmt.Errorf("malformed population row %v in %s", record, inputPath)
		}

		cellID, err := spatial.CellFromLatLng(lat, lon, resolution)
		if err != nil {
			return GridSummary{}, err
		}

		c, ok := cells[cellID]
		if !ok {
			c = &cellPop{}
			cells[cellID] = c
		}
		c.population += pop
		c.female += female
		c.male += male
		inputTotal += pop
	}

	ids := make([]string, 0, len(cells))
	outputTotal := 0
	for id, c := range cells {
		if c.population <= 0 {
			continue
		}
		ids = append(ids, id)
		outputTotal += c.population
	}
	sort.Strings(ids)

	if outputTotal != inputTotal {
		return GridSummary{}, fmt.Errorf("population not conserved: input %d, output %d", inputTotal, outputTotal)
	}

	sf, err := fileutil.NewStaged(outputPath, true)
	if err != nil {
		return GridSummary{}, err
	}
	defer sf.Abort()

	enc := json.NewEncoder(sf)
	for _, id := range ids {
		c := cells[id]
		row := models.PopulationCell{
			H3Cell:     id,
			Population: c.population,
			Female:     c.female,
			Male:       c.male,
		}
		if err := enc.Encode(&row); err != nil {
			return GridSummary{}, fmt.Errorf("failed to write population cell: %w", err)
		}
	}
	if err := sf.Commit(); err != nil {
		return GridSummary{}, err
	}

	summary := GridSummary{Cells: len(ids), TotalPopulation: outputTotal}
	slog.Info("converted population grid",
		"resolution", resolution,
		"cells", summary.Cells,
		"total_population", summary.TotalPopulation,
	)
	return summary, nil
}

// columnIndex resolves required header names to indices.
func columnIndex(header []string, names ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	out := make(map[string]int, len(names))
	for _, name := range names {
		i, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		out[name] = i
	}
	return out, nil
}
