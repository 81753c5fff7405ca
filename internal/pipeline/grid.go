package pipeline

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"github.com/crimecity3k/crimemap-backend-go/internal/models"
	"github.com/crimecity3k/crimemap-backend-go/internal/population"
	"github.com/crimecity3k/crimemap-backend-go/internal/spatial"
	"github.com/crimecity3k/crimemap-backend-go/internal/taxonomy"
)

// GridSummary reports what one grid aggregation run produced.
type GridSummary struct {
	Cells          int
	Events         int
	EligibleEvents int
	PopulatedCells int
}

// AggregateGrid aggregates events onto H3 cells at one resolution and
// publishes the aggregate artifact. Eligible events are those with
// coordinates inside Sweden; digest rows (type "Sammanfattning ...") are
// never events. Missing inputs fail before any write.
func AggregateGrid(
	db *sql.DB,
	populationPath string,
	outputPath string,
	resolution int,
	minPopulation int,
	tax *taxonomy.Taxonomy,
) (GridSummary, error) {
	pop, err := population.ReadGridPopulation(populationPath)
	if err != nil {
		return GridSummary{}, err
	}

	rows, err := db.Query(`
		SELECT type, latitude, longitude
		FROM events
		WHERE type NOT LIKE 'Sammanfattning%'
	`)
	if err != nil {
		return GridSummary{}, fmt.Errorf("failed to read events: %w", err)
	}
	defer rows.Close()

	cells := make(map[string]*cellStats)
	eligible := 0
	for rows.Next() {
		var eventType string
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&eventType, &lat, &lon); err != nil {
			return GridSummary{}, fmt.Errorf("failed to scan event: %w", err)
		}
		if !lat.Valid || !lon.Valid || !spatial.InSweden(lat.Float64, lon.Float64) {
			continue
		}

		cellID, err := spatial.CellFromLatLng(lat.Float64, lon.Float64, resolution)
		if err != nil {
			return GridSummary{}, err
		}

		stats, ok := cells[cellID]
		if !ok {
			stats = newCellStats()
			cells[cellID] = stats
		}
		stats.add(eventType, tax)
		eligible++
	}
	if err := rows.Err(); err != nil {
		return GridSummary{}, fmt.Errorf("failed to read events: %w", err)
	}

	ids := make([]string, 0, len(cells))
	for id := range cells {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	summary := GridSummary{Cells: len(ids), EligibleEvents: eligible}
	records := make([]models.AggregateRecord, 0, len(ids))
	for _, id := range ids {
		r := cells[id].record()
		r.H3Cell = id
		// left join: cells without a population row keep population 0
		r.Population = pop[id]
		if r.Population > 0 {
			summary.PopulatedCells++
		}
		r.RatePer10000 = ratePer10000(r.TotalCount, r.Population, minPopulation)
		summary.Events += r.TotalCount
		records = append(records, r)
	}

	// conservation: every eligible event landed in exactly one cell
	if summary.Events != summary.EligibleEvents {
		return GridSummary{}, fmt.Errorf("event count not conserved: %d eligible, %d aggregated",
			summary.EligibleEvents, summary.Events)
	}
	if err := verifyRecords(records); err != nil {
		return GridSummary{}, fmt.Errorf("aggregate invariant violated: %w", err)
	}

	if err := writeRecords(outputPath, records); err != nil {
		return GridSummary{}, fmt.Errorf("failed to publish grid aggregate: %w", err)
	}

	slog.Info("aggregated events to grid",
		"resolution", resolution,
		"cells", summary.Cells,
		"events", summary.Events,
		"populated_cells", summary.PopulatedCells,
	)
	return summary, nil
}
