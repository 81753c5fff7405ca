package pipeline

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/crimecity3k/crimemap-backend-go/internal/models"
	"github.com/crimecity3k/crimemap-backend-go/internal/population"
	"github.com/crimecity3k/crimemap-backend-go/internal/taxonomy"
)

// countySuffix marks county-level location names ("Stockholms län").
// Those rows describe a whole county, not a municipality, and are
// deliberately excluded from the municipality scheme.
const countySuffix = " län"

// MunicipalitySummary reports what one municipality aggregation run
// produced. ExcludedCounty + Unmatched + Events always equals the raw
// eligible row count.
type MunicipalitySummary struct {
	Municipalities int
	Events         int
	ExcludedCounty int
	Unmatched      int
}

// AggregateMunicipalities aggregates events onto municipalities by
// case-insensitive location name match against the municipality register
// and publishes the aggregate artifact. Only municipalities with at
// least one event are materialized; the tile exporter joins the full
// register back in with zero defaults.
func AggregateMunicipalities(
	db *sql.DB,
	populationPath string,
	outputPath string,
	minPopulation int,
	tax *taxonomy.Taxonomy,
) (MunicipalitySummary, error) {
	register, err := population.ReadMunicipalities(populationPath)
	if err != nil {
		return MunicipalitySummary{}, err
	}
	byName := make(map[string]*models.Municipality, len(register))
	for i := range register {
		byName[strings.ToLower(register[i].Namn)] = &register[i]
	}

	rows, err := db.Query(`
		SELECT type, location_name
		FROM events
		WHERE type NOT LIKE 'Sammanfattning%'
	`)
	if err != nil {
		return MunicipalitySummary{}, fmt.Errorf("failed to read events: %w", err)
	}
	defer rows.Close()

	cells := make(map[string]*cellStats)
	summary := MunicipalitySummary{}
	raw := 0
	for rows.Next() {
		var eventType, locationName string
		if err := rows.Scan(&eventType, &locationName); err != nil {
			return MunicipalitySummary{}, fmt.Errorf("failed to scan event: %w", err)
		}
		raw++

		if strings.HasSuffix(locationName, countySuffix) {
			summary.ExcludedCounty++
			continue
		}
		m, ok := byName[strings.ToLower(locationName)]
		if !ok {
			summary.Unmatched++
			continue
		}

		stats, ok := cells[m.Kod]
		if !ok {
			stats = newCellStats()
			cells[m.Kod] = stats
		}
		stats.add(eventType, tax)
		summary.Events++
	}
	if err := rows.Err(); err != nil {
		return MunicipalitySummary{}, fmt.Errorf("failed to read events: %w", err)
	}

	// conservation: every raw row is aggregated or accounted for
	if summary.Events+summary.ExcludedCounty+summary.Unmatched != raw {
		return MunicipalitySummary{}, fmt.Errorf("event count not conserved: %d raw, %d accounted",
			raw, summary.Events+summary.ExcludedCounty+summary.Unmatched)
	}

	kods := make([]string, 0, len(cells))
	for kod := range cells {
		kods = append(kods, kod)
	}
	sort.Strings(kods)

	byKod := make(map[string]*models.Municipality, len(register))
	for i := range register {
		byKod[register[i].Kod] = &register[i]
	}

	records := make([]models.AggregateRecord, 0, len(kods))
	for _, kod := range kods {
		r := cells[kod].record()
		m := byKod[kod]
		r.KommunKod = kod
		r.KommunNamn = m.Namn
		r.Population = m.Population
		r.RatePer10000 = ratePer10000(r.TotalCount, r.Population, minPopulation)
		records = append(records, r)
	}
	summary.Municipalities = len(records)

	if err := verifyRecords(records); err != nil {
		return MunicipalitySummary{}, fmt.Errorf("aggregate invariant violated: %w", err)
	}
	if err := writeRecords(outputPath, records); err != nil {
		return MunicipalitySummary{}, fmt.Errorf("failed to publish municipality aggregate: %w", err)
	}

	slog.Info("aggregated events to municipalities",
		"municipalities", summary.Municipalities,
		"events", summary.Events,
		"excluded_county", summary.ExcludedCounty,
		"unmatched", summary.Unmatched,
	)
	return summary, nil
}
