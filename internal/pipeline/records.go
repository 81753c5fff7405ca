// Package pipeline turns raw police events into per-cell aggregate
// records for the two partition schemes: H3 grid cells and Swedish
// municipalities. A run is one-shot and single-threaded; its output is a
// complete aggregate artifact published atomically, superseding the
// previous run's artifact rather than mutating it.
package pipeline

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/crimecity3k/crimemap-backend-go/internal/fileutil"
	"github.com/crimecity3k/crimemap-backend-go/internal/models"
	"github.com/crimecity3k/crimemap-backend-go/internal/taxonomy"
)

// cellStats accumulates per-cell counts during a run.
type cellStats struct {
	total      int
	categories map[string]int
	types      map[string]int
}

func newCellStats() *cellStats {
	return &cellStats{
		categories: make(map[string]int),
		types:      make(map[string]int),
	}
}

// add classifies one event into the cell's counters.
func (s *cellStats) add(eventType string, tax *taxonomy.Taxonomy) {
	s.total++
	s.categories[tax.Classify(eventType)]++
	s.types[eventType]++
}

// record materializes the accumulated counts into an AggregateRecord.
// Population joins and rates are filled in by the caller.
func (s *cellStats) record() models.AggregateRecord {
	counts := make(map[string]int, 8)
	for _, c := range taxonomy.Categories() {
		counts[c] = s.categories[c]
	}

	typeCounts := make([]models.TypeCount, 0, len(s.types))
	for t, n := range s.types {
		typeCounts = append(typeCounts, models.TypeCount{Type: t, Count: n})
	}
	// count descending, stable tie-break on label ascending
	sort.Slice(typeCounts, func(i, j int) bool {
		if typeCounts[i].Count != typeCounts[j].Count {
			return typeCounts[i].Count > typeCounts[j].Count
		}
		return typeCounts[i].Type < typeCounts[j].Type
	})

	return models.AggregateRecord{
		TotalCount:     s.total,
		CategoryCounts: counts,
		TypeCounts:     typeCounts,
	}
}

// ratePer10000 computes the population-normalized rate. Cells with no
// population row, or with a population below the configured floor, get
// rate 0 rather than a noisy rate from a tiny denominator.
func ratePer10000(totalCount, population, minPopulation int) float64 {
	if population <= 0 || population < minPopulation {
		return 0
	}
	return float64(totalCount) / float64(population) * 10000
}

// verifyRecords checks the aggregate invariants for every record before
// anything is published. A violation fails the whole run.
func verifyRecords(records []models.AggregateRecord) error {
	for i := range records {
		r := &records[i]

		categorySum := 0
		for _, n := range r.CategoryCounts {
			categorySum += n
		}
		if categorySum != r.TotalCount {
			return fmt.Errorf("cell %s: category counts sum to %d, total is %d",
				r.CellKey(), categorySum, r.TotalCount)
		}

		typeSum := 0
		for _, tc := range r.TypeCounts {
			typeSum += tc.Count
		}
		if typeSum != r.TotalCount {
			return fmt.Errorf("cell %s: type counts sum to %d, total is %d",
				r.CellKey(), typeSum, r.TotalCount)
		}
	}
	return nil
}

// writeRecords publishes an aggregate artifact atomically, one record
// per NDJSON line.
func writeRecords(path string, records []models.AggregateRecord) error {
	sf, err := fileutil.NewStaged(path, true)
	if err != nil {
		return err
	}
	defer sf.Abort()

	enc := json.NewEncoder(sf)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("failed to write aggregate record: %w", err)
		}
	}
	return sf.Commit()
}

// ReadAggregates loads a published aggregate artifact. Used by the tile
// exporter and by verification tooling.
func ReadAggregates(path string) ([]models.AggregateRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("aggregate file not found: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer gz.Close()

	var records []models.AggregateRecord
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var r models.AggregateRecord
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
