// Package export turns published aggregate artifacts into servable map
// tiles: a gzip GeoJSONL intermediate per partition scheme, handed to
// the external tippecanoe binary for tile generation.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/crimecity3k/crimemap-backend-go/internal/fileutil"
	"github.com/crimecity3k/crimemap-backend-go/internal/models"
	"github.com/crimecity3k/crimemap-backend-go/internal/pipeline"
	"github.com/crimecity3k/crimemap-backend-go/internal/spatial"
	"github.com/crimecity3k/crimemap-backend-go/internal/taxonomy"
)

// feature is one GeoJSON feature line of the export intermediate.
type feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// polygonGeometry encodes a single closed ring as GeoJSON. GeoJSON
// positions are [lon, lat].
func polygonGeometry(ring []spatial.Point) (json.RawMessage, error) {
	coords := make([][2]float64, 0, len(ring))
	for _, p := range ring {
		coords = append(coords, [2]float64{p.Lon, p.Lat})
	}
	geom := struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}{Type: "Polygon", Coordinates: [][][2]float64{coords}}
	return json.Marshal(geom)
}

// countProperties flattens a record's counts into the flat numeric
// attributes the map client filters and colors by.
func countProperties(r *models.AggregateRecord) map[string]any {
	props := map[string]any{
		"total_count": r.TotalCount,
		"population":  r.Population,
	}
	for _, c := range taxonomy.Categories() {
		props[c+"_count"] = r.CategoryCounts[c]
	}
	return props
}

// ExportGridGeoJSONL derives hexagon polygons from the cell ids of a
// published grid aggregate and writes one feature per line, gzip
// compressed, via a staged write.
func ExportGridGeoJSONL(aggregatePath, outputPath string) error {
	records, err := pipeline.ReadAggregates(aggregatePath)
	if err != nil {
		return err
	}

	sf, err := fileutil.NewStaged(outputPath, true)
	if err != nil {
		return err
	}
	defer sf.Abort()

	enc := json.NewEncoder(sf)
	for i := range records {
		r := &records[i]

		ring, err := spatial.CellBoundary(r.H3Cell)
		if err != nil {
			return fmt.Errorf("failed to build hexagon for %s: %w", r.H3Cell, err)
		}
		geom, err := polygonGeometry(ring)
		if err != nil {
			return fmt.Errorf("failed to encode hexagon for %s: %w", r.H3Cell, err)
		}

		typeCounts, err := json.Marshal(r.TypeCounts)
		if err != nil {
			return fmt.Errorf("failed to encode type counts for %s: %w", r.H3Cell, err)
		}

		props := countProperties(r)
		props["h3_cell"] = r.H3Cell
		props["rate_per_10000"] = r.RatePer10000
		// tile attributes are scalar; the sparse breakdown rides along
		// as a JSON string for the drill-down preview
		props["type_counts"] = string(typeCounts)

		if err := enc.Encode(&feature{Type: "Feature", Geometry: geom, Properties: props}); err != nil {
			return fmt.Errorf("failed to write feature: %w", err)
		}
	}

	if err := sf.Commit(); err != nil {
		return err
	}
	slog.Info("exported grid features", "features", len(records), "output", outputPath)
	return nil
}

// boundaryFeature is one municipality polygon of the reference geometry
// file (okfse/sweden-geojson layout: id is the kommun_kod).
type boundaryFeature struct {
	Geometry   json.RawMessage `json:"geometry"`
	Properties struct {
		ID      string `json:"id"`
		KomNamn string `json:"kom_namn"`
	} `json:"properties"`
}

type boundaryCollection struct {
	Features []boundaryFeature `json:"features"`
}

// ExportMunicipalityGeoJSONL joins every boundary polygon with its
// aggregate record by municipality code. The join is left: boundaries
// without events appear with zero counts so the whole country renders.
func ExportMunicipalityGeoJSONL(boundariesPath, aggregatePath, outputPath string) error {
	raw, err := os.ReadFile(boundariesPath)
	if err != nil {
		return fmt.Errorf("boundaries file not found: %w", err)
	}
	var boundaries boundaryCollection
	if err := json.Unmarshal(raw, &boundaries); err != nil {
		return fmt.Errorf("failed to parse boundaries file: %w", err)
	}

	records, err := pipeline.ReadAggregates(aggregatePath)
	if err != nil {
		return err
	}
	byKod := make(map[string]*models.AggregateRecord, len(records))
	for i := range records {
		byKod[records[i].KommunKod] = &records[i]
	}

	sf, err := fileutil.NewStaged(outputPath, true)
	if err != nil {
		return err
	}
	defer sf.Abort()

	enc := json.NewEncoder(sf)
	for i := range boundaries.Features {
		b := &boundaries.Features[i]

		r := byKod[b.Properties.ID]
		if r == nil {
			r = &models.AggregateRecord{CategoryCounts: map[string]int{}}
		}

		props := countProperties(r)
		props["kommun_kod"] = b.Properties.ID
		props["kommun_namn"] = b.Properties.KomNamn
		if r.KommunKod == "" {
			// no aggregate row: population comes from the register at
			// aggregation time, so it is 0 here by construction
			props["rate_per_10000"] = 0.0
		} else {
			props["rate_per_10000"] = r.RatePer10000
		}

		if err := enc.Encode(&feature{Type: "Feature", Geometry: b.Geometry, Properties: props}); err != nil {
			return fmt.Errorf("failed to write feature: %w", err)
		}
	}

	if err := sf.Commit(); err != nil {
		return err
	}
	slog.Info("exported municipality features", "features", len(boundaries.Features), "output", outputPath)
	return nil
}
