// Package spatial wraps the H3 hexagonal indexing library and provides
// the geometry helpers the pipeline and the tile exporter need. H3 itself
// is treated as a black box: cells are opaque 15-character hex ids.
package spatial

import (
	"fmt"
	"regexp"

	h3 "github.com/uber/h3-go/v4"
)

// H3 cell ids at the resolutions we aggregate at are 15 hex characters.
var cellIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{15}$`)

// MinResolution and MaxResolution bound the grid resolutions the pipeline
// accepts. r4 is ~25km hexagon edge, r6 is ~3km.
const (
	MinResolution = 4
	MaxResolution = 6
)

// IsValidCellID reports whether s has the H3 cell id format. Format
// validity is checked before any data access so malformed ids can be
// rejected as caller errors.
func IsValidCellID(s string) bool {
	if !cellIDPattern.MatchString(s) {
		return false
	}
	return h3.Cell(h3.IndexFromString(s)).IsValid()
}

// CellFromLatLng maps a coordinate to its H3 cell id at the given
// resolution.
func CellFromLatLng(lat, lon float64, resolution int) (string, error) {
	if resolution < MinResolution || resolution > MaxResolution {
		return "", fmt.Errorf("resolution %d out of range [%d, %d]", resolution, MinResolution, MaxResolution)
	}
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), resolution)
	if err != nil {
		return "", fmt.Errorf("failed to index (%f, %f) at resolution %d: %w", lat, lon, resolution, err)
	}
	return cell.String(), nil
}

// CellBoundary returns the hexagon outline of a cell as a closed ring
// (first point repeated last), counter-clockwise.
func CellBoundary(cellID string) ([]Point, error) {
	if !IsValidCellID(cellID) {
		return nil, fmt.Errorf("invalid H3 cell id: %s", cellID)
	}
	boundary, err := h3.Cell(h3.IndexFromString(cellID)).Boundary()
	if err != nil {
		return nil, fmt.Errorf("failed to derive boundary of %s: %w", cellID, err)
	}

	ring := make([]Point, 0, len(boundary)+1)
	for _, v := range boundary {
		ring = append(ring, Point{Lat: v.Lat, Lon: v.Lng})
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return EnsureCCW(ring), nil
}

// CellResolution returns the resolution encoded in a cell id.
func CellResolution(cellID string) (int, error) {
	if !IsValidCellID(cellID) {
		return 0, fmt.Errorf("invalid H3 cell id: %s", cellID)
	}
	return h3.Cell(h3.IndexFromString(cellID)).Resolution(), nil
}

// ZoomRange maps an H3 resolution to the web-map zoom span where its
// hexagons render at a useful size.
func ZoomRange(resolution int) (minZoom, maxZoom int) {
	switch resolution {
	case 4:
		return 4, 8
	case 5:
		return 5, 9
	case 6:
		return 6, 10
	default:
		return resolution, resolution + 4
	}
}
