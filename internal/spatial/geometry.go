package spatial

import (
	"github.com/golang/geo/s2"
)

// Point represents a 2D point with latitude and longitude
type Point struct {
	Lat float64
	Lon float64
}

// Centroid calculates the geographic centroid of a set of points
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}

	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat
		sumLon += p.Lon
	}

	return Point{
		Lat: sumLat / float64(len(points)),
		Lon: sumLon / float64(len(points)),
	}
}

// IsCCW reports whether a closed ring winds counter-clockwise. GeoJSON
// exterior rings handed to the tiling tool must be CCW.
func IsCCW(ring []Point) bool {
	pts := ringPoints(ring)
	if len(pts) < 3 {
		return true
	}
	return s2.LoopFromPoints(pts).TurningAngle() > 0
}

// EnsureCCW returns the ring in counter-clockwise order, reversing a
// clockwise input. The closing vertex is preserved.
func EnsureCCW(ring []Point) []Point {
	if IsCCW(ring) {
		return ring
	}
	out := make([]Point, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}

// ringPoints converts a closed ring to s2 points, dropping the repeated
// closing vertex which s2 loops do not expect.
func ringPoints(ring []Point) []s2.Point {
	n := len(ring)
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}
	pts := make([]s2.Point, 0, n)
	for _, p := range ring[:n] {
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lon)))
	}
	return pts
}
