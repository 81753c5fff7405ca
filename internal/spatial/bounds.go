package spatial

import (
	"github.com/golang/geo/s2"
)

// swedenBounds covers mainland Sweden plus Gotland with a small margin.
// Events geocoded outside this rect are treated as having no usable
// coordinates for the grid scheme.
var swedenBounds = s2.RectFromLatLng(s2.LatLngFromDegrees(54.5, 10.0)).
	AddPoint(s2.LatLngFromDegrees(69.5, 24.5))

// InSweden reports whether a coordinate falls inside the Sweden bounding
// rect.
func InSweden(lat, lon float64) bool {
	return swedenBounds.ContainsLatLng(s2.LatLngFromDegrees(lat, lon))
}
