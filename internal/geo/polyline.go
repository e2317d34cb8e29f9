package geo

import (
	"fmt"

	"github.com/OCAP2/roverwatch/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// TraversePath builds the rover's path through the given waypoints, in
// order, as a longitude/latitude LineString.
func TraversePath(waypoints []core.WaypointRecord) (geom.LineString, error) {
	if len(waypoints) < 2 {
		return geom.LineString{}, fmt.Errorf("path must have at least 2 points, got %d", len(waypoints))
	}

	flatCoords := make([]float64, 0, len(waypoints)*2)
	for _, w := range waypoints {
		long, lat, err := ParseLngLat(w.Longitude, w.Latitude)
		if err != nil {
			return geom.LineString{}, fmt.Errorf("waypoint %d: %w", w.Key, err)
		}
		flatCoords = append(flatCoords, long, lat)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq)
}
