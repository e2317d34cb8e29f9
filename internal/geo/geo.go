package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/OCAP2/roverwatch/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Waypoint locations are stored projected to 3857, the same spherical
// mercator the map widget renders its tiles in. SQLite has no spatial
// awareness, so points are kept as WKB and read back through their Scan
// function.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ParseLngLat parses the longitude and latitude text shown by the readout.
// Longitudes may be given east-positive in [0, 360].
func ParseLngLat(lng, lat string) (float64, float64, error) {
	long, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return 0, 0, ErrInvalidCoordinates
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return 0, 0, ErrInvalidCoordinates
	}
	if long < -180 || long > 360 || la < -90 || la > 90 {
		return 0, 0, ErrInvalidCoordinates
	}
	if long > 180 {
		long -= 360
	}
	return long, la, nil
}

// MapPoint returns the 3857 point of a waypoint record.
func MapPoint(w core.WaypointRecord) (geom.Point, error) {
	long, lat, err := ParseLngLat(w.Longitude, w.Latitude)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), err
	}
	return Coords3857From4326(long, lat)
}

// Coords3857From4326 creates a map point from a longitude and latitude
func Coords3857From4326(
	longitude float64,
	latitude float64,
) (
	point geom.Point,
	err error,
) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	point, err = geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Type: geom.DimXY,
		},
	)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), fmt.Errorf("invalid map point (%v, %v): %w", longitude, latitude, err)
	}
	return point, nil
}
