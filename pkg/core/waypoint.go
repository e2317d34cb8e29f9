// pkg/core/waypoint.go
package core

import (
	"errors"
	"fmt"
)

// Kind identifies the record type inside an exported dataset.
type Kind string

const (
	KindWaypoint Kind = "waypoint"
	KindSummary  Kind = "summary"
)

// ErrEmptyField is returned when a record is missing one of its required values.
var ErrEmptyField = errors.New("required field is empty")

// CoordinatePair is one reading of the map's coordinate readout, kept as the
// original text the widget rendered.
type CoordinatePair struct {
	First  string
	Second string
}

// WaypointRecord is a single historical position of the rover as shown by the map.
// All position values keep the numeric text exactly as the readout displayed it.
type WaypointRecord struct {
	Key       int
	Sol       string
	Longitude string
	Latitude  string
	Easting   string
	Northing  string
	XRelative string
	YRelative string
}

// NewWaypointRecord assembles a record from a sol and the three readout phases.
func NewWaypointRecord(key int, sol string, lngLat, eastNorth, relative CoordinatePair) WaypointRecord {
	return WaypointRecord{
		Key:       key,
		Sol:       sol,
		Longitude: lngLat.First,
		Latitude:  lngLat.Second,
		Easting:   eastNorth.First,
		Northing:  eastNorth.Second,
		XRelative: relative.First,
		YRelative: relative.Second,
	}
}

// Validate checks that the sol and the six position values are present.
func (w WaypointRecord) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"sol", w.Sol},
		{"longitude", w.Longitude},
		{"latitude", w.Latitude},
		{"easting", w.Easting},
		{"northing", w.Northing},
		{"x_relative", w.XRelative},
		{"y_relative", w.YRelative},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("waypoint %d: %s: %w", w.Key, f.name, ErrEmptyField)
		}
	}
	return nil
}

// Fields returns the export field map for the record.
func (w WaypointRecord) Fields() map[string]any {
	return map[string]any{
		"sol":        w.Sol,
		"longitude":  w.Longitude,
		"latitude":   w.Latitude,
		"easting":    w.Easting,
		"northing":   w.Northing,
		"x_relative": w.XRelative,
		"y_relative": w.YRelative,
	}
}

// MissionSummary is the aggregate status of the mission at collection time.
type MissionSummary struct {
	Key                 int
	Target              string
	Sol                 string
	DistanceDrivenMiles string
	DistanceDrivenKm    string
	WaypointsTotal      int
	WaypointsVisible    int
}

// Fields returns the export field map for the summary.
func (m MissionSummary) Fields() map[string]any {
	return map[string]any{
		"target":                m.Target,
		"sol":                   m.Sol,
		"distance_driven_miles": m.DistanceDrivenMiles,
		"distance_driven_km":    m.DistanceDrivenKm,
		"waypoints_total":       m.WaypointsTotal,
		"waypoints_visible":     m.WaypointsVisible,
	}
}
