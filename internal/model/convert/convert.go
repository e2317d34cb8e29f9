// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OCAP2/roverwatch/internal/geo"
	"github.com/OCAP2/roverwatch/internal/model"
	"github.com/OCAP2/roverwatch/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// ErrUnsealed is returned when converting a dataset that was never sealed.
var ErrUnsealed = errors.New("dataset is not sealed")

// locationOf returns the map point of a record. Readout text that does not
// parse as degrees yields an empty point, the record itself is still kept.
func locationOf(w core.WaypointRecord) geom.Point {
	p, err := geo.MapPoint(w)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY)
	}
	return p
}

// CoreToWaypoint converts a core.StoredWaypoint to a GORM model.Waypoint.
func CoreToWaypoint(w core.StoredWaypoint) model.Waypoint {
	return model.Waypoint{
		RunID:     w.RunID,
		Key:       w.Key,
		Sol:       w.Sol,
		Longitude: w.Longitude,
		Latitude:  w.Latitude,
		Easting:   w.Easting,
		Northing:  w.Northing,
		XRelative: w.XRelative,
		YRelative: w.YRelative,
		IsCurrent: w.IsCurrent,
		Location:  locationOf(w.WaypointRecord),
	}
}

// WaypointToCore converts a GORM Waypoint to a core.StoredWaypoint.
func WaypointToCore(w model.Waypoint) core.StoredWaypoint {
	return core.StoredWaypoint{
		RunID:     w.RunID,
		IsCurrent: w.IsCurrent,
		WaypointRecord: core.WaypointRecord{
			Key:       w.Key,
			Sol:       w.Sol,
			Longitude: w.Longitude,
			Latitude:  w.Latitude,
			Easting:   w.Easting,
			Northing:  w.Northing,
			XRelative: w.XRelative,
			YRelative: w.YRelative,
		},
	}
}

// CoreToSummary converts a core.StoredSummary to a GORM model.MissionSummary.
func CoreToSummary(s core.StoredSummary) model.MissionSummary {
	return model.MissionSummary{
		RunID:               s.RunID,
		CollectedAt:         s.CollectedAt,
		Key:                 s.Key,
		Target:              s.Target,
		Sol:                 s.Sol,
		DistanceDrivenMiles: s.DistanceDrivenMiles,
		DistanceDrivenKm:    s.DistanceDrivenKm,
		WaypointsTotal:      s.WaypointsTotal,
		WaypointsVisible:    s.WaypointsVisible,
	}
}

// SummaryToCore converts a GORM MissionSummary to a core.StoredSummary.
func SummaryToCore(s model.MissionSummary) core.StoredSummary {
	return core.StoredSummary{
		RunID:       s.RunID,
		CollectedAt: s.CollectedAt,
		MissionSummary: core.MissionSummary{
			Key:                 s.Key,
			Target:              s.Target,
			Sol:                 s.Sol,
			DistanceDrivenMiles: s.DistanceDrivenMiles,
			DistanceDrivenKm:    s.DistanceDrivenKm,
			WaypointsTotal:      s.WaypointsTotal,
			WaypointsVisible:    s.WaypointsVisible,
		},
	}
}

// DatasetToRun converts a sealed dataset into a CollectionRun with its
// waypoint and summary rows attached.
func DatasetToRun(d *core.Dataset) (model.CollectionRun, error) {
	if d == nil || !d.Sealed() {
		return model.CollectionRun{}, ErrUnsealed
	}
	summary, _ := d.Summary()

	raw, err := json.Marshal(d)
	if err != nil {
		return model.CollectionRun{}, fmt.Errorf("failed to marshal dataset: %w", err)
	}

	stored := core.StoredWaypointsFromDataset(d)
	waypoints := make([]model.Waypoint, 0, len(stored))
	for _, w := range stored {
		waypoints = append(waypoints, CoreToWaypoint(w))
	}

	return model.CollectionRun{
		ID:               d.RunID,
		MissionURL:       d.MissionURL,
		StartedAt:        d.StartedAt,
		FinishedAt:       d.FinishedAt,
		WaypointsTotal:   summary.WaypointsTotal,
		WaypointsVisible: summary.WaypointsVisible,
		Dataset:          datatypes.JSON(raw),
		Waypoints:        waypoints,
		Summary: CoreToSummary(core.StoredSummary{
			RunID:          d.RunID,
			CollectedAt:    d.FinishedAt,
			MissionSummary: summary,
		}),
	}, nil
}
