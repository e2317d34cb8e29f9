// pkg/core/run.go
package core

import "time"

// StoredWaypoint is a waypoint record read back from storage together with
// the run that produced it.
type StoredWaypoint struct {
	RunID     string
	IsCurrent bool
	WaypointRecord
}

// Fields returns the export field map with the run attributes added.
func (w StoredWaypoint) Fields() map[string]any {
	f := w.WaypointRecord.Fields()
	f["key"] = w.Key
	f["run_id"] = w.RunID
	f["is_current"] = w.IsCurrent
	return f
}

// StoredSummary is a mission summary read back from storage.
type StoredSummary struct {
	RunID       string
	CollectedAt time.Time
	MissionSummary
}

// Fields returns the export field map with the run attributes added.
func (s StoredSummary) Fields() map[string]any {
	f := s.MissionSummary.Fields()
	f["key"] = s.Key
	f["run_id"] = s.RunID
	f["collected_at"] = s.CollectedAt.UTC().Format(time.RFC3339)
	return f
}

// StoredWaypointsFromDataset flattens a dataset's traversed waypoints and
// current position into stored rows, in export order.
func StoredWaypointsFromDataset(d *Dataset) []StoredWaypoint {
	wps := d.Waypoints()
	out := make([]StoredWaypoint, 0, len(wps)+1)
	for _, w := range wps {
		out = append(out, StoredWaypoint{RunID: d.RunID, WaypointRecord: w})
	}
	if cur, ok := d.CurrentPosition(); ok {
		out = append(out, StoredWaypoint{RunID: d.RunID, IsCurrent: true, WaypointRecord: cur})
	}
	return out
}

// UploadMetadata describes an exported dataset file for the ingest service.
type UploadMetadata struct {
	RunID          string
	MissionURL     string
	Target         string
	Sol            string
	WaypointsTotal int
	RunDuration    float64
}

// UploadMetadataFor builds the upload metadata of a sealed dataset.
func UploadMetadataFor(d *Dataset) UploadMetadata {
	s, _ := d.Summary()
	return UploadMetadata{
		RunID:          d.RunID,
		MissionURL:     d.MissionURL,
		Target:         s.Target,
		Sol:            s.Sol,
		WaypointsTotal: s.WaypointsTotal,
		RunDuration:    d.FinishedAt.Sub(d.StartedAt).Seconds(),
	}
}
