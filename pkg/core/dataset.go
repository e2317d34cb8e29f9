// pkg/core/dataset.go
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDatasetSealed is returned when a sealed dataset is modified.
	ErrDatasetSealed = errors.New("dataset is sealed")
	// ErrDuplicateKey is returned when two waypoint records share a key.
	ErrDuplicateKey = errors.New("duplicate waypoint key")
	// ErrIncomplete is returned when sealing a dataset without its current position or summary.
	ErrIncomplete = errors.New("dataset is incomplete")
	// ErrMalformedRecords is returned when an exported record array cannot be
	// read back into a dataset.
	ErrMalformedRecords = errors.New("malformed dataset records")
)

// Record is the exported form of a dataset entry.
type Record struct {
	Kind   Kind           `json:"kind"`
	Key    int            `json:"key"`
	Fields map[string]any `json:"fields"`
}

// Dataset is the ordered output of one collection run: traversed waypoints in
// click order, then the current position, then the mission summary.
// Run metadata is not part of the exported array.
type Dataset struct {
	RunID      string
	MissionURL string
	StartedAt  time.Time
	FinishedAt time.Time

	waypoints []WaypointRecord
	current   *WaypointRecord
	summary   *MissionSummary
	keys      map[int]struct{}
	sealed    bool
}

// NewDataset creates an empty dataset for a run.
func NewDataset(runID, missionURL string, startedAt time.Time) *Dataset {
	return &Dataset{
		RunID:      runID,
		MissionURL: missionURL,
		StartedAt:  startedAt,
		keys:       make(map[int]struct{}),
	}
}

// AppendWaypoint adds a traversed waypoint. Records are kept in append order.
func (d *Dataset) AppendWaypoint(w WaypointRecord) error {
	if d.sealed {
		return ErrDatasetSealed
	}
	if err := d.claimKey(w); err != nil {
		return err
	}
	d.waypoints = append(d.waypoints, w)
	return nil
}

// SetCurrentPosition sets the synthetic "now" waypoint.
func (d *Dataset) SetCurrentPosition(w WaypointRecord) error {
	if d.sealed {
		return ErrDatasetSealed
	}
	if d.current != nil {
		return fmt.Errorf("current position already set")
	}
	if err := d.claimKey(w); err != nil {
		return err
	}
	d.current = &w
	return nil
}

// SetSummary sets the mission summary.
func (d *Dataset) SetSummary(s MissionSummary) error {
	if d.sealed {
		return ErrDatasetSealed
	}
	if d.summary != nil {
		return fmt.Errorf("summary already set")
	}
	d.summary = &s
	return nil
}

func (d *Dataset) claimKey(w WaypointRecord) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if _, ok := d.keys[w.Key]; ok {
		return fmt.Errorf("key %d: %w", w.Key, ErrDuplicateKey)
	}
	d.keys[w.Key] = struct{}{}
	return nil
}

// Seal checks the dataset invariants and freezes it.
func (d *Dataset) Seal(finishedAt time.Time) error {
	if d.sealed {
		return ErrDatasetSealed
	}
	if d.current == nil || d.summary == nil {
		return ErrIncomplete
	}
	if len(d.waypoints) > d.summary.WaypointsTotal {
		return fmt.Errorf("visible waypoints %d exceed total %d", len(d.waypoints), d.summary.WaypointsTotal)
	}
	d.FinishedAt = finishedAt
	d.sealed = true
	return nil
}

// Sealed reports whether the dataset has been sealed.
func (d *Dataset) Sealed() bool {
	return d.sealed
}

// Waypoints returns a copy of the traversed waypoints.
func (d *Dataset) Waypoints() []WaypointRecord {
	out := make([]WaypointRecord, len(d.waypoints))
	copy(out, d.waypoints)
	return out
}

// CurrentPosition returns the current-position record, if set.
func (d *Dataset) CurrentPosition() (WaypointRecord, bool) {
	if d.current == nil {
		return WaypointRecord{}, false
	}
	return *d.current, true
}

// Summary returns the mission summary, if set.
func (d *Dataset) Summary() (MissionSummary, bool) {
	if d.summary == nil {
		return MissionSummary{}, false
	}
	return *d.summary, true
}

// Records returns the dataset in export order.
func (d *Dataset) Records() []Record {
	records := make([]Record, 0, len(d.waypoints)+2)
	for _, w := range d.waypoints {
		records = append(records, Record{Kind: KindWaypoint, Key: w.Key, Fields: w.Fields()})
	}
	if d.current != nil {
		records = append(records, Record{Kind: KindWaypoint, Key: d.current.Key, Fields: d.current.Fields()})
	}
	if d.summary != nil {
		records = append(records, Record{Kind: KindSummary, Key: d.summary.Key, Fields: d.summary.Fields()})
	}
	return records
}

// MarshalJSON encodes the dataset as an array of records.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Records())
}

// DatasetFromRecords rebuilds a sealed dataset from its exported records. The
// array must end with the summary, and the waypoint right before it is the
// current position.
func DatasetFromRecords(runID, missionURL string, startedAt, finishedAt time.Time, records []Record) (*Dataset, error) {
	n := len(records)
	if n < 2 || records[n-1].Kind != KindSummary || records[n-2].Kind != KindWaypoint {
		return nil, fmt.Errorf("%w: want waypoints, current position, summary", ErrMalformedRecords)
	}

	d := NewDataset(runID, missionURL, startedAt)
	for i, r := range records[:n-1] {
		if r.Kind != KindWaypoint {
			return nil, fmt.Errorf("%w: record %d has kind %q", ErrMalformedRecords, i, r.Kind)
		}
		w := waypointFromFields(r.Key, r.Fields)
		var err error
		if i == n-2 {
			err = d.SetCurrentPosition(w)
		} else {
			err = d.AppendWaypoint(w)
		}
		if err != nil {
			return nil, err
		}
	}

	summary, err := summaryFromFields(records[n-1].Key, records[n-1].Fields)
	if err != nil {
		return nil, err
	}
	if err := d.SetSummary(summary); err != nil {
		return nil, err
	}
	if err := d.Seal(finishedAt); err != nil {
		return nil, err
	}
	return d, nil
}

func waypointFromFields(key int, f map[string]any) WaypointRecord {
	return WaypointRecord{
		Key:       key,
		Sol:       textField(f, "sol"),
		Longitude: textField(f, "longitude"),
		Latitude:  textField(f, "latitude"),
		Easting:   textField(f, "easting"),
		Northing:  textField(f, "northing"),
		XRelative: textField(f, "x_relative"),
		YRelative: textField(f, "y_relative"),
	}
}

func summaryFromFields(key int, f map[string]any) (MissionSummary, error) {
	total, err := countField(f, "waypoints_total")
	if err != nil {
		return MissionSummary{}, err
	}
	visible, err := countField(f, "waypoints_visible")
	if err != nil {
		return MissionSummary{}, err
	}
	return MissionSummary{
		Key:                 key,
		Target:              textField(f, "target"),
		Sol:                 textField(f, "sol"),
		DistanceDrivenMiles: textField(f, "distance_driven_miles"),
		DistanceDrivenKm:    textField(f, "distance_driven_km"),
		WaypointsTotal:      total,
		WaypointsVisible:    visible,
	}, nil
}

func textField(f map[string]any, name string) string {
	s, _ := f[name].(string)
	return s
}

// countField accepts ints built in process and float64s decoded from JSON.
func countField(f map[string]any, name string) (int, error) {
	switch v := f[name].(type) {
	case int:
		return v, nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %s is not a count: %v", ErrMalformedRecords, name, f[name])
}
