package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&CollectionRun{},
	&Waypoint{},
	&MissionSummary{},
}

////////////////////////
// RUN MODELS
////////////////////////

// CollectionRun is one pass over the mission map. Dataset keeps the exported
// record array exactly as it was produced.
type CollectionRun struct {
	ID               string         `json:"id" gorm:"primaryKey;size:36"`
	MissionURL       string         `json:"missionUrl" gorm:"size:512"`
	StartedAt        time.Time      `json:"startedAt" gorm:"index:idx_run_started_at"`
	FinishedAt       time.Time      `json:"finishedAt"`
	WaypointsTotal   int            `json:"waypointsTotal"`
	WaypointsVisible int            `json:"waypointsVisible"`
	Dataset          datatypes.JSON `json:"dataset"`

	Waypoints []Waypoint     `gorm:"foreignkey:RunID;constraint:OnDelete:CASCADE"`
	Summary   MissionSummary `gorm:"foreignkey:RunID;constraint:OnDelete:CASCADE"`
}

func (*CollectionRun) TableName() string {
	return "collection_runs"
}

// Waypoint is a traversed waypoint, or the current position when IsCurrent is set.
// Location is the EPSG:3857 point of the longitude/latitude readout.
type Waypoint struct {
	ID        uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	RunID     string     `json:"runId" gorm:"size:36;uniqueIndex:idx_waypoint_run_key"`
	Key       int        `json:"key" gorm:"uniqueIndex:idx_waypoint_run_key"`
	Sol       string     `json:"sol" gorm:"size:16"`
	Longitude string     `json:"longitude" gorm:"size:32"`
	Latitude  string     `json:"latitude" gorm:"size:32"`
	Easting   string     `json:"easting" gorm:"size:32"`
	Northing  string     `json:"northing" gorm:"size:32"`
	XRelative string     `json:"xRelative" gorm:"size:32"`
	YRelative string     `json:"yRelative" gorm:"size:32"`
	IsCurrent bool       `json:"isCurrent" gorm:"default:false"`
	Location  geom.Point `json:"location"`
}

func (*Waypoint) TableName() string {
	return "waypoints"
}

// MissionSummary is the aggregate mission status captured by a run.
type MissionSummary struct {
	ID                  uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	RunID               string    `json:"runId" gorm:"size:36;uniqueIndex"`
	CollectedAt         time.Time `json:"collectedAt" gorm:"index:idx_summary_collected_at"`
	Key                 int       `json:"key"`
	Target              string    `json:"target" gorm:"size:127"`
	Sol                 string    `json:"sol" gorm:"size:16"`
	DistanceDrivenMiles string    `json:"distanceDrivenMiles" gorm:"size:32"`
	DistanceDrivenKm    string    `json:"distanceDrivenKm" gorm:"size:32"`
	WaypointsTotal      int       `json:"waypointsTotal"`
	WaypointsVisible    int       `json:"waypointsVisible"`
}

func (*MissionSummary) TableName() string {
	return "mission_summaries"
}
