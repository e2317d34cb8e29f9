package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/roverwatch/internal/database"
	"github.com/OCAP2/roverwatch/internal/model"
	"github.com/OCAP2/roverwatch/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := New(Config{
		Dialect:    DialectSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "rover.db"),
	}, database.NewManager(zerolog.Nop()), nil)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func sealedDataset(t *testing.T, runID string, start time.Time, sols ...string) *core.Dataset {
	t.Helper()
	d := core.NewDataset(runID, "http://mars.test/rover", start)
	for i, sol := range sols {
		require.NoError(t, d.AppendWaypoint(core.WaypointRecord{
			Key: i + 1, Sol: sol,
			Longitude: "137.38", Latitude: "-4.70",
			Easting: "1000.0", Northing: "-20000.0",
			XRelative: "1.0", YRelative: "-1.0",
		}))
	}
	require.NoError(t, d.SetCurrentPosition(core.WaypointRecord{
		Key: len(sols) + 1, Sol: "3412",
		Longitude: "137.39", Latitude: "-4.71",
		Easting: "1010.0", Northing: "-20100.0",
		XRelative: "9.0", YRelative: "-90.0",
	}))
	require.NoError(t, d.SetSummary(core.MissionSummary{
		Key: 1, Target: "Curiosity's Location", Sol: "3412",
		DistanceDrivenMiles: "18.37", DistanceDrivenKm: "29.56",
		WaypointsTotal: len(sols) + 1, WaypointsVisible: len(sols) + 1,
	}))
	require.NoError(t, d.Seal(start.Add(time.Minute)))
	return d
}

func TestInit_UnknownDialect(t *testing.T) {
	b := New(Config{Dialect: "oracle"}, database.NewManager(zerolog.Nop()), nil)
	err := b.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dialect")
}

func TestSaveDataset_PersistsRows(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, b.SaveDataset(ctx, sealedDataset(t, "run-1", start, "3401", "3403")))

	db := b.manager.DB
	var runs, waypoints, summaries int64
	require.NoError(t, db.Model(&model.CollectionRun{}).Count(&runs).Error)
	require.NoError(t, db.Model(&model.Waypoint{}).Count(&waypoints).Error)
	require.NoError(t, db.Model(&model.MissionSummary{}).Count(&summaries).Error)
	assert.Equal(t, int64(1), runs)
	assert.Equal(t, int64(3), waypoints)
	assert.Equal(t, int64(1), summaries)

	var run model.CollectionRun
	require.NoError(t, db.First(&run, "id = ?", "run-1").Error)
	assert.Equal(t, 3, run.WaypointsTotal)
	assert.Contains(t, string(run.Dataset), `"kind":"summary"`)

	var current model.Waypoint
	require.NoError(t, db.Where("is_current = ?", true).First(&current).Error)
	assert.Equal(t, 3, current.Key)
	assert.False(t, current.Location.IsEmpty())
}

func TestSaveDataset_DuplicateRunRollsBack(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	start := time.Now().UTC()

	require.NoError(t, b.SaveDataset(ctx, sealedDataset(t, "run-1", start, "3401")))
	err := b.SaveDataset(ctx, sealedDataset(t, "run-1", start, "3401", "3402"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert run run-1")

	var waypoints int64
	require.NoError(t, b.manager.DB.Model(&model.Waypoint{}).Count(&waypoints).Error)
	assert.Equal(t, int64(2), waypoints)
}

func TestSaveDataset_Unsealed(t *testing.T) {
	b := newTestBackend(t)
	d := core.NewDataset("run-1", "http://mars.test/rover", time.Now())
	assert.Error(t, b.SaveDataset(context.Background(), d))
}

func TestListWaypoints_OrderAndFilter(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, b.SaveDataset(ctx, sealedDataset(t, "late", base.Add(time.Hour), "3410")))
	require.NoError(t, b.SaveDataset(ctx, sealedDataset(t, "early", base, "3401", "3402")))

	all, err := b.ListWaypoints(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 5)

	got := make([]string, 0, len(all))
	for _, w := range all {
		got = append(got, w.RunID+"/"+w.Sol)
	}
	assert.Equal(t, []string{"early/3401", "early/3402", "early/3412", "late/3410", "late/3412"}, got)
	assert.True(t, all[2].IsCurrent)
	assert.Equal(t, "137.39", all[2].Longitude)

	late, err := b.ListWaypoints(ctx, "late")
	require.NoError(t, err)
	assert.Len(t, late, 2)

	none, err := b.ListWaypoints(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListMissionSummaries_NewestFirst(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, b.SaveDataset(ctx, sealedDataset(t, id, base.Add(time.Duration(i)*time.Hour), "3401")))
	}

	summaries, err := b.ListMissionSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "third", summaries[0].RunID)
	assert.Equal(t, "second", summaries[1].RunID)
	assert.Equal(t, "first", summaries[2].RunID)
	assert.Equal(t, "29.56", summaries[0].DistanceDrivenKm)
	assert.Equal(t, 2, summaries[0].WaypointsVisible)
}

func TestClosedBackend(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.Close())

	_, err := b.ListMissionSummaries(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db not valid")
}
