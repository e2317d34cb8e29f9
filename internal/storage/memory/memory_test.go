// internal/storage/memory/memory_test.go
package memory

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/roverwatch/internal/config"
	"github.com/OCAP2/roverwatch/pkg/core"
)

func waypoint(key int, sol string) core.WaypointRecord {
	return core.WaypointRecord{
		Key: key, Sol: sol,
		Longitude: "137.38", Latitude: "-4.70",
		Easting: "1000.0", Northing: "-20000.0",
		XRelative: "1.0", YRelative: "-1.0",
	}
}

func sealedDataset(t *testing.T, runID string, start time.Time, keys ...int) *core.Dataset {
	t.Helper()
	d := core.NewDataset(runID, "http://mars.test/rover", start)
	for _, k := range keys {
		if err := d.AppendWaypoint(waypoint(k, "3401")); err != nil {
			t.Fatalf("AppendWaypoint failed: %v", err)
		}
	}
	if err := d.SetCurrentPosition(waypoint(len(keys)+1, "3412")); err != nil {
		t.Fatalf("SetCurrentPosition failed: %v", err)
	}
	if err := d.SetSummary(core.MissionSummary{
		Key: 1, Target: "Curiosity's Location", Sol: "3412",
		DistanceDrivenMiles: "18.37", DistanceDrivenKm: "29.56",
		WaypointsTotal: len(keys) + 1, WaypointsVisible: len(keys) + 1,
	}); err != nil {
		t.Fatalf("SetSummary failed: %v", err)
	}
	if err := d.Seal(start.Add(time.Minute)); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	return d
}

func TestNew(t *testing.T) {
	cfg := config.MemoryConfig{
		OutputDir:      "/tmp/test",
		CompressOutput: true,
	}
	b := New(cfg)

	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.cfg.OutputDir != "/tmp/test" {
		t.Errorf("expected OutputDir=/tmp/test, got %s", b.cfg.OutputDir)
	}
	if !b.cfg.CompressOutput {
		t.Error("expected CompressOutput=true")
	}
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.Init(); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestSaveDataset_Unsealed(t *testing.T) {
	b := New(config.MemoryConfig{})
	d := core.NewDataset("run-1", "http://mars.test/rover", time.Now())

	if err := b.SaveDataset(context.Background(), d); !errors.Is(err, ErrUnsealed) {
		t.Errorf("expected ErrUnsealed, got %v", err)
	}
	if err := b.SaveDataset(context.Background(), nil); !errors.Is(err, ErrUnsealed) {
		t.Errorf("expected ErrUnsealed for nil dataset, got %v", err)
	}
}

func TestSaveDataset_CanceledContext(t *testing.T) {
	b := New(config.MemoryConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := sealedDataset(t, "run-1", time.Now(), 1)
	if err := b.SaveDataset(ctx, d); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSaveDataset_NoOutputDirSkipsExport(t *testing.T) {
	b := New(config.MemoryConfig{})
	d := sealedDataset(t, "run-1", time.Now(), 1, 2)

	if err := b.SaveDataset(context.Background(), d); err != nil {
		t.Fatalf("SaveDataset failed: %v", err)
	}
	if b.GetExportedFilePath() != "" {
		t.Errorf("expected no export path, got %s", b.GetExportedFilePath())
	}
	if len(b.runs) != 1 {
		t.Errorf("expected 1 run stored, got %d", len(b.runs))
	}
}

func TestSaveDataset_ExportJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "fixtures")
	b := New(config.MemoryConfig{OutputDir: dir})
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d := sealedDataset(t, "run-1", start, 1, 2)

	if err := b.SaveDataset(context.Background(), d); err != nil {
		t.Fatalf("SaveDataset failed: %v", err)
	}

	want := filepath.Join(dir, "rover_data_20240301_120000.json")
	if got := b.GetExportedFilePath(); got != want {
		t.Fatalf("expected export path %s, got %s", want, got)
	}

	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	var records []core.Record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("export is not a JSON record array: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	if records[3].Kind != core.KindSummary || records[3].Key != 1 {
		t.Errorf("expected trailing summary with key 1, got %+v", records[3])
	}

	meta := b.GetExportMetadata()
	if meta.RunID != "run-1" {
		t.Errorf("expected RunID=run-1, got %s", meta.RunID)
	}
	if meta.RunDuration != 60 {
		t.Errorf("expected RunDuration=60, got %f", meta.RunDuration)
	}
	if meta.Target != "Curiosity's Location" {
		t.Errorf("unexpected Target %q", meta.Target)
	}
}

func TestSaveDataset_ExportGzipJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d := sealedDataset(t, "run-1", start, 1)

	if err := b.SaveDataset(context.Background(), d); err != nil {
		t.Fatalf("SaveDataset failed: %v", err)
	}

	path := b.GetExportedFilePath()
	if filepath.Ext(path) != ".gz" {
		t.Fatalf("expected .gz export, got %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open export: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("export is not gzip: %v", err)
	}
	defer gz.Close()

	var records []core.Record
	if err := json.NewDecoder(gz).Decode(&records); err != nil {
		t.Fatalf("failed to decode export: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records, got %d", len(records))
	}
}

func TestSaveDataset_ExportLeavesNoPartialFiles(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-1", "run-2"} {
		d := sealedDataset(t, id, start.Add(time.Duration(i)*time.Second), 1)
		if err := b.SaveDataset(context.Background(), d); err != nil {
			t.Fatalf("SaveDataset %s failed: %v", id, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{"rover_data_20240301_120000.json", "rover_data_20240301_120001.json"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("expected %v in output dir, got %v", want, names)
	}
}

func TestInit_LoadsExportedRuns(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	plain := New(config.MemoryConfig{OutputDir: dir})
	if err := plain.SaveDataset(ctx, sealedDataset(t, "run-1", start, 1, 2)); err != nil {
		t.Fatalf("SaveDataset failed: %v", err)
	}
	gz := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	if err := gz.SaveDataset(ctx, sealedDataset(t, "run-2", start.Add(time.Hour), 1)); err != nil {
		t.Fatalf("SaveDataset failed: %v", err)
	}

	reader := New(config.MemoryConfig{OutputDir: dir})
	if err := reader.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	all, err := reader.ListWaypoints(ctx, "")
	if err != nil {
		t.Fatalf("ListWaypoints failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 waypoints from both exports, got %d", len(all))
	}
	if all[0].RunID != "rover_data_20240301_120000" || all[4].RunID != "rover_data_20240301_130000" {
		t.Errorf("unexpected run IDs %s, %s", all[0].RunID, all[4].RunID)
	}
	if !all[2].IsCurrent || all[2].Key != 3 || all[2].Sol != "3412" {
		t.Errorf("expected current position key 3 at sol 3412, got %+v", all[2])
	}

	summaries, err := reader.ListMissionSummaries(ctx)
	if err != nil {
		t.Fatalf("ListMissionSummaries failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	for _, s := range summaries {
		if s.Target != "Curiosity's Location" || s.DistanceDrivenKm != "29.56" {
			t.Errorf("unexpected summary %+v", s)
		}
	}

	one, err := reader.ListWaypoints(ctx, "rover_data_20240301_130000")
	if err != nil {
		t.Fatalf("ListWaypoints failed: %v", err)
	}
	if len(one) != 2 {
		t.Errorf("expected 2 waypoints for the gzip run, got %d", len(one))
	}
}

func TestInit_MalformedExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rover_data_20240301_120000.json")
	if err := os.WriteFile(path, []byte(`[{"kind":"summary","key":1,"fields":{}}]`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	b := New(config.MemoryConfig{OutputDir: dir})
	err := b.Init()
	if !errors.Is(err, core.ErrMalformedRecords) {
		t.Fatalf("expected ErrMalformedRecords, got %v", err)
	}
	if len(b.runs) != 0 {
		t.Errorf("expected no runs loaded, got %d", len(b.runs))
	}
}

func TestInit_MissingOutputDir(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: filepath.Join(t.TempDir(), "absent")})
	if err := b.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
}

func TestListWaypoints(t *testing.T) {
	b := New(config.MemoryConfig{})
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// saved out of start order
	if err := b.SaveDataset(ctx, sealedDataset(t, "late", base.Add(time.Hour), 1)); err != nil {
		t.Fatal(err)
	}
	if err := b.SaveDataset(ctx, sealedDataset(t, "early", base, 1, 2)); err != nil {
		t.Fatal(err)
	}

	all, err := b.ListWaypoints(ctx, "")
	if err != nil {
		t.Fatalf("ListWaypoints failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 waypoints, got %d", len(all))
	}
	wantOrder := []struct {
		run     string
		key     int
		current bool
	}{
		{"early", 1, false}, {"early", 2, false}, {"early", 3, true},
		{"late", 1, false}, {"late", 2, true},
	}
	for i, w := range wantOrder {
		if all[i].RunID != w.run || all[i].Key != w.key || all[i].IsCurrent != w.current {
			t.Errorf("waypoint %d: expected %+v, got run=%s key=%d current=%v",
				i, w, all[i].RunID, all[i].Key, all[i].IsCurrent)
		}
	}

	late, err := b.ListWaypoints(ctx, "late")
	if err != nil {
		t.Fatalf("ListWaypoints failed: %v", err)
	}
	if len(late) != 2 {
		t.Errorf("expected 2 waypoints for run late, got %d", len(late))
	}

	none, err := b.ListWaypoints(ctx, "missing")
	if err != nil {
		t.Fatalf("ListWaypoints failed: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", none)
	}
}

func TestListMissionSummaries_NewestFirst(t *testing.T) {
	b := New(config.MemoryConfig{})
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		if err := b.SaveDataset(ctx, sealedDataset(t, id, base.Add(time.Duration(i)*time.Hour), 1)); err != nil {
			t.Fatal(err)
		}
	}

	summaries, err := b.ListMissionSummaries(ctx)
	if err != nil {
		t.Fatalf("ListMissionSummaries failed: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}
	for i, id := range []string{"third", "second", "first"} {
		if summaries[i].RunID != id {
			t.Errorf("summary %d: expected run %s, got %s", i, id, summaries[i].RunID)
		}
	}
	if summaries[0].CollectedAt != base.Add(2*time.Hour+time.Minute) {
		t.Errorf("unexpected CollectedAt %v", summaries[0].CollectedAt)
	}
}

func TestConcurrentSaveAndList(t *testing.T) {
	b := New(config.MemoryConfig{})
	ctx := context.Background()
	base := time.Now()

	datasets := make([]*core.Dataset, 20)
	for i := range datasets {
		datasets[i] = sealedDataset(t, "run", base.Add(time.Duration(i)*time.Second), 1)
	}

	var wg sync.WaitGroup
	for _, d := range datasets {
		wg.Add(2)
		go func(d *core.Dataset) {
			defer wg.Done()
			_ = b.SaveDataset(ctx, d)
		}(d)
		go func() {
			defer wg.Done()
			_, _ = b.ListWaypoints(ctx, "")
		}()
	}
	wg.Wait()

	summaries, _ := b.ListMissionSummaries(ctx)
	if len(summaries) != 20 {
		t.Errorf("expected 20 summaries, got %d", len(summaries))
	}
}
