// internal/storage/memory/memory.go
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/OCAP2/roverwatch/internal/config"
	"github.com/OCAP2/roverwatch/pkg/core"
)

// ErrUnsealed is returned when saving a dataset that was never sealed.
var ErrUnsealed = errors.New("dataset is not sealed")

// Backend keeps collection runs in memory and exports each one to a JSON file
type Backend struct {
	cfg  config.MemoryConfig
	runs []*core.Dataset

	lastExportPath string
	lastExportMeta core.UploadMetadata

	mu sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init loads the runs already exported to the output directory.
func (b *Backend) Init() error {
	if b.cfg.OutputDir == "" {
		return nil
	}
	runs, err := loadExports(b.cfg.OutputDir)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.runs = append(runs, b.runs...)
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// SaveDataset keeps the run and writes its export file.
func (b *Backend) SaveDataset(ctx context.Context, d *core.Dataset) error {
	if d == nil || !d.Sealed() {
		return ErrUnsealed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir != "" {
		if err := b.exportJSON(d); err != nil {
			return err
		}
	}
	b.runs = append(b.runs, d)
	return nil
}

// ListWaypoints returns stored waypoints ordered by run start then key.
func (b *Backend) ListWaypoints(_ context.Context, runID string) ([]core.StoredWaypoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	runs := b.sortedRuns(func(i, j *core.Dataset) bool { return i.StartedAt.Before(j.StartedAt) })
	out := []core.StoredWaypoint{}
	for _, d := range runs {
		if runID != "" && d.RunID != runID {
			continue
		}
		wps := core.StoredWaypointsFromDataset(d)
		sort.SliceStable(wps, func(i, j int) bool { return wps[i].Key < wps[j].Key })
		out = append(out, wps...)
	}
	return out, nil
}

// ListMissionSummaries returns stored summaries newest first.
func (b *Backend) ListMissionSummaries(_ context.Context) ([]core.StoredSummary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	runs := b.sortedRuns(func(i, j *core.Dataset) bool { return i.FinishedAt.After(j.FinishedAt) })
	out := make([]core.StoredSummary, 0, len(runs))
	for _, d := range runs {
		s, ok := d.Summary()
		if !ok {
			continue
		}
		out = append(out, core.StoredSummary{RunID: d.RunID, CollectedAt: d.FinishedAt, MissionSummary: s})
	}
	return out, nil
}

func (b *Backend) sortedRuns(less func(i, j *core.Dataset) bool) []*core.Dataset {
	runs := make([]*core.Dataset, len(b.runs))
	copy(runs, b.runs)
	sort.SliceStable(runs, func(i, j int) bool { return less(runs[i], runs[j]) })
	return runs
}

// GetExportedFilePath returns the path of the last exported file.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata returns the metadata of the last exported run.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMeta
}
