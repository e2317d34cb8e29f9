// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/OCAP2/roverwatch/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// SaveDataset persists one sealed collection run.
	SaveDataset(ctx context.Context, d *core.Dataset) error
}

// Reader is implemented by backends that can serve stored runs back to the
// query API.
type Reader interface {
	// ListWaypoints returns waypoints ordered by run start then key. An empty
	// runID returns every run.
	ListWaypoints(ctx context.Context, runID string) ([]core.StoredWaypoint, error)
	// ListMissionSummaries returns summaries newest first.
	ListMissionSummaries(ctx context.Context) ([]core.StoredSummary, error)
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the ingest service.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
