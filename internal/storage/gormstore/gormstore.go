// Package gormstore implements storage.Backend and storage.Reader on GORM,
// against either a SQLite file or PostgreSQL with an in-memory SQLite fallback.
package gormstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/roverwatch/internal/database"
	"github.com/OCAP2/roverwatch/internal/model"
	"github.com/OCAP2/roverwatch/internal/model/convert"
	"github.com/OCAP2/roverwatch/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dialects accepted by Config.Dialect.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Config selects the database a Backend opens on Init.
type Config struct {
	Dialect string
	// SQLitePath is the database file for DialectSQLite, and the dump target
	// of the in-memory fallback for DialectPostgres.
	SQLitePath string
	Postgres   database.PostgresConfig
}

const connectTimeout = 10 * time.Second

// Backend persists collection runs through GORM.
type Backend struct {
	cfg     Config
	manager *database.Manager
	logger  *slog.Logger
}

// New creates a new GORM storage backend. The connection is opened by Init.
func New(cfg Config, manager *database.Manager, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		cfg:     cfg,
		manager: manager,
		logger:  logger,
	}
}

// Init opens the configured database and migrates the schema.
func (b *Backend) Init() error {
	switch b.cfg.Dialect {
	case DialectSQLite:
		if err := b.manager.OpenSQLite(b.cfg.SQLitePath); err != nil {
			return err
		}
	case DialectPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := b.manager.OpenPostgres(ctx, b.cfg.Postgres, b.cfg.SQLitePath); err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if b.manager.InMemory() {
			b.logger.Warn("Postgres unavailable, runs are kept in memory until close",
				"dumpPath", b.manager.DumpPath())
		}
	default:
		return fmt.Errorf("unknown dialect: %s", b.cfg.Dialect)
	}

	if err := b.manager.Migrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (b *Backend) Close() error {
	return b.manager.Close()
}

func (b *Backend) db(ctx context.Context) (*gorm.DB, error) {
	if b.manager.DB == nil {
		return nil, fmt.Errorf("db not valid: %w", database.ErrNotOpen)
	}
	return b.manager.DB.WithContext(ctx), nil
}

// SaveDataset inserts the run, its waypoints and its summary in one transaction.
func (b *Backend) SaveDataset(ctx context.Context, d *core.Dataset) error {
	run, err := convert.DatasetToRun(d)
	if err != nil {
		return err
	}
	db, err := b.db(ctx)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&run).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	b.logger.Debug("Saved collection run",
		"runId", run.ID,
		"waypoints", len(run.Waypoints),
		"dialect", db.Dialector.Name())
	return nil
}

// ListWaypoints returns stored waypoints ordered by run start then key.
func (b *Backend) ListWaypoints(ctx context.Context, runID string) ([]core.StoredWaypoint, error) {
	db, err := b.db(ctx)
	if err != nil {
		return nil, err
	}

	q := db.Model(&model.Waypoint{}).
		Joins("JOIN collection_runs ON collection_runs.id = waypoints.run_id").
		Order(clause.OrderByColumn{Column: clause.Column{Table: "collection_runs", Name: "started_at"}}).
		Order(clause.OrderByColumn{Column: clause.Column{Table: "waypoints", Name: "key"}})
	if runID != "" {
		q = q.Where("waypoints.run_id = ?", runID)
	}

	var rows []model.Waypoint
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list waypoints: %w", err)
	}

	out := make([]core.StoredWaypoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.WaypointToCore(r))
	}
	return out, nil
}

// ListMissionSummaries returns stored summaries newest first.
func (b *Backend) ListMissionSummaries(ctx context.Context) ([]core.StoredSummary, error) {
	db, err := b.db(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.MissionSummary
	err = db.Order(clause.OrderByColumn{Column: clause.Column{Name: "collected_at"}, Desc: true}).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list mission summaries: %w", err)
	}

	out := make([]core.StoredSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.SummaryToCore(r))
	}
	return out, nil
}
