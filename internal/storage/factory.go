// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/roverwatch/internal/config"
	"github.com/OCAP2/roverwatch/internal/database"
	"github.com/OCAP2/roverwatch/internal/storage/gormstore"
	"github.com/OCAP2/roverwatch/internal/storage/memory"
	"github.com/OCAP2/roverwatch/internal/storage/websocket"
	"github.com/rs/zerolog"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, dbLog zerolog.Logger, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return gormstore.New(gormstore.Config{
			Dialect:    gormstore.DialectPostgres,
			SQLitePath: cfg.SQLite.Path,
			Postgres:   database.PostgresConfig(cfg.Postgres),
		}, database.NewManager(dbLog), logger), nil
	case "sqlite":
		return gormstore.New(gormstore.Config{
			Dialect:    gormstore.DialectSQLite,
			SQLitePath: cfg.SQLite.Path,
		}, database.NewManager(dbLog), logger), nil
	case "memory":
		return memory.New(cfg.Memory), nil
	case "websocket":
		return websocket.New(websocket.Config{
			URL:    cfg.WebSocket.URL,
			Secret: cfg.WebSocket.Secret,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
