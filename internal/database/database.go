// Package database opens the GORM connections behind the relational
// storage backends.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const memoryDSN = "file::memory:?cache=shared"

// ErrNotOpen is returned by operations that need a connection before one
// was opened.
var ErrNotOpen = errors.New("database not open")

// PostgresConfig addresses a PostgreSQL server.
type PostgresConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

func (c PostgresConfig) dsn() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// Manager owns one GORM connection.
type Manager struct {
	DB *gorm.DB

	log      zerolog.Logger
	inMemory bool
	dumpPath string
}

// NewManager returns a manager with no connection.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{log: log}
}

// InMemory reports whether the manager fell back to an in-memory SQLite
// database that is written to DumpPath on Close.
func (m *Manager) InMemory() bool { return m.inMemory }

// DumpPath is where an in-memory database is written on Close.
func (m *Manager) DumpPath() string { return m.dumpPath }

// OpenPostgres connects to cfg. When the server cannot be reached the
// manager switches to an in-memory SQLite database that Close dumps to
// dumpPath.
func (m *Manager) OpenPostgres(ctx context.Context, cfg PostgresConfig, dumpPath string) error {
	m.log.Debug().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connecting to Postgres")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.dsn(),
		PreferSimpleProtocol: true,
	}), gormConfig(1000))
	if err == nil {
		err = ping(ctx, db)
	}
	if err == nil {
		sqlDB, _ := db.DB()
		sqlDB.SetMaxOpenConns(10)
		m.DB = db
		m.log.Info().Str("host", cfg.Host).Msg("Connected to Postgres")
		return nil
	}

	if db != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	}
	m.log.Error().Err(err).Msg("Postgres unreachable, falling back to in-memory SQLite")
	if err := m.OpenSQLite(""); err != nil {
		return err
	}
	m.inMemory = true
	m.dumpPath = dumpPath
	return nil
}

// OpenSQLite opens the SQLite file at path, or a shared in-memory database
// when path is empty.
func (m *Manager) OpenSQLite(path string) error {
	dsn := path
	if dsn == "" {
		dsn = memoryDSN
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(500))
	if err != nil {
		return fmt.Errorf("failed to open SQLite %q: %w", dsn, err)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	m.DB = db
	m.log.Info().Str("dsn", dsn).Msg("Opened SQLite")
	return nil
}

// Migrate creates or updates the tables of models.
func (m *Manager) Migrate(models ...any) error {
	if m.DB == nil {
		return ErrNotOpen
	}
	start := time.Now()
	if err := m.DB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	m.log.Info().
		Str("dialect", m.DB.Dialector.Name()).
		Int("tables", len(models)).
		Dur("duration", time.Since(start)).
		Msg("Schema migrated")
	return nil
}

// Dump writes the database to path with VACUUM INTO, replacing any file
// already there. Only SQLite supports it.
func (m *Manager) Dump(path string) error {
	if m.DB == nil {
		return ErrNotOpen
	}
	if path == "" {
		return errors.New("dump path not set")
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	if err := m.DB.Exec("VACUUM INTO ?", path).Error; err != nil {
		return fmt.Errorf("failed to dump database to %s: %w", path, err)
	}
	m.log.Info().Str("path", path).Msg("Dumped in-memory database")
	return nil
}

// Close dumps an in-memory fallback and closes the connection.
func (m *Manager) Close() error {
	if m.DB == nil {
		return nil
	}
	var dumpErr error
	if m.inMemory && m.dumpPath != "" {
		dumpErr = m.Dump(m.dumpPath)
	}
	sqlDB, err := m.DB.DB()
	m.DB = nil
	if err != nil {
		return errors.Join(dumpErr, err)
	}
	return errors.Join(dumpErr, sqlDB.Close())
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func gormConfig(batch int) *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        batch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}
