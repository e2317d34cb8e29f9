package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/roverwatch/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite_Migrate(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.OpenSQLite(filepath.Join(t.TempDir(), "rover.db")))
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.Migrate(model.DatabaseModels...))
	assert.False(t, m.InMemory())

	for _, tbl := range []any{&model.CollectionRun{}, &model.Waypoint{}, &model.MissionSummary{}} {
		assert.True(t, m.DB.Migrator().HasTable(tbl), "%T", tbl)
	}
}

func TestMigrate_NotOpen(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.ErrorIs(t, m.Migrate(model.DatabaseModels...), ErrNotOpen)
	assert.ErrorIs(t, m.Dump("x.db"), ErrNotOpen)
}

func TestDump_NoPath(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.OpenSQLite(filepath.Join(t.TempDir(), "rover.db")))
	t.Cleanup(func() { _ = m.Close() })

	err := m.Dump("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dump path not set")
}

func TestOpenPostgres_FallsBackAndDumpsOnClose(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "fallback.db")
	m := NewManager(zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.OpenPostgres(ctx, PostgresConfig{
		Host: "127.0.0.1", Port: "1",
		Username: "rover", Password: "rover", Database: "rover",
	}, dump))
	assert.True(t, m.InMemory())
	assert.Equal(t, dump, m.DumpPath())

	require.NoError(t, m.Migrate(model.DatabaseModels...))
	require.NoError(t, m.DB.Create(&model.CollectionRun{
		ID:         "run-fallback",
		MissionURL: "http://mars.test/rover",
		StartedAt:  time.Now().UTC(),
	}).Error)
	require.NoError(t, m.Close())
	assert.Nil(t, m.DB)

	reopened := NewManager(zerolog.Nop())
	require.NoError(t, reopened.OpenSQLite(dump))
	t.Cleanup(func() { _ = reopened.Close() })

	var count int64
	require.NoError(t, reopened.DB.Model(&model.CollectionRun{}).
		Where("id = ?", "run-fallback").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: "5433", Username: "u", Password: "p", Database: "rover"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=rover sslmode=disable", cfg.dsn())
}

func TestClose_Unopened(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}
