package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		appName string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "roverlogs",
			appName: "roverwatch",
			want:    filepath.Join("roverlogs", "roverwatch.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./roverlogs",
			appName: "roverwatch",
			want:    filepath.Join(".", "roverlogs", "roverwatch.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "roverwatch"),
			appName: "roverwatch",
			want:    filepath.Join("/var", "log", "roverwatch", "roverwatch.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.appName, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewZerolog(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, "warn", "database")

	log.Info().Msg("filtered")
	log.Warn().Str("table", "waypoints").Msg("slow migration")

	out := buf.String()
	assert.NotContains(t, out, "filtered")
	assert.Contains(t, out, `"component":"database"`)
	assert.Contains(t, out, `"table":"waypoints"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestNewZerolog_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, "loud", "influx")

	log.Debug().Msg("hidden")
	log.Info().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestOpenLogFile_RotatesExisting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	f, err := OpenLogFile(dir, "roverwatch", start)
	require.NoError(t, err)
	_, err = f.WriteString("first session\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = OpenLogFile(dir, "roverwatch", start)
	require.NoError(t, err)
	defer f.Close()

	path := LogFilePath(dir, "roverwatch", start)
	assert.Equal(t, path, f.Name())
	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	assert.Equal(t, "first session\n", string(old))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}
