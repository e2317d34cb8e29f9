// Package logging builds the process loggers: slog for the application and
// zerolog for the storage and metrics managers.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogFilePath names the log file of a session started at sessionStart.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")))
}

// OpenLogFile creates logsDir if needed and opens the session log for
// appending. An existing file with the same name is moved aside to .old.
func OpenLogFile(logsDir, appName string, sessionStart time.Time) (*os.File, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir %s: %w", logsDir, err)
	}
	path := LogFilePath(logsDir, appName, sessionStart)
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".old"); err != nil {
			return nil, fmt.Errorf("failed to rotate %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}
