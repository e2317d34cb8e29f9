package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewZerolog builds the zerolog.Logger handed to the database and influx
// managers. A nil writer logs to stdout.
func NewZerolog(w io.Writer, level string, component string) zerolog.Logger {
	if w == nil {
		w = osStdout
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}
