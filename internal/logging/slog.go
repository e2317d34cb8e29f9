package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// osStdout is the console sink, swapped out by tests.
var osStdout io.Writer = os.Stdout

// Sinks lists the destinations of log records.
type Sinks struct {
	// Text receives human-readable records. Nil means stdout.
	Text io.Writer
	// JSON writers each receive one JSON object per record (Graylog GELF).
	JSON []io.Writer
	// OTel, when set, receives records through the otelslog bridge.
	OTel *sdklog.LoggerProvider
}

// SlogManager owns the process logger and can rebuild it as sinks become
// available during startup.
type SlogManager struct {
	logger   *slog.Logger
	otel     *sdklog.LoggerProvider
	runAttrs RunAttrs
}

// NewSlogManager creates a manager whose Logger is slog.Default until Setup.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// ParseLevel maps a configured level name to a slog.Level. Unknown names
// fall back to info.
func ParseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// SetRunAttrs installs the source of run attributes stamped on every record.
// It takes effect on the next Setup.
func (m *SlogManager) SetRunAttrs(attrs RunAttrs) {
	m.runAttrs = attrs
}

// Setup replaces the logger with one writing to sinks at level.
func (m *SlogManager) Setup(level string, sinks Sinks) {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if t, ok := a.Value.Any().(time.Time); ok && a.Key == slog.TimeKey {
				a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	text := sinks.Text
	if text == nil {
		text = osStdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(text, opts)}
	for _, w := range sinks.JSON {
		if w != nil {
			handlers = append(handlers, slog.NewJSONHandler(w, opts))
		}
	}
	if sinks.OTel != nil {
		handlers = append(handlers, otelslog.NewHandler("roverwatch", otelslog.WithLoggerProvider(sinks.OTel)))
	}
	m.otel = sinks.OTel

	var h slog.Handler = newFanout(handlers...)
	if m.runAttrs != nil {
		h = runHandler{Handler: h, attrs: m.runAttrs}
	}
	m.logger = slog.New(h)
	m.logger.Debug("Logging initialized", "level", level, "jsonSinks", len(sinks.JSON), "otel", sinks.OTel != nil)
}

// Logger returns the configured logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes buffered OTel records, if any.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.otel == nil {
		return nil
	}
	return m.otel.ForceFlush(ctx)
}
