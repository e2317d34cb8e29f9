package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/OCAP2/roverwatch/internal/config"
	"github.com/OCAP2/roverwatch/internal/logging"
	"github.com/OCAP2/roverwatch/internal/mission"
	intOtel "github.com/OCAP2/roverwatch/internal/otel"
	"github.com/rs/zerolog"
)

// app holds the process-wide services shared by every command.
type app struct {
	SessionStartTime time.Time
	LogFilePath      string

	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	OTelProvider *intOtel.Provider
	Mission      *mission.Context

	logFile  *os.File
	graylog  io.WriteCloser
	logLevel string
}

// newApp loads configuration from configDir and brings up logging and
// telemetry. A missing config file is not an error; defaults are used.
func newApp(configDir string, stdout io.Writer) (*app, error) {
	a := &app{
		SessionStartTime: time.Now(),
		SlogManager:      logging.NewSlogManager(),
		Mission:          mission.NewContext(),
	}

	// console logging until the log file is open
	a.SlogManager.Setup("info", logging.Sinks{Text: stdout})
	a.Logger = a.SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		a.Logger.Warn("Failed to load config, using defaults!", "error", err, "dir", configDir)
	} else {
		a.Logger.Info("Loaded config", "dir", configDir)
	}
	a.logLevel = config.GetString("logLevel")

	f, err := logging.OpenLogFile(config.GetString("logsDir"), AppName, a.SessionStartTime)
	if err != nil {
		return nil, err
	}
	a.logFile = f
	a.LogFilePath = f.Name()

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		a.OTelProvider, err = intOtel.New(context.Background(), intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			Version:      CurrentVersion,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    f,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			a.Logger.Error("Failed to initialize OTel provider", "error", err)
			a.OTelProvider = nil
		}
	}

	sinks := logging.Sinks{Text: f}
	if config.GetBool("graylog.enabled") {
		addr := config.GetString("graylog.address")
		gw, err := logging.NewGraylogWriter(addr)
		if err != nil {
			a.Logger.Warn("Graylog disabled", "error", err, "address", addr)
		} else {
			a.graylog = gw
			sinks.JSON = append(sinks.JSON, gw)
		}
	}

	if a.OTelProvider != nil {
		sinks.OTel = a.OTelProvider.LoggerProvider()
	}
	a.SlogManager.SetRunAttrs(a.Mission.LogAttrs)
	a.SlogManager.Setup(a.logLevel, sinks)
	a.Logger = a.SlogManager.Logger()
	a.Logger.Info("Logging to file", "path", a.LogFilePath, "version", CurrentVersion, "buildDate", BuildDate)

	if a.OTelProvider == nil {
		a.OTelProvider, _ = intOtel.New(context.Background(), intOtel.Config{})
	}
	return a, nil
}

// Zerolog returns the component logger used by the database and influx
// managers. It writes to the run log file.
func (a *app) Zerolog(component string) zerolog.Logger {
	var w io.Writer
	if a.logFile != nil {
		w = a.logFile
	}
	return logging.NewZerolog(w, a.logLevel, component)
}

// Close flushes telemetry and releases the log sinks.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if a.OTelProvider != nil {
		if err := a.OTelProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.graylog != nil {
		errs = append(errs, a.graylog.Close())
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
	}
	return errors.Join(errs...)
}
