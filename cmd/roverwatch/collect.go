package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/OCAP2/roverwatch/internal/api"
	"github.com/OCAP2/roverwatch/internal/browser"
	"github.com/OCAP2/roverwatch/internal/collector"
	"github.com/OCAP2/roverwatch/internal/config"
	"github.com/OCAP2/roverwatch/internal/influx"
	"github.com/OCAP2/roverwatch/internal/storage"
	"github.com/OCAP2/roverwatch/pkg/core"
	"github.com/spf13/cobra"
)

func newCollectCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Traverse the mission map once and store the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configDir, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ds, skipped, err := a.collect(ctx)
			if err != nil {
				if collector.IsFatal(err) {
					a.Logger.Error("Collection aborted", "error", err)
				}
				return err
			}
			return a.persist(ctx, ds, skipped)
		},
	}
}

// collect drives one browser session through the collector.
func (a *app) collect(ctx context.Context) (*core.Dataset, int, error) {
	locators, err := config.GetLocators()
	if err != nil {
		return nil, 0, fmt.Errorf("invalid locators: %w", err)
	}
	timeouts := config.GetTimeouts()
	missionCfg := config.GetMissionConfig()

	run := a.Mission.Begin(missionCfg.URL, a.SessionStartTime)
	a.Logger.Info("Starting collection run", "url", run.URL)

	launcher := browser.NewLauncher(config.GetBrowserConfig(), timeouts, a.Logger)
	if err := launcher.Start(ctx); err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := launcher.Close(); err != nil {
			a.Logger.Warn("Failed to close browser", "error", err)
		}
	}()

	session, err := launcher.NewSession(ctx)
	if err != nil {
		return nil, 0, err
	}

	skipped := 0
	c, err := collector.New(session, collector.Options{
		MissionURL: run.URL,
		Locators:   locators,
		Timeouts:   timeouts,
		RunID:      run.ID,
		Logger:     a.Logger,
		Meter:      a.OTelProvider.Meter("roverwatch/collector"),
		Observer: func(marker int, s collector.State) {
			a.Mission.SetPhase(s.String())
			switch s {
			case collector.StateSkippedHidden, collector.StateClickRejectedSkipped:
				skipped++
			}
		},
	})
	if err != nil {
		return nil, 0, err
	}

	ds, err := c.Run(ctx)
	if err != nil {
		return nil, skipped, err
	}
	return ds, skipped, nil
}

// persist stores a sealed dataset, then uploads the exported file and
// writes run metrics when those are enabled. Only the storage step can fail
// the run.
func (a *app) persist(ctx context.Context, ds *core.Dataset, skipped int) error {
	storageCfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(storageCfg, a.Zerolog("database"), a.Logger)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			a.Logger.Warn("Failed to close storage backend", "error", err)
		}
	}()

	if err := backend.SaveDataset(ctx, ds); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	a.Logger.Info("Dataset saved", "storage", storageCfg.Type, "runId", ds.RunID)

	a.upload(ctx, backend)
	a.writeMetrics(ctx, ds, skipped)
	return nil
}

func (a *app) upload(ctx context.Context, backend storage.Backend) {
	apiCfg := config.GetAPIConfig()
	if !apiCfg.Enabled {
		return
	}
	up, ok := backend.(storage.Uploadable)
	if !ok || up.GetExportedFilePath() == "" {
		a.Logger.Debug("Nothing to upload")
		return
	}

	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		a.Logger.Warn("Ingest service unavailable, skipping upload", "error", err)
		return
	}
	path := up.GetExportedFilePath()
	if err := client.Upload(ctx, path, up.GetExportMetadata()); err != nil {
		a.Logger.Error("Failed to upload dataset", "error", err, "path", path)
		return
	}
	a.Logger.Info("Dataset uploaded", "path", path)
}

func (a *app) writeMetrics(ctx context.Context, ds *core.Dataset, skipped int) {
	influxCfg := config.GetInfluxConfig()
	if !influxCfg.Enabled {
		return
	}
	m := influx.NewManager(a.Zerolog("influx"), influxCfg)
	if err := m.Connect(ctx); err != nil {
		a.Logger.Warn("Run metrics disabled", "error", err)
		return
	}
	if err := m.WriteRun(ds, skipped); err != nil {
		a.Logger.Warn("Failed to write run metrics", "error", err)
	}
	if err := m.Close(); err != nil {
		a.Logger.Warn("Failed to close influx writer", "error", err)
	}
}
