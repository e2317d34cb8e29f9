package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/roverwatch/internal/config"
	"github.com/OCAP2/roverwatch/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// MeasurementRun is the measurement written once per collection run.
const MeasurementRun = "collection_run"

// ErrDisabled is returned by Connect when influx is not enabled.
var ErrDisabled = errors.New("influx.enabled is false")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger

	cfg        config.InfluxConfig
	backupFile *os.File
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig) *Manager {
	return &Manager{
		IsValid: false,
		Logger:  log,
		cfg:     cfg,
	}
}

// Connect establishes a connection to InfluxDB. When the server cannot be
// reached points go to the gzip line-protocol backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.URL,
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(100).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Info().Str("backupPath", m.cfg.BackupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		if err := m.openBackup(); err != nil {
			return err
		}
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	if dir := filepath.Dir(m.cfg.BackupPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating backup dir: %v", err)
		}
	}
	file, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %v", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgName := m.cfg.Org

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure bucket exists with 365 day retention
	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 365,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	errorsCh := m.Writer.Errors()
	go func(bucketName string, errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
				Msg("Error sending data to InfluxDB")
		}
	}(m.cfg.Bucket, errorsCh)
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		if m.Writer == nil {
			return fmt.Errorf("influxDB bucket '%s' not registered", m.cfg.Bucket)
		}
		m.Writer.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
	}
	return nil
}

// WriteRun records the outcome of one collection run.
func (m *Manager) WriteRun(d *core.Dataset, skipped int) error {
	return m.WritePoint(RunPoint(d, skipped))
}

// Close flushes pending writes and closes the client and the backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// RunPoint builds the collection_run point of a sealed dataset. Distances the
// summary could not express as numbers are left out.
func RunPoint(d *core.Dataset, skipped int) *influxdb2_write.Point {
	s, _ := d.Summary()

	point := influxdb2_write.NewPointWithMeasurement(MeasurementRun).
		AddTag("run_id", d.RunID).
		AddTag("target", s.Target).
		AddField("waypoints_total", s.WaypointsTotal).
		AddField("waypoints_visible", s.WaypointsVisible).
		AddField("waypoints_skipped", skipped).
		AddField("sol", s.Sol).
		AddField("duration_s", d.FinishedAt.Sub(d.StartedAt).Seconds()).
		SetTime(d.FinishedAt)

	if v, ok := parseDistance(s.DistanceDrivenMiles); ok {
		point.AddField("distance_miles", v)
	}
	if v, ok := parseDistance(s.DistanceDrivenKm); ok {
		point.AddField("distance_km", v)
	}
	return point
}

func parseDistance(text string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
