// Package collector drives the mission map and assembles the waypoint
// dataset of one run.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/roverwatch/internal/config"
	"github.com/OCAP2/roverwatch/pkg/core"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Options configures a Collector.
type Options struct {
	MissionURL string
	Locators   config.Locators
	Timeouts   config.Timeouts
	RunID      string

	Logger   *slog.Logger
	Meter    metric.Meter
	Observer Observer
	// Now defaults to time.Now.
	Now func() time.Time
}

type metrics struct {
	total   metric.Int64Counter
	visible metric.Int64Counter
	skipped metric.Int64Counter
}

func newMetrics(m metric.Meter) (*metrics, error) {
	total, err := m.Int64Counter("roverwatch.waypoints.total",
		metric.WithDescription("Waypoint markers found on the map"))
	if err != nil {
		return nil, err
	}
	visible, err := m.Int64Counter("roverwatch.waypoints.visible",
		metric.WithDescription("Waypoint markers clicked and collected"))
	if err != nil {
		return nil, err
	}
	skipped, err := m.Int64Counter("roverwatch.waypoints.skipped",
		metric.WithDescription("Waypoint markers skipped, by reason"))
	if err != nil {
		return nil, err
	}
	return &metrics{total: total, visible: visible, skipped: skipped}, nil
}

// Collector runs the traversal and extraction protocol against one Session.
type Collector struct {
	session    Session
	missionURL string
	locators   config.Locators
	timeouts   config.Timeouts
	runID      string

	logger   *slog.Logger
	metrics  *metrics
	observer Observer
	now      func() time.Time
}

// New creates a Collector that owns session for the duration of each Run.
func New(session Session, opts Options) (*Collector, error) {
	if session == nil {
		return nil, errors.New("collector: nil session")
	}
	if opts.MissionURL == "" {
		return nil, errors.New("collector: mission url is required")
	}
	if err := opts.Locators.Validate(); err != nil {
		return nil, fmt.Errorf("collector: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	meter := opts.Meter
	if meter == nil {
		meter = noop.Meter{}
	}
	m, err := newMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("collector: create metrics: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Collector{
		session:    session,
		missionURL: opts.MissionURL,
		locators:   opts.Locators,
		timeouts:   opts.Timeouts,
		runID:      opts.RunID,
		logger:     logger.With("component", "collector"),
		metrics:    m,
		observer:   opts.Observer,
		now:        now,
	}, nil
}

// Run collects one dataset. Any fatal error aborts the run and no dataset is
// returned; the caller is responsible for closing the browser session.
func (c *Collector) Run(ctx context.Context) (*core.Dataset, error) {
	ds, err := c.run(ctx)
	if err != nil {
		c.enter(0, StateFailed)
		c.logger.Error("Collection run failed", "error", err)
		return nil, err
	}
	c.enter(0, StateDone)
	return ds, nil
}

func (c *Collector) run(ctx context.Context) (*core.Dataset, error) {
	started := c.now()
	c.enter(0, StateInit)

	frame, err := c.loadMap(ctx)
	if err != nil {
		return nil, err
	}
	c.enter(0, StateMapReady)

	ds := core.NewDataset(c.runID, c.missionURL, started)

	t, err := c.traverse(ctx, frame, ds)
	if err != nil {
		return nil, err
	}

	c.enter(0, StateCurrentPosition)
	current, err := c.resolveCurrentPosition(ctx, frame, t.visible+1)
	if err != nil {
		return nil, err
	}
	if err := ds.SetCurrentPosition(current); err != nil {
		return nil, fatal("resolve current position", err)
	}

	c.enter(0, StateSummary)
	summary, err := c.extractSummary(ctx, frame, t)
	if err != nil {
		return nil, err
	}
	if err := ds.SetSummary(summary); err != nil {
		return nil, fatal("extract summary", err)
	}

	if err := ds.Seal(c.now()); err != nil {
		return nil, fatal("assemble dataset", err)
	}

	c.logger.Info("Collection run complete",
		"total", t.total,
		"visible", t.visible,
		"skipped", t.skipped,
		"duration", c.now().Sub(started),
	)
	return ds, nil
}

func isIntercepted(err error) bool {
	return errors.Is(err, ErrClickIntercepted)
}
