package collector

import (
	"context"
	"fmt"

	"github.com/OCAP2/roverwatch/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// State is a step of a collection run.
type State int

const (
	StateInit State = iota
	StateMapReady
	StateCandidate
	StateSkippedHidden
	StateClickPending
	StateExtractedAppended
	StateClickRejectedSkipped
	StateCurrentPosition
	StateSummary
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateInit:                 "init",
	StateMapReady:             "map_ready",
	StateCandidate:            "candidate",
	StateSkippedHidden:        "skipped_hidden",
	StateClickPending:         "click_pending",
	StateExtractedAppended:    "extracted_appended",
	StateClickRejectedSkipped: "click_rejected_skipped",
	StateCurrentPosition:      "current_position",
	StateSummary:              "summary",
	StateDone:                 "done",
	StateFailed:               "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Observer is notified of every state transition. marker is the 1-based
// document index of the waypoint marker, or 0 for run-level states.
type Observer func(marker int, s State)

// traversal holds the counters of one pass over the waypoint markers.
type traversal struct {
	total   int
	visible int
	skipped int
}

func (c *Collector) enter(marker int, s State) {
	if c.observer != nil {
		c.observer(marker, s)
	}
}

// traverse visits every marker in document order and appends one record per
// successfully clicked marker. Keys are the 1-based count of clicked markers.
func (c *Collector) traverse(ctx context.Context, frame Frame, ds *core.Dataset) (traversal, error) {
	var t traversal

	markers, err := c.locateWaypoints(ctx, frame)
	if err != nil {
		return t, err
	}
	t.total = len(markers)
	c.metrics.total.Add(ctx, int64(t.total))
	c.logger.Info("Located waypoint markers", "total", t.total)

	for _, m := range markers {
		if err := ctx.Err(); err != nil {
			return t, fatal("traverse", err)
		}

		c.enter(m.index, StateCandidate)
		if !m.visible {
			c.enter(m.index, StateSkippedHidden)
			c.metrics.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "hidden")))
			continue
		}

		c.enter(m.index, StateClickPending)
		err := c.clickMarker(ctx, m)
		if IsRecoverable(err) {
			c.enter(m.index, StateClickRejectedSkipped)
			c.metrics.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "intercepted")))
			c.logger.Warn("Skipping a waypoint", "marker", m.index, "error", err)
			t.skipped++
			continue
		}
		if err != nil {
			return t, err
		}

		t.visible++
		c.metrics.visible.Add(ctx, 1)

		record, err := c.collectWaypoint(ctx, frame, t.visible)
		if err != nil {
			return t, err
		}
		if err := ds.AppendWaypoint(record); err != nil {
			return t, fatal("traverse", err)
		}
		c.enter(m.index, StateExtractedAppended)
		c.logger.Debug("Collected waypoint", "marker", m.index, "key", record.Key, "sol", record.Sol)
	}

	return t, nil
}

// clickMarker waits for a marker to become clickable and clicks it. An
// intercepted click is the only recoverable failure of a run.
func (c *Collector) clickMarker(ctx context.Context, m marker) error {
	if err := m.el.WaitClickable(ctx, c.timeouts.Click); err != nil {
		return fatal("click marker", fmt.Errorf("marker %d: %w", m.index, err))
	}
	if err := m.el.Click(ctx); err != nil {
		if isIntercepted(err) {
			return recoverable("click marker", fmt.Errorf("marker %d: %w", m.index, err))
		}
		return fatal("click marker", fmt.Errorf("marker %d: %w", m.index, err))
	}
	return nil
}

// collectWaypoint reads the sol and the three readout pairs for the waypoint
// in focus.
func (c *Collector) collectWaypoint(ctx context.Context, frame Frame, key int) (core.WaypointRecord, error) {
	sol, err := c.resolveSol(ctx, frame)
	if err != nil {
		return core.WaypointRecord{}, err
	}
	pos, err := c.extractPosition(ctx, frame)
	if err != nil {
		return core.WaypointRecord{}, err
	}
	return waypointRecord(key, sol, pos), nil
}
