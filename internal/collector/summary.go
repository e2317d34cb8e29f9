package collector

import (
	"context"
	"fmt"

	"github.com/OCAP2/roverwatch/internal/config"
	"github.com/OCAP2/roverwatch/internal/parser"
	"github.com/OCAP2/roverwatch/pkg/core"
)

// summaryKey is the key of the single mission summary record.
const summaryKey = 1

// extractSummary parses the title and info block and folds in the traversal
// counts. The visible count includes the current position.
func (c *Collector) extractSummary(ctx context.Context, frame Frame, t traversal) (core.MissionSummary, error) {
	title, err := c.readText(ctx, frame, c.locators.Title)
	if err != nil {
		return core.MissionSummary{}, fatal("extract summary", err)
	}
	info, err := c.readText(ctx, frame, c.locators.Info)
	if err != nil {
		return core.MissionSummary{}, fatal("extract summary", err)
	}

	s, err := parser.ParseSummary(title, info)
	if err != nil {
		return core.MissionSummary{}, fatal("extract summary", err)
	}

	return core.MissionSummary{
		Key:                 summaryKey,
		Target:              s.Target,
		Sol:                 s.Sol,
		DistanceDrivenMiles: s.DistanceDrivenMiles,
		DistanceDrivenKm:    s.DistanceDrivenKm,
		WaypointsTotal:      t.total,
		WaypointsVisible:    t.visible + 1,
	}, nil
}

func (c *Collector) readText(ctx context.Context, frame Frame, loc config.Locator) (string, error) {
	el, err := frame.WaitPresent(ctx, loc, c.timeouts.Presence)
	if err != nil {
		return "", fmt.Errorf("wait for %s: %w", loc, err)
	}
	text, err := el.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", loc, err)
	}
	return text, nil
}
