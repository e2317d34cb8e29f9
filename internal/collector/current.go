package collector

import (
	"context"
	"fmt"

	"github.com/OCAP2/roverwatch/pkg/core"
)

// resolveCurrentPosition clicks the rover's current-position icon and reads
// it like a waypoint. Its key follows the last traversed waypoint.
func (c *Collector) resolveCurrentPosition(ctx context.Context, frame Frame, key int) (core.WaypointRecord, error) {
	icon, err := frame.WaitPresent(ctx, c.locators.CurrentPosition, c.timeouts.Click)
	if err != nil {
		return core.WaypointRecord{}, fatal("resolve current position", fmt.Errorf("wait for %s: %w", c.locators.CurrentPosition, err))
	}
	if err := icon.WaitClickable(ctx, c.timeouts.Click); err != nil {
		return core.WaypointRecord{}, fatal("resolve current position", fmt.Errorf("wait for %s: %w", c.locators.CurrentPosition, err))
	}
	if err := icon.Click(ctx); err != nil {
		return core.WaypointRecord{}, fatal("resolve current position", fmt.Errorf("click %s: %w", c.locators.CurrentPosition, err))
	}

	return c.collectWaypoint(ctx, frame, key)
}
