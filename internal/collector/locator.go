package collector

import (
	"context"
	"fmt"
)

// marker is one waypoint path element in document order.
type marker struct {
	index   int
	el      Element
	visible bool
}

// locateWaypoints returns every waypoint marker in the frame, rendered or not.
// The map virtualises large waypoint sets, so only some markers are painted.
func (c *Collector) locateWaypoints(ctx context.Context, frame Frame) ([]marker, error) {
	if _, err := frame.WaitPresent(ctx, c.locators.Waypoint, c.timeouts.Click); err != nil {
		return nil, fatal("locate waypoints", fmt.Errorf("wait for %s: %w", c.locators.Waypoint, err))
	}

	els, err := frame.FindAll(ctx, c.locators.Waypoint)
	if err != nil {
		return nil, fatal("locate waypoints", fmt.Errorf("find %s: %w", c.locators.Waypoint, err))
	}

	markers := make([]marker, 0, len(els))
	for i, el := range els {
		visible, err := el.Visible(ctx)
		if err != nil {
			return nil, fatal("locate waypoints", fmt.Errorf("visibility of marker %d: %w", i+1, err))
		}
		markers = append(markers, marker{index: i + 1, el: el, visible: visible})
	}
	return markers, nil
}
