package collector

import (
	"context"
	"fmt"
)

// loadMap opens the mission page and enters the embedded map frame.
func (c *Collector) loadMap(ctx context.Context) (Frame, error) {
	if err := c.session.Navigate(ctx, c.missionURL); err != nil {
		return nil, fatal("load map", fmt.Errorf("navigate to %s: %w", c.missionURL, err))
	}

	frame, err := c.session.EnterFrame(ctx, c.locators.Frame, c.timeouts.Frame)
	if err != nil {
		return nil, fatal("load map", fmt.Errorf("enter frame %s: %w", c.locators.Frame, err))
	}

	c.logger.Debug("Entered map frame", "frame", c.locators.Frame.String())
	return frame, nil
}
