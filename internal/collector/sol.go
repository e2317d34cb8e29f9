package collector

import (
	"context"
	"fmt"

	"github.com/OCAP2/roverwatch/internal/parser"
)

// resolveSol reads the sol of the waypoint currently in focus.
func (c *Collector) resolveSol(ctx context.Context, frame Frame) (string, error) {
	label, err := frame.WaitPresent(ctx, c.locators.SolLabel, c.timeouts.Presence)
	if err != nil {
		return "", fatal("resolve sol", fmt.Errorf("wait for %s: %w", c.locators.SolLabel, err))
	}
	text, err := label.Text(ctx)
	if err != nil {
		return "", fatal("resolve sol", fmt.Errorf("read %s: %w", c.locators.SolLabel, err))
	}
	sol, err := parser.ParseSol(text)
	if err != nil {
		return "", fatal("resolve sol", err)
	}
	return sol, nil
}
