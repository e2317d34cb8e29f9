package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/OCAP2/roverwatch/internal/parser"
	"github.com/OCAP2/roverwatch/pkg/core"
)

// ErrReadoutStuck is returned when a click on the readout host does not
// switch it to the next representation.
var ErrReadoutStuck = errors.New("readout did not toggle")

// readoutPhase is the representation the coordinate readout shows. The map
// reuses one floating element and advances it one phase per click on the
// readout host.
type readoutPhase int

const (
	phaseLngLat readoutPhase = iota
	phaseEastingNorthing
	phaseRelative
	phaseDone
)

func (p readoutPhase) String() string {
	switch p {
	case phaseLngLat:
		return "longitude/latitude"
	case phaseEastingNorthing:
		return "easting/northing"
	case phaseRelative:
		return "x/y relative"
	default:
		return "done"
	}
}

func (p readoutPhase) next() readoutPhase {
	if p >= phaseDone {
		return phaseDone
	}
	return p + 1
}

// position is the three pairs read from the readout, indexed by phase.
type position [phaseDone]core.CoordinatePair

// extractPosition runs the three-click toggle against the readout host. The
// host is waited on once, before the first click.
func (c *Collector) extractPosition(ctx context.Context, frame Frame) (position, error) {
	var pos position

	host, err := frame.Find(ctx, c.locators.ReadoutHost)
	if err != nil {
		return pos, fatal("extract position", fmt.Errorf("find %s: %w", c.locators.ReadoutHost, err))
	}
	if err := host.WaitClickable(ctx, c.timeouts.Click); err != nil {
		return pos, fatal("extract position", fmt.Errorf("wait for %s: %w", c.locators.ReadoutHost, err))
	}

	for phase := phaseLngLat; phase < phaseDone; phase = phase.next() {
		pair, err := c.readPhase(ctx, frame, host, phase)
		if err != nil {
			return pos, fatal("extract position", err)
		}
		for prev := phaseLngLat; prev < phase; prev++ {
			if pos[prev] == pair {
				return pos, fatal("extract position", fmt.Errorf("%s reads %q like %s: %w", phase, pair, prev, ErrReadoutStuck))
			}
		}
		pos[phase] = pair
	}
	return pos, nil
}

func (c *Collector) readPhase(ctx context.Context, frame Frame, host Element, phase readoutPhase) (core.CoordinatePair, error) {
	if err := host.Click(ctx); err != nil {
		return core.CoordinatePair{}, fmt.Errorf("click %s for %s: %w", c.locators.ReadoutHost, phase, err)
	}
	readout, err := frame.Find(ctx, c.locators.ReadoutText)
	if err != nil {
		return core.CoordinatePair{}, fmt.Errorf("find %s for %s: %w", c.locators.ReadoutText, phase, err)
	}
	text, err := readout.Text(ctx)
	if err != nil {
		return core.CoordinatePair{}, fmt.Errorf("read %s for %s: %w", c.locators.ReadoutText, phase, err)
	}
	pair, err := parser.ParsePair(text)
	if err != nil {
		return core.CoordinatePair{}, fmt.Errorf("%s: %w", phase, err)
	}
	return pair, nil
}

// waypointRecord builds the record for one resolved waypoint.
func waypointRecord(key int, sol string, pos position) core.WaypointRecord {
	return core.NewWaypointRecord(key, sol, pos[phaseLngLat], pos[phaseEastingNorthing], pos[phaseRelative])
}
