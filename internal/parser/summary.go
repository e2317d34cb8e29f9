package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmptyTarget is returned when the title element has no text.
var ErrEmptyTarget = errors.New("empty mission target")

// AnchorError reports a summary field whose anchor text was not found in the
// info block.
type AnchorError struct {
	Field  string
	Anchor string
}

func (e *AnchorError) Error() string {
	return fmt.Sprintf("summary field %s: anchor %q not found", e.Field, e.Anchor)
}

// anchor locates one summary field in the info block. literal must be present
// verbatim; re captures the value next to it.
type anchor struct {
	field   string
	literal string
	re      *regexp.Regexp
}

const decimal = `(\d[\d,]*(?:\.\d+)?)`

// Anchor text follows the phrasing of the mission page and must not be
// reworded.
var (
	solAnchor = anchor{
		field:   "sol",
		literal: "Sol ",
		re:      regexp.MustCompile(`Sol (\d+) `),
	}
	milesAnchor = anchor{
		field:   "distance_driven_miles",
		literal: "Distance Driven ",
		re:      regexp.MustCompile(`Distance Driven ` + decimal + ` miles `),
	}
	kmAnchor = anchor{
		field:   "distance_driven_km",
		literal: " km",
		re:      regexp.MustCompile(` ` + decimal + ` km`),
	}
)

func (a anchor) find(text string) (string, error) {
	if !strings.Contains(text, a.literal) {
		return "", &AnchorError{Field: a.field, Anchor: a.literal}
	}
	m := a.re.FindStringSubmatch(text)
	if m == nil {
		return "", &AnchorError{Field: a.field, Anchor: a.re.String()}
	}
	return m[1], nil
}

// Summary is the parsed header and info block of the mission map.
type Summary struct {
	Target              string
	Sol                 string
	DistanceDrivenMiles string
	DistanceDrivenKm    string
}

// ParseSummary parses the title text and the free-text info block.
// Any missing anchor fails the whole parse.
func ParseSummary(title, info string) (Summary, error) {
	target := strings.TrimSpace(title)
	if target == "" {
		return Summary{}, ErrEmptyTarget
	}

	// the info block wraps lines, flatten before matching
	flat := strings.Join(strings.Fields(info), " ") + " "

	sol, err := solAnchor.find(flat)
	if err != nil {
		return Summary{}, err
	}
	miles, err := milesAnchor.find(flat)
	if err != nil {
		return Summary{}, err
	}
	km, err := kmAnchor.find(flat)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Target:              target,
		Sol:                 sol,
		DistanceDrivenMiles: miles,
		DistanceDrivenKm:    km,
	}, nil
}
