// Package parser turns the free text scraped from the mission map into
// typed values. Every function here is pure.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/OCAP2/roverwatch/pkg/core"
)

var (
	// ErrNoSol is returned when a sol label has no ": <digits>" run.
	ErrNoSol = errors.New("no sol in label")
	// ErrMalformedPair is returned when readout text is not two values separated by ", ".
	ErrMalformedPair = errors.New("malformed coordinate pair")
)

// pairSeparator separates the two values shown in the coordinate readout.
const pairSeparator = ", "

var solLabelRe = regexp.MustCompile(`: (\d+)`)

// ParseSol extracts the sol from the label of the in-focus waypoint,
// e.g. "Sol: 3412" -> "3412".
func ParseSol(label string) (string, error) {
	m := solLabelRe.FindStringSubmatch(label)
	if m == nil {
		return "", fmt.Errorf("parse sol from %q: %w", label, ErrNoSol)
	}
	return m[1], nil
}

// ParsePair splits readout text into its two values. The original numeric
// text is preserved.
func ParsePair(text string) (core.CoordinatePair, error) {
	parts := strings.Split(strings.TrimSpace(text), pairSeparator)
	if len(parts) != 2 {
		return core.CoordinatePair{}, fmt.Errorf("parse pair from %q: %w", text, ErrMalformedPair)
	}
	first, second := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if first == "" || second == "" {
		return core.CoordinatePair{}, fmt.Errorf("parse pair from %q: %w", text, ErrMalformedPair)
	}
	return core.CoordinatePair{First: first, Second: second}, nil
}
