package collector

import (
	"context"
	"errors"
	"time"

	"github.com/OCAP2/roverwatch/internal/config"
)

// Errors reported by Session implementations. The traversal treats
// ErrClickIntercepted on a waypoint marker as recoverable, everything else is
// fatal.
var (
	ErrClickIntercepted = errors.New("click intercepted by overlapping element")
	ErrTimeout          = errors.New("timed out waiting for element")
	ErrNotFound         = errors.New("element not found")
)

// Session drives one browser tab. It is owned by a single Collector for the
// duration of a run and is not safe for concurrent use.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// EnterFrame locates the embedded frame and returns a handle scoped to it.
	EnterFrame(ctx context.Context, loc config.Locator, timeout time.Duration) (Frame, error)
}

// Frame looks up elements inside the embedded map document.
type Frame interface {
	// WaitPresent waits until at least one element matches loc and returns the first.
	WaitPresent(ctx context.Context, loc config.Locator, timeout time.Duration) (Element, error)
	// Find returns the first match without waiting.
	Find(ctx context.Context, loc config.Locator) (Element, error)
	// FindAll returns every match in document order.
	FindAll(ctx context.Context, loc config.Locator) ([]Element, error)
}

// Element is one node of the map document.
type Element interface {
	// Visible reports whether the element is laid out and painted.
	Visible(ctx context.Context) (bool, error)
	WaitClickable(ctx context.Context, timeout time.Duration) error
	Click(ctx context.Context) error
	Text(ctx context.Context) (string, error)
}
