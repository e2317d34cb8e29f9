package collector

import (
	"errors"
	"fmt"
)

// Kind classifies a collection error.
type Kind int

const (
	// Fatal aborts the run. No dataset is produced.
	Fatal Kind = iota
	// Recoverable skips the current waypoint marker only.
	Recoverable
)

func (k Kind) String() string {
	switch k {
	case Fatal:
		return "fatal"
	case Recoverable:
		return "recoverable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by every collection step.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fatal(op string, err error) error {
	var ce *Error
	if errors.As(err, &ce) && ce.Kind == Fatal {
		return err
	}
	return &Error{Kind: Fatal, Op: op, Err: err}
}

func recoverable(op string, err error) error {
	return &Error{Kind: Recoverable, Op: op, Err: err}
}

// IsFatal reports whether err aborts a run.
func IsFatal(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == Fatal
	}
	return err != nil
}

// IsRecoverable reports whether err only skips the current marker.
func IsRecoverable(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == Recoverable
}
