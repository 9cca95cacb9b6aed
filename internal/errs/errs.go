// Package errs defines the error taxonomy shared by the visibility core.
//
// Callers classify failures with errors.Is against the sentinels:
//
//	ErrInput       caller mistake (bad range, bad coordinates, missing target)
//	ErrOutOfRange  time outside ephemeris coverage (also matches ErrInput)
//	ErrStaleData   orbital elements older than the mission threshold
//	ErrComputation propagation produced a non-physical state
package errs

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInput       = errors.New("invalid input")
	ErrOutOfRange  = fmt.Errorf("%w: time outside ephemeris coverage", ErrInput)
	ErrStaleData   = errors.New("stale orbital elements")
	ErrComputation = errors.New("computation failed")
)

// Input returns an error wrapping ErrInput.
func Input(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInput, fmt.Sprintf(format, args...))
}

// Computation returns an error wrapping ErrComputation.
func Computation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrComputation, fmt.Sprintf(format, args...))
}

// OutOfRange reports that t is not covered by [begin, end].
func OutOfRange(t, begin, end time.Time) error {
	return fmt.Errorf("%w: %s not in [%s, %s]", ErrOutOfRange,
		t.UTC().Format(time.RFC3339Nano), begin.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
}

// StaleDataError describes orbital elements whose epoch is too far from the
// time they are being used at. It is a warning: results computed from stale
// elements are still returned, flagged with this error.
type StaleDataError struct {
	Epoch     time.Time
	At        time.Time
	Threshold time.Duration
}

// Age is the absolute distance between the element epoch and the use time.
func (e *StaleDataError) Age() time.Duration {
	d := e.At.Sub(e.Epoch)
	if d < 0 {
		d = -d
	}
	return d
}

func (e *StaleDataError) Error() string {
	return fmt.Sprintf("stale orbital elements: epoch %s is %.1f days from %s (threshold %.1f days)",
		e.Epoch.UTC().Format(time.RFC3339), e.Age().Hours()/24,
		e.At.UTC().Format(time.RFC3339), e.Threshold.Hours()/24)
}

func (e *StaleDataError) Is(target error) bool {
	return target == ErrStaleData
}
