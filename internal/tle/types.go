package tle

import (
	"strings"
	"time"

	"github.com/star/across/internal/errs"
)

// Elements is a single satellite's two-line element set. Immutable once parsed.
type Elements struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// Validate checks the fixed format of both element lines: length, line
// numbers, matching catalog numbers, checksums and every numeric field SGP4
// reads. Failures wrap errs.ErrInput.
func (e Elements) Validate() error {
	l1 := strings.TrimSpace(e.Line1)
	l2 := strings.TrimSpace(e.Line2)
	if l1 == "" || l2 == "" {
		return errs.Input("orbital elements for %q are empty", e.Name)
	}
	return checkLines(l1, l2)
}

// Age returns how far at is from the element epoch, always non-negative.
func (e Elements) Age(at time.Time) time.Duration {
	d := at.Sub(e.Epoch)
	if d < 0 {
		return -d
	}
	return d
}

// CheckStale returns a *errs.StaleDataError when the elements are further
// than threshold from at. A non-positive threshold disables the check.
func (e Elements) CheckStale(at time.Time, threshold time.Duration) error {
	if threshold <= 0 || e.Age(at) <= threshold {
		return nil
	}
	return &errs.StaleDataError{Epoch: e.Epoch, At: at, Threshold: threshold}
}
