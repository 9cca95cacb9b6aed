package ephem

import (
	"math"
	"time"

	"github.com/star/across/internal/errs"
)

// TimeGrid is an evenly spaced sequence of instants from Begin, every Step,
// up to and including End when End falls on the grid.
type TimeGrid struct {
	Begin time.Time
	End   time.Time
	Step  time.Duration
}

// NewTimeGrid validates and returns a grid. Instants are normalized to UTC.
func NewTimeGrid(begin, end time.Time, step time.Duration) (TimeGrid, error) {
	g := TimeGrid{Begin: begin.UTC(), End: end.UTC(), Step: step}
	if err := g.Validate(); err != nil {
		return TimeGrid{}, err
	}
	return g, nil
}

// Validate checks begin <= end and step > 0.
func (g TimeGrid) Validate() error {
	if g.Begin.IsZero() || g.End.IsZero() {
		return errs.Input("time grid needs both begin and end")
	}
	if g.End.Before(g.Begin) {
		return errs.Input("end %s is before begin %s", g.End.Format(time.RFC3339), g.Begin.Format(time.RFC3339))
	}
	if g.Step <= 0 {
		return errs.Input("step %s must be positive", g.Step)
	}
	return nil
}

// Len returns floor((End-Begin)/Step) + 1.
func (g TimeGrid) Len() int {
	return int(g.End.Sub(g.Begin)/g.Step) + 1
}

// At returns the i-th instant.
func (g TimeGrid) At(i int) time.Time {
	return g.Begin.Add(time.Duration(i) * g.Step)
}

// Last returns the final instant, which may precede End.
func (g TimeGrid) Last() time.Time {
	return g.At(g.Len() - 1)
}

// Times materializes every instant.
func (g TimeGrid) Times() []time.Time {
	n := g.Len()
	times := make([]time.Time, n)
	for i := range times {
		times[i] = g.At(i)
	}
	return times
}

// Contains reports whether t lies in [Begin, End].
func (g TimeGrid) Contains(t time.Time) bool {
	return !t.Before(g.Begin) && !t.After(g.End)
}

// Index returns the index of the instant nearest to t.
func (g TimeGrid) Index(t time.Time) (int, error) {
	if !g.Contains(t) {
		return 0, errs.OutOfRange(t, g.Begin, g.End)
	}
	i := int(math.Round(float64(t.Sub(g.Begin)) / float64(g.Step)))
	return min(i, g.Len()-1), nil
}

// Span is a half-open index range [Start, Stop) into a grid.
type Span struct {
	Start, Stop int
}

// Len returns the number of indices in the span.
func (s Span) Len() int {
	return s.Stop - s.Start
}

// Span returns the indices of the instants within [begin, end]. The range
// must lie inside the grid's coverage and contain at least one instant.
func (g TimeGrid) Span(begin, end time.Time) (Span, error) {
	if end.Before(begin) {
		return Span{}, errs.Input("end %s is before begin %s", end.UTC().Format(time.RFC3339), begin.UTC().Format(time.RFC3339))
	}
	if !g.Contains(begin) {
		return Span{}, errs.OutOfRange(begin, g.Begin, g.End)
	}
	if !g.Contains(end) {
		return Span{}, errs.OutOfRange(end, g.Begin, g.End)
	}

	// ceil for the first instant at or after begin, floor for the last at or before end.
	startOff := begin.Sub(g.Begin)
	start := int(startOff / g.Step)
	if startOff%g.Step != 0 {
		start++
	}
	stop := min(int(end.Sub(g.Begin)/g.Step)+1, g.Len())

	if start >= stop {
		return Span{}, errs.Input("no grid instant within [%s, %s] at step %s",
			begin.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano), g.Step)
	}
	return Span{Start: start, Stop: stop}, nil
}

// DayRange widens [begin, end] to whole UTC days: midnight on begin's day
// through midnight after end's day. Ephemerides are computed per day range
// so that queries within the same days share one cache entry.
func DayRange(begin, end time.Time) (time.Time, time.Time) {
	b := begin.UTC().Truncate(24 * time.Hour)
	e := end.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	return b, e
}

// RoundTime rounds t to the nearest multiple of step (UTC).
func RoundTime(t time.Time, step time.Duration) time.Time {
	if step <= 0 {
		return t.UTC()
	}
	return t.UTC().Round(step)
}
