// Package window turns per-instant constraint arrays into visibility
// windows: maximal runs of instants where no constraint is true.
package window

import (
	"time"

	"github.com/star/across/internal/errs"
)

// Boundary labels a window edge that touches the queried range.
const Boundary = "Window"

// Series is one constraint's per-instant result.
type Series struct {
	Label  string
	Values []bool
}

// Window is a contiguous visibility interval. Initial and Final name the
// constraint that was true just before it opened and just after it closed.
type Window struct {
	Begin   time.Time `json:"begin"`
	End     time.Time `json:"end"`
	Initial string    `json:"initial"`
	Final   string    `json:"final"`
}

// Duration returns End - Begin.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Begin)
}

// Interval is a closed [Begin, End] stretch of instants.
type Interval struct {
	Begin time.Time `json:"begin"`
	End   time.Time `json:"end"`
}

func validate(times []time.Time, series []Series) error {
	for _, s := range series {
		if len(s.Values) != len(times) {
			return errs.Input("series %s has %d values for %d instants", s.Label, len(s.Values), len(times))
		}
	}
	return nil
}

// Combine ORs the series elementwise.
func Combine(n int, series []Series) []bool {
	out := make([]bool, n)
	for _, s := range series {
		for i, v := range s.Values {
			out[i] = out[i] || v
		}
	}
	return out
}

// Synthesize returns the windows where no series is true. Series are given
// in label priority order: when several are true at an edge, the first wins.
//
// The range is treated as bounded by constraint on both sides, so windows
// never extend past times. A one-instant run mid-range yields a window with
// Begin == End; a final window of zero duration is dropped.
func Synthesize(times []time.Time, series []Series) ([]Window, error) {
	if err := validate(times, series); err != nil {
		return nil, err
	}
	n := len(times)
	blocked := Combine(n, series)

	label := func(i int) string {
		if i < 0 || i >= n {
			return Boundary
		}
		for _, s := range series {
			if s.Values[i] {
				return s.Label
			}
		}
		return Boundary
	}

	var windows []Window
	start := -1
	for i := 0; i < n; i++ {
		switch {
		case !blocked[i] && start < 0:
			start = i
		case blocked[i] && start >= 0:
			windows = append(windows, Window{
				Begin:   times[start],
				End:     times[i-1],
				Initial: label(start - 1),
				Final:   label(i),
			})
			start = -1
		}
	}
	if start >= 0 {
		w := Window{
			Begin:   times[start],
			End:     times[n-1],
			Initial: label(start - 1),
			Final:   Boundary,
		}
		if w.Duration() > 0 {
			windows = append(windows, w)
		}
	}
	return windows, nil
}

// Gaps returns the maximal runs where values is true.
func Gaps(times []time.Time, values []bool) ([]Interval, error) {
	if len(values) != len(times) {
		return nil, errs.Input("%d values for %d instants", len(values), len(times))
	}
	var out []Interval
	start := -1
	for i, v := range values {
		switch {
		case v && start < 0:
			start = i
		case !v && start >= 0:
			out = append(out, Interval{Begin: times[start], End: times[i-1]})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, Interval{Begin: times[start], End: times[len(times)-1]})
	}
	return out, nil
}
