// Package ephem computes spacecraft ephemerides on a uniform time grid:
// SGP4 state vectors plus the derived geometry the constraint predicates
// need (sub-satellite point, Earth/Sun/Moon directions, Earth angular size).
package ephem

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/sky"
)

// Ephemeris holds per-instant arrays that all share the grid's indexing.
// Vectors are geocentric, mean equator and equinox of J2000.
type Ephemeris struct {
	Grid    TimeGrid
	NORADID int
	Name    string

	Timestamps []time.Time
	Position   []r3.Vec // km
	Velocity   []r3.Vec // km/s; nil unless requested
	Pole       []r3.Vec // orbit normal r×v; nil unless velocity requested

	Latitude  []float64 // deg, geodetic
	Longitude []float64 // deg, (-180, 180]
	Altitude  []float64 // km

	EarthDir  []r3.Vec
	EarthSize []float64 // angular radius, deg
	SunDir    []r3.Vec
	MoonDir   []r3.Vec

	// Stale is set when the elements were beyond the staleness threshold.
	Stale *errs.StaleDataError
}

// Len returns the number of instants.
func (e *Ephemeris) Len() int {
	return len(e.Timestamps)
}

// HasVelocity reports whether velocity-derived arrays are present.
func (e *Ephemeris) HasVelocity() bool {
	return e.Velocity != nil
}

// Index returns the index of the instant nearest to t.
func (e *Ephemeris) Index(t time.Time) (int, error) {
	return e.Grid.Index(t)
}

// Span returns the index range covering [begin, end].
func (e *Ephemeris) Span(begin, end time.Time) (Span, error) {
	return e.Grid.Span(begin, end)
}

// SpanAt returns the single-index span for the instant nearest t.
func (e *Ephemeris) SpanAt(t time.Time) (Span, error) {
	i, err := e.Index(t)
	if err != nil {
		return Span{}, err
	}
	return Span{Start: i, Stop: i + 1}, nil
}

// Slice returns a view of e restricted to s. The arrays share storage
// with e and must not be modified.
func (e *Ephemeris) Slice(s Span) *Ephemeris {
	out := &Ephemeris{
		Grid: TimeGrid{
			Begin: e.Timestamps[s.Start],
			End:   e.Timestamps[s.Stop-1],
			Step:  e.Grid.Step,
		},
		NORADID:    e.NORADID,
		Name:       e.Name,
		Timestamps: e.Timestamps[s.Start:s.Stop],
		Position:   e.Position[s.Start:s.Stop],
		Latitude:   e.Latitude[s.Start:s.Stop],
		Longitude:  e.Longitude[s.Start:s.Stop],
		Altitude:   e.Altitude[s.Start:s.Stop],
		EarthDir:   e.EarthDir[s.Start:s.Stop],
		EarthSize:  e.EarthSize[s.Start:s.Stop],
		SunDir:     e.SunDir[s.Start:s.Stop],
		MoonDir:    e.MoonDir[s.Start:s.Stop],
		Stale:      e.Stale,
	}
	if e.HasVelocity() {
		out.Velocity = e.Velocity[s.Start:s.Stop]
		out.Pole = e.Pole[s.Start:s.Stop]
	}
	return out
}

// Beta returns the Sun beta angle (elevation of the Sun above the orbit
// plane) in degrees over s. Requires velocity.
func (e *Ephemeris) Beta(s Span) ([]float64, error) {
	if !e.HasVelocity() {
		return nil, errs.Input("beta angle requires an ephemeris with velocity")
	}
	out := make([]float64, s.Len())
	for k := range out {
		i := s.Start + k
		out[k] = 90 - sky.Separation(e.Pole[i], e.SunDir[i])
	}
	return out, nil
}

// Eclipse reports, over s, whether the Sun's center is hidden by the Earth
// disc as seen from the spacecraft.
func (e *Ephemeris) Eclipse(s Span) []bool {
	out := make([]bool, s.Len())
	for k := range out {
		i := s.Start + k
		out[k] = sky.Separation(e.SunDir[i], e.EarthDir[i]) < e.EarthSize[i]
	}
	return out
}

// Sample is one ephemeris row in sky coordinates, for output.
type Sample struct {
	Time      time.Time
	Position  r3.Vec
	Velocity  r3.Vec
	Latitude  float64
	Longitude float64
	Altitude  float64
	Earth     sky.Coord
	EarthSize float64
	Sun       sky.Coord
	Moon      sky.Coord
	Beta      float64 // NaN without velocity
	Eclipse   bool
}

// Sample returns row i.
func (e *Ephemeris) Sample(i int) Sample {
	s := Sample{
		Time:      e.Timestamps[i],
		Position:  e.Position[i],
		Latitude:  e.Latitude[i],
		Longitude: e.Longitude[i],
		Altitude:  e.Altitude[i],
		Earth:     sky.FromVec(e.EarthDir[i]),
		EarthSize: e.EarthSize[i],
		Sun:       sky.FromVec(e.SunDir[i]),
		Moon:      sky.FromVec(e.MoonDir[i]),
		Beta:      math.NaN(),
		Eclipse:   e.Eclipse(Span{Start: i, Stop: i + 1})[0],
	}
	if e.HasVelocity() {
		s.Velocity = e.Velocity[i]
		s.Beta = 90 - sky.Separation(e.Pole[i], e.SunDir[i])
	}
	return s
}
