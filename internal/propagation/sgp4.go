package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/tle"
	"github.com/star/across/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Note: Propagate() takes Satellite by value so SGP4 error codes are not visible
// to the caller. We detect propagation failures by checking output for NaN/Inf
// and unreasonable position magnitudes. It also only accepts whole seconds;
// sub-second instants are reached by a first-order step from the whole second.

// SGP4Propagator wraps the go-satellite library for a single element set.
// Safe for concurrent use: Propagate works on a copy of the satellite record.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
}

// NewSGP4Propagator creates an SGP4 propagator from an element set.
//
// Pre-validates TLE format before passing to the library, because go-satellite
// calls log.Fatal on malformed input (which would kill the process).
func NewSGP4Propagator(e tle.Elements) (*SGP4Propagator, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", e.NORADID, err)
	}

	sat := satellite.TLEToSat(strings.TrimSpace(e.Line1), strings.TrimSpace(e.Line2), satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, errs.Computation("sgp4 init failed for NORAD %d: code=%d %s", e.NORADID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: e.NORADID}, nil
}

// NORADID returns the catalog number of the propagated satellite.
func (p *SGP4Propagator) NORADID() int {
	return p.noradID
}

// State computes the TEME position (km) and velocity (km/s) at t.
func (p *SGP4Propagator) State(t time.Time) (State, error) {
	t = t.UTC()
	whole := t.Truncate(time.Second)
	pos, vel := satellite.Propagate(p.sat, whole.Year(), int(whole.Month()), whole.Day(), whole.Hour(), whole.Minute(), whole.Second())

	s := State{
		Position: r3.Vec{X: pos.X, Y: pos.Y, Z: pos.Z},
		Velocity: r3.Vec{X: vel.X, Y: vel.Y, Z: vel.Z},
	}
	if frac := t.Sub(whole).Seconds(); frac > 0 {
		s.Position = r3.Add(s.Position, r3.Scale(frac, s.Velocity))
	}

	if math.IsNaN(s.Velocity.X) || math.IsNaN(s.Velocity.Y) || math.IsNaN(s.Velocity.Z) {
		return State{}, errs.Computation("sgp4 propagation failed for NORAD %d at %s: velocity is NaN",
			p.noradID, t.Format(time.RFC3339))
	}

	// Position magnitude should be between ~6200km and ~50000km.
	if !transform.ValidRadius(s.Position) {
		return State{}, errs.Computation("sgp4 propagation failed for NORAD %d at %s: unreasonable position magnitude %.1f km",
			p.noradID, t.Format(time.RFC3339), r3.Norm(s.Position))
	}

	return s, nil
}
