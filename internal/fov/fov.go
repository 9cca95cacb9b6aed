// Package fov integrates target probability inside an instrument field of
// view, excluding directions hidden behind the Earth.
package fov

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/across/internal/constraint"
	"github.com/star/across/internal/ephem"
	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/healpix"
	"github.com/star/across/internal/metrics"
	"github.com/star/across/internal/pointing"
	"github.com/star/across/internal/sky"
)

const (
	DefaultNSide = 512
	// DefaultPointTolerance is 5 arcmin: smaller error circles are treated
	// as point sources.
	DefaultPointTolerance = 5.0 / 60
)

// Target is what to look for: a single position, a position with a 1σ
// error radius in degrees, or a probability map.
type Target struct {
	Coords      []sky.Coord
	ErrorRadius float64
	Map         *healpix.Map
}

// Validate checks that exactly one kind of target is given.
func (t Target) Validate() error {
	switch {
	case t.Map != nil && len(t.Coords) > 0:
		return errs.Input("give either coordinates or a HEALPix map, not both")
	case t.Map != nil:
		return t.Map.Validate()
	case len(t.Coords) == 0:
		return errs.Input("no target: need a position, a position with error radius, or a HEALPix map")
	case len(t.Coords) > 1:
		return errs.Input("%d positions given where one is required", len(t.Coords))
	case t.ErrorRadius < 0 || math.IsNaN(t.ErrorRadius):
		return errs.Input("error radius %v must be non-negative", t.ErrorRadius)
	}
	return t.Coords[0].Validate()
}

// Checker computes in-FOV probability.
type Checker struct {
	// Earth is the occultation test; nil disables it.
	Earth          *constraint.EarthLimb
	Footprint      Footprint
	NSide          int
	PointTolerance float64 // deg
}

// NewChecker returns a Checker with default resolution and tolerance.
func NewChecker(earth *constraint.EarthLimb, fp Footprint) *Checker {
	if fp == nil {
		fp = AllSky{}
	}
	return &Checker{
		Earth:          earth,
		Footprint:      fp,
		NSide:          DefaultNSide,
		PointTolerance: DefaultPointTolerance,
	}
}

// ProbabilityInFOV returns the fraction of target probability visible at
// the ephemeris instant nearest t with the spacecraft at p. Point sources
// give exactly 0 or 1. Maps are evaluated at pixel centers; the result is
// clamped to [0, 1] and rounded to 5 decimals.
func (c *Checker) ProbabilityInFOV(eph *ephem.Ephemeris, t time.Time, target Target, p pointing.Pointing) (float64, error) {
	if err := target.Validate(); err != nil {
		return 0, err
	}
	i, err := eph.Index(t)
	if err != nil {
		return 0, err
	}
	if !p.Observing {
		return 0, nil
	}

	switch {
	case target.Map != nil:
		dirs, probs, err := target.Map.Pixels()
		if err != nil {
			return 0, err
		}
		return c.integrate(eph, i, p, dirs, probs), nil

	case target.ErrorRadius >= c.PointTolerance && target.ErrorRadius > 0:
		s, err := healpix.GaussianCircle(target.Coords[0].Vec(), target.ErrorRadius, c.NSide)
		if err != nil {
			return 0, err
		}
		return c.integrate(eph, i, p, s.Dirs, s.Probs), nil

	default:
		if c.visible(eph, i, p, []r3.Vec{target.Coords[0].Vec()})[0] {
			return 1, nil
		}
		return 0, nil
	}
}

func (c *Checker) visible(eph *ephem.Ephemeris, i int, p pointing.Pointing, dirs []r3.Vec) []bool {
	in := c.Footprint.Contains(p, dirs)
	if c.Earth != nil {
		occ := c.Earth.Occulted(eph, i, dirs)
		for k := range in {
			in[k] = in[k] && !occ[k]
		}
	}
	return in
}

func (c *Checker) integrate(eph *ephem.Ephemeris, i int, p pointing.Pointing, dirs []r3.Vec, probs []float64) float64 {
	metrics.ObserveFOVPixels(len(dirs))
	in := c.visible(eph, i, p, dirs)
	var sum float64
	for k, ok := range in {
		if ok {
			sum += probs[k]
		}
	}
	sum = math.Max(0, math.Min(1, sum))
	return math.Round(sum*1e5) / 1e5
}

// Point is one step of a FOV check.
type Point struct {
	pointing.Pointing
	Probability float64 `json:"probability"`
	InFOV       bool    `json:"infov"`
}

// Check evaluates target at each pointing the provider returns for
// [begin, end] at the ephemeris step.
func (c *Checker) Check(ctx context.Context, eph *ephem.Ephemeris, begin, end time.Time, target Target, provider pointing.Provider) ([]Point, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	pointings, err := provider.Pointings(ctx, begin, end, eph.Grid.Step)
	if err != nil {
		return nil, err
	}

	out := make([]Point, 0, len(pointings))
	for _, p := range pointings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prob, err := c.ProbabilityInFOV(eph, p.Time, target, p)
		if err != nil {
			return nil, err
		}
		out = append(out, Point{Pointing: p, Probability: prob, InFOV: prob > 0})
	}
	return out, nil
}
