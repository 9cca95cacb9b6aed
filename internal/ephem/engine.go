package ephem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/metrics"
	"github.com/star/across/internal/propagation"
	"github.com/star/across/internal/tle"
	"github.com/star/across/internal/transform"
)

// EarthRadiusKm is the equatorial radius used for the Earth's angular size.
const EarthRadiusKm = 6378.137

// Options control what Compute derives.
type Options struct {
	Velocity bool // keep velocity and derive the orbit pole
	Parallax bool // Sun/Moon directions from the spacecraft rather than geocenter
	Apparent bool // apparent (aberration + nutation) rather than true Sun/Moon positions

	// EarthRadiusDeg pins the Earth's angular radius; 0 derives it from altitude.
	EarthRadiusDeg float64

	// StaleAfter is the maximum |grid begin − element epoch|; 0 disables the check.
	StaleAfter time.Duration
	// RejectStale turns the stale warning into a returned error.
	RejectStale bool
}

// Engine computes ephemerides. Safe for concurrent use.
type Engine struct {
	pool   *propagation.WorkerPool
	props  *propagation.Cache
	logger *slog.Logger
}

// NewEngine creates an Engine that propagates on pool.
func NewEngine(pool *propagation.WorkerPool, logger *slog.Logger) *Engine {
	return &Engine{
		pool:   pool,
		props:  propagation.NewCache(64),
		logger: logger,
	}
}

// Compute propagates elements over grid and derives the ephemeris arrays.
//
// Invalid grids and elements fail with errs.ErrInput before any propagation.
// Stale elements produce a result with Ephemeris.Stale set (or an error when
// opts.RejectStale). A non-physical propagated state fails with
// errs.ErrComputation.
func (e *Engine) Compute(ctx context.Context, elements tle.Elements, grid TimeGrid, opts Options) (*Ephemeris, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if err := elements.Validate(); err != nil {
		return nil, err
	}
	if opts.EarthRadiusDeg < 0 || opts.EarthRadiusDeg >= 90 {
		return nil, errs.Input("earth radius %.3f deg outside [0, 90)", opts.EarthRadiusDeg)
	}

	label := elements.Name
	if label == "" {
		label = strconv.Itoa(elements.NORADID)
	}

	var stale *errs.StaleDataError
	if err := elements.CheckStale(grid.Begin, opts.StaleAfter); err != nil {
		if opts.RejectStale {
			return nil, err
		}
		if !errors.As(err, &stale) {
			return nil, err
		}
		metrics.IncStaleElements(label)
		e.logger.Warn("using stale orbital elements",
			"satellite", label,
			"epoch", elements.Epoch.Format(time.RFC3339),
			"age_days", stale.Age().Hours()/24,
			"threshold_days", opts.StaleAfter.Hours()/24,
		)
	}

	prop, err := e.props.Get(elements)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	times := grid.Times()
	states, err := e.pool.PropagateGrid(ctx, prop, times)
	if err != nil {
		return nil, fmt.Errorf("propagating %s: %w", label, err)
	}

	eph := derive(grid, times, states, opts)
	eph.NORADID = elements.NORADID
	eph.Name = elements.Name
	eph.Stale = stale

	duration := time.Since(start)
	metrics.ObserveEphemeris(label, duration, len(times))
	e.logger.Debug("ephemeris computed",
		"satellite", label,
		"begin", grid.Begin.Format(time.RFC3339),
		"end", grid.End.Format(time.RFC3339),
		"step_seconds", grid.Step.Seconds(),
		"points", len(times),
		"workers", e.pool.Workers(),
		"propagators", e.props.Len(),
		"duration_ms", duration.Milliseconds(),
	)
	return eph, nil
}

// derive fills the geometry arrays from propagated states. Vectors are
// rotated to J2000; the sub-satellite point uses the TEME position.
func derive(grid TimeGrid, times []time.Time, states []propagation.State, opts Options) *Ephemeris {
	n := len(times)
	eph := &Ephemeris{
		Grid:       grid,
		Timestamps: times,
		Position:   make([]r3.Vec, n),
		Latitude:   make([]float64, n),
		Longitude:  make([]float64, n),
		Altitude:   make([]float64, n),
		EarthDir:   make([]r3.Vec, n),
		EarthSize:  make([]float64, n),
		SunDir:     make([]r3.Vec, n),
		MoonDir:    make([]r3.Vec, n),
	}
	if opts.Velocity {
		eph.Velocity = make([]r3.Vec, n)
		eph.Pole = make([]r3.Vec, n)
	}

	for i, t := range times {
		frames := transform.NewFrames(jde(t))
		pos := frames.TEMEToJ2000(states[i].Position)
		eph.Position[i] = pos

		gp := transform.SubSatellitePoint(states[i].Position, t)
		eph.Latitude[i] = gp.LatDeg
		eph.Longitude[i] = gp.LonDeg
		eph.Altitude[i] = gp.AltKm

		dist := r3.Norm(pos)
		eph.EarthDir[i] = r3.Scale(-1/dist, pos)
		if opts.EarthRadiusDeg > 0 {
			eph.EarthSize[i] = opts.EarthRadiusDeg
		} else {
			eph.EarthSize[i] = math.Asin(EarthRadiusKm/dist) * 180 / math.Pi
		}

		sun := SunPosition(t, opts.Apparent)
		moon := MoonPosition(t, opts.Apparent)
		if opts.Apparent {
			sun, moon = frames.TrueToJ2000(sun), frames.TrueToJ2000(moon)
		} else {
			sun, moon = frames.MeanToJ2000(sun), frames.MeanToJ2000(moon)
		}
		if opts.Parallax {
			sun = r3.Sub(sun, pos)
			moon = r3.Sub(moon, pos)
		}
		eph.SunDir[i] = r3.Unit(sun)
		eph.MoonDir[i] = r3.Unit(moon)

		if opts.Velocity {
			vel := frames.TEMEToJ2000(states[i].Velocity)
			eph.Velocity[i] = vel
			eph.Pole[i] = r3.Unit(r3.Cross(pos, vel))
		}
	}
	return eph
}
