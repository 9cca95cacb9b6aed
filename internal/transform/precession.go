package transform

import (
	"math"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/precess"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	xAxis = r3.Vec{X: 1}
	yAxis = r3.Vec{Y: 1}
	zAxis = r3.Vec{Z: 1}
)

// Frames rotates vectors from the frames of date at one instant into the
// mean equator and equinox of J2000, using IAU 1976 precession and IAU 1980
// nutation. Frame-tie and polar-motion terms are ignored.
type Frames struct {
	mod  *r3.Mat // mean equator and equinox of date
	tod  *r3.Mat // true equator and equinox of date
	teme *r3.Mat // true equator, mean equinox of date
}

// NewFrames builds the rotations for the Julian Ephemeris Day jde.
func NewFrames(jde float64) Frames {
	p := precess.NewPrecessor(base.JDEToJulianYear(jde), 2000)
	mean := func(v r3.Vec) r3.Vec {
		n := r3.Norm(v)
		eq := coord.Equatorial{
			RA:  unit.RAFromRad(math.Atan2(v.Y, v.X)),
			Dec: unit.Angle(math.Asin(v.Z / n)),
		}
		p.Precess(&eq, &eq)
		sd, cd := eq.Dec.Sincos()
		sa, ca := unit.Angle(eq.RA).Sincos()
		return r3.Vec{X: n * cd * ca, Y: n * cd * sa, Z: n * sd}
	}

	dpsi, deps := nutation.Nutation(jde)
	epsMean := nutation.MeanObliquity(jde)
	epsTrue := epsMean + deps
	// r_mean = R1(−ε̄)·R3(Δψ)·R1(ε)·r_true, frame rotations.
	trueToMean := func(v r3.Vec) r3.Vec {
		v = r3.Rotate(v, -epsTrue.Rad(), xAxis)
		v = r3.Rotate(v, -dpsi.Rad(), zAxis)
		return r3.Rotate(v, epsMean.Rad(), xAxis)
	}
	// TEME differs from true of date by the equation of the equinoxes.
	eqe := dpsi.Rad() * epsMean.Cos()

	return Frames{
		mod:  matrix(mean),
		tod:  matrix(func(v r3.Vec) r3.Vec { return mean(trueToMean(v)) }),
		teme: matrix(func(v r3.Vec) r3.Vec { return mean(trueToMean(r3.Rotate(v, eqe, zAxis))) }),
	}
}

// matrix returns the matrix of the linear map f.
func matrix(f func(r3.Vec) r3.Vec) *r3.Mat {
	x, y, z := f(xAxis), f(yAxis), f(zAxis)
	return r3.NewMat([]float64{
		x.X, y.X, z.X,
		x.Y, y.Y, z.Y,
		x.Z, y.Z, z.Z,
	})
}

// MeanToJ2000 rotates a mean-of-date vector to J2000.
func (f Frames) MeanToJ2000(v r3.Vec) r3.Vec { return f.mod.MulVec(v) }

// TrueToJ2000 rotates a true-of-date vector to J2000.
func (f Frames) TrueToJ2000(v r3.Vec) r3.Vec { return f.tod.MulVec(v) }

// TEMEToJ2000 rotates an SGP4 TEME vector to J2000.
func (f Frames) TEMEToJ2000(v r3.Vec) r3.Vec { return f.teme.MulVec(v) }
