// Package transform converts SGP4 output between reference frames.
//
// SGP4 produces positions in TEME (True Equator Mean Equinox). Rotating by
// GMST about the Z axis gives a pseudo Earth-fixed frame (TEME → PEF ≈ ECEF),
// ignoring polar motion and the equation of the equinoxes. The resulting
// sub-satellite point is good to well under an arcminute, far finer than the
// SAA polygons it is tested against.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// TEMEToECEF rotates a TEME position (km) into the Earth-fixed frame at t.
func TEMEToECEF(pos r3.Vec, t time.Time) r3.Vec {
	return TEMEToECEFWithGMST(pos, GMST(t))
}

// TEMEToECEFWithGMST rotates a TEME position by R3(gmst). Units are preserved.
func TEMEToECEFWithGMST(pos r3.Vec, gmst float64) r3.Vec {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)
	return r3.Vec{
		X: pos.X*cosG + pos.Y*sinG,
		Y: -pos.X*sinG + pos.Y*cosG,
		Z: pos.Z,
	}
}

// EarthFixedVelocity rotates a TEME velocity (km/s) into the Earth-fixed
// frame and removes the Earth rotation term: v_ECEF = R3(θ)·v_TEME − ω × r_ECEF.
func EarthFixedVelocity(pos, vel r3.Vec, gmst float64) r3.Vec {
	r := TEMEToECEFWithGMST(pos, gmst)
	v := TEMEToECEFWithGMST(vel, gmst)
	return r3.Vec{
		X: v.X + OmegaEarth*r.Y,
		Y: v.Y - OmegaEarth*r.X,
		Z: v.Z,
	}
}

// ValidRadius reports whether a position magnitude (km) is physically
// reasonable for an Earth-orbiting spacecraft.
func ValidRadius(pos r3.Vec) bool {
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		return false
	}
	if math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return false
	}

	// LEO is ~6571-6971 km, GEO ~42164 km.
	const minRadius = 6200.0
	const maxRadius = 50000.0

	mag := r3.Norm(pos)
	return mag >= minRadius && mag <= maxRadius
}
