package ephem

import (
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// ttMinusUTC is TT−UTC: 32.184 s plus the 37 leap seconds in force since 2017.
	ttMinusUTC = 69.184

	auKm = 149597870.7
)

// jde converts a UTC instant to a Julian Ephemeris Day.
func jde(t time.Time) float64 {
	return julian.TimeToJD(t.UTC()) + ttMinusUTC/86400
}

func equatorialVec(ra unit.RA, dec unit.Angle, dist float64) r3.Vec {
	cd := dec.Cos()
	a := unit.Angle(ra)
	return r3.Vec{X: dist * cd * a.Cos(), Y: dist * cd * a.Sin(), Z: dist * dec.Sin()}
}

// SunPosition returns the geocentric Sun vector in km, equator and equinox
// of date. With apparent set, aberration and nutation are included.
func SunPosition(t time.Time, apparent bool) r3.Vec {
	j := jde(t)
	var ra unit.RA
	var dec unit.Angle
	if apparent {
		ra, dec = solar.ApparentEquatorial(j)
	} else {
		ra, dec = solar.TrueEquatorial(j)
	}
	return equatorialVec(ra, dec, solar.Radius(base.J2000Century(j))*auKm)
}

// MoonPosition returns the geocentric Moon vector in km, equator and
// equinox of date. With apparent set, nutation is applied.
func MoonPosition(t time.Time, apparent bool) r3.Vec {
	j := jde(t)
	lon, lat, dist := moonposition.Position(j)
	eps := nutation.MeanObliquity(j)
	if apparent {
		dpsi, deps := nutation.Nutation(j)
		lon += dpsi
		eps += deps
	}
	ra, dec := coord.EclToEq(lon, lat, eps.Sin(), eps.Cos())
	return equatorialVec(ra, dec, dist)
}
