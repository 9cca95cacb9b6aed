package transform

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

const (
	j2000 = 2451545.0

	// OmegaEarth is the Earth rotation rate, rad/s.
	OmegaEarth = 7.292115146706979e-5

	secondsPerDay = 86400.0
)

// JulianDate returns the Julian Date of t on the UTC time scale.
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// GMST returns Greenwich Mean Sidereal Time in radians from the IAU-82
// polynomial (Vallado Eq 3-47), taking UT1 = UTC:
//
//	θ = 67310.54841 + (876600h + 8640184.812866)·T + 0.093104·T² − 6.2e-6·T³  [s]
func GMST(t time.Time) float64 {
	c := (JulianDate(t) - j2000) / 36525
	sec := 67310.54841 + (876600*3600+8640184.812866)*c + 0.093104*c*c - 6.2e-6*c*c*c
	sec = math.Mod(sec, secondsPerDay)
	if sec < 0 {
		sec += secondsPerDay
	}
	return sec / secondsPerDay * 2 * math.Pi
}
