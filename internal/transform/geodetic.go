package transform

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// WGS-84 ellipsoid parameters, km.
const (
	wgs84A  = 6378.137              // semi-major axis
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// GeodeticPoint is a geodetic position. Longitude is in (-180, 180].
type GeodeticPoint struct {
	LatDeg, LonDeg float64
	AltKm          float64
}

// ECEFToGeodetic converts an Earth-fixed position (km) to geodetic
// coordinates using Bowring's iteration. Converges in 2-3 iterations for
// Earth orbits.
func ECEFToGeodetic(pos r3.Vec) GeodeticPoint {
	x, y, z := pos.X, pos.Y, pos.Z
	lon := math.Atan2(y, x)
	p := math.Hypot(x, y)

	lat := math.Atan2(z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*N*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - N
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - N*(1-wgs84E2)
	}

	lonDeg := lon * 180.0 / math.Pi
	if lonDeg <= -180 {
		lonDeg += 360
	}

	return GeodeticPoint{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lonDeg,
		AltKm:  alt,
	}
}

// SubSatellitePoint returns the geodetic point below a TEME position at t.
func SubSatellitePoint(pos r3.Vec, t time.Time) GeodeticPoint {
	return ECEFToGeodetic(TEMEToECEF(pos, t))
}
