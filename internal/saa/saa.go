// Package saa tests whether a sub-satellite point lies inside a South
// Atlantic Anomaly exclusion polygon.
package saa

import (
	"math"

	"github.com/star/across/internal/errs"
)

// Point is a polygon vertex in degrees.
type Point struct {
	Lon float64
	Lat float64
}

// Region is an immutable, implicitly closed polygon in (lon, lat).
// Points on an edge or vertex are outside.
type Region struct {
	vertices []Point
	minLat   float64
	maxLat   float64
}

const edgeEpsilon = 1e-9

// NewRegion builds a Region. An explicit closing vertex equal to the first
// is dropped. Longitudes are normalized to (-180, 180].
func NewRegion(vertices []Point) (*Region, error) {
	vs := make([]Point, 0, len(vertices))
	for _, v := range vertices {
		if math.IsNaN(v.Lon) || math.IsNaN(v.Lat) || v.Lat < -90 || v.Lat > 90 {
			return nil, errs.Input("invalid SAA vertex (%v, %v)", v.Lon, v.Lat)
		}
		vs = append(vs, Point{Lon: NormalizeLon(v.Lon), Lat: v.Lat})
	}
	if len(vs) > 1 && vs[0] == vs[len(vs)-1] {
		vs = vs[:len(vs)-1]
	}

	distinct := make(map[Point]struct{}, len(vs))
	for _, v := range vs {
		distinct[v] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil, errs.Input("SAA polygon needs at least 3 distinct vertices, got %d", len(distinct))
	}

	r := &Region{vertices: vs, minLat: vs[0].Lat, maxLat: vs[0].Lat}
	for _, v := range vs[1:] {
		r.minLat = min(r.minLat, v.Lat)
		r.maxLat = max(r.maxLat, v.Lat)
	}
	return r, nil
}

// MustRegion is NewRegion for static vertex tables.
func MustRegion(vertices []Point) *Region {
	r, err := NewRegion(vertices)
	if err != nil {
		panic(err)
	}
	return r
}

// Vertices returns a copy of the polygon ring.
func (r *Region) Vertices() []Point {
	out := make([]Point, len(r.vertices))
	copy(out, r.vertices)
	return out
}

// Inside reports whether (lat, lon) lies strictly inside the polygon.
func (r *Region) Inside(lat, lon float64) bool {
	if lat <= r.minLat || lat >= r.maxLat {
		return false
	}
	lon = NormalizeLon(lon)

	in := false
	n := len(r.vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := r.vertices[i], r.vertices[j]
		if onSegment(a, b, lon, lat) {
			return false
		}
		if (a.Lat > lat) != (b.Lat > lat) {
			x := (b.Lon-a.Lon)*(lat-a.Lat)/(b.Lat-a.Lat) + a.Lon
			if lon < x {
				in = !in
			}
		}
	}
	return in
}

// InsideAll evaluates Inside for paired latitude/longitude slices.
func (r *Region) InsideAll(lat, lon []float64) []bool {
	out := make([]bool, len(lat))
	for i := range lat {
		out[i] = r.Inside(lat[i], lon[i])
	}
	return out
}

func onSegment(a, b Point, lon, lat float64) bool {
	cross := (b.Lon-a.Lon)*(lat-a.Lat) - (b.Lat-a.Lat)*(lon-a.Lon)
	if math.Abs(cross) > edgeEpsilon {
		return false
	}
	return lon >= min(a.Lon, b.Lon)-edgeEpsilon && lon <= max(a.Lon, b.Lon)+edgeEpsilon &&
		lat >= min(a.Lat, b.Lat)-edgeEpsilon && lat <= max(a.Lat, b.Lat)+edgeEpsilon
}

// NormalizeLon maps a longitude to (-180, 180].
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon > 180 {
		lon -= 360
	} else if lon <= -180 {
		lon += 360
	}
	return lon
}
