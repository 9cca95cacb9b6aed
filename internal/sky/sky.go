// Package sky holds equatorial sky coordinates and the unit-vector geometry
// used to compare them.
package sky

import (
	"math"

	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/across/internal/errs"
)

// Coord is an equatorial position in degrees.
type Coord struct {
	RA  float64 // [0, 360)
	Dec float64 // [-90, 90]
}

// Validate checks the RA/Dec domain.
func (c Coord) Validate() error {
	if math.IsNaN(c.RA) || c.RA < 0 || c.RA >= 360 {
		return errs.Input("ra %.6f outside [0, 360)", c.RA)
	}
	if math.IsNaN(c.Dec) || c.Dec < -90 || c.Dec > 90 {
		return errs.Input("dec %.6f outside [-90, 90]", c.Dec)
	}
	return nil
}

// Vec returns the unit vector pointing at c.
func (c Coord) Vec() r3.Vec {
	ra := unit.AngleFromDeg(c.RA)
	dec := unit.AngleFromDeg(c.Dec)
	cd := dec.Cos()
	return r3.Vec{X: cd * ra.Cos(), Y: cd * ra.Sin(), Z: dec.Sin()}
}

// FromVec converts a (not necessarily unit) vector to RA/Dec.
func FromVec(v r3.Vec) Coord {
	n := r3.Norm(v)
	if n == 0 {
		return Coord{}
	}
	ra := math.Atan2(v.Y, v.X) * 180 / math.Pi
	if ra < 0 {
		ra += 360
	}
	if ra >= 360 {
		ra -= 360
	}
	dec := math.Asin(clamp(v.Z/n)) * 180 / math.Pi
	return Coord{RA: ra, Dec: dec}
}

// Separation returns the angle between two directions in degrees.
// Computed as atan2(|a×b|, a·b); inputs need not be normalized.
func Separation(a, b r3.Vec) float64 {
	return math.Atan2(r3.Norm(r3.Cross(a, b)), r3.Dot(a, b)) * 180 / math.Pi
}

// SeparationCoord is Separation for two equatorial coordinates.
func SeparationCoord(a, b Coord) float64 {
	return Separation(a.Vec(), b.Vec())
}

// Vecs converts a batch of coordinates to unit vectors.
func Vecs(coords []Coord) []r3.Vec {
	out := make([]r3.Vec, len(coords))
	for i, c := range coords {
		out[i] = c.Vec()
	}
	return out
}

func clamp(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
