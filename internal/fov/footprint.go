package fov

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/mission"
	"github.com/star/across/internal/pointing"
	"github.com/star/across/internal/sky"
)

// Footprint decides which sky directions an instrument sees at a pointing.
type Footprint interface {
	Contains(p pointing.Pointing, dirs []r3.Vec) []bool
}

// AllSky sees every direction; only Earth occultation limits it.
type AllSky struct{}

func (AllSky) Contains(_ pointing.Pointing, dirs []r3.Vec) []bool {
	out := make([]bool, len(dirs))
	for i := range out {
		out[i] = true
	}
	return out
}

// Circle is a cone of Radius degrees about the boresight.
type Circle struct {
	Radius float64
}

func (c Circle) Contains(p pointing.Pointing, dirs []r3.Vec) []bool {
	b := p.Boresight().Vec()
	out := make([]bool, len(dirs))
	for i, d := range dirs {
		out[i] = sky.Separation(d, b) < c.Radius
	}
	return out
}

// Square is a square field of Side degrees centered on the boresight and
// rotated by the pointing roll.
type Square struct {
	Side float64
}

func (s Square) Contains(p pointing.Pointing, dirs []r3.Vec) []bool {
	b, u, w := frame(p)
	half := s.Side / 2 * math.Pi / 180
	out := make([]bool, len(dirs))
	for i, d := range dirs {
		z := r3.Dot(d, b)
		if z <= 0 {
			continue
		}
		x := math.Atan2(r3.Dot(d, u), z)
		y := math.Atan2(r3.Dot(d, w), z)
		out[i] = math.Abs(x) < half && math.Abs(y) < half
	}
	return out
}

// frame returns the boresight and the two detector axes after roll.
func frame(p pointing.Pointing) (b, u, w r3.Vec) {
	b = p.Boresight().Vec()
	north := r3.Vec{Z: 1}
	east := r3.Cross(north, b)
	if r3.Norm(east) < 1e-12 {
		east = r3.Vec{Y: 1}
	}
	east = r3.Unit(east)
	north = r3.Cross(b, east)

	roll := p.Roll * math.Pi / 180
	sr, cr := math.Sincos(roll)
	u = r3.Add(r3.Scale(cr, east), r3.Scale(sr, north))
	w = r3.Sub(r3.Scale(cr, north), r3.Scale(sr, east))
	return b, u, w
}

// FromConfig builds the footprint for an instrument.
func FromConfig(f mission.FOV) (Footprint, error) {
	switch f.Type {
	case mission.FOVAllSky, "":
		return AllSky{}, nil
	case mission.FOVCircle:
		return Circle{Radius: f.Dimension}, nil
	case mission.FOVSquare:
		return Square{Side: f.Dimension}, nil
	}
	return nil, errs.Input("unknown fov type %q", f.Type)
}
