package healpix

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/star/across/internal/errs"
)

// Map is a probability sky map. For NESTED and RING maps Values holds the
// probability of each pixel and its length fixes NSIDE. For NUNIQ maps
// Values holds probability densities (per steradian) of the pixels listed
// in Uniq.
type Map struct {
	Values   []float64
	Ordering Ordering
	Uniq     []uint64
}

// Validate checks lengths and resolution.
func (m Map) Validate() error {
	if len(m.Values) == 0 {
		return errs.Input("HEALPix map is empty")
	}
	switch m.Ordering {
	case Nested, Ring:
		if _, err := NSideFromNPix(len(m.Values)); err != nil {
			return err
		}
	case NUniq:
		if len(m.Uniq) != len(m.Values) {
			return errs.Input("NUNIQ map has %d indices for %d values", len(m.Uniq), len(m.Values))
		}
	default:
		return errs.Input("unknown HEALPix ordering %d", m.Ordering)
	}
	for i, v := range m.Values {
		if math.IsNaN(v) || v < 0 {
			return errs.Input("HEALPix value %d is %v", i, v)
		}
	}
	return nil
}

// Pixels returns the center direction and probability of every pixel with
// non-zero probability. NUNIQ densities are multiplied by pixel area.
func (m Map) Pixels() ([]r3.Vec, []float64, error) {
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}

	var dirs []r3.Vec
	var probs []float64
	switch m.Ordering {
	case Nested, Ring:
		nside, _ := NSideFromNPix(len(m.Values))
		pix2vec := Pix2VecNest
		if m.Ordering == Ring {
			pix2vec = Pix2VecRing
		}
		for i, v := range m.Values {
			if v == 0 {
				continue
			}
			dirs = append(dirs, pix2vec(nside, uint64(i)))
			probs = append(probs, v)
		}
	case NUniq:
		for i, v := range m.Values {
			if v == 0 {
				continue
			}
			order, ipix, err := UniqToOrderPix(m.Uniq[i])
			if err != nil {
				return nil, nil, err
			}
			nside := OrderToNSide(order)
			dirs = append(dirs, Pix2VecNest(nside, ipix))
			probs = append(probs, v*PixelArea(nside))
		}
	}
	return dirs, probs, nil
}

// Total returns the summed probability of the map.
func (m Map) Total() (float64, error) {
	_, probs, err := m.Pixels()
	if err != nil {
		return 0, err
	}
	return floats.Sum(probs), nil
}

// Sparse is a list of pixel directions with probabilities.
type Sparse struct {
	NSide int
	Dirs  []r3.Vec
	Probs []float64
}

// GaussianCircle rasterizes a circular Gaussian of 1σ radius sigma (deg)
// about center at nside, normalized to sum to 1. Pixels beyond 5σ are
// omitted. The result is returned sparse; pixel ordering is immaterial to
// integration.
func GaussianCircle(center r3.Vec, sigma float64, nside int) (Sparse, error) {
	if !ValidNSide(nside) {
		return Sparse{}, errs.Input("invalid NSIDE %d", nside)
	}
	if !(sigma > 0) {
		return Sparse{}, errs.Input("error radius %v must be positive", sigma)
	}

	center = r3.Unit(center)
	radius := math.Min(5*sigma, 180)
	margin := PixelSize(nside)
	theta0 := math.Acos(math.Max(-1, math.Min(1, center.Z))) * 180 / math.Pi
	cosLimit := math.Cos(radius * math.Pi / 180)

	pdf := distuv.Normal{Mu: 0, Sigma: sigma}
	out := Sparse{NSide: nside}
	for ring := 1; ring < 4*nside; ring++ {
		theta := math.Acos(RingZ(nside, ring)) * 180 / math.Pi
		if math.Abs(theta-theta0) > radius+margin {
			continue
		}
		start, count := RingRange(nside, ring)
		for k := 0; k < count; k++ {
			v := Pix2VecRing(nside, start+uint64(k))
			if r3.Dot(v, center) < cosLimit {
				continue
			}
			sep := math.Atan2(r3.Norm(r3.Cross(v, center)), r3.Dot(v, center)) * 180 / math.Pi
			out.Dirs = append(out.Dirs, v)
			out.Probs = append(out.Probs, pdf.Prob(sep))
		}
	}

	total := floats.Sum(out.Probs)
	if total == 0 {
		return Sparse{}, errs.Computation("error circle of %v deg covers no pixel at NSIDE %d", sigma, nside)
	}
	floats.Scale(1/total, out.Probs)
	return out, nil
}
