// Package constraint implements the geometric avoidance predicates. Each
// predicate returns one boolean per ephemeris instant in a span: true means
// the target is blocked at that instant.
package constraint

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/across/internal/ephem"
	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/saa"
	"github.com/star/across/internal/sky"
)

// Kind identifies a predicate. The declaration order is the priority used
// to label window edges when several predicates are true at once.
type Kind int

const (
	KindSun Kind = iota
	KindMoon
	KindPole
	KindEarth
	KindSAA
	KindRam
)

var kindNames = [...]string{"Sun", "Moon", "Pole", "Earth", "SAA", "Ram"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// Constraint is a single avoidance predicate.
type Constraint interface {
	Kind() Kind
	Evaluate(eph *ephem.Ephemeris, span ephem.Span, target sky.Coord) ([]bool, error)
}

// At evaluates c at the instant nearest t. It goes through Evaluate with a
// one-element span, so it always agrees with Range.
func At(c Constraint, eph *ephem.Ephemeris, t time.Time, target sky.Coord) (bool, error) {
	span, err := eph.SpanAt(t)
	if err != nil {
		return false, err
	}
	v, err := c.Evaluate(eph, span, target)
	if err != nil {
		return false, err
	}
	return v[0], nil
}

// Range evaluates c over the grid instants within [begin, end].
func Range(c Constraint, eph *ephem.Ephemeris, begin, end time.Time, target sky.Coord) ([]bool, error) {
	span, err := eph.Span(begin, end)
	if err != nil {
		return nil, err
	}
	return c.Evaluate(eph, span, target)
}

func checkSpan(eph *ephem.Ephemeris, span ephem.Span) error {
	if span.Start < 0 || span.Stop > eph.Len() || span.Start >= span.Stop {
		return errs.Input("span [%d, %d) outside ephemeris of %d instants", span.Start, span.Stop, eph.Len())
	}
	return nil
}

// within reports, for each index in span, whether target is closer than
// limit(i) degrees to dirs[i].
func within(target r3.Vec, dirs []r3.Vec, span ephem.Span, limit func(i int) float64) []bool {
	out := make([]bool, span.Len())
	for k := range out {
		i := span.Start + k
		out[k] = sky.Separation(target, dirs[i]) < limit(i)
	}
	return out
}

func prepare(eph *ephem.Ephemeris, span ephem.Span, target sky.Coord) (r3.Vec, error) {
	if err := checkSpan(eph, span); err != nil {
		return r3.Vec{}, err
	}
	if err := target.Validate(); err != nil {
		return r3.Vec{}, err
	}
	return target.Vec(), nil
}

// EarthLimb blocks targets within Angle+Extra degrees of the Earth's limb.
type EarthLimb struct {
	Angle float64
	Extra float64
}

func (c EarthLimb) Kind() Kind { return KindEarth }

func (c EarthLimb) Evaluate(eph *ephem.Ephemeris, span ephem.Span, target sky.Coord) ([]bool, error) {
	tv, err := prepare(eph, span, target)
	if err != nil {
		return nil, err
	}
	return within(tv, eph.EarthDir, span, func(i int) float64 {
		return eph.EarthSize[i] + c.Angle + c.Extra
	}), nil
}

// Occulted evaluates the limb test at one instant for many directions.
func (c EarthLimb) Occulted(eph *ephem.Ephemeris, i int, dirs []r3.Vec) []bool {
	earth := eph.EarthDir[i]
	limit := eph.EarthSize[i] + c.Angle + c.Extra
	out := make([]bool, len(dirs))
	for k, d := range dirs {
		out[k] = sky.Separation(d, earth) < limit
	}
	return out
}

// Sun blocks targets within Angle+Extra degrees of the Sun's center.
type Sun struct {
	Angle float64
	Extra float64
}

func (c Sun) Kind() Kind { return KindSun }

func (c Sun) Evaluate(eph *ephem.Ephemeris, span ephem.Span, target sky.Coord) ([]bool, error) {
	tv, err := prepare(eph, span, target)
	if err != nil {
		return nil, err
	}
	limit := c.Angle + c.Extra
	return within(tv, eph.SunDir, span, func(int) float64 { return limit }), nil
}

// Moon blocks targets within Angle+Extra degrees of the Moon's center.
type Moon struct {
	Angle float64
	Extra float64
}

func (c Moon) Kind() Kind { return KindMoon }

func (c Moon) Evaluate(eph *ephem.Ephemeris, span ephem.Span, target sky.Coord) ([]bool, error) {
	tv, err := prepare(eph, span, target)
	if err != nil {
		return nil, err
	}
	limit := c.Angle + c.Extra
	return within(tv, eph.MoonDir, span, func(int) float64 { return limit }), nil
}

// Ram blocks targets within Angle+Extra degrees of the velocity direction.
type Ram struct {
	Angle float64
	Extra float64
}

func (c Ram) Kind() Kind { return KindRam }

func (c Ram) Evaluate(eph *ephem.Ephemeris, span ephem.Span, target sky.Coord) ([]bool, error) {
	if !eph.HasVelocity() {
		return nil, errs.Input("ram constraint requires an ephemeris with velocity")
	}
	tv, err := prepare(eph, span, target)
	if err != nil {
		return nil, err
	}
	limit := c.Angle + c.Extra
	return within(tv, eph.Velocity, span, func(int) float64 { return limit }), nil
}

// Pole blocks the regions around both orbit poles that the Earth limb
// constraint leaves permanently hidden: a cone of EarthSize+EarthAngle-90+Extra
// degrees about each pole. EarthAngle is the mission's limb avoidance angle.
type Pole struct {
	EarthAngle float64
	Extra      float64
}

func (c Pole) Kind() Kind { return KindPole }

func (c Pole) Evaluate(eph *ephem.Ephemeris, span ephem.Span, target sky.Coord) ([]bool, error) {
	if !eph.HasVelocity() {
		return nil, errs.Input("pole constraint requires an ephemeris with velocity")
	}
	tv, err := prepare(eph, span, target)
	if err != nil {
		return nil, err
	}
	out := make([]bool, span.Len())
	for k := range out {
		i := span.Start + k
		size := eph.EarthSize[i] + c.EarthAngle - 90 + c.Extra
		sep := sky.Separation(tv, eph.Pole[i])
		// Separation from the anti-pole is 180 - sep.
		out[k] = sep < size || 180-sep < size
	}
	return out, nil
}

// SAA is true while the sub-satellite point is inside Region. The target
// is ignored.
type SAA struct {
	Region *saa.Region
}

func (c SAA) Kind() Kind { return KindSAA }

func (c SAA) Evaluate(eph *ephem.Ephemeris, span ephem.Span, _ sky.Coord) ([]bool, error) {
	if err := checkSpan(eph, span); err != nil {
		return nil, err
	}
	if c.Region == nil {
		return nil, errs.Input("SAA constraint has no region")
	}
	return c.Region.InsideAll(
		eph.Latitude[span.Start:span.Stop],
		eph.Longitude[span.Start:span.Stop],
	), nil
}
