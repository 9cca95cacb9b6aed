package constraint

import (
	"slices"

	"github.com/star/across/internal/ephem"
	"github.com/star/across/internal/mission"
	"github.com/star/across/internal/sky"
	"github.com/star/across/internal/window"
)

// Set is the enabled constraints of a mission, in Kind order.
type Set struct {
	constraints []Constraint
}

// NewSet builds the enabled constraints for cfg. Planning margins (the
// *Extra angles) apply only when planning is true; in-flight checks use
// the bare avoidance angles.
func NewSet(cfg mission.Config, planning bool) (*Set, error) {
	c := cfg.Constraints
	extra := func(a float64) float64 {
		if planning {
			return a
		}
		return 0
	}

	var cs []Constraint
	if c.Sun {
		cs = append(cs, Sun{Angle: c.SunOccult, Extra: extra(c.SunExtra)})
	}
	if c.Moon {
		cs = append(cs, Moon{Angle: c.MoonOccult, Extra: extra(c.MoonExtra)})
	}
	if c.Pole {
		cs = append(cs, Pole{EarthAngle: c.EarthOccult, Extra: extra(c.EarthExtra + c.PoleExtra)})
	}
	if c.Earth {
		cs = append(cs, EarthLimb{Angle: c.EarthOccult, Extra: extra(c.EarthExtra)})
	}
	if c.SAA {
		region, err := cfg.Region()
		if err != nil {
			return nil, err
		}
		cs = append(cs, SAA{Region: region})
	}
	if c.Ram {
		cs = append(cs, Ram{Angle: c.RamSize, Extra: extra(c.RamExtra)})
	}
	return NewSetOf(cs...), nil
}

// NewSetOf builds a Set from explicit constraints.
func NewSetOf(cs ...Constraint) *Set {
	sorted := slices.Clone(cs)
	slices.SortStableFunc(sorted, func(a, b Constraint) int { return int(a.Kind()) - int(b.Kind()) })
	return &Set{constraints: sorted}
}

// Constraints returns the members in Kind order.
func (s *Set) Constraints() []Constraint {
	return slices.Clone(s.constraints)
}

// Get returns the member of kind k.
func (s *Set) Get(k Kind) (Constraint, bool) {
	for _, c := range s.constraints {
		if c.Kind() == k {
			return c, true
		}
	}
	return nil, false
}

// Series evaluates every member over span, labelled and in priority order,
// ready for window.Synthesize.
func (s *Set) Series(eph *ephem.Ephemeris, span ephem.Span, target sky.Coord) ([]window.Series, error) {
	out := make([]window.Series, 0, len(s.constraints))
	for _, c := range s.constraints {
		v, err := c.Evaluate(eph, span, target)
		if err != nil {
			return nil, err
		}
		out = append(out, window.Series{Label: c.Kind().String(), Values: v})
	}
	return out, nil
}

// Blocked reports whether any member blocks target at index i, and which
// member does so first in priority order.
func (s *Set) Blocked(eph *ephem.Ephemeris, i int, target sky.Coord) (bool, Kind, error) {
	span := ephem.Span{Start: i, Stop: i + 1}
	for _, c := range s.constraints {
		v, err := c.Evaluate(eph, span, target)
		if err != nil {
			return false, 0, err
		}
		if v[0] {
			return true, c.Kind(), nil
		}
	}
	return false, 0, nil
}
