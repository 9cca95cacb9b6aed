package fov

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/across/internal/constraint"
	"github.com/star/across/internal/ephem"
	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/healpix"
	"github.com/star/across/internal/mission"
	"github.com/star/across/internal/pointing"
	"github.com/star/across/internal/sky"
)

var t0 = time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC)

// testEphemeris has the Earth centered on the south celestial pole with a
// 65 deg angular radius for an hour at 1 minute steps.
func testEphemeris() *ephem.Ephemeris {
	grid, _ := ephem.NewTimeGrid(t0, t0.Add(time.Hour), time.Minute)
	e := &ephem.Ephemeris{Grid: grid, Timestamps: grid.Times()}
	for range e.Timestamps {
		e.EarthDir = append(e.EarthDir, sky.Coord{RA: 0, Dec: -90}.Vec())
		e.EarthSize = append(e.EarthSize, 65)
	}
	return e
}

var observing = pointing.Pointing{Observing: true}

func point(ra, dec float64) Target {
	return Target{Coords: []sky.Coord{{RA: ra, Dec: dec}}}
}

func TestPointSource(t *testing.T) {
	eph := testEphemeris()
	c := NewChecker(&constraint.EarthLimb{}, AllSky{})

	tests := []struct {
		name   string
		target Target
		want   float64
	}{
		{"clear", point(10, 45), 1},
		{"occulted", point(10, -30), 0},
		{"small error treated as point", Target{Coords: []sky.Coord{{RA: 10, Dec: -24.99}}, ErrorRadius: 1.0 / 60}, 1},
		{"small error occulted", Target{Coords: []sky.Coord{{RA: 10, Dec: -25.01}}, ErrorRadius: 1.0 / 60}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ProbabilityInFOV(eph, t0.Add(10*time.Minute), tt.target, observing)
			if err != nil {
				t.Fatalf("ProbabilityInFOV: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCircle(t *testing.T) {
	eph := testEphemeris()
	c := NewChecker(&constraint.EarthLimb{}, AllSky{})
	c.NSide = 128

	clear, err := c.ProbabilityInFOV(eph, t0, Target{Coords: []sky.Coord{{RA: 10, Dec: 45}}, ErrorRadius: 2}, observing)
	if err != nil {
		t.Fatalf("ProbabilityInFOV: %v", err)
	}
	if clear != 1 {
		t.Errorf("clear circle = %v, want 1", clear)
	}

	// Centered on the limb: about half hidden.
	half, err := c.ProbabilityInFOV(eph, t0, Target{Coords: []sky.Coord{{RA: 10, Dec: -25}}, ErrorRadius: 2}, observing)
	if err != nil {
		t.Fatalf("ProbabilityInFOV: %v", err)
	}
	if half < 0.4 || half > 0.6 {
		t.Errorf("limb circle = %v, want ~0.5", half)
	}
	if half != math.Round(half*1e5)/1e5 {
		t.Errorf("%v not rounded to 5 decimals", half)
	}
}

func TestMapIntegration(t *testing.T) {
	eph := testEphemeris()
	nside := 16
	uniform := make([]float64, healpix.NPix(nside))
	for i := range uniform {
		uniform[i] = 1 / float64(len(uniform))
	}

	unocculted := NewChecker(nil, AllSky{})
	for _, o := range []healpix.Ordering{healpix.Nested, healpix.Ring} {
		got, err := unocculted.ProbabilityInFOV(eph, t0, Target{Map: &healpix.Map{Values: uniform, Ordering: o}}, observing)
		if err != nil {
			t.Fatalf("%s: %v", o, err)
		}
		if got != 1 {
			t.Errorf("%s all-sky unocculted = %v, want 1", o, got)
		}
	}

	// The Earth hides a 65 deg cap: (1 - cos 65°) / 2 of the sky.
	occulted := NewChecker(&constraint.EarthLimb{}, AllSky{})
	got, err := occulted.ProbabilityInFOV(eph, t0, Target{Map: &healpix.Map{Values: uniform, Ordering: healpix.Nested}}, observing)
	if err != nil {
		t.Fatalf("ProbabilityInFOV: %v", err)
	}
	want := 1 - (1-math.Cos(65*math.Pi/180))/2
	if math.Abs(got-want) > 0.02 {
		t.Errorf("uniform map with Earth = %v, want ~%.4f", got, want)
	}

	// Multi-order map: one order-0 pixel's worth of density near the north pole.
	uniq := []uint64{healpix.OrderPixToUniq(0, 0), healpix.OrderPixToUniq(0, 10)}
	dens := []float64{12 / (4 * math.Pi), 0}
	got, err = occulted.ProbabilityInFOV(eph, t0, Target{Map: &healpix.Map{Values: dens, Uniq: uniq, Ordering: healpix.NUniq}}, observing)
	if err != nil {
		t.Fatalf("NUNIQ: %v", err)
	}
	if got != 1 {
		t.Errorf("NUNIQ = %v, want 1", got)
	}
}

func TestNotObserving(t *testing.T) {
	c := NewChecker(nil, AllSky{})
	got, err := c.ProbabilityInFOV(testEphemeris(), t0, point(10, 45), pointing.Pointing{})
	if err != nil || got != 0 {
		t.Errorf("got %v, %v; want 0", got, err)
	}
}

func TestTargetErrors(t *testing.T) {
	eph := testEphemeris()
	c := NewChecker(&constraint.EarthLimb{}, AllSky{})
	m := &healpix.Map{Values: make([]float64, 13)}

	tests := []struct {
		name   string
		target Target
		at     time.Time
		want   error
	}{
		{"no target", Target{}, t0, errs.ErrInput},
		{"two positions with error", Target{Coords: []sky.Coord{{RA: 1, Dec: 1}, {RA: 2, Dec: 2}}, ErrorRadius: 1}, t0, errs.ErrInput},
		{"two positions", Target{Coords: []sky.Coord{{RA: 1, Dec: 1}, {RA: 2, Dec: 2}}}, t0, errs.ErrInput},
		{"map and position", Target{Coords: []sky.Coord{{RA: 1, Dec: 1}}, Map: &healpix.Map{Values: make([]float64, 12)}}, t0, errs.ErrInput},
		{"bad map", Target{Map: m}, t0, errs.ErrInput},
		{"bad ra", point(361, 0), t0, errs.ErrInput},
		{"negative error", Target{Coords: []sky.Coord{{RA: 1, Dec: 1}}, ErrorRadius: -1}, t0, errs.ErrInput},
		{"outside ephemeris", point(10, 10), t0.Add(2 * time.Hour), errs.ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ProbabilityInFOV(eph, tt.at, tt.target, observing)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFootprints(t *testing.T) {
	dirs := func(cs ...sky.Coord) []r3.Vec { return sky.Vecs(cs) }

	tests := []struct {
		name string
		fp   Footprint
		p    pointing.Pointing
		dirs []r3.Vec
		want []bool
	}{
		{"circle", Circle{Radius: 10}, pointing.Pointing{}, dirs(sky.Coord{RA: 5}, sky.Coord{RA: 20}), []bool{true, false}},
		{"circle offset", Circle{Radius: 1}, pointing.Pointing{RA: 120, Dec: 40}, dirs(sky.Coord{RA: 120.5, Dec: 40}, sky.Coord{RA: 120, Dec: 42}), []bool{true, false}},
		{"square", Square{Side: 2}, pointing.Pointing{}, dirs(sky.Coord{RA: 0.9, Dec: 0.9}, sky.Coord{RA: 1.1}, sky.Coord{RA: 180}), []bool{true, false, false}},
		{"square rolled", Square{Side: 2}, pointing.Pointing{Roll: 45}, dirs(sky.Coord{RA: 1.2}, sky.Coord{RA: 0.9, Dec: 0.9}), []bool{true, false}},
		{"square at pole", Square{Side: 2}, pointing.Pointing{Dec: 90}, dirs(sky.Coord{RA: 0, Dec: 89.5}, sky.Coord{RA: 0, Dec: 85}), []bool{true, false}},
		{"all sky", AllSky{}, pointing.Pointing{}, dirs(sky.Coord{RA: 180, Dec: -60}), []bool{true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fp.Contains(tt.p, tt.dirs)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	fp, err := FromConfig(mission.FOV{Type: mission.FOVCircle, Dimension: 0.2})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if c, ok := fp.(Circle); !ok || c.Radius != 0.2 {
		t.Errorf("FromConfig circle = %#v", fp)
	}
	if _, err := FromConfig(mission.FOV{Type: "polygon"}); !errors.Is(err, errs.ErrInput) {
		t.Errorf("FromConfig(polygon) error = %v, want ErrInput", err)
	}
}

func TestCheck(t *testing.T) {
	eph := testEphemeris()
	c := NewChecker(&constraint.EarthLimb{}, AllSky{})

	points, err := c.Check(context.Background(), eph, t0, t0.Add(10*time.Minute), point(10, 45), pointing.AllSky)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(points) != 11 {
		t.Fatalf("len = %d, want 11", len(points))
	}
	for _, p := range points {
		if !p.InFOV || p.Probability != 1 {
			t.Errorf("%v: %+v", p.Time, p)
		}
	}

	if _, err := c.Check(context.Background(), eph, t0, t0.Add(2*time.Hour), point(10, 45), pointing.AllSky); !errors.Is(err, errs.ErrOutOfRange) {
		t.Errorf("Check past coverage error = %v, want ErrOutOfRange", err)
	}
}

func BenchmarkErrorCircle(b *testing.B) {
	eph := testEphemeris()
	c := NewChecker(&constraint.EarthLimb{}, AllSky{})
	target := Target{Coords: []sky.Coord{{RA: 10, Dec: -20}}, ErrorRadius: 3}
	for i := 0; i < b.N; i++ {
		if _, err := c.ProbabilityInFOV(eph, t0, target, observing); err != nil {
			b.Fatal(err)
		}
	}
}
