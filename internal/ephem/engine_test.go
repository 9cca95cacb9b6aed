package ephem

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/propagation"
	"github.com/star/across/internal/sky"
	"github.com/star/across/internal/tle"
)

const (
	issLine1 = "1 25544U 98067A   24029.54791667  .00018203  00000+0  32252-3 0  9992"
	issLine2 = "2 25544  51.6412 283.3514 0004951 101.3027 343.2237 15.49768064437558"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine() *Engine {
	return NewEngine(propagation.NewWorkerPool(propagation.PoolConfig{Workers: 4, ChunkSize: 64}, testLogger()), testLogger())
}

func issElements(t *testing.T) tle.Elements {
	t.Helper()
	e, err := tle.ParseLines("ISS (ZARYA)", issLine1, issLine2)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	return e
}

func TestComputeGridProperties(t *testing.T) {
	grid, _ := NewTimeGrid(gridBegin.Add(12*time.Hour), gridBegin.Add(14*time.Hour), time.Minute)
	eph, err := testEngine().Compute(context.Background(), issElements(t), grid, Options{Velocity: true, Parallax: true})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if eph.Len() != 121 {
		t.Fatalf("Len() = %d, want 121", eph.Len())
	}
	for i := 1; i < eph.Len(); i++ {
		if !eph.Timestamps[i].After(eph.Timestamps[i-1]) {
			t.Fatalf("timestamps not strictly increasing at %d", i)
		}
	}
	if eph.Stale != nil {
		t.Errorf("unexpected stale flag: %v", eph.Stale)
	}

	for i := 0; i < eph.Len(); i++ {
		if eph.Altitude[i] < 350 || eph.Altitude[i] > 450 {
			t.Errorf("altitude[%d] = %.1f km, want ISS-like", i, eph.Altitude[i])
		}
		if math.Abs(eph.Latitude[i]) > 52 {
			t.Errorf("latitude[%d] = %.2f exceeds inclination", i, eph.Latitude[i])
		}
		if eph.Longitude[i] <= -180 || eph.Longitude[i] > 180 {
			t.Errorf("longitude[%d] = %.2f outside (-180, 180]", i, eph.Longitude[i])
		}
		if eph.EarthSize[i] < 68 || eph.EarthSize[i] > 72 {
			t.Errorf("earth size[%d] = %.2f deg", i, eph.EarthSize[i])
		}
		for _, v := range []r3.Vec{eph.EarthDir[i], eph.SunDir[i], eph.MoonDir[i], eph.Pole[i]} {
			if !scalar.EqualWithinAbs(r3.Norm(v), 1, 1e-9) {
				t.Fatalf("non-unit direction at %d: %v", i, v)
			}
		}
		// The orbit normal is perpendicular to the nadir direction.
		if sep := sky.Separation(eph.Pole[i], eph.EarthDir[i]); !scalar.EqualWithinAbs(sep, 90, 1e-6) {
			t.Errorf("pole/earth separation[%d] = %.8f, want 90", i, sep)
		}
	}

	beta, err := eph.Beta(Span{0, eph.Len()})
	if err != nil {
		t.Fatalf("Beta: %v", err)
	}
	for i, b := range beta {
		if b < -90 || b > 90 {
			t.Errorf("beta[%d] = %.2f", i, b)
		}
	}
}

func TestComputeSunDirection(t *testing.T) {
	grid, _ := NewTimeGrid(gridBegin.Add(12*time.Hour), gridBegin.Add(12*time.Hour), time.Minute)
	eph, err := testEngine().Compute(context.Background(), issElements(t), grid, Options{})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	// Late January: RA ~311 deg, Dec ~-18 deg.
	sun := sky.FromVec(eph.SunDir[0])
	if math.Abs(sun.RA-311) > 1.5 || math.Abs(sun.Dec+18) > 1.5 {
		t.Errorf("sun at %+v, want near (311, -18)", sun)
	}
}

// Sun and target share the J2000 frame: at 2024-01-29T00:00Z the geometric
// Sun is at (310.6464, -18.2066) J2000, 0.336 deg from its place of date.
func TestSunJ2000(t *testing.T) {
	grid, _ := NewTimeGrid(gridBegin, gridBegin, time.Minute)
	want := sky.Coord{RA: 310.6464, Dec: -18.2066}

	tests := []struct {
		name string
		opts Options
	}{
		{"geometric", Options{}},
		{"apparent", Options{Apparent: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eph, err := testEngine().Compute(context.Background(), issElements(t), grid, tt.opts)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			sun := eph.Sample(0).Sun
			if sep := sky.Separation(eph.SunDir[0], want.Vec()); sep > 0.01 {
				t.Errorf("sun at %+v, %.4f deg from %+v", sun, sep, want)
			}
		})
	}

	ofDate := sky.FromVec(SunPosition(gridBegin, false))
	if sep := sky.Separation(SunPosition(gridBegin, false), want.Vec()); math.Abs(sep-0.336) > 0.01 {
		t.Errorf("sun of date %+v is %.4f deg from J2000, want 0.336", ofDate, sep)
	}
}

func TestBodyDistances(t *testing.T) {
	at := time.Date(2024, 1, 29, 12, 0, 0, 0, time.UTC)

	if d := r3.Norm(SunPosition(at, true)); d < 1.470e8 || d > 1.480e8 {
		t.Errorf("sun distance %.0f km, want ~0.985 AU", d)
	}
	if d := r3.Norm(MoonPosition(at, true)); d < 356000 || d > 407000 {
		t.Errorf("moon distance %.0f km", d)
	}
	// Apparent and true directions differ by less than aberration plus nutation.
	if sep := sky.Separation(SunPosition(at, true), SunPosition(at, false)); sep > 0.02 {
		t.Errorf("apparent vs true sun separation %.4f deg", sep)
	}
}

func TestComputeIdempotent(t *testing.T) {
	grid, _ := NewTimeGrid(gridBegin.Add(12*time.Hour), gridBegin.Add(13*time.Hour), 30*time.Second)
	e := testEngine()
	opts := Options{Velocity: true, Parallax: true, Apparent: true}

	a, err := e.Compute(context.Background(), issElements(t), grid, opts)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	b, err := e.Compute(context.Background(), issElements(t), grid, opts)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i := range a.Timestamps {
		if a.Position[i] != b.Position[i] || a.SunDir[i] != b.SunDir[i] || a.Latitude[i] != b.Latitude[i] {
			t.Fatalf("results differ at %d", i)
		}
	}
}

func TestComputeFixedEarthRadius(t *testing.T) {
	grid, _ := NewTimeGrid(gridBegin.Add(12*time.Hour), gridBegin.Add(13*time.Hour), time.Minute)
	eph, err := testEngine().Compute(context.Background(), issElements(t), grid, Options{EarthRadiusDeg: 70})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i, s := range eph.EarthSize {
		if s != 70 {
			t.Fatalf("EarthSize[%d] = %v, want 70", i, s)
		}
	}
	if eph.HasVelocity() {
		t.Error("velocity present without Options.Velocity")
	}
	if _, err := eph.Beta(Span{0, 1}); !errors.Is(err, errs.ErrInput) {
		t.Errorf("Beta without velocity error = %v, want ErrInput", err)
	}
}

func TestComputeStale(t *testing.T) {
	// Elements epoch is 2024-01-29 13:09; start the grid five days later.
	begin := gridBegin.Add(5 * 24 * time.Hour)
	grid, _ := NewTimeGrid(begin, begin.Add(10*time.Minute), time.Minute)

	eph, err := testEngine().Compute(context.Background(), issElements(t), grid, Options{StaleAfter: 4 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if eph.Stale == nil {
		t.Fatal("expected stale flag")
	}
	if eph.Stale.Age() < 4*24*time.Hour {
		t.Errorf("stale age %v", eph.Stale.Age())
	}

	_, err = testEngine().Compute(context.Background(), issElements(t), grid, Options{StaleAfter: 4 * 24 * time.Hour, RejectStale: true})
	if !errors.Is(err, errs.ErrStaleData) {
		t.Errorf("RejectStale error = %v, want ErrStaleData", err)
	}
}

func TestComputeInputErrors(t *testing.T) {
	good, _ := NewTimeGrid(gridBegin, gridBegin.Add(time.Hour), time.Minute)

	// A field SGP4 cannot parse, under a valid checksum.
	garbled := issElements(t)
	garbled.Line1 = strings.Replace(garbled.Line1, ".00018203", ".0001820X", 1)
	garbled.Line1 = garbled.Line1[:68] + strconv.Itoa(tle.Checksum(garbled.Line1))
	badSum := issElements(t)
	badSum.Line2 = badSum.Line2[:68] + strconv.Itoa((tle.Checksum(badSum.Line2)+5)%10)
	tests := []struct {
		name     string
		elements tle.Elements
		grid     TimeGrid
		opts     Options
	}{
		{"reversed grid", issElements(t), TimeGrid{Begin: gridBegin, End: gridBegin.Add(-time.Hour), Step: time.Minute}, Options{}},
		{"zero step", issElements(t), TimeGrid{Begin: gridBegin, End: gridBegin.Add(time.Hour)}, Options{}},
		{"empty elements", tle.Elements{}, good, Options{}},
		{"non-numeric element field", garbled, good, Options{}},
		{"bad checksum", badSum, good, Options{}},
		{"earth radius too large", issElements(t), good, Options{EarthRadiusDeg: 95}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testEngine().Compute(context.Background(), tt.elements, tt.grid, tt.opts)
			if !errors.Is(err, errs.ErrInput) {
				t.Errorf("Compute error = %v, want ErrInput", err)
			}
		})
	}
}

func TestEphemerisSliceAndEclipse(t *testing.T) {
	grid, _ := NewTimeGrid(gridBegin.Add(12*time.Hour), gridBegin.Add(14*time.Hour), time.Minute)
	eph, err := testEngine().Compute(context.Background(), issElements(t), grid, Options{Velocity: true})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	span, err := eph.Span(grid.Begin.Add(30*time.Minute), grid.Begin.Add(40*time.Minute))
	if err != nil {
		t.Fatalf("Span: %v", err)
	}
	sub := eph.Slice(span)
	if sub.Len() != 11 || !sub.Timestamps[0].Equal(grid.Begin.Add(30*time.Minute)) {
		t.Fatalf("slice has %d points starting %v", sub.Len(), sub.Timestamps[0])
	}
	if sub.Position[3] != eph.Position[33] {
		t.Error("slice does not share indexing with parent")
	}

	// Two hours is more than one ISS orbit: some night, mostly day.
	ecl := eph.Eclipse(Span{0, eph.Len()})
	var dark int
	for i, in := range ecl {
		if in {
			dark++
		}
		if s := eph.Sample(i); s.Eclipse != in {
			t.Fatalf("Sample(%d).Eclipse = %v, Eclipse = %v", i, s.Eclipse, in)
		}
	}
	if dark == 0 || dark > len(ecl)/2 {
		t.Errorf("%d of %d instants in eclipse", dark, len(ecl))
	}

	if _, err := eph.SpanAt(grid.End.Add(time.Hour)); !errors.Is(err, errs.ErrOutOfRange) {
		t.Errorf("SpanAt past coverage error = %v, want ErrOutOfRange", err)
	}
}

func BenchmarkComputeDay(b *testing.B) {
	e, err := tle.ParseLines("ISS (ZARYA)", issLine1, issLine2)
	if err != nil {
		b.Fatalf("ParseLines: %v", err)
	}
	grid, _ := NewTimeGrid(gridBegin, gridBegin.Add(24*time.Hour), time.Minute)
	engine := testEngine()
	opts := Options{Velocity: true, Parallax: true, Apparent: true}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Compute(context.Background(), e, grid, opts); err != nil {
			b.Fatal(err)
		}
	}
}
