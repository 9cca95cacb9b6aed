package trigger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/across/internal/cache"
	"github.com/star/across/internal/ephem"
	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/fov"
	"github.com/star/across/internal/mission"
	"github.com/star/across/internal/propagation"
	"github.com/star/across/internal/sky"
	"github.com/star/across/internal/tle"
	"github.com/star/across/internal/visibility"
	"github.com/star/across/internal/window"
)

const (
	issLine1 = "1 25544U 98067A   24029.54791667  .00018203  00000+0  32252-3 0  9992"
	issLine2 = "2 25544  51.6412 283.3514 0004951 101.3027 343.2237 15.49768064437558"
)

var day = time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testService(t *testing.T) *visibility.Service {
	t.Helper()
	logger := testLogger()
	iss, err := tle.ParseLines("ISS (ZARYA)", issLine1, issLine2)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	store := tle.NewStore()
	store.Add(iss)
	reg, err := mission.NewRegistry(mission.BurstCube())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	pool := propagation.NewWorkerPool(propagation.PoolConfig{Workers: 2}, logger)
	return visibility.NewService(reg, tle.NewChainProvider(store, logger, tle.Offline()),
		ephem.NewEngine(pool, logger), cache.NewEphemerisCache(cache.Config{}, logger), logger)
}

func testScreener(t *testing.T, now time.Time) (*Screener, *visibility.Service) {
	svc := testService(t)
	s := NewScreener(svc, testLogger())
	s.now = func() time.Time { return now }
	return s, svc
}

func passages(t *testing.T, svc *visibility.Service) []window.Interval {
	t.Helper()
	p, err := svc.SAAPassages(context.Background(), "burstcube", day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("SAAPassages: %v", err)
	}
	if len(p) < 2 {
		t.Fatalf("need at least two SAA passages, got %d", len(p))
	}
	return p
}

// earthDir returns the direction to the Earth's center at t.
func earthDir(t *testing.T, svc *visibility.Service, at time.Time) r3.Vec {
	t.Helper()
	cfg, _ := svc.Missions().Get("burstcube")
	eph, err := svc.Ephemeris(context.Background(), cfg, at, at)
	if err != nil {
		t.Fatalf("Ephemeris: %v", err)
	}
	i, err := eph.Index(at)
	if err != nil {
		t.Fatal(err)
	}
	return eph.EarthDir[i]
}

func TestDump(t *testing.T) {
	t0 := time.Date(2024, 1, 29, 12, 0, 0, 400_000_000, time.UTC)
	b, e := Request{Time: t0}.Dump()
	if want := time.Date(2024, 1, 29, 11, 57, 30, 0, time.UTC); !b.Equal(want) {
		t.Errorf("dump begin = %v, want %v", b, want)
	}
	if want := time.Date(2024, 1, 29, 12, 0, 50, 0, time.UTC); !e.Equal(want) {
		t.Errorf("dump end = %v, want %v", e, want)
	}

	// Zero offset is a valid request, not a missing one.
	zero := time.Duration(0)
	b, e = Request{Time: t0, Offset: &zero}.Dump()
	if want := time.Date(2024, 1, 29, 11, 56, 40, 0, time.UTC); !b.Equal(want) {
		t.Errorf("zero offset dump begin = %v, want %v", b, want)
	}
	if want := time.Date(2024, 1, 29, 12, 0, 0, 0, time.UTC); !e.Equal(want) {
		t.Errorf("zero offset dump end = %v, want %v", e, want)
	}

	late := 30 * time.Second
	b, e = Request{Time: t0, Exposure: 100 * time.Second, Offset: &late}.Dump()
	if want := time.Date(2024, 1, 29, 11, 57, 50, 0, time.UTC); !b.Equal(want) || !e.Equal(b.Add(100*time.Second)) {
		t.Errorf("dump = %v - %v, want start %v", b, e, want)
	}

	explicit := Request{Time: t0, DumpBegin: t0.Add(-time.Minute), DumpEnd: t0.Add(time.Minute)}
	if b, e := explicit.Dump(); !b.Equal(explicit.DumpBegin) || !e.Equal(explicit.DumpEnd) {
		t.Errorf("explicit dump not kept: %v - %v", b, e)
	}
}

func TestScreenTiming(t *testing.T) {
	now := day.Add(14 * time.Hour)
	s, _ := testScreener(t, now)

	tests := []struct {
		name   string
		t0     time.Time
		reason Reason
	}{
		{"future", now.Add(time.Minute), ReasonOther},
		{"too old", now.Add(-49 * time.Hour), ReasonTooOld},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := s.Screen(context.Background(), Request{Mission: "burstcube", Time: tt.t0})
			if err != nil {
				t.Fatalf("Screen: %v", err)
			}
			if d.Status != Rejected || d.Reason != tt.reason {
				t.Errorf("decision = %s/%s, want rejected/%s", d.Status, d.Reason, tt.reason)
			}
		})
	}
}

func TestScreenGeometry(t *testing.T) {
	svc := testService(t)
	p := passages(t, svc)
	inSAA := p[0].Begin
	quiet := p[0].End.Add(p[1].Begin.Sub(p[0].End) / 2).Truncate(time.Minute)
	afterSAA := p[0].End.Add(time.Minute)

	zenith := sky.FromVec(r3.Scale(-1, earthDir(t, svc, quiet)))
	nadir := sky.FromVec(earthDir(t, svc, quiet))

	tests := []struct {
		name    string
		t0      time.Time
		target  fov.Target
		status  Status
		reason  Reason
		warning string
	}{
		{"in saa", inSAA, fov.Target{}, Rejected, ReasonSAA, "inside SAA"},
		{"zenith accepted", quiet, fov.Target{Coords: []sky.Coord{zenith}}, Accepted, ReasonNone, "100.00%"},
		{"nadir occulted", quiet, fov.Target{Coords: []sky.Coord{nadir}}, Rejected, ReasonEarthOccult, "occulted"},
		{"no target", quiet, fov.Target{}, Accepted, ReasonNone, ""},
		{"dump overlaps saa", afterSAA, fov.Target{}, Accepted, ReasonNone, "Dump time partially inside SAA."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScreener(svc, testLogger())
			s.now = func() time.Time { return tt.t0.Add(time.Hour) }

			d, err := s.Screen(context.Background(), Request{Mission: "burstcube", Time: tt.t0, Target: tt.target})
			if err != nil {
				t.Fatalf("Screen: %v", err)
			}
			if d.Status != tt.status || d.Reason != tt.reason {
				t.Errorf("decision = %s/%s (%v), want %s/%s", d.Status, d.Reason, d.Warnings, tt.status, tt.reason)
			}
			joined := strings.Join(d.Warnings, " ")
			if tt.warning != "" && !strings.Contains(joined, tt.warning) {
				t.Errorf("warnings %q missing %q", joined, tt.warning)
			}
			if tt.warning == "" && strings.Contains(joined, "SAA") {
				t.Errorf("unexpected SAA warning: %q", joined)
			}
		})
	}
}

func TestScreenErrors(t *testing.T) {
	now := day.Add(14 * time.Hour)
	s, _ := testScreener(t, now)

	tests := []struct {
		name string
		req  Request
	}{
		{"no time", Request{Mission: "burstcube"}},
		{"unknown mission", Request{Mission: "glast", Time: now}},
		{"bad target", Request{Mission: "burstcube", Time: now, Target: fov.Target{Coords: []sky.Coord{{RA: 400}}}}},
		{"two targets", Request{Mission: "burstcube", Time: now, Target: fov.Target{Coords: []sky.Coord{{RA: 1}, {RA: 2}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Screen(context.Background(), tt.req)
			if !errors.Is(err, errs.ErrInput) {
				t.Errorf("Screen() error = %v, want ErrInput", err)
			}
		})
	}
}
