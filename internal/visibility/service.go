// Package visibility answers mission-level questions: when a target can be
// observed, whether it is visible now, and when the spacecraft crosses the
// SAA. It ties together element lookup, the ephemeris cache and the
// constraint predicates.
package visibility

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/star/across/internal/cache"
	"github.com/star/across/internal/constraint"
	"github.com/star/across/internal/ephem"
	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/fov"
	"github.com/star/across/internal/metrics"
	"github.com/star/across/internal/mission"
	"github.com/star/across/internal/pointing"
	"github.com/star/across/internal/sky"
	"github.com/star/across/internal/tle"
	"github.com/star/across/internal/window"
)

// Service answers visibility queries. Safe for concurrent use.
type Service struct {
	missions *mission.Registry
	elements tle.Provider
	engine   *ephem.Engine
	cache    *cache.EphemerisCache
	logger   *slog.Logger

	mu     sync.Mutex
	newest map[string]time.Time // newest element epoch seen per mission
}

// NewService wires a Service.
func NewService(missions *mission.Registry, elements tle.Provider, engine *ephem.Engine, c *cache.EphemerisCache, logger *slog.Logger) *Service {
	return &Service{
		missions: missions,
		elements: elements,
		engine:   engine,
		cache:    c,
		logger:   logger,
		newest:   make(map[string]time.Time),
	}
}

// Missions returns the mission registry.
func (s *Service) Missions() *mission.Registry {
	return s.missions
}

// Query is a visibility-window request.
type Query struct {
	Mission string
	Target  sky.Coord
	Begin   time.Time
	End     time.Time
	// InSatellite selects the bare avoidance angles used on board; the
	// default adds the mission's planning margins.
	InSatellite bool
}

// Validate checks the query before any computation.
func (q Query) Validate() error {
	if q.Mission == "" {
		return errs.Input("mission is required")
	}
	if err := q.Target.Validate(); err != nil {
		return err
	}
	return validRange(q.Begin, q.End)
}

func validRange(begin, end time.Time) error {
	if begin.IsZero() || end.IsZero() {
		return errs.Input("begin and end are required")
	}
	if end.Before(begin) {
		return errs.Input("end %s is before begin %s", end.UTC().Format(time.RFC3339), begin.UTC().Format(time.RFC3339))
	}
	return nil
}

// Result is the answer to a Query.
type Result struct {
	Mission string          `json:"mission"`
	Target  sky.Coord       `json:"target"`
	Windows []window.Window `json:"windows"`
	// Stale is set when the elements used were beyond the mission's
	// staleness threshold.
	Stale *errs.StaleDataError `json:"-"`
}

// Ephemeris returns the cached day-aligned ephemeris covering [begin, end]
// at the mission's step, computing it on a miss.
func (s *Service) Ephemeris(ctx context.Context, cfg mission.Config, begin, end time.Time) (*ephem.Ephemeris, error) {
	if err := validRange(begin, end); err != nil {
		return nil, err
	}
	elements, err := s.elements.Elements(ctx, cfg.TLE.Source(), begin)
	if err != nil {
		return nil, fmt.Errorf("mission %s: %w", cfg.ID, err)
	}
	s.advance(cfg.ID, elements.Epoch)

	key := cache.NewKey(cfg.ID, begin, end, cfg.Ephem.Step)
	return s.cache.GetOrCompute(ctx, key, elements.Epoch, func(ctx context.Context) (*ephem.Ephemeris, error) {
		grid, err := key.Grid()
		if err != nil {
			return nil, err
		}
		return s.engine.Compute(ctx, elements, grid, Options(cfg))
	})
}

// advance records epoch as the mission's newest and, when it moves forward,
// drops cached ephemerides computed from the superseded elements.
func (s *Service) advance(missionID string, epoch time.Time) {
	id := strings.ToLower(missionID)
	s.mu.Lock()
	prev, seen := s.newest[id]
	moved := !seen || epoch.After(prev)
	if moved {
		s.newest[id] = epoch
	}
	s.mu.Unlock()

	if moved && seen {
		s.cache.Cutover(id, epoch)
	}
}

// Compute returns an uncached ephemeris on grid, for short high-resolution
// spans that would pollute the day cache.
func (s *Service) Compute(ctx context.Context, cfg mission.Config, grid ephem.TimeGrid) (*ephem.Ephemeris, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	elements, err := s.elements.Elements(ctx, cfg.TLE.Source(), grid.Begin)
	if err != nil {
		return nil, fmt.Errorf("mission %s: %w", cfg.ID, err)
	}
	return s.engine.Compute(ctx, elements, grid, Options(cfg))
}

// Options maps the mission's ephemeris settings to engine options.
func Options(cfg mission.Config) ephem.Options {
	return ephem.Options{
		Velocity:       cfg.Ephem.Velocity,
		Parallax:       cfg.Ephem.Parallax,
		Apparent:       cfg.Ephem.Apparent,
		EarthRadiusDeg: cfg.Ephem.EarthRadius,
		StaleAfter:     cfg.TLE.StaleAfter,
	}
}

// Windows returns the intervals in [q.Begin, q.End] during which q.Target
// is unconstrained.
func (s *Service) Windows(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	cfg, err := s.missions.Get(q.Mission)
	if err != nil {
		return nil, err
	}
	set, err := constraint.NewSet(cfg, !q.InSatellite)
	if err != nil {
		return nil, err
	}
	eph, err := s.Ephemeris(ctx, cfg, q.Begin, q.End)
	if err != nil {
		return nil, err
	}

	span, err := eph.Span(q.Begin, q.End)
	if err != nil {
		return nil, err
	}
	series, err := set.Series(eph, span, q.Target)
	if err != nil {
		return nil, err
	}
	windows, err := window.Synthesize(eph.Timestamps[span.Start:span.Stop], series)
	if err != nil {
		return nil, err
	}

	metrics.ObserveQuery("windows", time.Since(start))
	s.logger.Debug("visibility windows",
		"mission", cfg.ID,
		"ra", q.Target.RA,
		"dec", q.Target.Dec,
		"windows", len(windows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Result{Mission: cfg.ID, Target: q.Target, Windows: windows, Stale: eph.Stale}, nil
}

// Instant is the answer to a single-time visibility check.
type Instant struct {
	Time    time.Time `json:"time"`
	Visible bool      `json:"visible"`
	// BlockedBy names the highest-priority constraint in effect, if any.
	BlockedBy string `json:"blocked_by,omitempty"`
}

// Visible reports whether target is unconstrained at the grid instant
// nearest t, using the bare (in-satellite) avoidance angles.
func (s *Service) Visible(ctx context.Context, missionID string, t time.Time, target sky.Coord) (Instant, error) {
	if err := target.Validate(); err != nil {
		return Instant{}, err
	}
	cfg, err := s.missions.Get(missionID)
	if err != nil {
		return Instant{}, err
	}
	set, err := constraint.NewSet(cfg, false)
	if err != nil {
		return Instant{}, err
	}
	eph, err := s.Ephemeris(ctx, cfg, t, t)
	if err != nil {
		return Instant{}, err
	}
	i, err := eph.Index(t)
	if err != nil {
		return Instant{}, err
	}
	blocked, kind, err := set.Blocked(eph, i, target)
	if err != nil {
		return Instant{}, err
	}
	out := Instant{Time: eph.Timestamps[i], Visible: !blocked}
	if blocked {
		out.BlockedBy = kind.String()
	}
	return out, nil
}

// SAAPassages returns the intervals in [begin, end] during which the
// spacecraft is inside the mission's SAA polygon.
func (s *Service) SAAPassages(ctx context.Context, missionID string, begin, end time.Time) ([]window.Interval, error) {
	start := time.Now()
	cfg, region, err := s.saaMission(missionID)
	if err != nil {
		return nil, err
	}
	eph, err := s.Ephemeris(ctx, cfg, begin, end)
	if err != nil {
		return nil, err
	}
	passages, err := Passages(eph, region, begin, end)
	if err != nil {
		return nil, err
	}
	metrics.ObserveQuery("saa", time.Since(start))
	return passages, nil
}

// Passages returns the runs of eph within [begin, end] inside region.
func Passages(eph *ephem.Ephemeris, region constraint.SAA, begin, end time.Time) ([]window.Interval, error) {
	span, err := eph.Span(begin, end)
	if err != nil {
		return nil, err
	}
	inside, err := region.Evaluate(eph, span, sky.Coord{})
	if err != nil {
		return nil, err
	}
	return window.Gaps(eph.Timestamps[span.Start:span.Stop], inside)
}

// InSAA reports whether the spacecraft is inside the SAA at the grid
// instant nearest t.
func (s *Service) InSAA(ctx context.Context, missionID string, t time.Time) (bool, error) {
	cfg, region, err := s.saaMission(missionID)
	if err != nil {
		return false, err
	}
	eph, err := s.Ephemeris(ctx, cfg, t, t)
	if err != nil {
		return false, err
	}
	return constraint.At(region, eph, t, sky.Coord{})
}

func (s *Service) saaMission(missionID string) (mission.Config, constraint.SAA, error) {
	cfg, err := s.missions.Get(missionID)
	if err != nil {
		return mission.Config{}, constraint.SAA{}, err
	}
	region, err := cfg.Region()
	if err != nil {
		return mission.Config{}, constraint.SAA{}, err
	}
	if region == nil {
		return mission.Config{}, constraint.SAA{}, errs.Input("mission %s has no SAA polygon", cfg.ID)
	}
	return cfg, constraint.SAA{Region: region}, nil
}

// FOVQuery asks how much of a target falls in an instrument's field of
// view over [Begin, End].
type FOVQuery struct {
	Mission    string
	Instrument string // empty selects the mission's first instrument
	Target     fov.Target
	Begin      time.Time
	End        time.Time
	// Pointing supplies the attitude; nil uses the all-sky dummy.
	Pointing pointing.Provider
	// EarthOcculted removes directions behind the Earth.
	EarthOcculted bool
}

// Checker builds the FOV checker for one of the mission's instruments.
func Checker(cfg mission.Config, instrument string, earthOcculted bool) (*fov.Checker, error) {
	in, err := cfg.Instrument(instrument)
	if err != nil {
		return nil, err
	}
	fp, err := fov.FromConfig(in.FOV)
	if err != nil {
		return nil, err
	}
	var earth *constraint.EarthLimb
	if earthOcculted {
		earth = &constraint.EarthLimb{Angle: cfg.Constraints.EarthOccult}
	}
	return fov.NewChecker(earth, fp), nil
}

// FOV evaluates q at every ephemeris step in the range.
func (s *Service) FOV(ctx context.Context, q FOVQuery) ([]fov.Point, error) {
	start := time.Now()
	if err := q.Target.Validate(); err != nil {
		return nil, err
	}
	cfg, err := s.missions.Get(q.Mission)
	if err != nil {
		return nil, err
	}
	checker, err := Checker(cfg, q.Instrument, q.EarthOcculted)
	if err != nil {
		return nil, err
	}
	eph, err := s.Ephemeris(ctx, cfg, q.Begin, q.End)
	if err != nil {
		return nil, err
	}
	provider := q.Pointing
	if provider == nil {
		provider = pointing.AllSky
	}
	points, err := checker.Check(ctx, eph, q.Begin, q.End, q.Target, provider)
	if err != nil {
		return nil, err
	}
	metrics.ObserveQuery("fov", time.Since(start))
	return points, nil
}
