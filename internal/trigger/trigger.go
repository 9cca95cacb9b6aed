// Package trigger screens transient triggers (GRB alerts) for follow-up:
// a trigger is rejected if it is too new or too old, if the spacecraft was
// in the SAA at T0, or if the source was hidden behind the Earth.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/star/across/internal/constraint"
	"github.com/star/across/internal/ephem"
	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/fov"
	"github.com/star/across/internal/metrics"
	"github.com/star/across/internal/pointing"
	"github.com/star/across/internal/visibility"
	"github.com/star/across/internal/window"
)

// Status is the outcome of screening.
type Status string

const (
	Accepted Status = "accepted"
	Rejected Status = "rejected"
)

// Reason explains a rejection.
type Reason string

const (
	ReasonNone        Reason = "none"
	ReasonSAA         Reason = "saa"
	ReasonEarthOccult Reason = "earth_occult"
	ReasonTooOld      Reason = "too_old"
	ReasonOther       Reason = "other"
)

const (
	// DefaultExposure is the length of the event-data dump around T0.
	DefaultExposure = 200 * time.Second
	// DefaultOffset shifts T0 from the middle of the dump; negative values
	// put T0 later in the dump.
	DefaultOffset = -50 * time.Second

	dumpStep = time.Second
)

// Request is a trigger to screen. Target may be empty, in which case the
// field-of-view check is skipped.
type Request struct {
	Mission string
	Time    time.Time
	Target  fov.Target
	// DumpBegin and DumpEnd bound the event-data dump; zero values derive
	// it from Exposure and Offset.
	DumpBegin time.Time
	DumpEnd   time.Time
	Exposure  time.Duration
	// Offset is nil for DefaultOffset. Zero ends the dump at T0.
	Offset *time.Duration
}

// hasTarget reports whether a position or map was supplied.
func (r Request) hasTarget() bool {
	return len(r.Target.Coords) > 0 || r.Target.Map != nil
}

// Dump returns the dump interval: [T0 − Exposure − Offset, +Exposure],
// with T0 rounded to the second.
func (r Request) Dump() (time.Time, time.Time) {
	if !r.DumpBegin.IsZero() && !r.DumpEnd.IsZero() {
		return r.DumpBegin.UTC(), r.DumpEnd.UTC()
	}
	exposure := r.Exposure
	if exposure <= 0 {
		exposure = DefaultExposure
	}
	offset := DefaultOffset
	if r.Offset != nil {
		offset = *r.Offset
	}
	begin := ephem.RoundTime(r.Time, time.Second).Add(-(exposure + offset))
	return begin, begin.Add(exposure)
}

// Decision is the screening result.
type Decision struct {
	Status      Status    `json:"status"`
	Reason      Reason    `json:"reason"`
	Probability *float64  `json:"probability,omitempty"`
	Warnings    []string  `json:"warnings"`
	DumpBegin   time.Time `json:"dump_begin"`
	DumpEnd     time.Time `json:"dump_end"`
}

func (d *Decision) reject(reason Reason, warning string) *Decision {
	d.Status = Rejected
	d.Reason = reason
	d.Warnings = append(d.Warnings, warning)
	return d
}

// Screener screens triggers against a mission's geometry.
type Screener struct {
	svc    *visibility.Service
	logger *slog.Logger
	now    func() time.Time
}

// NewScreener creates a Screener.
func NewScreener(svc *visibility.Service, logger *slog.Logger) *Screener {
	return &Screener{svc: svc, logger: logger, now: time.Now}
}

// Screen checks r in order: trigger in the future, older than the
// mission's maximum age, spacecraft in the SAA at T0, target occulted or
// below the mission's minimum in-FOV probability. A dump that overlaps
// the SAA is accepted with a warning.
func (s *Screener) Screen(ctx context.Context, r Request) (*Decision, error) {
	start := time.Now()
	defer func() { metrics.ObserveQuery("trigger", time.Since(start)) }()

	if r.Time.IsZero() {
		return nil, errs.Input("trigger time is required")
	}
	if r.hasTarget() {
		if err := r.Target.Validate(); err != nil {
			return nil, err
		}
	}
	cfg, err := s.svc.Missions().Get(r.Mission)
	if err != nil {
		return nil, err
	}

	t0 := r.Time.UTC()
	dumpBegin, dumpEnd := r.Dump()
	if dumpEnd.Before(dumpBegin) {
		return nil, errs.Input("dump ends before it begins")
	}
	d := &Decision{Status: Accepted, Reason: ReasonNone, DumpBegin: dumpBegin, DumpEnd: dumpEnd}

	now := s.now()
	if t0.After(now) {
		return d.reject(ReasonOther, "Trigger time is in the future."), nil
	}
	if cfg.Trigger.MaxAge > 0 && t0.Before(now.Add(-cfg.Trigger.MaxAge)) {
		return d.reject(ReasonTooOld, "Trigger is too old."), nil
	}

	// The ephemeris covers both T0 and the dump.
	begin, end := dumpBegin, dumpEnd
	if t0.Before(begin) {
		begin = t0
	}
	if t0.After(end) {
		end = t0
	}
	grid, err := ephem.NewTimeGrid(ephem.RoundTime(begin, dumpStep), ephem.RoundTime(end, dumpStep), dumpStep)
	if err != nil {
		return nil, err
	}
	eph, err := s.svc.Compute(ctx, cfg, grid)
	if err != nil {
		return nil, err
	}
	if eph.Stale != nil {
		d.Warnings = append(d.Warnings, "Orbital elements are stale.")
	}

	var passages []window.Interval
	region, err := cfg.Region()
	if err != nil {
		return nil, err
	}
	if region != nil {
		i, err := eph.Index(t0)
		if err != nil {
			return nil, err
		}
		if region.Inside(eph.Latitude[i], eph.Longitude[i]) {
			return d.reject(ReasonSAA, "Trigger time inside SAA."), nil
		}
	}

	if r.hasTarget() {
		checker, err := visibility.Checker(cfg, "", true)
		if err != nil {
			return nil, err
		}
		p := pointing.Pointing{Time: t0, Observing: true}
		prob, err := checker.ProbabilityInFOV(eph, t0, r.Target, p)
		if err != nil {
			return nil, err
		}
		if prob == 0 || prob < cfg.Trigger.MinProbability {
			return d.reject(ReasonEarthOccult, "Trigger was occulted at T0."), nil
		}
		d.Probability = &prob
		d.Warnings = append(d.Warnings, fmt.Sprintf("Probability inside FOV: %.2f%%.", 100*prob))
	}

	if region != nil {
		passages, err = visibility.Passages(eph, constraint.SAA{Region: region}, dumpBegin, dumpEnd)
		if err != nil {
			return nil, err
		}
		if len(passages) > 0 {
			d.Warnings = append(d.Warnings, "Dump time partially inside SAA.")
		}
	}

	s.logger.Info("trigger screened",
		"mission", cfg.ID,
		"trigger_time", t0.Format(time.RFC3339),
		"status", d.Status,
		"saa_passages", len(passages),
	)
	return d, nil
}
