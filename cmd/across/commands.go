package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/fov"
	"github.com/star/across/internal/metrics"
	"github.com/star/across/internal/pointing"
	"github.com/star/across/internal/server"
	"github.com/star/across/internal/sky"
	"github.com/star/across/internal/trigger"
	"github.com/star/across/internal/visibility"
)

// rangeFlags are the flags shared by range queries.
type rangeFlags struct {
	mission string
	begin   string
	end     string
	json    bool
}

func (r *rangeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&r.mission, "mission", "swift", "mission id")
	fs.StringVar(&r.begin, "begin", "", "range start, RFC 3339 (default: start of today UTC)")
	fs.StringVar(&r.end, "end", "", "range end, RFC 3339 (default: begin + 24h)")
	fs.BoolVar(&r.json, "json", false, "write JSON instead of a table")
}

func (r *rangeFlags) times(now time.Time) (time.Time, time.Time, error) {
	begin := now.UTC().Truncate(24 * time.Hour)
	if r.begin != "" {
		t, err := parseTime(r.begin)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		begin = t
	}
	end := begin.Add(24 * time.Hour)
	if r.end != "" {
		t, err := parseTime(r.end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}
	return begin, end, nil
}

// parseTime accepts RFC 3339 with or without a zone; zoneless times are UTC.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errs.Input("cannot parse time %q", s)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("across "+name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func (a *app) runEphem(ctx context.Context, args []string) error {
	var rf rangeFlags
	fs := newFlagSet("ephem")
	rf.register(fs)
	every := fs.Int("every", 10, "print every n-th grid instant")
	if err := fs.Parse(args); err != nil {
		return err
	}
	begin, end, err := rf.times(time.Now())
	if err != nil {
		return err
	}
	if *every < 1 {
		return errs.Input("-every must be positive")
	}
	cfg, err := a.svc.Missions().Get(rf.mission)
	if err != nil {
		return err
	}
	eph, err := a.svc.Ephemeris(ctx, cfg, begin, end)
	if err != nil {
		return err
	}
	span, err := eph.Span(begin, end)
	if err != nil {
		return err
	}
	eph = eph.Slice(span)
	warnStale(eph.Stale)

	var rows []ephemRow
	for i := 0; i < eph.Len(); i += *every {
		rows = append(rows, newEphemRow(eph.Sample(i)))
	}
	if rf.json {
		return writeJSON(os.Stdout, rows)
	}
	return writeEphem(os.Stdout, cfg.Name, rows)
}

func (a *app) runWindows(ctx context.Context, args []string) error {
	var rf rangeFlags
	fs := newFlagSet("windows")
	rf.register(fs)
	ra := fs.Float64("ra", -1, "target right ascension, deg")
	dec := fs.Float64("dec", -91, "target declination, deg")
	insat := fs.Bool("insat", false, "use on-board avoidance angles without planning margins")
	if err := fs.Parse(args); err != nil {
		return err
	}
	begin, end, err := rf.times(time.Now())
	if err != nil {
		return err
	}

	res, err := a.svc.Windows(ctx, visibility.Query{
		Mission:     rf.mission,
		Target:      sky.Coord{RA: *ra, Dec: *dec},
		Begin:       begin,
		End:         end,
		InSatellite: *insat,
	})
	if err != nil {
		return err
	}
	warnStale(res.Stale)
	if rf.json {
		return writeJSON(os.Stdout, res)
	}
	return writeWindows(os.Stdout, res)
}

func (a *app) runSAA(ctx context.Context, args []string) error {
	var rf rangeFlags
	fs := newFlagSet("saa")
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	begin, end, err := rf.times(time.Now())
	if err != nil {
		return err
	}
	passages, err := a.svc.SAAPassages(ctx, rf.mission, begin, end)
	if err != nil {
		return err
	}
	if rf.json {
		return writeJSON(os.Stdout, passages)
	}
	return writeIntervals(os.Stdout, "SAA passages: "+rf.mission, passages)
}

func (a *app) runFOV(ctx context.Context, args []string) error {
	var rf rangeFlags
	fs := newFlagSet("fov")
	rf.register(fs)
	instrument := fs.String("instrument", "", "instrument short name (default: the mission's first)")
	ra := fs.Float64("ra", -1, "target right ascension, deg")
	dec := fs.Float64("dec", -91, "target declination, deg")
	radius := fs.Float64("error", 0, "1-sigma error radius, deg")
	pointRA := fs.Float64("point-ra", 0, "spacecraft pointing right ascension, deg")
	pointDec := fs.Float64("point-dec", 0, "spacecraft pointing declination, deg")
	roll := fs.Float64("roll", 0, "spacecraft roll, deg")
	occult := fs.Bool("occult", true, "remove directions hidden by the Earth")
	if err := fs.Parse(args); err != nil {
		return err
	}
	begin, end, err := rf.times(time.Now())
	if err != nil {
		return err
	}

	points, err := a.svc.FOV(ctx, visibility.FOVQuery{
		Mission:       rf.mission,
		Instrument:    *instrument,
		Target:        fov.Target{Coords: []sky.Coord{{RA: *ra, Dec: *dec}}, ErrorRadius: *radius},
		Begin:         begin,
		End:           end,
		Pointing:      pointing.Fixed{RA: *pointRA, Dec: *pointDec, Roll: *roll},
		EarthOcculted: *occult,
	})
	if err != nil {
		return err
	}
	if rf.json {
		return writeJSON(os.Stdout, points)
	}
	return writeFOV(os.Stdout, rf.mission, points)
}

func (a *app) runTrigger(ctx context.Context, args []string) error {
	fs := newFlagSet("trigger")
	mission := fs.String("mission", "burstcube", "mission id")
	at := fs.String("time", "", "trigger time T0, RFC 3339")
	ra := fs.Float64("ra", -1, "target right ascension, deg (omit to skip the FOV check)")
	dec := fs.Float64("dec", -91, "target declination, deg")
	radius := fs.Float64("error", 0, "1-sigma error radius, deg")
	exposure := fs.Duration("exposure", trigger.DefaultExposure, "event-data dump length")
	offset := fs.Duration("offset", trigger.DefaultOffset, "T0 offset from the middle of the dump")
	asJSON := fs.Bool("json", false, "write JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *at == "" {
		return errs.Input("-time is required")
	}
	t0, err := parseTime(*at)
	if err != nil {
		return err
	}

	req := trigger.Request{Mission: *mission, Time: t0, Exposure: *exposure, Offset: offset}
	if *ra >= 0 || *dec >= -90 {
		req.Target = fov.Target{Coords: []sky.Coord{{RA: *ra, Dec: *dec}}, ErrorRadius: *radius}
	}
	d, err := trigger.NewScreener(a.svc, a.logger).Screen(ctx, req)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(os.Stdout, d)
	}
	return writeDecision(os.Stdout, d)
}

func (a *app) runServe(ctx context.Context, args []string) error {
	fs := newFlagSet("serve")
	addr := fs.String("addr", a.cfg.MetricsAddr, "ops listen address")
	missions := fs.String("missions", strings.Join(a.svc.Missions().IDs(), ","), "comma-separated missions to keep warm")
	refresh := fs.Duration("refresh", time.Hour, "how often to refresh today's ephemerides")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ids := strings.Split(*missions, ",")
	for _, id := range ids {
		if _, err := a.svc.Missions().Get(id); err != nil {
			return err
		}
	}

	var ready atomic.Bool
	srv := server.New(*addr, a.logger, ready.Load)

	go a.cache.Start(ctx, time.Hour)
	go a.keepWarm(ctx, ids, *refresh, &ready)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("ops listener: %w", err)
	case <-ctx.Done():
	}
	a.logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}

// keepWarm computes today's ephemeris for each mission now and every
// refresh, marking the process ready after the first full pass.
func (a *app) keepWarm(ctx context.Context, ids []string, refresh time.Duration, ready *atomic.Bool) {
	warm := func() {
		now := time.Now().UTC()
		ok := 0
		for _, id := range ids {
			cfg, err := a.svc.Missions().Get(id)
			if err != nil {
				continue
			}
			start := time.Now()
			eph, err := a.svc.Ephemeris(ctx, cfg, now, now)
			if err != nil {
				a.logger.Warn("warmup failed", "mission", id, "error", err)
				continue
			}
			ok++
			attrs := []any{
				"mission", id,
				"points", eph.Len(),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if latest, found := a.store.Latest(cfg.TLE.NORADID); found {
				attrs = append(attrs, "latest_epoch", latest.Epoch.Format(time.RFC3339))
			}
			a.logger.Info("ephemeris warm", attrs...)
		}
		if age := a.store.AgeSeconds(); age >= 0 {
			metrics.SetTLEStoreAge(age)
		}
		if ok > 0 && a.store.Len() > 0 {
			ready.Store(true)
		}
	}

	warm()
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			warm()
		}
	}
}

func warnStale(stale *errs.StaleDataError) {
	if stale != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", stale)
	}
}
