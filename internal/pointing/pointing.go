// Package pointing supplies spacecraft attitude over time.
package pointing

import (
	"context"
	"time"

	"github.com/star/across/internal/ephem"
	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/sky"
)

// Pointing is the spacecraft attitude at one instant. Observing is false
// while the instruments are not taking data (slewing, safe mode).
type Pointing struct {
	Time      time.Time `json:"timestamp"`
	RA        float64   `json:"ra"`
	Dec       float64   `json:"dec"`
	Roll      float64   `json:"roll"`
	Observing bool      `json:"observing"`
}

// Boresight returns the pointing direction.
func (p Pointing) Boresight() sky.Coord {
	return sky.Coord{RA: p.RA, Dec: p.Dec}
}

// Provider returns the pointings at each step in [begin, end].
type Provider interface {
	Pointings(ctx context.Context, begin, end time.Time, step time.Duration) ([]Pointing, error)
}

// Times rounds begin and end to step and returns every step between them,
// inclusive.
func Times(begin, end time.Time, step time.Duration) ([]time.Time, error) {
	if step <= 0 {
		return nil, errs.Input("step %s must be positive", step)
	}
	b := ephem.RoundTime(begin, step)
	e := ephem.RoundTime(end, step)
	if e.Before(b) {
		return nil, errs.Input("end %s is before begin %s", end.UTC().Format(time.RFC3339), begin.UTC().Format(time.RFC3339))
	}
	n := int(e.Sub(b) / step)
	out := make([]time.Time, n+1)
	for i := range out {
		out[i] = b.Add(time.Duration(i) * step)
	}
	return out, nil
}

// Fixed holds one attitude for all time. A zero Fixed is the dummy
// pointing used for non-pointed all-sky instruments.
type Fixed struct {
	RA   float64
	Dec  float64
	Roll float64
}

// AllSky is the dummy provider for instruments with no pointing.
var AllSky Provider = Fixed{}

// Pointings implements Provider.
func (f Fixed) Pointings(ctx context.Context, begin, end time.Time, step time.Duration) ([]Pointing, error) {
	if err := (sky.Coord{RA: f.RA, Dec: f.Dec}).Validate(); err != nil {
		return nil, err
	}
	times, err := Times(begin, end, step)
	if err != nil {
		return nil, err
	}
	out := make([]Pointing, len(times))
	for i, t := range times {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out[i] = Pointing{Time: t, RA: f.RA, Dec: f.Dec, Roll: f.Roll, Observing: true}
	}
	return out, nil
}
