// Package mission holds the per-mission configuration consumed by the
// visibility engine: constraint angles, ephemeris options, element sources,
// SAA polygon, instrument footprints and trigger-screening thresholds.
package mission

import (
	"fmt"
	"strings"
	"time"

	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/saa"
	"github.com/star/across/internal/tle"
)

// Constraints holds avoidance angles in degrees, planning margins and
// per-constraint switches.
type Constraints struct {
	EarthOccult float64 `mapstructure:"earth_occult"`
	MoonOccult  float64 `mapstructure:"moon_occult"`
	SunOccult   float64 `mapstructure:"sun_occult"`
	RamSize     float64 `mapstructure:"ram_size"`

	EarthExtra float64 `mapstructure:"earth_extra"`
	MoonExtra  float64 `mapstructure:"moon_extra"`
	SunExtra   float64 `mapstructure:"sun_extra"`
	RamExtra   float64 `mapstructure:"ram_extra"`
	PoleExtra  float64 `mapstructure:"pole_extra"`

	Earth bool `mapstructure:"earth"`
	Moon  bool `mapstructure:"moon"`
	Sun   bool `mapstructure:"sun"`
	Ram   bool `mapstructure:"ram"`
	Pole  bool `mapstructure:"pole"`
	SAA   bool `mapstructure:"saa"`
}

// Ephem controls ephemeris computation.
type Ephem struct {
	Parallax bool          `mapstructure:"parallax"`
	Apparent bool          `mapstructure:"apparent"`
	Velocity bool          `mapstructure:"velocity"`
	Step     time.Duration `mapstructure:"step"`
	// EarthRadius pins the Earth's angular radius in degrees; 0 derives it.
	EarthRadius float64 `mapstructure:"earth_radius"`
}

// TLE describes where the mission's orbital elements come from.
type TLE struct {
	NORADID    int           `mapstructure:"norad_id"`
	Name       string        `mapstructure:"name"`
	URL        string        `mapstructure:"url"`
	ConcatURL  string        `mapstructure:"concat_url"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
	MinEpoch   time.Time     `mapstructure:"-"`
}

// Source converts the settings for a tle.Provider.
func (t TLE) Source() tle.Source {
	return tle.Source{
		NORADID:   t.NORADID,
		Name:      t.Name,
		URL:       t.URL,
		ConcatURL: t.ConcatURL,
		Window:    t.StaleAfter,
		MinEpoch:  t.MinEpoch,
	}
}

// FOV types.
const (
	FOVAllSky = "all-sky"
	FOVCircle = "circular"
	FOVSquare = "square"
)

// FOV describes an instrument footprint. Dimension is the radius of a
// circular field or the side of a square one, in degrees.
type FOV struct {
	Type      string  `mapstructure:"type"`
	Dimension float64 `mapstructure:"dimension"`
}

// Instrument is one detector on the spacecraft.
type Instrument struct {
	Name      string `mapstructure:"name"`
	ShortName string `mapstructure:"short_name"`
	FOV       FOV    `mapstructure:"fov"`
}

// Trigger holds the thresholds for screening transient triggers.
type Trigger struct {
	MinProbability float64       `mapstructure:"min_probability"`
	MaxAge         time.Duration `mapstructure:"max_age"`
}

// Config is everything the engine needs to know about one mission.
type Config struct {
	ID          string       `mapstructure:"id"`
	Name        string       `mapstructure:"name"`
	Constraints Constraints  `mapstructure:"constraints"`
	Ephem       Ephem        `mapstructure:"ephem"`
	TLE         TLE          `mapstructure:"tle"`
	SAA         []saa.Point  `mapstructure:"saa"`
	Instruments []Instrument `mapstructure:"instruments"`
	Trigger     Trigger      `mapstructure:"trigger"`
}

// Region builds the mission's SAA polygon. Missions without one return nil.
func (c Config) Region() (*saa.Region, error) {
	if len(c.SAA) == 0 {
		return nil, nil
	}
	r, err := saa.NewRegion(c.SAA)
	if err != nil {
		return nil, fmt.Errorf("mission %s: %w", c.ID, err)
	}
	return r, nil
}

// Instrument returns the named instrument (case-insensitive), or the first
// instrument when name is empty.
func (c Config) Instrument(name string) (Instrument, error) {
	if len(c.Instruments) == 0 {
		return Instrument{}, errs.Input("mission %s has no instruments", c.ID)
	}
	if name == "" {
		return c.Instruments[0], nil
	}
	for _, in := range c.Instruments {
		if strings.EqualFold(in.ShortName, name) || strings.EqualFold(in.Name, name) {
			return in, nil
		}
	}
	return Instrument{}, errs.Input("mission %s has no instrument %q", c.ID, name)
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.ID == "" {
		return errs.Input("mission id is empty")
	}
	angles := map[string]float64{
		"earth_occult": c.Constraints.EarthOccult,
		"moon_occult":  c.Constraints.MoonOccult,
		"sun_occult":   c.Constraints.SunOccult,
		"ram_size":     c.Constraints.RamSize,
		"earth_extra":  c.Constraints.EarthExtra,
		"moon_extra":   c.Constraints.MoonExtra,
		"sun_extra":    c.Constraints.SunExtra,
		"ram_extra":    c.Constraints.RamExtra,
		"pole_extra":   c.Constraints.PoleExtra,
	}
	for name, a := range angles {
		if a < 0 || a >= 180 {
			return errs.Input("mission %s: %s %.3f outside [0, 180)", c.ID, name, a)
		}
	}
	if (c.Constraints.Ram || c.Constraints.Pole) && !c.Ephem.Velocity {
		return errs.Input("mission %s: ram and pole constraints need ephem.velocity", c.ID)
	}
	if c.Ephem.Step <= 0 {
		return errs.Input("mission %s: ephem step %s must be positive", c.ID, c.Ephem.Step)
	}
	if c.Ephem.EarthRadius < 0 || c.Ephem.EarthRadius >= 90 {
		return errs.Input("mission %s: earth_radius %.3f outside [0, 90)", c.ID, c.Ephem.EarthRadius)
	}
	if c.TLE.NORADID <= 0 {
		return errs.Input("mission %s: tle.norad_id must be positive", c.ID)
	}
	if c.Constraints.SAA {
		if len(c.SAA) == 0 {
			return errs.Input("mission %s: saa constraint enabled without a polygon", c.ID)
		}
		if _, err := c.Region(); err != nil {
			return err
		}
	}
	for _, in := range c.Instruments {
		switch in.FOV.Type {
		case FOVAllSky:
		case FOVCircle, FOVSquare:
			if in.FOV.Dimension <= 0 || in.FOV.Dimension > 180 {
				return errs.Input("mission %s: instrument %s dimension %.4f", c.ID, in.ShortName, in.FOV.Dimension)
			}
		default:
			return errs.Input("mission %s: instrument %s has unknown fov type %q", c.ID, in.ShortName, in.FOV.Type)
		}
	}
	if c.Trigger.MinProbability < 0 || c.Trigger.MinProbability > 1 {
		return errs.Input("mission %s: trigger min_probability %.3f outside [0, 1]", c.ID, c.Trigger.MinProbability)
	}
	return nil
}
