package mission

import (
	"slices"
	"strings"
	"time"

	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/saa"
)

const (
	day          = 24 * time.Hour
	defaultStep  = 60 * time.Second
	defaultStale = 4 * day
)

// Registry maps lower-case mission ids to configurations.
type Registry struct {
	missions map[string]Config
}

// NewRegistry builds a registry from cfgs, validating each.
func NewRegistry(cfgs ...Config) (*Registry, error) {
	r := &Registry{missions: make(map[string]Config, len(cfgs))}
	for _, c := range cfgs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		r.missions[strings.ToLower(c.ID)] = c
	}
	return r, nil
}

// Get returns the configuration for id.
func (r *Registry) Get(id string) (Config, error) {
	c, ok := r.missions[strings.ToLower(id)]
	if !ok {
		return Config{}, errs.Input("unknown mission %q", id)
	}
	return c, nil
}

// IDs returns the registered mission ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.missions))
	for id := range r.missions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Builtin returns the stock mission configurations.
func Builtin() []Config {
	return []Config{Swift(), Fermi(), NICER(), NuSTAR(), BurstCube()}
}

// Swift is the Neil Gehrels Swift Observatory.
func Swift() Config {
	return Config{
		ID:   "swift",
		Name: "Neil Gehrels Swift Observatory",
		Constraints: Constraints{
			EarthOccult: 28, MoonOccult: 22, SunOccult: 46, RamSize: 10,
			EarthExtra: 5, MoonExtra: 1, SunExtra: 1,
			Earth: true, Moon: true, Sun: true, SAA: true,
		},
		Ephem: Ephem{Parallax: true, Apparent: true, Velocity: true, Step: defaultStep},
		TLE: TLE{
			NORADID:    28485,
			Name:       "SWIFT",
			URL:        "https://celestrak.org/NORAD/elements/gp.php?INTDES=2004-047",
			ConcatURL:  "https://www.swift.ac.uk/about/status_files/tle",
			StaleAfter: defaultStale,
			MinEpoch:   time.Date(2004, 11, 20, 0, 0, 0, 0, time.UTC),
		},
		SAA: saa.SwiftPoints,
		Instruments: []Instrument{
			{Name: "X-ray Telescope", ShortName: "XRT", FOV: FOV{Type: FOVCircle, Dimension: 11.8 / 60}},
			{Name: "UltraViolet/Optical Telescope", ShortName: "UVOT", FOV: FOV{Type: FOVSquare, Dimension: 17.0 / 60}},
		},
	}
}

// Fermi is the Fermi Gamma-ray Space Telescope.
func Fermi() Config {
	return Config{
		ID:          "fermi",
		Name:        "Fermi Gamma-Ray Space Telescope",
		Constraints: Constraints{EarthOccult: 3, Earth: true, SAA: true},
		Ephem:       Ephem{Apparent: true, Step: defaultStep},
		TLE: TLE{
			NORADID:    33053,
			Name:       "FGRST (GLAST)",
			URL:        "http://celestrak.org/NORAD/elements/gp.php?INTDES=2008-029",
			StaleAfter: defaultStale,
			MinEpoch:   time.Date(2008, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		SAA: saa.FermiPoints,
		Instruments: []Instrument{
			{Name: "Gamma-ray Burst Monitor", ShortName: "GBM", FOV: FOV{Type: FOVAllSky}},
			// 2.4 sr expressed as a cone radius.
			{Name: "Large Area Telescope", ShortName: "LAT", FOV: FOV{Type: FOVCircle, Dimension: 50.08}},
		},
		Trigger: Trigger{MinProbability: 0.01, MaxAge: 48 * time.Hour},
	}
}

// NICER flies on the ISS and shares Swift's SAA polygon.
func NICER() Config {
	return Config{
		ID:          "nicer",
		Name:        "Neutron star Interior Composition ExploreR",
		Constraints: Constraints{Earth: true, SAA: true},
		Ephem:       Ephem{Apparent: true, Step: defaultStep},
		TLE: TLE{
			NORADID:    25544,
			Name:       "ISS (ZARYA)",
			URL:        "https://celestrak.org/NORAD/elements/gp.php?INTDES=1998-067",
			StaleAfter: defaultStale,
			MinEpoch:   time.Date(2017, 6, 14, 0, 0, 0, 0, time.UTC),
		},
		SAA: saa.SwiftPoints,
		Instruments: []Instrument{
			{Name: "X-ray Timing Instrument", ShortName: "XTI", FOV: FOV{Type: FOVCircle, Dimension: 5.0 / 60 / 2}},
		},
	}
}

// NuSTAR has no SAA constraint.
func NuSTAR() Config {
	return Config{
		ID:          "nustar",
		Name:        "Nuclear Spectroscopic Telescope Array",
		Constraints: Constraints{EarthOccult: 3, MoonOccult: 14, SunOccult: 50, Earth: true, Moon: true, Sun: true},
		Ephem:       Ephem{Apparent: true, Step: defaultStep},
		TLE: TLE{
			NORADID:    38358,
			Name:       "NuSTAR",
			ConcatURL:  "https://nustarsoc.caltech.edu/NuSTAR_Public/NuSTAROperationSite/NuSTAR.tle",
			StaleAfter: defaultStale,
			MinEpoch:   time.Date(2012, 6, 13, 0, 0, 0, 0, time.UTC),
		},
		Instruments: []Instrument{
			{Name: "Focal Plane Mirror Array A", ShortName: "FPMA", FOV: FOV{Type: FOVSquare, Dimension: 10.0 / 60}},
			{Name: "Focal Plane Mirror Array B", ShortName: "FPMB", FOV: FOV{Type: FOVSquare, Dimension: 10.0 / 60}},
		},
	}
}

// BurstCube is a CubeSat deployed from the ISS; it uses the ISS elements
// and a fixed 70° Earth radius.
func BurstCube() Config {
	return Config{
		ID:          "burstcube",
		Name:        "BurstCube",
		Constraints: Constraints{Earth: true, SAA: true},
		Ephem:       Ephem{Apparent: true, Step: defaultStep, EarthRadius: 70},
		TLE: TLE{
			NORADID:    25544,
			Name:       "ISS (ZARYA)",
			URL:        "https://celestrak.org/NORAD/elements/gp.php?INTDES=1998-067",
			StaleAfter: 40 * day,
			MinEpoch:   time.Date(2023, 12, 22, 0, 0, 0, 0, time.UTC),
		},
		SAA: saa.BurstCubePoints,
		Instruments: []Instrument{
			{Name: "BurstCube", ShortName: "BurstCube", FOV: FOV{Type: FOVAllSky}},
		},
		Trigger: Trigger{MinProbability: 0.01, MaxAge: 48 * time.Hour},
	}
}
