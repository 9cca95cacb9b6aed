package mission

import (
	"errors"
	"testing"

	"github.com/star/across/internal/errs"
)

func TestBuiltinValid(t *testing.T) {
	for _, c := range Builtin() {
		t.Run(c.ID, func(t *testing.T) {
			if err := c.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			r, err := c.Region()
			if err != nil {
				t.Fatalf("Region: %v", err)
			}
			if c.Constraints.SAA && r == nil {
				t.Error("SAA enabled but no region")
			}
			if src := c.TLE.Source(); src.NORADID != c.TLE.NORADID || src.Window != c.TLE.StaleAfter {
				t.Errorf("Source() = %+v", src)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(Builtin()...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	want := []string{"burstcube", "fermi", "nicer", "nustar", "swift"}
	ids := reg.IDs()
	if len(ids) != len(want) {
		t.Fatalf("IDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("IDs()[%d] = %s, want %s", i, ids[i], want[i])
		}
	}

	c, err := reg.Get("BurstCube")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Ephem.EarthRadius != 70 {
		t.Errorf("BurstCube earth radius = %v, want 70", c.Ephem.EarthRadius)
	}

	if _, err := reg.Get("hubble"); !errors.Is(err, errs.ErrInput) {
		t.Errorf("Get(hubble) error = %v, want ErrInput", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty id", func(c *Config) { c.ID = "" }},
		{"negative angle", func(c *Config) { c.Constraints.SunOccult = -1 }},
		{"ram without velocity", func(c *Config) { c.Constraints.Ram = true; c.Ephem.Velocity = false }},
		{"zero step", func(c *Config) { c.Ephem.Step = 0 }},
		{"no norad", func(c *Config) { c.TLE.NORADID = 0 }},
		{"saa without polygon", func(c *Config) { c.SAA = nil }},
		{"bad fov type", func(c *Config) { c.Instruments[0].FOV.Type = "hexagon" }},
		{"zero fov radius", func(c *Config) { c.Instruments[0].FOV.Dimension = 0 }},
		{"probability above one", func(c *Config) { c.Trigger.MinProbability = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Swift()
			tt.modify(&c)
			if err := c.Validate(); !errors.Is(err, errs.ErrInput) {
				t.Errorf("Validate error = %v, want ErrInput", err)
			}
		})
	}
}

func TestInstrumentLookup(t *testing.T) {
	c := Swift()

	in, err := c.Instrument("")
	if err != nil || in.ShortName != "XRT" {
		t.Errorf("Instrument(\"\") = %+v, %v; want XRT", in, err)
	}
	in, err = c.Instrument("uvot")
	if err != nil || in.FOV.Type != FOVSquare {
		t.Errorf("Instrument(uvot) = %+v, %v", in, err)
	}
	if _, err := c.Instrument("BAT"); !errors.Is(err, errs.ErrInput) {
		t.Errorf("Instrument(BAT) error = %v, want ErrInput", err)
	}
}
