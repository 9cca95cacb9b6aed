package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/star/across/internal/ephem"
	"github.com/star/across/internal/fov"
	"github.com/star/across/internal/trigger"
	"github.com/star/across/internal/visibility"
	"github.com/star/across/internal/window"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27")).Bold(true)
)

// styled reports whether w is a terminal; piped output stays plain.
func styled(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeTable renders rows as a bordered table on a terminal and as
// tab-aligned columns otherwise.
func writeTable(w io.Writer, title string, headers []string, rows [][]string) error {
	if !styled(w) {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "# %s\n", title)
		fmt.Fprintln(tw, strings.Join(headers, "\t"))
		for _, r := range rows {
			fmt.Fprintln(tw, strings.Join(r, "\t"))
		}
		return tw.Flush()
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)

	_, err := fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render(title), t.Render())
	return err
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func fmtDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}

// ephemRow is one printed ephemeris instant.
type ephemRow struct {
	Time      time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude_km"`
	EarthRA   float64   `json:"earth_ra"`
	EarthDec  float64   `json:"earth_dec"`
	EarthSize float64   `json:"earth_size"`
	SunRA     float64   `json:"sun_ra"`
	SunDec    float64   `json:"sun_dec"`
	MoonRA    float64   `json:"moon_ra"`
	MoonDec   float64   `json:"moon_dec"`
	Beta      *float64  `json:"beta,omitempty"`
	Eclipse   bool      `json:"eclipse"`
}

func newEphemRow(s ephem.Sample) ephemRow {
	r := ephemRow{
		Time:      s.Time,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Altitude:  s.Altitude,
		EarthRA:   s.Earth.RA,
		EarthDec:  s.Earth.Dec,
		EarthSize: s.EarthSize,
		SunRA:     s.Sun.RA,
		SunDec:    s.Sun.Dec,
		MoonRA:    s.Moon.RA,
		MoonDec:   s.Moon.Dec,
		Eclipse:   s.Eclipse,
	}
	if !math.IsNaN(s.Beta) {
		b := s.Beta
		r.Beta = &b
	}
	return r
}

func writeEphem(w io.Writer, name string, rows []ephemRow) error {
	headers := []string{"Time (UTC)", "Lat", "Lon", "Alt km", "Earth size", "Sun RA/Dec", "Moon RA/Dec", "Beta", "Eclipse"}
	out := make([][]string, len(rows))
	for i, r := range rows {
		beta := "-"
		if r.Beta != nil {
			beta = fmt.Sprintf("%.2f", *r.Beta)
		}
		out[i] = []string{
			fmtTime(r.Time),
			fmt.Sprintf("%.3f", r.Latitude),
			fmt.Sprintf("%.3f", r.Longitude),
			fmt.Sprintf("%.1f", r.Altitude),
			fmt.Sprintf("%.2f", r.EarthSize),
			fmt.Sprintf("%.2f %+.2f", r.SunRA, r.SunDec),
			fmt.Sprintf("%.2f %+.2f", r.MoonRA, r.MoonDec),
			beta,
			yesNo(r.Eclipse),
		}
	}
	return writeTable(w, "Ephemeris: "+name, headers, out)
}

func writeWindows(w io.Writer, res *visibility.Result) error {
	headers := []string{"Begin (UTC)", "End (UTC)", "Duration", "Opened by", "Closed by"}
	rows := make([][]string, len(res.Windows))
	var total time.Duration
	for i, win := range res.Windows {
		total += win.Duration()
		rows[i] = []string{fmtTime(win.Begin), fmtTime(win.End), fmtDuration(win.Duration()), win.Initial, win.Final}
	}
	title := fmt.Sprintf("Visibility: %s  RA %.4f Dec %+.4f  (%d windows, %s total)",
		res.Mission, res.Target.RA, res.Target.Dec, len(res.Windows), fmtDuration(total))
	return writeTable(w, title, headers, rows)
}

func writeIntervals(w io.Writer, title string, intervals []window.Interval) error {
	headers := []string{"Begin (UTC)", "End (UTC)", "Duration"}
	rows := make([][]string, len(intervals))
	for i, iv := range intervals {
		rows[i] = []string{fmtTime(iv.Begin), fmtTime(iv.End), fmtDuration(iv.End.Sub(iv.Begin))}
	}
	return writeTable(w, fmt.Sprintf("%s (%d)", title, len(intervals)), headers, rows)
}

func writeFOV(w io.Writer, mission string, points []fov.Point) error {
	headers := []string{"Time (UTC)", "Pointing RA/Dec", "In FOV", "Probability"}
	rows := make([][]string, len(points))
	var in int
	for i, p := range points {
		if p.InFOV {
			in++
		}
		rows[i] = []string{fmtTime(p.Time), fmt.Sprintf("%.2f %+.2f", p.RA, p.Dec), yesNo(p.InFOV), fmt.Sprintf("%.5f", p.Probability)}
	}
	return writeTable(w, fmt.Sprintf("FOV: %s (%d of %d steps in view)", mission, in, len(points)), headers, rows)
}

func writeDecision(w io.Writer, d *trigger.Decision) error {
	status := string(d.Status)
	if styled(w) {
		if d.Status == trigger.Accepted {
			status = okStyle.Render(status)
		} else {
			status = errorStyle.Render(status)
		}
	}
	fmt.Fprintf(w, "status:  %s\n", status)
	fmt.Fprintf(w, "reason:  %s\n", d.Reason)
	fmt.Fprintf(w, "dump:    %s - %s\n", fmtTime(d.DumpBegin), fmtTime(d.DumpEnd))
	if d.Probability != nil {
		fmt.Fprintf(w, "in fov:  %.5f\n", *d.Probability)
	}
	for _, warn := range d.Warnings {
		fmt.Fprintf(w, "  - %s\n", warn)
	}
	return nil
}
