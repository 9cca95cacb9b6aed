package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/star/across/internal/errs"
)

// Parse reads element sets from r. Both the 3-line form (name line followed
// by the two element lines) and the bare 2-line form are accepted, mixed
// freely. A leading "0 " on a name line is stripped.
// Malformed entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]Elements, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Elements
	var name string
	for i := 0; i < len(lines); {
		line := lines[i]

		if !strings.HasPrefix(line, "1 ") {
			if strings.HasPrefix(line, "2 ") {
				logger.Warn("skipping orphan TLE line 2", "line_index", i)
			} else {
				name = strings.TrimSpace(strings.TrimPrefix(line, "0 "))
			}
			i++
			continue
		}

		if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "2 ") {
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			name = ""
			i++
			continue
		}

		e, err := ParseLines(name, line, lines[i+1])
		if err != nil {
			logger.Warn("skipping invalid TLE entry", "name", name, "error", err)
		} else {
			entries = append(entries, e)
		}
		name = ""
		i += 2
	}

	return entries, nil
}

// ParseLines builds Elements from a name and two element lines, decoding the
// catalog number and epoch from line 1.
func ParseLines(name, line1, line2 string) (Elements, error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)
	if err := checkLines(line1, line2); err != nil {
		return Elements{}, err
	}

	// NORAD ID: line1 cols 3-7.
	noradStr := strings.TrimSpace(line1[2:7])
	noradID, err := strconv.Atoi(noradStr)
	if err != nil {
		return Elements{}, errs.Input("invalid NORAD ID %q", noradStr)
	}

	// Epoch: line1 cols 19-32.
	epochStr := strings.TrimSpace(line1[18:32])
	epoch, err := parseEpoch(epochStr)
	if err != nil {
		return Elements{}, errs.Input("line1 epoch: %v", err)
	}

	return Elements{
		NORADID: noradID,
		Name:    strings.TrimSpace(name),
		Epoch:   epoch,
		Line1:   line1,
		Line2:   line2,
	}, nil
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	yearStr := s[:2]
	dayStr := s[2:]

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", yearStr, err)
	}

	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(dayStr, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", dayStr, err)
	}
	if dayOfYear < 1 || dayOfYear >= 367 {
		return time.Time{}, fmt.Errorf("epoch day %v out of range", dayOfYear)
	}

	// dayOfYear is 1-based: day 1.0 = Jan 1 00:00. Rounded to the microsecond,
	// the resolution of the 8-digit fraction.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	dur := time.Duration((dayOfYear - 1) * float64(24*time.Hour)).Round(time.Microsecond)
	return t.Add(dur), nil
}
