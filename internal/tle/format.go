package tle

import (
	"strconv"
	"strings"

	"github.com/star/across/internal/errs"
)

// lineLen is the fixed width of an element line, checksum included.
const lineLen = 69

// Checksum returns the modulo-10 checksum of the first 68 columns of an
// element line: the sum of all digits, with each minus sign counting as 1.
func Checksum(line string) int {
	var sum int
	for i := 0; i < lineLen-1 && i < len(line); i++ {
		switch c := line[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

func checkChecksum(n int, line string) error {
	got := int(line[lineLen-1] - '0')
	if want := Checksum(line); got != want {
		return errs.Input("line%d checksum %c, computed %d", n, line[lineLen-1], want)
	}
	return nil
}

// field is one fixed-column numeric field of an element line.
type field struct {
	name       string
	start, end int
	integer    bool
}

// Fields read by SGP4 initialization. Columns are 0-based, end exclusive.
var (
	line1Fields = []field{
		{name: "epoch", start: 18, end: 32},
		{name: "mean motion derivative", start: 33, end: 43},
		{name: "second derivative mantissa", start: 44, end: 50, integer: true},
		{name: "second derivative exponent", start: 50, end: 52, integer: true},
		{name: "bstar mantissa", start: 53, end: 59, integer: true},
		{name: "bstar exponent", start: 59, end: 61, integer: true},
	}
	line2Fields = []field{
		{name: "inclination", start: 8, end: 16},
		{name: "right ascension of node", start: 17, end: 25},
		{name: "eccentricity", start: 26, end: 33, integer: true},
		{name: "argument of perigee", start: 34, end: 42},
		{name: "mean anomaly", start: 43, end: 51},
		{name: "mean motion", start: 52, end: 63},
	}
)

func checkFields(n int, line string, fields []field) error {
	for _, f := range fields {
		s := strings.ReplaceAll(line[f.start:f.end], " ", "")
		var err error
		if f.integer {
			_, err = strconv.Atoi(s)
		} else {
			_, err = strconv.ParseFloat(s, 64)
		}
		if err != nil {
			return errs.Input("line%d %s %q is not numeric", n, f.name, line[f.start:f.end])
		}
	}
	return nil
}

// checkLines verifies the shape, checksum and numeric fields of both
// element lines. Lines must already be trimmed.
func checkLines(l1, l2 string) error {
	if len(l1) != lineLen {
		return errs.Input("line1 length %d, expected %d", len(l1), lineLen)
	}
	if len(l2) != lineLen {
		return errs.Input("line2 length %d, expected %d", len(l2), lineLen)
	}
	if l1[0] != '1' {
		return errs.Input("line1 must start with '1', got '%c'", l1[0])
	}
	if l2[0] != '2' {
		return errs.Input("line2 must start with '2', got '%c'", l2[0])
	}
	if strings.TrimSpace(l1[2:7]) != strings.TrimSpace(l2[2:7]) {
		return errs.Input("catalog number mismatch between lines: %q vs %q", l1[2:7], l2[2:7])
	}
	if err := checkChecksum(1, l1); err != nil {
		return err
	}
	if err := checkChecksum(2, l2); err != nil {
		return err
	}
	if err := checkFields(1, l1, line1Fields); err != nil {
		return err
	}
	return checkFields(2, l2, line2Fields)
}
