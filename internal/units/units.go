// Package units converts stored pattern measurements into display strings.
//
// Base values are authored in imperial units (inches, yards) except for
// needle diameters and cord lengths, which are authored in metric and never
// converted. The display unit is the viewer's "in"/"cm" toggle; yarn
// quantities follow it too, switching between yards and meters.
package units

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Unit is the display unit selected in the viewer.
type Unit string

const (
	Inches      Unit = "in"
	Centimeters Unit = "cm"
)

// Conversion factors.
const (
	CentimetersPerInch = 2.54
	MetersPerYard      = 0.9144
)

// ParseUnit returns the unit for s and whether s named a known unit.
func ParseUnit(s string) (Unit, bool) {
	switch Unit(strings.ToLower(strings.TrimSpace(s))) {
	case Inches:
		return Inches, true
	case Centimeters:
		return Centimeters, true
	}
	return "", false
}

// Toggle returns the other unit.
func (u Unit) Toggle() Unit {
	if u == Centimeters {
		return Inches
	}
	return Centimeters
}

// Long returns the unit's spelled-out plural name.
func (u Unit) Long() string {
	if u == Centimeters {
		return "centimeters"
	}
	return "inches"
}

// Kind tags a base value with how it converts and which suffix it carries.
type Kind string

const (
	// Length is a short length: 6.5" or 16.5 cm.
	Length Kind = "length"
	// LengthPlain spells the unit out: 4 inches, 1 inch or 10.2 cm.
	LengthPlain Kind = "length_plain"
	// NeedleMM is a needle diameter, already metric.
	NeedleMM Kind = "mm_needle"
	// CordCM is a cord length, already metric.
	CordCM Kind = "cm_cord"
	// YarnYards is yardage authored in yards.
	YarnYards Kind = "yarn_yards"
	// YarnMeters is yardage authored in meters.
	YarnMeters Kind = "yarn_meters"
	// LengthRange is a textual "N-M" range of inches.
	LengthRange Kind = "length_range_text"
	// Plain is a bare number with no conversion or suffix.
	Plain Kind = ""
)

// ParseKind maps an authored unit-type tag to a Kind. Unknown tags are Plain.
func ParseKind(s string) Kind {
	switch k := Kind(strings.TrimSpace(s)); k {
	case Length, LengthPlain, NeedleMM, CordCM, YarnYards, YarnMeters, LengthRange:
		return k
	}
	return Plain
}

// Format renders base as kind in the display unit.
// Non-numeric input is returned unchanged.
func Format(base string, kind Kind, display Unit) string {
	cm := display == Centimeters

	if kind == LengthRange {
		return formatRange(base, cm)
	}

	v, ok := parseNumber(base)
	if !ok {
		return base
	}

	switch kind {
	case Length:
		if cm {
			return oneDecimal(v*CentimetersPerInch) + " cm"
		}
		return inchDecimal(v) + `"`
	case LengthPlain:
		if cm {
			return oneDecimal(v*CentimetersPerInch) + " cm"
		}
		if v == 1 {
			return inchDecimal(v) + " inch"
		}
		return inchDecimal(v) + " inches"
	case NeedleMM:
		return oneDecimal(v) + " mm"
	case CordCM:
		return oneDecimal(v) + " cm"
	case YarnYards:
		if cm {
			return whole(v*MetersPerYard) + " m"
		}
		return whole(v) + " yds"
	case YarnMeters:
		if cm {
			return whole(v) + " m"
		}
		return whole(v/MetersPerYard) + " yds"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var rangeSep = regexp.MustCompile(`[-–]`)

func formatRange(base string, cm bool) string {
	parts := rangeSep.Split(base, -1)
	if len(parts) != 2 {
		v, ok := parseNumber(base)
		if !ok {
			return base
		}
		if cm {
			return oneDecimal(v*CentimetersPerInch) + " cm"
		}
		return inchDecimal(v) + `"`
	}

	lo, okLo := parseNumber(parts[0])
	hi, okHi := parseNumber(parts[1])
	if !okLo || !okHi {
		return base
	}
	if cm {
		return oneDecimal(lo*CentimetersPerInch) + "–" + oneDecimal(hi*CentimetersPerInch) + " cm"
	}
	return inchDecimal(lo) + "–" + inchDecimal(hi) + `"`
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func oneDecimal(v float64) string {
	return strconv.FormatFloat(roundTo(v, 1), 'f', 1, 64)
}

// inchDecimal keeps at most one decimal and drops a trailing ".0".
func inchDecimal(v float64) string {
	return strings.TrimSuffix(oneDecimal(v), ".0")
}

func whole(v float64) string {
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
}

// roundTo rounds half away from zero, avoiding binary representation
// surprises such as 10.15 formatting as 10.1.
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p+math.Copysign(1e-9, v)) / p
}
