package units

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	lengthColumn = regexp.MustCompile(`(?i)circ|height|length|width|head`)
	yarnColumn   = regexp.MustCompile(`(?i)yarn|yardage`)
	unitNoise    = regexp.MustCompile(`(?i)["“”']|inches|inch|in\b|cm|yds|yards|m\b|~`)
)

// GuessKind classifies a finished-measurement cell by its column name and
// authored value, e.g. "Brim Circ" / "~17\"" is LengthPlain.
func GuessKind(column, value string) Kind {
	switch {
	case lengthColumn.MatchString(column):
		if strings.ContainsAny(StripUnits(value), "-–") {
			return LengthRange
		}
		return LengthPlain
	case yarnColumn.MatchString(column):
		v := strings.ToLower(value)
		if strings.Contains(v, "yds") || strings.Contains(v, "yard") {
			return YarnYards
		}
		if strings.Contains(v, "m") {
			return YarnMeters
		}
	}
	return Plain
}

// StripUnits removes unit decorations from an authored measurement,
// leaving the bare number ("~17\"" becomes "17").
func StripUnits(value string) string {
	return strings.TrimSpace(unitNoise.ReplaceAllString(value, ""))
}

// ColumnTitle splits a camelCase measurement key into words:
// "brimCirc" becomes "Brim Circ".
func ColumnTitle(key string) string {
	var b strings.Builder
	prev := ' '
	for i, r := range key {
		if i > 0 && unicode.IsUpper(r) && !unicode.IsSpace(prev) && !unicode.IsUpper(prev) {
			b.WriteByte(' ')
		}
		if i == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}
