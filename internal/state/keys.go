package state

import "strings"

// Stored field names. Step and section entries append their own id.
const (
	fieldTheme         = "theme"
	fieldFontSize      = "fontSize"
	fieldUnit          = "unit"
	fieldSelectedSize  = "selectedSize"
	fieldImageVisible  = "imageVisible"
	fieldStepPrefix    = "instr_"
	fieldSectionPrefix = "secToggle_"
)

// Keys builds the durable storage keys of one pattern:
//
//	<prefix>_<schemaVersion>_<patternID>_<field>
//
// Bumping the schema version orphans old entries instead of misreading them.
type Keys struct {
	base string
}

// NewKeys returns the key schema for a pattern.
func NewKeys(prefix, schemaVersion, patternID string) Keys {
	return Keys{base: prefix + "_" + schemaVersion + "_" + patternID + "_"}
}

// Prefix is shared by every key of the pattern and no key of any other
// pattern, since pattern ids never contain underscores.
func (k Keys) Prefix() string { return k.base }

func (k Keys) Theme() string        { return k.base + fieldTheme }
func (k Keys) FontSize() string     { return k.base + fieldFontSize }
func (k Keys) Unit() string         { return k.base + fieldUnit }
func (k Keys) SelectedSize() string { return k.base + fieldSelectedSize }
func (k Keys) ImageVisible() string { return k.base + fieldImageVisible }

// Step is the completion key of a qualified step key.
func (k Keys) Step(stepKey string) string { return k.base + fieldStepPrefix + stepKey }

// Section is the collapse key of a section id.
func (k Keys) Section(sectionID string) string { return k.base + fieldSectionPrefix + sectionID }

// field strips the pattern prefix from a stored key.
func (k Keys) field(key string) (string, bool) {
	return strings.CutPrefix(key, k.base)
}
