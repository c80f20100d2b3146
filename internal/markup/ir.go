// Package markup parses the small tag vocabulary authors embed in pattern
// text and expands it against the current size and unit.
//
// Authored text looks like:
//
//	Cast on <span class='size-dynamic' data-size-key='castOnSts'>100</span> sts.
//
// Parse turns that into a sequence of typed nodes; Render resolves every
// dynamic node against a View. Anything outside the vocabulary is reduced to
// its text, so content can never inject markup of its own.
package markup

import (
	"strings"

	"github.com/areumknits/patternview/internal/units"
)

// Node is one element of a parsed document.
type Node interface {
	node()
}

// Text is literal text, stored unescaped.
type Text struct {
	Value string
}

// Bold is authored emphasis (<strong>).
type Bold struct {
	Children []Node
}

// SizeValue resolves Key in the current size's record.
type SizeValue struct {
	Key      string
	Fallback string
}

// UnitValue is a measurement formatted in the current display unit. When
// SizeKey is set the base value is looked up per size first.
type UnitValue struct {
	Base     string
	Kind     units.Kind
	SizeKey  string
	Fallback string
}

// Abbr is an abbreviation carrying its definition for the tooltip.
type Abbr struct {
	Title    string
	Children []Node
}

// StitchCount is a size-dependent count rendered without emphasis.
type StitchCount struct {
	Key      string
	Fallback string
}

// Element is a passthrough formatting tag such as <em> or <li>.
type Element struct {
	Tag      string
	Href     string
	Children []Node
}

func (Text) node()        {}
func (Bold) node()        {}
func (SizeValue) node()   {}
func (UnitValue) node()   {}
func (Abbr) node()        {}
func (StitchCount) node() {}
func (Element) node()     {}

// Doc is a parsed piece of pattern text.
type Doc struct {
	Nodes []Node
}

// SizeKeys lists every size-table key the document references, in order of
// first appearance.
func (d Doc) SizeKeys() []string {
	var keys []string
	seen := make(map[string]bool)
	add := func(k string) {
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	walk(d.Nodes, func(n Node) {
		switch n := n.(type) {
		case SizeValue:
			add(n.Key)
		case UnitValue:
			add(n.SizeKey)
		case StitchCount:
			add(n.Key)
		}
	})
	return keys
}

// PlainText returns the document's text with every dynamic node at its
// fallback value.
func (d Doc) PlainText() string {
	var b strings.Builder
	walk(d.Nodes, func(n Node) {
		switch n := n.(type) {
		case Text:
			b.WriteString(n.Value)
		case SizeValue:
			b.WriteString(n.Fallback)
		case UnitValue:
			b.WriteString(n.Fallback)
		case StitchCount:
			b.WriteString(n.Fallback)
		}
	})
	return b.String()
}

func walk(nodes []Node, fn func(Node)) {
	for _, n := range nodes {
		fn(n)
		switch n := n.(type) {
		case Bold:
			walk(n.Children, fn)
		case Abbr:
			walk(n.Children, fn)
		case Element:
			walk(n.Children, fn)
		}
	}
}
