package markup

import (
	"html/template"
	"strings"

	"golang.org/x/net/html"

	"github.com/areumknits/patternview/internal/sizes"
	"github.com/areumknits/patternview/internal/units"
)

// View is the slice of session state expansion depends on.
type View struct {
	Sizes sizes.Table
	Size  string
	Unit  units.Unit
}

// Expand parses raw and renders it for v. It is pure: the same raw text and
// view always produce the same bytes.
func Expand(raw string, v View) template.HTML {
	return Parse(raw).Render(v)
}

// Render expands the document for v. Dynamic values keep their authored
// inputs as data attributes so a client can recompute them later.
func (d Doc) Render(v View) template.HTML {
	var b strings.Builder
	renderNodes(&b, d.Nodes, v)
	return template.HTML(b.String())
}

// ResolveSize returns the value of a size-dynamic key, or fallback on a miss.
func ResolveSize(v View, key, fallback string) string {
	if val, ok := sizes.Resolve(v.Sizes, v.Size, key); ok {
		return val
	}
	return fallback
}

// ResolveUnit returns the formatted value of a unit-dynamic marker.
func ResolveUnit(v View, n UnitValue) string {
	if n.SizeKey != "" {
		if val, ok := sizes.Resolve(v.Sizes, v.Size, n.SizeKey); ok {
			return units.Format(val, n.Kind, v.Unit)
		}
	}
	if n.Base != "" {
		return units.Format(n.Base, n.Kind, v.Unit)
	}
	return n.Fallback
}

func renderNodes(b *strings.Builder, nodes []Node, v View) {
	for _, n := range nodes {
		renderNode(b, n, v)
	}
}

func renderNode(b *strings.Builder, n Node, v View) {
	switch n := n.(type) {
	case Text:
		b.WriteString(html.EscapeString(n.Value))

	case Bold:
		b.WriteString(`<strong class="pv-val">`)
		renderNodes(b, n.Children, v)
		b.WriteString(`</strong>`)

	case SizeValue:
		b.WriteString(`<strong class="pv-val pv-size"`)
		attr(b, "data-size-key", n.Key)
		attr(b, "data-fallback", n.Fallback)
		b.WriteString(`>`)
		b.WriteString(html.EscapeString(ResolveSize(v, n.Key, n.Fallback)))
		b.WriteString(`</strong>`)

	case UnitValue:
		b.WriteString(`<strong class="pv-val pv-unit"`)
		attr(b, "data-base-value", n.Base)
		attr(b, "data-unit-type", string(n.Kind))
		attr(b, "data-size-key", n.SizeKey)
		attr(b, "data-fallback", n.Fallback)
		b.WriteString(`>`)
		b.WriteString(html.EscapeString(ResolveUnit(v, n)))
		b.WriteString(`</strong>`)

	case StitchCount:
		b.WriteString(`<span class="pv-stitches"`)
		attr(b, "data-size-key", n.Key)
		attr(b, "data-fallback", n.Fallback)
		b.WriteString(`>`)
		b.WriteString(html.EscapeString(ResolveSize(v, n.Key, n.Fallback)))
		b.WriteString(`</span>`)

	case Abbr:
		b.WriteString(`<abbr class="pv-abbr" tabindex="0"`)
		attr(b, "title", n.Title)
		attr(b, "data-definition", n.Title)
		b.WriteString(`>`)
		renderNodes(b, n.Children, v)
		b.WriteString(`</abbr>`)

	case Element:
		switch {
		case n.Tag == "br":
			b.WriteString(`<br>`)
		case n.Tag == "a" && n.Href == "":
			renderNodes(b, n.Children, v)
		case n.Tag == "a":
			b.WriteString(`<a`)
			attr(b, "href", n.Href)
			b.WriteString(` rel="noopener noreferrer" target="_blank">`)
			renderNodes(b, n.Children, v)
			b.WriteString(`</a>`)
		default:
			b.WriteString("<" + n.Tag + ">")
			renderNodes(b, n.Children, v)
			b.WriteString("</" + n.Tag + ">")
		}
	}
}

// attr writes name="value", skipping empty values.
func attr(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteString(" " + name + `="`)
	b.WriteString(html.EscapeString(value))
	b.WriteString(`"`)
}
