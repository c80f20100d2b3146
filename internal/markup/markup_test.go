package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/areumknits/patternview/internal/sizes"
	"github.com/areumknits/patternview/internal/units"
)

func testSizes() sizes.Table {
	var t sizes.Table
	t.Add("S", sizes.Field{Key: "castOnSts", Value: "90"}, sizes.Field{Key: "bodyLength", Value: "6"})
	t.Add("M", sizes.Field{Key: "castOnSts", Value: "100"}, sizes.Field{Key: "bodyLength", Value: "6.5"})
	t.Add("L", sizes.Field{Key: "castOnSts", Value: "110"})
	return t
}

func view(size string, unit units.Unit) View {
	return View{Sizes: testSizes(), Size: size, Unit: unit}
}

const castOn = `Cast on <span class='size-dynamic' data-size-key='castOnSts'>100</span> sts.`

func TestExpandSizeDynamicFollowsSize(t *testing.T) {
	m := string(Expand(castOn, view("M", units.Inches)))
	assert.Contains(t, m, `>100</strong>`)
	assert.True(t, strings.HasPrefix(m, "Cast on "))
	assert.True(t, strings.HasSuffix(m, " sts."))

	s := string(Expand(castOn, view("S", units.Inches)))
	assert.Contains(t, s, `>90</strong>`)
	assert.NotContains(t, s, `>100<`)
	assert.Contains(t, s, `data-size-key="castOnSts"`)
	assert.Contains(t, s, `data-fallback="100"`)
}

func TestExpandUnitDynamic(t *testing.T) {
	raw := `Work <span class='unit-dynamic' data-base-value='4' data-unit-type='length_plain'>4 inches</span> of rib.`

	in := string(Expand(raw, view("M", units.Inches)))
	assert.Contains(t, in, `>4 inches</strong>`)

	cm := string(Expand(raw, view("M", units.Centimeters)))
	assert.Contains(t, cm, `>10.2 cm</strong>`)
	assert.Contains(t, cm, `data-base-value="4"`)
	assert.Contains(t, cm, `data-unit-type="length_plain"`)
}

func TestExpandUnitDynamicWithSizeKey(t *testing.T) {
	raw := `<span class='unit-dynamic size-dynamic' data-base-value='6.5' data-unit-type='length' data-size-key='bodyLength'>6.5"</span>`

	assert.Contains(t, string(Expand(raw, view("S", units.Inches))), `>6&#34;</strong>`)
	assert.Contains(t, string(Expand(raw, view("S", units.Centimeters))), `>15.2 cm</strong>`)
	// L has no bodyLength: falls back to the base value
	assert.Contains(t, string(Expand(raw, view("L", units.Inches))), `>6.5&#34;</strong>`)
}

func TestExpandUnitDynamicWithoutBaseFallsBackToLiteral(t *testing.T) {
	raw := `<span class='unit-dynamic size-dynamic' data-unit-type='length_plain' data-size-key='brimHeight'>2 inches</span>`
	assert.Contains(t, string(Expand(raw, view("M", units.Centimeters))), `>2 inches</strong>`)
}

func TestExpandMissingKeyUsesFallback(t *testing.T) {
	raw := `<span class='size-dynamic' data-size-key='nope'>about 12</span>`
	for _, size := range []string{"S", "M", "L", "XXL"} {
		assert.Contains(t, string(Expand(raw, view(size, units.Inches))), `>about 12</strong>`, size)
	}
	empty := View{Size: "M", Unit: units.Inches}
	assert.Contains(t, string(Expand(castOn, empty)), `>100</strong>`)
}

func TestExpandStitchCountIsNotBold(t *testing.T) {
	raw := `(<span class='stitch-count size-dynamic' data-size-key='castOnSts'>100</span> sts)`
	out := string(Expand(raw, view("L", units.Inches)))
	assert.Equal(t, `(<span class="pv-stitches" data-size-key="castOnSts" data-fallback="100">110</span> sts)`, out)
	assert.NotContains(t, out, "strong")
}

func TestExpandAbbreviation(t *testing.T) {
	raw := `<abbr title='knit 2 together'>k2tog</abbr> to end`
	out := string(Expand(raw, view("M", units.Inches)))
	assert.Equal(t, `<abbr class="pv-abbr" tabindex="0" title="knit 2 together" data-definition="knit 2 together">k2tog</abbr> to end`, out)
}

func TestExpandNestedAndAdjacent(t *testing.T) {
	raw := `<strong><span class='size-dynamic' data-size-key='castOnSts'>110</span> sts</strong>` +
		`<span class='size-dynamic' data-size-key='castOnSts'>1</span><span class='stitch-count size-dynamic' data-size-key='castOnSts'>2</span>` +
		`<em>then <abbr title='knit'>k</abbr><strong>all</strong></em>`

	doc := Parse(raw)
	require.Len(t, doc.Nodes, 4)

	bold, ok := doc.Nodes[0].(Bold)
	require.True(t, ok)
	require.Len(t, bold.Children, 2)
	assert.Equal(t, SizeValue{Key: "castOnSts", Fallback: "110"}, bold.Children[0])
	assert.Equal(t, Text{Value: " sts"}, bold.Children[1])

	assert.Equal(t, SizeValue{Key: "castOnSts", Fallback: "1"}, doc.Nodes[1])
	assert.Equal(t, StitchCount{Key: "castOnSts", Fallback: "2"}, doc.Nodes[2])

	em, ok := doc.Nodes[3].(Element)
	require.True(t, ok)
	assert.Equal(t, "em", em.Tag)
	require.Len(t, em.Children, 3)
	assert.IsType(t, Abbr{}, em.Children[1])
	assert.IsType(t, Bold{}, em.Children[2])

	out := string(doc.Render(view("S", units.Inches)))
	assert.Equal(t, 3, strings.Count(out, ">90<"))
}

func TestExpandIsPure(t *testing.T) {
	raw := castOn + ` <span class='unit-dynamic' data-base-value='8-9' data-unit-type='length_range_text'>8-9"</span>` +
		` <abbr title='purl'>p</abbr> <span class='stitch-count size-dynamic' data-size-key='castOnSts'>100</span>`
	for _, size := range []string{"S", "M", "L"} {
		for _, u := range []units.Unit{units.Inches, units.Centimeters} {
			v := view(size, u)
			first := Expand(raw, v)
			second := Expand(raw, v)
			assert.Equal(t, first, second, "%s/%s", size, u)
		}
	}
}

func TestExpandNeutralisesUnknownMarkup(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"script dropped", `a<script>alert(1)</script>b`, "ab"},
		{"style dropped", `<style>p{}</style>text`, "text"},
		{"unknown tag unwrapped", `<div class="x" onclick="evil()">hi</div>`, "hi"},
		{"attributes stripped", `<em onmouseover="evil()">hi</em>`, "<em>hi</em>"},
		{"text escaped", `5 &lt; 6 &amp; "q"`, `5 &lt; 6 &amp; &#34;q&#34;`},
		{"javascript link", `<a href="javascript:alert(1)">x</a>`, "x"},
		{"safe link", `<a href="https://ravelry.com">r</a>`, `<a href="https://ravelry.com" rel="noopener noreferrer" target="_blank">r</a>`},
		{"unclosed tags", `<strong>bold <em>both`, `<strong class="pv-val">bold <em>both</em></strong>`},
		{"stray end tag", `a</strong>b`, "ab"},
		{"line break", `one<br>two<br/>three`, "one<br>two<br>three"},
		{"plain span", `<span class='note'>n</span>`, "n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Expand(tt.raw, view("M", units.Inches))))
		})
	}
}

func TestSizeKeysAndPlainText(t *testing.T) {
	raw := castOn + ` <span class='unit-dynamic' data-base-value='2' data-unit-type='length' data-size-key='brimHeight'>2"</span>` +
		` <span class='stitch-count size-dynamic' data-size-key='castOnSts'>100</span>`
	doc := Parse(raw)
	assert.Equal(t, []string{"castOnSts", "brimHeight"}, doc.SizeKeys())
	assert.Equal(t, `Cast on 100 sts. 2" 100`, doc.PlainText())
}

// Every key referenced by a document either resolves or falls back, for
// every size, without panicking.
func TestResolveEveryReferencedKey(t *testing.T) {
	raw := castOn + `<span class='size-dynamic' data-size-key='bodyLength'>6</span>` +
		`<span class='unit-dynamic' data-size-key='bodyLength' data-unit-type='length'>6"</span>`
	doc := Parse(raw)
	tbl := testSizes()
	for _, size := range tbl.Keys() {
		v := View{Sizes: tbl, Size: size, Unit: units.Inches}
		for _, key := range doc.SizeKeys() {
			got := ResolveSize(v, key, "fallback")
			want, ok := sizes.Resolve(tbl, size, key)
			if !ok {
				want = "fallback"
			}
			assert.Equal(t, want, got, "%s/%s", size, key)
		}
		assert.NotPanics(t, func() { doc.Render(v) })
	}
}
