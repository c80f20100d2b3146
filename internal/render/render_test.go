package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/areumknits/patternview"
	"github.com/areumknits/patternview/internal/state"
	"github.com/areumknits/patternview/internal/units"
)

const beaniePath = "../../examples/patterns/aurora-ribbed-beanie.md"

func loadBeanie(t *testing.T) *patternview.Pattern {
	t.Helper()
	p, err := patternview.ParseFile(beaniePath)
	require.NoError(t, err)
	return p
}

func snapshot(size string, unit units.Unit) state.Snapshot {
	return state.Snapshot{
		PatternID:    "aurora-ribbed-beanie",
		Size:         size,
		Unit:         unit,
		FontSize:     16,
		Theme:        state.Light,
		ImageVisible: true,
		Completed:    map[string]bool{},
		Collapsed:    map[string]bool{},
	}
}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(Options{SiteTitle: "Areum Knits", Live: true})
	require.NoError(t, err)
	return r
}

func body(t *testing.T, r *Renderer, p *patternview.Pattern, snap state.Snapshot) string {
	t.Helper()
	out, err := r.BodyString(p, snap)
	require.NoError(t, err)
	return out
}

func TestPageStructure(t *testing.T) {
	r := newRenderer(t)
	p := loadBeanie(t)

	var buf bytes.Buffer
	require.NoError(t, r.Page(&buf, p, snapshot("L", units.Inches), "Pattern size changed to Large (L)."))
	out := buf.String()

	for _, want := range []string{
		"<title>The Aurora Ribbed Beanie | Areum Knits</title>",
		`<html lang="en" data-theme="light">`,
		`href="/assets/viewer.css"`,
		`src="/assets/live.js"`,
		`class="pv-toolbar pv-no-print"`,
		`class="pv-container"`,
		`id="pv-tooltip"`,
		`role="status" aria-live="polite" aria-atomic="true">Pattern size changed to Large (L).</div>`,
		`<h2 class="pv-pattern-subtitle">A chic and cozy knit</h2>`,
		`<em>Happy knitting!</em>`,
		`alt="Aurora Beanie front view"`,
		`style="--pv-font-size: 16px"`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestPageWithoutLiveScript(t *testing.T) {
	r, err := New(Options{})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Page(&buf, loadBeanie(t), snapshot("L", units.Inches), ""))
	assert.NotContains(t, buf.String(), "live.js")
}

func TestRenderIsDeterministic(t *testing.T) {
	r := newRenderer(t)
	p := loadBeanie(t)
	snap := snapshot("M", units.Centimeters)
	snap.Completed["p1-brim_1"] = true

	assert.Equal(t, body(t, r, p, snap), body(t, r, p, snap))
}

func TestSizeSelectorAndTableAgree(t *testing.T) {
	r := newRenderer(t)
	p := loadBeanie(t)

	for _, size := range []string{"S", "M", "L", "XL"} {
		out := body(t, r, p, snapshot(size, units.Inches))
		assert.Contains(t, out, `aria-checked="true" aria-label="`+p.Content.Sizes.DisplayName(size)+`" data-size-value="`+size+`"`, size)
		assert.Contains(t, out, `<tr data-size-row="`+size+`" data-size-value="`+size+`" data-pv-action="setSize" tabindex="0" role="button" aria-label="Select Size `+p.Content.Sizes.DisplayName(size)+`" aria-pressed="true" class="active-size-row">`, size)
		assert.Equal(t, 1, strings.Count(out, `class="active-size-row"`), size)
		assert.Equal(t, 1, strings.Count(out, `role="radio" aria-checked="true"`), size)
	}
}

func TestSizeDynamicValues(t *testing.T) {
	r := newRenderer(t)
	p := loadBeanie(t)

	out := body(t, r, p, snapshot("S", units.Inches))
	assert.Contains(t, out, `data-size-key="castOnSts" data-fallback="110">90</strong>`)
	assert.Contains(t, out, `data-size-key="approxTime" data-fallback="4-7">3-5</strong>`)
	assert.Contains(t, out, `<span class="pv-current-size">S</span>`)

	out = body(t, r, p, snapshot("XL", units.Inches))
	assert.Contains(t, out, `data-size-key="castOnSts" data-fallback="110">120</strong>`)
	assert.Contains(t, out, `<span class="pv-stitches" data-size-key="decRnd1Sts" data-fallback="100">110</span>`)
}

func TestSizeTableUnits(t *testing.T) {
	r := newRenderer(t)
	p := loadBeanie(t)

	out := body(t, r, p, snapshot("L", units.Inches))
	assert.Contains(t, out, `<th scope="col">Finished Circum.</th>`)
	assert.Contains(t, out, `>~21 inches</td>`)
	assert.Contains(t, out, `>160 yds</td>`)

	out = body(t, r, p, snapshot("L", units.Centimeters))
	assert.Contains(t, out, `>~53.3 cm</td>`)
	assert.Contains(t, out, `>146 m</td>`)
	assert.Contains(t, out, `<span class="pv-unit-text">Show inches</span>`)
}

func TestHiddenStepsAreOmitted(t *testing.T) {
	r := newRenderer(t)
	p := loadBeanie(t)

	out := body(t, r, p, snapshot("S", units.Inches))
	assert.NotContains(t, out, `data-step-key="p2-body_3"`)
	assert.Contains(t, out, `data-part-steps="[&#34;p2-body_1&#34;,&#34;p2-body_2&#34;]"`)

	out = body(t, r, p, snapshot("L", units.Inches))
	assert.Contains(t, out, `data-step-key="p2-body_3"`)
	assert.Contains(t, out, `data-part-steps="[&#34;p2-body_1&#34;,&#34;p2-body_2&#34;,&#34;p2-body_3&#34;]"`)
}

func TestExportBodyKeepsHiddenSteps(t *testing.T) {
	r := newRenderer(t)
	out, err := r.ExportBody(loadBeanie(t), snapshot("S", units.Inches))
	require.NoError(t, err)
	assert.Contains(t, out, `data-step-key="p2-body_3" data-size-specific="S_hide M_hide" data-pv-action="toggleStep" hidden>`)
	assert.Contains(t, out, `data-part-steps="[&#34;p2-body_1&#34;,&#34;p2-body_2&#34;]"`)
	assert.Contains(t, out, `data-cell-raw="~17&#34;" data-cell-kind="length_plain" data-cell-base="17" data-cell-approx>~17 inches</td>`)
}

func TestCompletedStepsAndCollapsedSections(t *testing.T) {
	r := newRenderer(t)
	p := loadBeanie(t)
	snap := snapshot("L", units.Inches)
	snap.Completed["p1-brim_1"] = true
	snap.Completed["p1-brim_2"] = true
	snap.Collapsed["aurora-ribbed-beanie_materials"] = true

	out := body(t, r, p, snap)
	assert.Contains(t, out, `<li class="pv-step is-complete" data-step-key="p1-brim_1"`)
	assert.Contains(t, out, `<li class="pv-step is-complete" data-step-key="p1-brim_2"`)
	assert.Contains(t, out, `<li class="pv-step" data-step-key="p1-brim_3"`)
	assert.Contains(t, out, `<section class="pv-section is-collapsed" id="aurora-ribbed-beanie_materials"`)
	assert.Contains(t, out, `id="content-aurora-ribbed-beanie_materials" hidden>`)
	assert.Contains(t, out, `<section class="pv-section" id="aurora-ribbed-beanie_instructions_main"`)
}

func TestToolbarState(t *testing.T) {
	r := newRenderer(t)
	p := loadBeanie(t)

	snap := snapshot("L", units.Inches)
	snap.FontSize = state.DefaultFont.Min
	out := body(t, r, p, snap)
	assert.Contains(t, out, `data-delta="-1" disabled>`)
	assert.NotContains(t, out, `data-delta="1" disabled>`)

	snap.FontSize = state.DefaultFont.Max
	snap.Theme = state.Dark
	snap.ImageVisible = false
	out = body(t, r, p, snap)
	assert.Contains(t, out, `data-delta="1" disabled>`)
	assert.Contains(t, out, `data-theme="dark"`)
	assert.Contains(t, out, `class="pv-pattern-image-wrapper image-hidden"`)
	assert.Contains(t, out, `aria-label="Show pattern image" aria-pressed="false"`)
	assert.NotContains(t, out, `class="pv-pattern-image"`)
}

func TestAbbreviationsCarryDefinitions(t *testing.T) {
	r := newRenderer(t)
	out := body(t, r, loadBeanie(t), snapshot("L", units.Inches))
	assert.Contains(t, out, `data-definition="beginning of round">BOR</abbr>`)
	assert.Contains(t, out, `<strong class="pv-glossary-term pv-abbr" tabindex="0" data-definition="cast on">CO</strong>`)
}

func TestStubPattern(t *testing.T) {
	r := newRenderer(t)
	stub := &patternview.Pattern{ID: "olsen", Slug: "olsen", Title: "Olsen Cardigan"}

	var buf bytes.Buffer
	err := r.Page(&buf, stub, state.Snapshot{}, "")
	assert.ErrorIs(t, err, patternview.ErrNoContent)
	assert.Zero(t, buf.Len(), "nothing written on error")

	_, err = r.BodyString(stub, state.Snapshot{})
	assert.ErrorIs(t, err, patternview.ErrNoContent)

	require.NoError(t, r.Missing(&buf, stub))
	assert.Contains(t, buf.String(), "Pattern content is missing.")
	assert.Contains(t, buf.String(), "Olsen Cardigan")
}

func TestIndex(t *testing.T) {
	r := newRenderer(t)
	patterns := []*patternview.Pattern{
		loadBeanie(t),
		{ID: "olsen", Slug: "olsen-cardigan", Title: "Olsen Cardigan"},
	}
	var buf bytes.Buffer
	require.NoError(t, r.Index(&buf, patterns))
	out := buf.String()
	assert.Contains(t, out, `href="/patterns/aurora-ribbed-beanie"`)
	assert.NotContains(t, out, `href="/patterns/olsen-cardigan"`)
	assert.Contains(t, out, "Coming soon")
}

func TestSections(t *testing.T) {
	p := loadBeanie(t)
	var ids []string
	for _, s := range Sections(p) {
		ids = append(ids, strings.TrimPrefix(s.ID, p.ID+"_"))
	}
	assert.Equal(t, []string{
		SectionIntroNotes, SectionSizingInfo, SectionMaterials, SectionInstructions,
		SectionFinishing, SectionRequiredSkills, SectionAbbreviations, SectionSupport,
	}, ids)

	s, ok := FindSection(p, "aurora-ribbed-beanie_materials")
	require.True(t, ok)
	assert.Equal(t, "Materials", s.Title)
	_, ok = FindSection(p, "aurora-ribbed-beanie_schematic")
	assert.False(t, ok)

	assert.Nil(t, Sections(&patternview.Pattern{ID: "stub"}))
}

func TestStepOrder(t *testing.T) {
	p := loadBeanie(t)

	order, ok := StepOrder(p, "S", "p2-body_1")
	require.True(t, ok)
	assert.Equal(t, []string{"p2-body_1", "p2-body_2"}, order)

	_, ok = StepOrder(p, "S", "p2-body_3")
	assert.False(t, ok, "hidden for S")

	order, ok = StepOrder(p, "L", "p2-body_3")
	require.True(t, ok)
	assert.Len(t, order, 3)

	_, ok = StepOrder(p, "L", "p9-nope")
	assert.False(t, ok)
}

func TestMeasurementCell(t *testing.T) {
	tests := []struct {
		column, raw string
		unit        units.Unit
		want        string
	}{
		{"Finished Circum.", `~17"`, units.Inches, "~17 inches"},
		{"Finished Circum.", `~17"`, units.Centimeters, "~43.2 cm"},
		{"Yarn", "120 yds", units.Centimeters, "110 m"},
		{"Yarn", "120 yds", units.Inches, "120 yds"},
		{"Needle", "US 7", units.Centimeters, "US 7"},
		{"Finished Height", "varies", units.Centimeters, "varies"},
	}
	for _, tt := range tests {
		t.Run(tt.column+"/"+tt.raw+"/"+string(tt.unit), func(t *testing.T) {
			assert.Equal(t, tt.want, MeasurementCell(tt.column, tt.raw, tt.unit))
		})
	}
}
