package render

import (
	"encoding/json"
	"html/template"
	"strings"

	"github.com/areumknits/patternview"
	"github.com/areumknits/patternview/internal/markup"
	"github.com/areumknits/patternview/internal/sizes"
	"github.com/areumknits/patternview/internal/state"
	"github.com/areumknits/patternview/internal/units"
)

// Section keys, appended to the pattern id to form a section id.
const (
	SectionIntroNotes     = "introNotes"
	SectionSizingInfo     = "sizingInfo"
	SectionMaterials      = "materials"
	SectionInstructions   = "instructions_main"
	SectionVisualAids     = "visualAids"
	SectionSchematic      = "schematic"
	SectionFinishing      = "finishing"
	SectionRequiredSkills = "requiredSkills"
	SectionAbbreviations  = "abbreviations"
	SectionSupport        = "support"
)

// Section identifies one collapsible section of a pattern.
type Section struct {
	ID    string
	Key   string
	Title string
}

// SectionID qualifies a section key with the pattern id.
func SectionID(patternID, key string) string {
	return patternID + "_" + key
}

// Sections lists the collapsible sections the pattern renders, in page order.
func Sections(p *patternview.Pattern) []Section {
	c := p.Content
	if c == nil {
		return nil
	}
	var out []Section
	add := func(key, title, fallback string) {
		if title == "" {
			title = fallback
		}
		out = append(out, Section{ID: SectionID(p.ID, key), Key: key, Title: title})
	}
	if c.IntroNotes != nil {
		add(SectionIntroNotes, c.IntroNotes.Title, "Introduction & Notes")
	}
	if c.SizingInfo != nil {
		add(SectionSizingInfo, c.SizingInfo.Title, "Sizing Information")
	}
	if c.Materials != nil {
		add(SectionMaterials, c.Materials.Title, "Materials")
	}
	if c.Instructions != nil {
		add(SectionInstructions, c.Instructions.Title, "Instructions")
	}
	if c.VisualAids != nil && len(c.VisualAids.Items) > 0 {
		add(SectionVisualAids, c.VisualAids.Title, "Visual Aids")
	}
	if c.Schematic != nil {
		add(SectionSchematic, c.Schematic.Title, "Schematic")
	}
	if c.Finishing != nil {
		add(SectionFinishing, c.Finishing.Title, "Finishing")
	}
	if c.RequiredSkills != nil && len(c.RequiredSkills.List) > 0 {
		add(SectionRequiredSkills, c.RequiredSkills.Title, "Required Skills")
	}
	if c.Abbreviations != nil && len(c.Abbreviations.List) > 0 {
		add(SectionAbbreviations, c.Abbreviations.Title, "Abbreviations")
	}
	add(SectionSupport, "", "Support & Sharing")
	return out
}

// FindSection returns the section with the given id.
func FindSection(p *patternview.Pattern, id string) (Section, bool) {
	for _, s := range Sections(p) {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// VisibleSteps returns the keys of the part's steps shown for size, in order.
func VisibleSteps(part patternview.Part, partIndex int, size string) []string {
	visible := sizes.Filter(part.Steps, size, func(s patternview.Step) string { return s.SizeSpecific })
	keys := make([]string, len(visible))
	for i, s := range visible {
		keys[i] = patternview.StepKey(partIndex, s.ID)
	}
	return keys
}

// StepOrder finds the part holding stepKey and returns that part's visible
// step keys for size. It reports false when the step is unknown or hidden.
func StepOrder(p *patternview.Pattern, size, stepKey string) ([]string, bool) {
	if p.Content == nil || p.Content.Instructions == nil {
		return nil, false
	}
	for i, part := range p.Content.Instructions.Parts {
		keys := VisibleSteps(part, i, size)
		for _, k := range keys {
			if k == stepKey {
				return keys, true
			}
		}
	}
	return nil, false
}

// view models consumed by the templates

type sizeOption struct {
	Key    string
	Abbr   string
	Name   string
	Active bool
}

type header struct {
	Title         string
	Subtitle      string
	Overview      template.HTML
	SkillLevel    string
	EstimatedTime template.HTML
	Intro         template.HTML
	ImageURL      string
	ImageAlt      string
	ImageVisible  bool
}

type sizeRow struct {
	Key    string
	Name   string
	Active bool
	Cells  []cell
}

// cell is one finished measurement. Kind and Base let a client reformat it
// when the unit changes.
type cell struct {
	Text   string
	Raw    string
	Kind   units.Kind
	Base   string
	Approx bool
}

type sizeTable struct {
	Notes   string
	Columns []string
	Rows    []sizeRow
}

type material struct {
	Label       string
	Icon        string
	Description template.HTML
}

type step struct {
	Key      string
	Text     template.HTML
	Subtext  template.HTML
	Complete bool
	Rule     string
	Hidden   bool
}

type part struct {
	Number    int
	Subtitle  string
	Attention template.HTML
	Steps     []step
	Order     string
	Note      template.HTML
	ProTip    template.HTML
}

type figure struct {
	Src     string
	Alt     string
	Caption template.HTML
}

type finishing struct {
	Steps   []template.HTML
	Closing template.HTML
}

type term struct {
	Term       string
	Definition string
}

type support struct {
	Email      string
	Subject    string
	PatternTag string
	SiteTag    string
}

type section struct {
	Section
	Icon      string
	Collapsed bool

	Paragraphs []template.HTML
	SizeTable  *sizeTable
	Materials  []material
	Parts      []part
	Figures    []figure
	Finishing  *finishing
	Glossary   []term
	Abbrevs    bool
	Support    *support
}

type body struct {
	PatternID   string
	Slug        string
	HomeURL     string
	HomeLabel   string
	Theme       state.Theme
	FontSize    int
	CanShrink   bool
	CanGrow     bool
	Unit        units.Unit
	UnitLabel   string
	Sizes       []sizeOption
	CurrentAbbr string
	Header      header
	Sections    []section
}

var sectionIcons = map[string]string{
	SectionIntroNotes:     "bulb",
	SectionSizingInfo:     "users",
	SectionMaterials:      "bag",
	SectionInstructions:   "book",
	SectionVisualAids:     "photo",
	SectionSchematic:      "clipboard",
	SectionFinishing:      "gift",
	SectionRequiredSkills: "cap",
	SectionAbbreviations:  "chat",
	SectionSupport:        "lifebuoy",
}

// build expands every piece of text of p for snap. Nothing is cached
// between calls. With allSteps, steps hidden for the current size are kept and marked
// hidden so a standalone copy can reveal them after a size change.
func (r *Renderer) build(p *patternview.Pattern, snap state.Snapshot, allSteps bool) body {
	c := p.Content
	v := snap.View(c.Sizes)
	expand := func(raw string) template.HTML { return markup.Expand(raw, v) }

	b := body{
		PatternID: p.ID,
		Slug:      p.Slug,
		HomeURL:   r.opts.HomeURL,
		HomeLabel: "Go to " + r.opts.SiteTitle + " homepage",
		Theme:     snap.Theme,
		FontSize:  snap.FontSize,
		CanShrink: snap.FontSize > r.opts.Font.Min,
		CanGrow:   snap.FontSize < r.opts.Font.Max,
		Unit:      snap.Unit,
	}
	if snap.Unit == units.Inches {
		b.UnitLabel = "Show cm"
	} else {
		b.UnitLabel = "Show inches"
	}

	for _, key := range c.Sizes.Keys() {
		b.Sizes = append(b.Sizes, sizeOption{
			Key:    key,
			Abbr:   c.Sizes.Abbr(key),
			Name:   c.Sizes.DisplayName(key),
			Active: key == snap.Size,
		})
	}
	b.CurrentAbbr = c.Sizes.Abbr(snap.Size)

	skill := c.SkillLevelText
	if skill == "" {
		skill = p.SkillLevel
	}
	alt := p.ImageAlt
	if alt == "" {
		alt = "Styled photo of the finished " + p.Title
	}
	b.Header = header{
		Title:         p.Title,
		Subtitle:      p.Subtitle,
		Overview:      expand(c.Overview),
		SkillLevel:    skill,
		EstimatedTime: r.estimatedTime(c, v),
		Intro:         p.IntroHTML,
		ImageURL:      p.ImageURL,
		ImageAlt:      alt,
		ImageVisible:  snap.ImageVisible,
	}

	for _, s := range Sections(p) {
		sec := section{
			Section:   s,
			Icon:      sectionIcons[s.Key],
			Collapsed: snap.IsCollapsed(s.ID),
		}
		switch s.Key {
		case SectionIntroNotes:
			sec.Paragraphs = expandAll(c.IntroNotes.Content, expand)
		case SectionSizingInfo:
			sec.Paragraphs = expandAll(c.SizingInfo.Content, expand)
			sec.SizeTable = buildSizeTable(p, snap)
		case SectionMaterials:
			for _, m := range c.Materials.List {
				icon := m.Icon
				if icon == "" {
					icon = "pencil"
				}
				sec.Materials = append(sec.Materials, material{Label: m.Label, Icon: icon, Description: expand(m.Description)})
			}
		case SectionInstructions:
			sec.Parts = buildParts(c.Instructions.Parts, snap, allSteps, expand)
		case SectionVisualAids:
			for _, it := range c.VisualAids.Items {
				sec.Figures = append(sec.Figures, figure{Src: it.Src, Alt: markup.Parse(it.Caption).PlainText(), Caption: expand(it.Caption)})
			}
		case SectionSchematic:
			alt := c.Schematic.Caption
			if alt == "" {
				alt = "Pattern schematic"
			}
			sec.Figures = []figure{{Src: c.Schematic.Src, Alt: markup.Parse(alt).PlainText(), Caption: expand(c.Schematic.Caption)}}
		case SectionFinishing:
			sec.Finishing = &finishing{
				Steps:   expandAll(c.Finishing.Steps, expand),
				Closing: expand(c.Finishing.ClosingRemark),
			}
		case SectionRequiredSkills:
			sec.Glossary = terms(c.RequiredSkills.List)
		case SectionAbbreviations:
			sec.Glossary = terms(c.Abbreviations.List)
			sec.Abbrevs = true
		case SectionSupport:
			sec.Support = &support{
				Email:      r.opts.SupportEmail,
				Subject:    "Question about " + p.Title,
				PatternTag: strings.Join(strings.Fields(p.Title), ""),
				SiteTag:    r.opts.Hashtag,
			}
		}
		b.Sections = append(b.Sections, sec)
	}
	return b
}

// estimatedTime expands the authored estimate. An estimate without markers
// falls back to the size's approxTime field.
func (r *Renderer) estimatedTime(c *patternview.PatternContent, v markup.View) template.HTML {
	if c.EstimatedTime != "" {
		doc := markup.Parse(c.EstimatedTime)
		if len(doc.SizeKeys()) > 0 {
			return doc.Render(v)
		}
	}
	fallback := c.EstimatedTime
	if fallback == "" {
		fallback = "N/A"
	}
	doc := markup.Doc{Nodes: []markup.Node{markup.SizeValue{Key: "approxTime", Fallback: fallback}}}
	return doc.Render(v)
}

func expandAll(raw []string, expand func(string) template.HTML) []template.HTML {
	out := make([]template.HTML, len(raw))
	for i, s := range raw {
		out[i] = expand(s)
	}
	return out
}

func terms(list []patternview.Term) []term {
	out := make([]term, len(list))
	for i, t := range list {
		out[i] = term{Term: t.Term, Definition: t.Definition}
	}
	return out
}

func buildParts(parts []patternview.Part, snap state.Snapshot, allSteps bool, expand func(string) template.HTML) []part {
	out := make([]part, 0, len(parts))
	for i, p := range parts {
		pt := part{
			Number:    i + 1,
			Subtitle:  p.Subtitle,
			Attention: expand(p.Attention),
			Note:      expand(p.Note),
			ProTip:    expand(p.ProTip),
		}
		order := make([]string, 0, len(p.Steps))
		for _, s := range p.Steps {
			key := patternview.StepKey(i, s.ID)
			hidden := !sizes.Visible(s.SizeSpecific, snap.Size)
			if hidden && !allSteps {
				continue
			}
			if !hidden {
				order = append(order, key)
			}
			pt.Steps = append(pt.Steps, step{
				Key:      key,
				Text:     expand(s.Text),
				Subtext:  expand(s.Subtext),
				Complete: snap.IsComplete(key),
				Rule:     s.SizeSpecific,
				Hidden:   hidden,
			})
		}
		js, _ := json.Marshal(order)
		pt.Order = string(js)
		out = append(out, pt)
	}
	return out
}

// buildSizeTable lays out one row per size key. Measurements are converted
// to the display unit when their column names a length or yarn amount.
func buildSizeTable(p *patternview.Pattern, snap state.Snapshot) *sizeTable {
	fm := p.FinishedMeasurements
	if fm == nil {
		return nil
	}
	c := p.Content
	t := &sizeTable{Notes: fm.Notes}
	cols := fm.Columns()
	for _, col := range cols {
		t.Columns = append(t.Columns, units.ColumnTitle(col))
	}
	keys := c.Sizes.Keys()
	if len(keys) == 0 {
		keys = fm.Sizes.Keys()
	}
	for _, key := range keys {
		row := sizeRow{Key: key, Name: c.Sizes.DisplayName(key), Active: key == snap.Size}
		for _, col := range cols {
			raw, ok := sizes.Resolve(fm.Sizes, key, col)
			if !ok || raw == "" {
				raw = "-"
			}
			c := measurementCell(col, raw)
			c.Text = c.format(snap.Unit)
			row.Cells = append(row.Cells, c)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// MeasurementCell formats one finished-measurement value for display.
// Values that are not numeric measurements are shown as authored.
func MeasurementCell(column, raw string, unit units.Unit) string {
	return measurementCell(column, raw).format(unit)
}

func measurementCell(column, raw string) cell {
	c := cell{Raw: raw, Kind: units.GuessKind(column, raw)}
	if c.Kind != units.Plain {
		c.Base = units.StripUnits(raw)
		c.Approx = strings.HasPrefix(strings.TrimSpace(raw), "~")
	}
	return c
}

func (c cell) format(unit units.Unit) string {
	if c.Kind == units.Plain {
		return c.Raw
	}
	out := units.Format(c.Base, c.Kind, unit)
	if out == c.Base {
		return c.Raw
	}
	if c.Approx {
		out = "~" + out
	}
	return out
}
