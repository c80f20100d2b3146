// Package patternview provides the data model for interactive knitting
// patterns and the parser for catalog entries.
//
// A catalog entry is a markdown file whose YAML frontmatter holds the
// pattern record and whose body is the designer's personal introduction.
package patternview

import (
	"fmt"
	"html/template"

	"github.com/areumknits/patternview/internal/sizes"
)

// Pattern is a designer's knitting pattern. Patterns are immutable once
// loaded; Content is nil for stub entries that have no interactive viewer.
type Pattern struct {
	ID           string `yaml:"id"`
	Slug         string `yaml:"slug"`
	Title        string `yaml:"title"`
	Subtitle     string `yaml:"subtitle,omitempty"`
	ImageURL     string `yaml:"image_url,omitempty"`
	ImageAlt     string `yaml:"image_alt,omitempty"`
	SkillLevel   string `yaml:"skill_level,omitempty"`
	Construction string `yaml:"construction,omitempty"`
	YarnWeight   string `yaml:"yarn_weight,omitempty"`

	FinishedMeasurements *FinishedMeasurements `yaml:"finished_measurements,omitempty"`
	Content              *PatternContent       `yaml:"content,omitempty"`

	// IntroHTML is the rendered markdown body of the catalog entry.
	IntroHTML template.HTML `yaml:"-"`
	// SourceFile is the catalog file the pattern was read from.
	SourceFile string `yaml:"-"`
}

// IsStub reports whether the pattern has no viewer content.
func (p *Pattern) IsStub() bool {
	return p.Content == nil
}

// FinishedMeasurements is the size comparison table. Columns come from the
// first size's fields, in authoring order.
type FinishedMeasurements struct {
	Notes string      `yaml:"notes,omitempty"`
	Sizes sizes.Table `yaml:"sizes"`
}

// Columns returns the table's column keys.
func (f *FinishedMeasurements) Columns() []string {
	if f == nil {
		return nil
	}
	first, ok := f.Sizes.First()
	if !ok {
		return nil
	}
	rec, _ := f.Sizes.Record(first)
	return rec.Keys()
}

// PatternContent is the document body shown by the viewer.
type PatternContent struct {
	Overview       string      `yaml:"overview"`
	SkillLevelText string      `yaml:"skill_level_text,omitempty"`
	EstimatedTime  string      `yaml:"estimated_time,omitempty"`
	Sizes          sizes.Table `yaml:"sizes"`

	IntroNotes     *TextSection         `yaml:"intro_notes,omitempty"`
	SizingInfo     *TextSection         `yaml:"sizing_info,omitempty"`
	Materials      *MaterialsSection    `yaml:"materials,omitempty"`
	Instructions   *InstructionsSection `yaml:"instructions,omitempty"`
	VisualAids     *VisualAidsSection   `yaml:"visual_aids,omitempty"`
	Schematic      *SchematicSection    `yaml:"schematic,omitempty"`
	Finishing      *FinishingSection    `yaml:"finishing,omitempty"`
	RequiredSkills *GlossarySection     `yaml:"required_skills,omitempty"`
	Abbreviations  *GlossarySection     `yaml:"abbreviations,omitempty"`
}

// TextSection is a titled list of paragraphs.
type TextSection struct {
	Title   string   `yaml:"title"`
	Content []string `yaml:"content"`
}

// Material is one entry of the materials list.
type Material struct {
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon,omitempty"`
}

// MaterialsSection lists yarn, needles, notions and gauge.
type MaterialsSection struct {
	Title string     `yaml:"title"`
	List  []Material `yaml:"list"`
}

// Step is one checkable instruction line. IDs are unique within their part
// only; use StepKey to address a step across the whole pattern.
type Step struct {
	ID           string `yaml:"id"`
	Text         string `yaml:"text"`
	Subtext      string `yaml:"subtext,omitempty"`
	SizeSpecific string `yaml:"size_specific,omitempty"`
}

// Part is an ordered group of steps. Completion cascades within a part.
type Part struct {
	Subtitle  string `yaml:"subtitle"`
	Attention string `yaml:"attention,omitempty"`
	Steps     []Step `yaml:"steps"`
	Note      string `yaml:"note,omitempty"`
	ProTip    string `yaml:"pro_tip,omitempty"`
}

// InstructionsSection holds the ordered instruction parts.
type InstructionsSection struct {
	Title string `yaml:"title"`
	Parts []Part `yaml:"parts"`
}

// VisualAid is an illustrative image.
type VisualAid struct {
	Src     string `yaml:"src"`
	Caption string `yaml:"caption,omitempty"`
}

// VisualAidsSection is a gallery of illustrations.
type VisualAidsSection struct {
	Title string      `yaml:"title"`
	Items []VisualAid `yaml:"items"`
}

// SchematicSection is a single measured drawing.
type SchematicSection struct {
	Title   string `yaml:"title"`
	Src     string `yaml:"src"`
	Caption string `yaml:"caption,omitempty"`
}

// FinishingSection is the ordered list of finishing steps.
type FinishingSection struct {
	Title         string   `yaml:"title"`
	Steps         []string `yaml:"steps"`
	ClosingRemark string   `yaml:"closing_remark,omitempty"`
}

// Term is a term and its definition.
type Term struct {
	Term       string `yaml:"term"`
	Definition string `yaml:"definition"`
}

// GlossarySection is a titled list of terms (skills or abbreviations).
type GlossarySection struct {
	Title string `yaml:"title"`
	List  []Term `yaml:"list"`
}

// StepKey addresses a step uniquely within its pattern.
func StepKey(partIndex int, stepID string) string {
	return fmt.Sprintf("p%d-%s", partIndex+1, stepID)
}

// LocatedText is a piece of authored text and where it appears.
type LocatedText struct {
	Where string
	Raw   string
}

// Texts lists every piece of marker-bearing text in the content, in
// document order.
func (c *PatternContent) Texts() []LocatedText {
	if c == nil {
		return nil
	}
	var out []LocatedText
	add := func(where, raw string) {
		if raw != "" {
			out = append(out, LocatedText{Where: where, Raw: raw})
		}
	}

	add("overview", c.Overview)
	add("estimated time", c.EstimatedTime)
	if c.IntroNotes != nil {
		for i, p := range c.IntroNotes.Content {
			add(fmt.Sprintf("intro notes paragraph %d", i+1), p)
		}
	}
	if c.SizingInfo != nil {
		for i, p := range c.SizingInfo.Content {
			add(fmt.Sprintf("sizing info paragraph %d", i+1), p)
		}
	}
	if c.Materials != nil {
		for _, m := range c.Materials.List {
			add("materials "+m.Label, m.Description)
		}
	}
	if c.Instructions != nil {
		for pi, part := range c.Instructions.Parts {
			where := fmt.Sprintf("instructions part %d", pi+1)
			add(where+" attention", part.Attention)
			for _, s := range part.Steps {
				add(where+" step "+s.ID, s.Text)
				add(where+" step "+s.ID+" subtext", s.Subtext)
			}
			add(where+" note", part.Note)
			add(where+" pro tip", part.ProTip)
		}
	}
	if c.Finishing != nil {
		for i, s := range c.Finishing.Steps {
			add(fmt.Sprintf("finishing step %d", i+1), s)
		}
		add("finishing closing remark", c.Finishing.ClosingRemark)
	}
	return out
}
