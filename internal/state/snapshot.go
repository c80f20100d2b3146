package state

import (
	"slices"

	"github.com/areumknits/patternview/internal/markup"
	"github.com/areumknits/patternview/internal/sizes"
	"github.com/areumknits/patternview/internal/units"
)

// Snapshot is an immutable copy of a session's state.
type Snapshot struct {
	PatternID    string          `json:"patternId"`
	Size         string          `json:"size"`
	Unit         units.Unit      `json:"unit"`
	FontSize     int             `json:"fontSize"`
	Theme        Theme           `json:"theme"`
	ImageVisible bool            `json:"imageVisible"`
	Completed    map[string]bool `json:"completedSteps"`
	Collapsed    map[string]bool `json:"collapsedSections"`
}

// IsComplete reports whether the step is marked complete.
func (s Snapshot) IsComplete(stepKey string) bool { return s.Completed[stepKey] }

// IsCollapsed reports whether the section is collapsed.
func (s Snapshot) IsCollapsed(sectionID string) bool { return s.Collapsed[sectionID] }

// CompletedKeys returns the completed step keys, sorted.
func (s Snapshot) CompletedKeys() []string {
	out := make([]string, 0, len(s.Completed))
	for k, done := range s.Completed {
		if done {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// View is the marker-expansion context for this snapshot.
func (s Snapshot) View(table sizes.Table) markup.View {
	return markup.View{Sizes: table, Size: s.Size, Unit: s.Unit}
}

// Defaults are the values a reset restores.
type Defaults struct {
	Size     string     `json:"size"`
	Unit     units.Unit `json:"unit"`
	Font     Font       `json:"font"`
	Theme    Theme      `json:"theme"`
	KeyBase  string     `json:"keyBase"`
	SizeKeys []string   `json:"sizeKeys"`
}
