// Package state holds the per-browser, per-pattern session state of the
// viewer: selected size, display unit, font size, theme, image visibility,
// step progress and collapsed sections.
//
// Every mutation updates memory and then writes through to the injected
// Store before returning. A failed write is logged and tolerated; the change
// simply does not survive a reload.
package state

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/areumknits/patternview"
	"github.com/areumknits/patternview/internal/sizes"
	"github.com/areumknits/patternview/internal/units"
)

// ErrInvalidSize is returned when a size key is not in the pattern's table.
var ErrInvalidSize = errors.New("invalid size")

// InvalidSizeError names the rejected size.
type InvalidSizeError struct {
	Size  string
	Valid []string
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("invalid size %q (available: %s)", e.Size, strings.Join(e.Valid, ", "))
}

func (e *InvalidSizeError) Unwrap() error { return ErrInvalidSize }

// ErrUnknownStep is returned by ToggleStep when the step is not in the
// ordered list it was given.
var ErrUnknownStep = errors.New("step is not in its group")

// Session is the interactive state of one pattern for one browser.
// It is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	pattern *patternview.Pattern
	table   sizes.Table
	keys    Keys
	opts    Options
	log     *zap.Logger

	size         string
	unit         units.Unit
	fontSize     int
	theme        Theme
	imageVisible bool
	completed    map[string]bool
	collapsed    map[string]bool
}

// New hydrates a session for p from the store. Entries that cannot be read
// or no longer make sense (a size the pattern dropped, a malformed number)
// are ignored in favour of defaults.
func New(ctx context.Context, p *patternview.Pattern, opts Options) (*Session, error) {
	if p == nil || p.IsStub() {
		return nil, patternview.ErrNoContent
	}
	opts.applyDefaults()

	s := &Session{
		pattern: p,
		table:   p.Content.Sizes,
		keys:    NewKeys(opts.KeyPrefix, opts.SchemaVersion, p.ID),
		opts:    opts,
		log:     opts.Logger.With(zap.String("component", "state"), zap.String("pattern", p.ID)),
	}
	s.defaults()
	s.hydrate(ctx)
	return s, nil
}

// defaults sets every field to its first-visit value.
func (s *Session) defaults() {
	s.size = s.firstSize()
	s.unit = s.opts.DefaultUnit
	s.fontSize = s.opts.Font.Clamp(s.opts.Font.Default)
	s.theme = s.opts.Theme.Theme()
	s.imageVisible = true
	s.completed = make(map[string]bool)
	s.collapsed = make(map[string]bool)
}

func (s *Session) firstSize() string {
	if first, ok := s.table.First(); ok {
		return first
	}
	return s.opts.DefaultSize
}

func (s *Session) hydrate(ctx context.Context) {
	stored, err := s.opts.Store.Keys(ctx, s.keys.Prefix())
	if err != nil {
		s.log.Warn("failed to list stored state", zap.Error(err))
		return
	}

	for _, key := range stored {
		field, ok := s.keys.field(key)
		if !ok {
			continue
		}
		value, ok, err := s.opts.Store.Get(ctx, key)
		if err != nil {
			s.log.Warn("failed to read stored state", zap.String("key", key), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		s.apply(field, value)
	}
}

func (s *Session) apply(field, value string) {
	switch {
	case field == fieldTheme:
		if t, ok := ParseTheme(value); ok {
			s.theme = t
		}
	case field == fieldFontSize:
		if n, err := strconv.Atoi(value); err == nil {
			s.fontSize = s.opts.Font.Clamp(n)
		}
	case field == fieldUnit:
		if u, ok := units.ParseUnit(value); ok {
			s.unit = u
		}
	case field == fieldSelectedSize:
		if s.table.Has(value) {
			s.size = value
		}
	case field == fieldImageVisible:
		s.imageVisible = value == "true"
	case strings.HasPrefix(field, fieldStepPrefix):
		if value == "true" {
			s.completed[strings.TrimPrefix(field, fieldStepPrefix)] = true
		}
	case strings.HasPrefix(field, fieldSectionPrefix):
		if value == "true" {
			s.collapsed[strings.TrimPrefix(field, fieldSectionPrefix)] = true
		}
	}
}

// Pattern returns the pattern the session belongs to.
func (s *Session) Pattern() *patternview.Pattern { return s.pattern }

// Keys returns the session's storage key schema.
func (s *Session) Keys() Keys { return s.keys }

// SetSize selects a size from the pattern's table. Unknown sizes are
// rejected and leave the state unchanged.
func (s *Session) SetSize(ctx context.Context, size string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.table.Has(size) {
		return &InvalidSizeError{Size: size, Valid: s.table.Keys()}
	}
	s.size = size
	s.persist(ctx, s.keys.SelectedSize(), size)
	s.announce("Pattern size changed to %s.", s.table.DisplayName(size))
	return nil
}

// SetUnit switches the display unit.
func (s *Session) SetUnit(ctx context.Context, u units.Unit) error {
	parsed, ok := units.ParseUnit(string(u))
	if !ok {
		return fmt.Errorf("unknown unit %q", u)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setUnit(ctx, parsed)
	return nil
}

// ToggleUnit switches between inches and centimeters.
func (s *Session) ToggleUnit(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setUnit(ctx, s.unit.Toggle())
}

func (s *Session) setUnit(ctx context.Context, u units.Unit) {
	s.unit = u
	s.persist(ctx, s.keys.Unit(), string(u))
	s.announce("Units changed to %s.", u.Long())
}

// SetFontSize sets the reading font size. Out-of-range values are clamped
// and snapped to the configured step.
func (s *Session) SetFontSize(ctx context.Context, px int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setFontSize(ctx, px)
}

// StepFontSize moves the font size by delta steps.
func (s *Session) StepFontSize(ctx context.Context, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := max(s.opts.Font.Step, 1)
	s.setFontSize(ctx, s.fontSize+delta*step)
}

func (s *Session) setFontSize(ctx context.Context, px int) {
	s.fontSize = s.opts.Font.Clamp(px)
	s.persist(ctx, s.keys.FontSize(), strconv.Itoa(s.fontSize))
	s.announce("Font size set to %dpx.", s.fontSize)
}

// SetTheme sets the color scheme.
func (s *Session) SetTheme(ctx context.Context, t Theme) error {
	parsed, ok := ParseTheme(string(t))
	if !ok {
		return fmt.Errorf("unknown theme %q", t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTheme(ctx, parsed)
	return nil
}

// ToggleTheme switches between light and dark.
func (s *Session) ToggleTheme(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTheme(ctx, s.theme.Toggle())
}

func (s *Session) setTheme(ctx context.Context, t Theme) {
	s.theme = t
	s.persist(ctx, s.keys.Theme(), string(t))
	s.announce("Theme changed to %s mode.", t)
}

// SetImageVisible shows or hides the pattern image.
func (s *Session) SetImageVisible(ctx context.Context, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setImageVisible(ctx, visible)
}

// ToggleImage flips the pattern image visibility.
func (s *Session) ToggleImage(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setImageVisible(ctx, !s.imageVisible)
}

func (s *Session) setImageVisible(ctx context.Context, visible bool) {
	s.imageVisible = visible
	s.persist(ctx, s.keys.ImageVisible(), strconv.FormatBool(visible))
	if visible {
		s.announce("Pattern image shown.")
	} else {
		s.announce("Pattern image hidden.")
	}
}

// ToggleStep flips the completion of stepKey within its group. ordered is
// the group's currently visible steps, in order.
//
// Completing step k leaves exactly steps 1..k complete. Un-completing step k
// marks k..n incomplete and keeps 1..k-1.
func (s *Session) ToggleStep(ctx context.Context, stepKey string, ordered []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, k := range ordered {
		if k == stepKey {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownStep, stepKey)
	}

	if !s.completed[stepKey] {
		for _, k := range ordered[:idx+1] {
			s.completed[k] = true
			s.persist(ctx, s.keys.Step(k), "true")
		}
		s.clearSteps(ctx, ordered[idx+1:])
		s.announce("Steps 1 through %d in this section marked complete.", idx+1)
		return nil
	}

	s.clearSteps(ctx, ordered[idx:])
	s.announce("Steps %d through %d in this section marked incomplete.", idx+1, len(ordered))
	return nil
}

// clearSteps removes the stored entry of every key in stepKeys, whether or
// not this session holds it as complete. Other sessions share the store.
func (s *Session) clearSteps(ctx context.Context, stepKeys []string) {
	stale := make([]string, 0, len(stepKeys))
	for _, k := range stepKeys {
		delete(s.completed, k)
		stale = append(stale, s.keys.Step(k))
	}
	s.remove(ctx, stale...)
}

// ToggleSection flips a section between collapsed and expanded. title is
// used for the announcement only.
func (s *Session) ToggleSection(ctx context.Context, sectionID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if title == "" {
		title = "Section"
	}
	if s.collapsed[sectionID] {
		delete(s.collapsed, sectionID)
		s.remove(ctx, s.keys.Section(sectionID))
		s.announce("%s expanded.", title)
		return
	}
	s.collapsed[sectionID] = true
	s.persist(ctx, s.keys.Section(sectionID), "true")
	s.announce("%s collapsed.", title)
}

// Reset restores every field to its first-visit value and removes every
// stored entry of the pattern, including entries this session never read.
// The theme follows the ambient theme at the moment of the call.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.defaults()

	stored, err := s.opts.Store.Keys(ctx, s.keys.Prefix())
	if err != nil {
		s.log.Warn("failed to list stored state for reset", zap.Error(err))
	}
	// Known fields go too, in case listing failed.
	stored = append(stored,
		s.keys.Theme(), s.keys.FontSize(), s.keys.Unit(),
		s.keys.SelectedSize(), s.keys.ImageVisible())
	s.remove(ctx, dedupe(stored)...)

	s.announce("All pattern-specific settings and progress reset to defaults.")
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		PatternID:    s.pattern.ID,
		Size:         s.size,
		Unit:         s.unit,
		FontSize:     s.fontSize,
		Theme:        s.theme,
		ImageVisible: s.imageVisible,
		Completed:    maps.Clone(s.completed),
		Collapsed:    maps.Clone(s.collapsed),
	}
}

// Defaults returns the values a reset would restore, with the ambient theme
// as of now.
func (s *Session) Defaults() Defaults {
	return Defaults{
		Size:     s.firstSize(),
		Unit:     s.opts.DefaultUnit,
		Font:     s.opts.Font,
		Theme:    s.opts.Theme.Theme(),
		KeyBase:  s.keys.Prefix(),
		SizeKeys: s.table.Keys(),
	}
}

func (s *Session) persist(ctx context.Context, key, value string) {
	if err := s.opts.Store.Set(ctx, key, value); err != nil {
		s.log.Warn("failed to persist state", zap.String("key", key), zap.Error(err))
	}
}

func (s *Session) remove(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.opts.Store.Delete(ctx, keys...); err != nil {
		s.log.Warn("failed to remove stored state", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (s *Session) announce(format string, args ...any) {
	s.opts.Announce.Announce(fmt.Sprintf(format, args...))
}
