package patternview

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/areumknits/patternview/internal/markup"
)

// Validate checks the invariants the viewer relies on. All problems are
// reported together.
func (p *Pattern) Validate() error {
	var errs error
	if strings.TrimSpace(p.Title) == "" {
		errs = multierr.Append(errs, fmt.Errorf("title is required"))
	}
	if strings.TrimSpace(p.ID) == "" {
		errs = multierr.Append(errs, fmt.Errorf("id is required"))
	}
	if strings.ContainsAny(p.ID, " \t\n_") {
		errs = multierr.Append(errs, fmt.Errorf("id %q must not contain whitespace or underscores", p.ID))
	}

	c := p.Content
	if c == nil {
		return errs
	}

	if c.Instructions != nil {
		for pi, part := range c.Instructions.Parts {
			seen := make(map[string]bool, len(part.Steps))
			for si, s := range part.Steps {
				where := fmt.Sprintf("instructions part %d step %d", pi+1, si+1)
				if s.ID == "" {
					errs = multierr.Append(errs, fmt.Errorf("%s: id is required", where))
					continue
				}
				if seen[s.ID] {
					errs = multierr.Append(errs, fmt.Errorf("%s: duplicate step id %q", where, s.ID))
				}
				seen[s.ID] = true
				errs = multierr.Append(errs, p.validateRule(where, s.SizeSpecific))
			}
		}
	}
	return errs
}

func (p *Pattern) validateRule(where, rule string) error {
	var errs error
	for _, tok := range strings.Fields(rule) {
		size, verb, ok := cutLast(tok, "_")
		if !ok || (verb != "hide" && verb != "show") {
			errs = multierr.Append(errs, fmt.Errorf("%s: size rule %q must look like <size>_hide or <size>_show", where, tok))
			continue
		}
		if p.Content.Sizes.Len() > 0 && !p.Content.Sizes.Has(size) {
			errs = multierr.Append(errs, fmt.Errorf("%s: size rule %q names unknown size %q", where, tok, size))
		}
	}
	return errs
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// MissingValue is a size-dynamic marker whose key has no value for a size.
// The viewer falls back to the authored literal; the author may still want
// to know.
type MissingValue struct {
	Where string
	Key   string
	Size  string
}

func (m MissingValue) String() string {
	return fmt.Sprintf("%s: %q has no value for size %s", m.Where, m.Key, m.Size)
}

// MissingValues lists every marker key that does not resolve for some size.
func (p *Pattern) MissingValues() []MissingValue {
	if p.Content == nil || p.Content.Sizes.Len() == 0 {
		return nil
	}
	var out []MissingValue
	for _, t := range p.Content.Texts() {
		for _, key := range markup.Parse(t.Raw).SizeKeys() {
			for _, size := range p.Content.Sizes.Keys() {
				rec, _ := p.Content.Sizes.Record(size)
				if _, ok := rec.Get(key); !ok {
					out = append(out, MissingValue{Where: t.Where, Key: key, Size: size})
				}
			}
		}
	}
	return out
}
