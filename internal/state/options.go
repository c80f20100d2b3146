package state

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/areumknits/patternview/internal/units"
)

// Store is the durable per-browser key/value storage a session writes
// through to. Values are always strings.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	// Keys lists every stored key that starts with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Theme is the viewer's color scheme.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// ParseTheme returns the theme named by s and whether s was valid.
func ParseTheme(s string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light, true
	case Dark:
		return Dark, true
	}
	return "", false
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

// ThemeProvider reports the site's ambient theme at the time of the call.
type ThemeProvider interface {
	Theme() Theme
}

// StaticTheme is a ThemeProvider that never changes.
type StaticTheme Theme

func (s StaticTheme) Theme() Theme { return Theme(s) }

// Announcer receives the human-readable status line emitted by every
// mutating operation.
type Announcer interface {
	Announce(message string)
}

// AnnouncerFunc adapts a function to Announcer.
type AnnouncerFunc func(message string)

func (f AnnouncerFunc) Announce(message string) { f(message) }

// Font bounds the reading font size in pixels.
type Font struct {
	Min     int `yaml:"min" json:"min"`
	Max     int `yaml:"max" json:"max"`
	Step    int `yaml:"step" json:"step"`
	Default int `yaml:"default" json:"default"`
}

// DefaultFont is the font range used when none is configured.
var DefaultFont = Font{Min: 14, Max: 20, Step: 1, Default: 16}

// Clamp limits n to [Min, Max] and snaps it to the nearest step above Min.
func (f Font) Clamp(n int) int {
	if f.Max < f.Min {
		return f.Min
	}
	n = min(max(n, f.Min), f.Max)
	if f.Step > 1 && n < f.Max {
		off := n - f.Min
		off = (off + f.Step/2) / f.Step * f.Step
		n = min(f.Min+off, f.Max)
	}
	return n
}

// Options configures a Session. Zero fields take defaults.
type Options struct {
	Store    Store
	Theme    ThemeProvider
	Announce Announcer
	Logger   *zap.Logger

	Font        Font
	DefaultUnit units.Unit
	// DefaultSize is used only when the pattern has no size table.
	DefaultSize string

	KeyPrefix     string
	SchemaVersion string
}

// Defaults for Options.
const (
	DefaultKeyPrefix     = "areumPattern"
	DefaultSchemaVersion = "v2"
	DefaultSize          = "L"
)

func (o *Options) applyDefaults() {
	if o.Store == nil {
		o.Store = NopStore{}
	}
	if o.Theme == nil {
		o.Theme = StaticTheme(Light)
	}
	if o.Announce == nil {
		o.Announce = AnnouncerFunc(func(string) {})
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Font == (Font{}) {
		o.Font = DefaultFont
	}
	if _, ok := units.ParseUnit(string(o.DefaultUnit)); !ok {
		o.DefaultUnit = units.Inches
	}
	if o.DefaultSize == "" {
		o.DefaultSize = DefaultSize
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = DefaultKeyPrefix
	}
	if o.SchemaVersion == "" {
		o.SchemaVersion = DefaultSchemaVersion
	}
}

// NopStore stores nothing. Sessions built on it behave like a browser with
// storage disabled.
type NopStore struct{}

func (NopStore) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (NopStore) Set(context.Context, string, string) error         { return nil }
func (NopStore) Delete(context.Context, ...string) error           { return nil }
func (NopStore) Keys(context.Context, string) ([]string, error)    { return nil, nil }
