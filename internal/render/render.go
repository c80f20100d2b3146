// Package render turns a pattern and a session snapshot into the viewer's
// HTML.
//
// The viewer is a server-rendered component tree: toolbar, header, size
// table, instruction parts and collapsible sections. Every call re-expands
// all pattern text for the snapshot it is given; there is no diffing and no
// cached output, so two renders of the same snapshot are byte-identical.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"go.uber.org/zap"

	"github.com/areumknits/patternview"
	"github.com/areumknits/patternview/internal/state"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options configures a Renderer.
type Options struct {
	// SiteTitle names the site in the document title and home link label.
	SiteTitle string
	// HomeURL is the toolbar's home link. Default: "/".
	HomeURL string
	// AssetPrefix is where the stylesheet and live script are served.
	// Default: "/assets".
	AssetPrefix string
	// Live includes the live client script in full pages.
	Live bool
	// Debug turns on client-side logging in the live script.
	Debug bool

	SupportEmail string
	Hashtag      string

	Font   state.Font
	Logger *zap.Logger
}

func (o *Options) applyDefaults() {
	if o.SiteTitle == "" {
		o.SiteTitle = "Areum Knits"
	}
	if o.HomeURL == "" {
		o.HomeURL = "/"
	}
	if o.AssetPrefix == "" {
		o.AssetPrefix = "/assets"
	}
	if o.SupportEmail == "" {
		o.SupportEmail = "support@example.com"
	}
	if o.Hashtag == "" {
		o.Hashtag = "AreumKnits"
	}
	if o.Font == (state.Font{}) {
		o.Font = state.DefaultFont
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Renderer renders viewer pages. It is safe for concurrent use.
type Renderer struct {
	opts Options
	tmpl *template.Template
	log  *zap.Logger
}

// New parses the embedded templates.
func New(opts Options) (*Renderer, error) {
	opts.applyDefaults()
	r := &Renderer{opts: opts, log: opts.Logger.Named("render")}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"icon": icon,
		"json": toJSON,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("render: parse templates: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// Options returns the renderer's effective options.
func (r *Renderer) Options() Options { return r.opts }

type pageData struct {
	Title     string
	SiteTitle string
	Assets    string
	Live      bool
	Debug     bool
	Status    string
	Body      body
}

// Page writes a complete viewer document for the pattern.
func (r *Renderer) Page(w io.Writer, p *patternview.Pattern, snap state.Snapshot, status string) error {
	if p == nil || p.IsStub() {
		return patternview.ErrNoContent
	}
	return r.execute(w, "page", pageData{
		Title:     p.Title + " | " + r.opts.SiteTitle,
		SiteTitle: r.opts.SiteTitle,
		Assets:    r.opts.AssetPrefix,
		Live:      r.opts.Live,
		Debug:     r.opts.Debug,
		Status:    status,
		Body:      r.build(p, snap, false),
	})
}

// Body writes the toolbar and content container, the fragment the live
// channel swaps in after every action.
func (r *Renderer) Body(w io.Writer, p *patternview.Pattern, snap state.Snapshot) error {
	if p == nil || p.IsStub() {
		return patternview.ErrNoContent
	}
	return r.execute(w, "body", r.build(p, snap, false))
}

// ExportBody is Body for a standalone copy: steps hidden for the current
// size are kept in the markup, marked hidden.
func (r *Renderer) ExportBody(p *patternview.Pattern, snap state.Snapshot) (string, error) {
	if p == nil || p.IsStub() {
		return "", patternview.ErrNoContent
	}
	var buf bytes.Buffer
	if err := r.execute(&buf, "body", r.build(p, snap, true)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BodyString is Body into a string.
func (r *Renderer) BodyString(p *patternview.Pattern, snap state.Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := r.Body(&buf, p, snap); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type indexEntry struct {
	Slug       string
	Title      string
	Subtitle   string
	ImageURL   string
	ImageAlt   string
	SkillLevel string
	YarnWeight string
	Stub       bool
}

type indexData struct {
	Title    string
	Assets   string
	Patterns []indexEntry
}

// Index writes the pattern list.
func (r *Renderer) Index(w io.Writer, patterns []*patternview.Pattern) error {
	data := indexData{Title: r.opts.SiteTitle, Assets: r.opts.AssetPrefix}
	for _, p := range patterns {
		data.Patterns = append(data.Patterns, indexEntry{
			Slug:       p.Slug,
			Title:      p.Title,
			Subtitle:   p.Subtitle,
			ImageURL:   p.ImageURL,
			ImageAlt:   p.ImageAlt,
			SkillLevel: p.SkillLevel,
			YarnWeight: p.YarnWeight,
			Stub:       p.IsStub(),
		})
	}
	return r.execute(w, "index", data)
}

type missingData struct {
	Title   string
	Assets  string
	HomeURL string
	Pattern string
	Message string
}

// Missing writes the error page shown for a pattern without content.
func (r *Renderer) Missing(w io.Writer, p *patternview.Pattern) error {
	data := missingData{
		Title:   r.opts.SiteTitle,
		Assets:  r.opts.AssetPrefix,
		HomeURL: r.opts.HomeURL,
		Message: "Pattern content is missing.",
	}
	if p != nil {
		data.Pattern = p.Title
		data.Title = p.Title + " | " + r.opts.SiteTitle
	}
	return r.execute(w, "missing", data)
}

func (r *Renderer) execute(w io.Writer, name string, data any) error {
	// Render into a buffer so a template error never leaves half a page.
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		r.log.Error("template failed", zap.String("template", name), zap.Error(err))
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}
