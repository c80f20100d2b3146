// Package export produces the standalone, server-free copy of a pattern
// page: the rendered toolbar and pattern container, the stylesheet, the
// session state as JSON and the snapshot script, all in one HTML file.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"go.uber.org/zap"

	"github.com/areumknits/patternview"
	"github.com/areumknits/patternview/internal/assets"
	"github.com/areumknits/patternview/internal/render"
	"github.com/areumknits/patternview/internal/sizes"
	"github.com/areumknits/patternview/internal/state"
)

// ErrExportPrecondition is returned when the rendered page lacks the
// elements an export is built from.
var ErrExportPrecondition = errors.New("export precondition failed")

// ExportPreconditionError names the anchors that were not found.
type ExportPreconditionError struct {
	Missing []string
}

func (e *ExportPreconditionError) Error() string {
	return fmt.Sprintf("export: rendered page has no %s", strings.Join(e.Missing, " or "))
}

func (e *ExportPreconditionError) Unwrap() error { return ErrExportPrecondition }

// Options configures an Exporter.
type Options struct {
	// LiveURL is where the exported file's home link points.
	LiveURL string
	// Minify shrinks the inlined stylesheet and script.
	Minify bool
	// Stylesheet overrides the embedded viewer stylesheet.
	Stylesheet []byte
	// NewID stamps each document so the snapshot script can tell a fresh
	// file from one it has already stored state for. Defaults to a UUID.
	NewID  func() string
	Logger *zap.Logger
}

// Exporter builds standalone documents. It is safe for concurrent use.
type Exporter struct {
	opts   Options
	css    template.CSS
	script template.JS
	tmpl   *template.Template
	log    *zap.Logger
}

// New loads and optionally minifies the inlined assets once.
func New(opts Options) (*Exporter, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.LiveURL == "" {
		opts.LiveURL = "/"
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	style := opts.Stylesheet
	if style == nil {
		var err error
		if style, err = assets.ViewerCSS(); err != nil {
			return nil, fmt.Errorf("load stylesheet: %w", err)
		}
	}
	script, err := assets.SnapshotJS()
	if err != nil {
		return nil, fmt.Errorf("load snapshot script: %w", err)
	}

	styleText, scriptText := string(style), string(script)
	if opts.Minify {
		m := minify.New()
		m.AddFunc("text/css", css.Minify)
		m.AddFunc("application/javascript", js.Minify)
		if styleText, err = m.String("text/css", styleText); err != nil {
			return nil, fmt.Errorf("minify stylesheet: %w", err)
		}
		if scriptText, err = m.String("application/javascript", scriptText); err != nil {
			return nil, fmt.Errorf("minify snapshot script: %w", err)
		}
	}

	tmpl, err := template.New("document").Parse(documentTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse document template: %w", err)
	}

	return &Exporter{
		opts:   opts,
		css:    template.CSS(styleText),
		script: template.JS(scriptText),
		tmpl:   tmpl,
		log:    opts.Logger.Named("export"),
	}, nil
}

// Input is everything one export needs.
type Input struct {
	// Markup is the rendered viewer body.
	Markup   string
	Title    string
	Slug     string
	Snapshot state.Snapshot
	Defaults state.Defaults
	Sizes    sizes.Table
	// ExportID is generated when empty.
	ExportID string
}

// Document is a finished export.
type Document struct {
	Filename string
	HTML     []byte
}

// initialState is embedded as JSON for the snapshot script.
type initialState struct {
	state.Snapshot
	Font         state.Font  `json:"font"`
	DefaultUnit  string      `json:"defaultUnit"`
	FirstSize    string      `json:"firstSize"`
	AmbientTheme state.Theme `json:"ambientTheme"`
	KeyBase      string      `json:"keyBase"`
	ExportID     string      `json:"exportId"`
	Sizes        sizes.Table `json:"sizes"`
}

type documentData struct {
	Title     string
	Theme     state.Theme
	CSS       template.CSS
	Script    template.JS
	State     template.JS
	PatternID string
	Unit      string
	FontSize  int
	Toolbar   template.HTML
	Container template.HTML
}

// Export captures the toolbar and container out of in.Markup and wraps them
// with everything needed to run without a server.
func (e *Exporter) Export(in Input) (*Document, error) {
	captured, err := capture(in.Markup, e.opts.LiveURL)
	if err != nil {
		e.log.Error("export aborted", zap.String("pattern", in.Snapshot.PatternID), zap.Error(err))
		return nil, err
	}

	exportID := in.ExportID
	if exportID == "" {
		exportID = e.opts.NewID()
	}
	initial, err := json.Marshal(initialState{
		Snapshot:     in.Snapshot,
		Font:         in.Defaults.Font,
		DefaultUnit:  string(in.Defaults.Unit),
		FirstSize:    in.Defaults.Size,
		AmbientTheme: in.Defaults.Theme,
		KeyBase:      in.Defaults.KeyBase,
		ExportID:     exportID,
		Sizes:        in.Sizes,
	})
	if err != nil {
		return nil, fmt.Errorf("encode export state: %w", err)
	}

	var buf bytes.Buffer
	err = e.tmpl.Execute(&buf, documentData{
		Title:     in.Title,
		Theme:     in.Snapshot.Theme,
		CSS:       e.css,
		Script:    e.script,
		State:     template.JS(initial),
		PatternID: in.Snapshot.PatternID,
		Unit:      string(in.Snapshot.Unit),
		FontSize:  in.Snapshot.FontSize,
		Toolbar:   template.HTML(captured.toolbar),
		Container: template.HTML(captured.container),
	})
	if err != nil {
		return nil, fmt.Errorf("render export document: %w", err)
	}

	doc := &Document{Filename: Filename(in.Slug, in.Title), HTML: buf.Bytes()}
	e.log.Info("pattern exported",
		zap.String("pattern", in.Snapshot.PatternID),
		zap.String("file", doc.Filename),
		zap.Int("bytes", len(doc.HTML)))
	return doc, nil
}

// Pattern renders p in export mode with r and exports the result. The
// server-side render of snap is the markup the viewer has on screen.
func (e *Exporter) Pattern(r *render.Renderer, p *patternview.Pattern, snap state.Snapshot, defaults state.Defaults) (*Document, error) {
	markup, err := r.ExportBody(p, snap)
	if err != nil {
		return nil, fmt.Errorf("render %s for export: %w", p.Slug, err)
	}
	return e.Export(Input{
		Markup:   markup,
		Title:    p.Title + " | " + r.Options().SiteTitle,
		Slug:     p.Slug,
		Snapshot: snap,
		Defaults: defaults,
		Sizes:    p.Content.Sizes,
	})
}

// Filename is "<slug>_interactive.html". The title is used when the slug
// is empty.
func Filename(patternSlug, title string) string {
	s := slug.Make(patternSlug)
	if s == "" {
		s = slug.Make(title)
	}
	if s == "" {
		s = "pattern"
	}
	return s + "_interactive.html"
}

const documentTemplate = `<!DOCTYPE html>
<html lang="en" data-theme="{{.Theme}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>{{.CSS}}</style>
</head>
<body>
<div id="pv-root" class="pv-root" data-theme="{{.Theme}}" data-pattern-id="{{.PatternID}}" data-unit="{{.Unit}}" style="--pv-font-size: {{.FontSize}}px">
{{.Toolbar}}
{{.Container}}
</div>
<div id="pv-tooltip" class="pv-tooltip" role="tooltip" hidden></div>
<div id="pv-status" class="pv-sr-only" role="status" aria-live="polite" aria-atomic="true"></div>
<script id="pv-state" type="application/json">{{.State}}</script>
<script>{{.Script}}</script>
</body>
</html>
`
