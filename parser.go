package patternview

import (
	"bytes"
	"fmt"
	"html/template"
	"os"

	"github.com/gosimple/slug"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Typographer),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

// ParseFile reads a catalog entry from disk.
func ParseFile(path string) (*Pattern, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(content, path)
}

// Parse reads a catalog entry. file is used for error messages only.
func Parse(content []byte, file string) (*Pattern, error) {
	yamlContent, body, err := extractFrontmatter(content)
	if err != nil {
		return nil, NewParseError(file, 1, err.Error()).
			WithHint("catalog entries start with a YAML block between two --- lines").
			WithErr(err)
	}

	var p Pattern
	if err := yaml.Unmarshal(yamlContent, &p); err != nil {
		// frontmatter starts on line 2
		return nil, NewParseError(file, yamlErrorLine(err, 1), "invalid pattern record: "+err.Error()).
			WithErr(err)
	}

	if p.Slug == "" {
		p.Slug = slug.Make(p.Title)
	}
	if p.ID == "" {
		p.ID = p.Slug
	}
	p.SourceFile = file

	if len(bytes.TrimSpace(body)) > 0 {
		var buf bytes.Buffer
		if err := markdown.Convert(body, &buf); err != nil {
			return nil, NewParseError(file, 0, "failed to render introduction").WithErr(err)
		}
		p.IntroHTML = template.HTML(buf.String())
	}

	if err := p.Validate(); err != nil {
		return nil, &ParseError{File: file, Message: err.Error(), Err: err}
	}

	return &p, nil
}

// extractFrontmatter splits "---\n<yaml>\n---\n<body>" into its parts.
func extractFrontmatter(content []byte) ([]byte, []byte, error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return nil, nil, fmt.Errorf("missing frontmatter")
	}

	// Find the closing ---
	rest := content[4:]
	if bytes.HasPrefix(rest, []byte("---\n")) || bytes.Equal(rest, []byte("---")) {
		return nil, nil, fmt.Errorf("empty frontmatter")
	}
	endIdx := bytes.Index(rest, []byte("\n---\n"))
	if endIdx == -1 {
		if bytes.HasSuffix(rest, []byte("\n---")) {
			return rest[:len(rest)-4], nil, nil
		}
		return nil, nil, fmt.Errorf("unclosed frontmatter")
	}

	return rest[:endIdx], rest[endIdx+5:], nil
}
