package markup

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/areumknits/patternview/internal/security"
	"github.com/areumknits/patternview/internal/units"
)

// passthrough tags are kept as-is (without attributes, except a[href]).
var passthrough = map[string]bool{
	"em": true, "i": true, "b": true, "u": true, "s": true,
	"small": true, "sup": true, "sub": true, "code": true,
	"p": true, "ul": true, "ol": true, "li": true, "a": true,
}

// dropped tags lose their content entirely.
var dropped = map[string]bool{
	"script": true, "style": true, "iframe": true, "object": true,
	"embed": true, "template": true, "noscript": true, "textarea": true,
}

type frame struct {
	tag      string
	children []Node
	// build turns the collected children into a node; nil unwraps them
	// into the parent.
	build func(children []Node) Node
	drop  bool
}

// Parse reads authored text into a Doc. It never fails: malformed markup is
// closed implicitly and unknown tags are reduced to their content.
func Parse(raw string) Doc {
	z := html.NewTokenizer(strings.NewReader(raw))
	stack := []*frame{{}}

	top := func() *frame { return stack[len(stack)-1] }
	emit := func(n Node) {
		f := top()
		if f.drop {
			return
		}
		if t, ok := n.(Text); ok && len(f.children) > 0 {
			if prev, ok := f.children[len(f.children)-1].(Text); ok {
				f.children[len(f.children)-1] = Text{Value: prev.Value + t.Value}
				return
			}
		}
		f.children = append(f.children, n)
	}
	pop := func() {
		f := top()
		stack = stack[:len(stack)-1]
		if f.drop {
			return
		}
		if f.build == nil {
			for _, c := range f.children {
				emit(c)
			}
			return
		}
		emit(f.build(f.children))
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			for len(stack) > 1 {
				pop()
			}
			return Doc{Nodes: stack[0].children}

		case html.TextToken:
			if s := string(z.Text()); s != "" {
				emit(Text{Value: s})
			}

		case html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data == "br" {
				emit(Element{Tag: "br"})
			}

		case html.StartTagToken:
			tok := z.Token()
			if tok.Data == "br" {
				emit(Element{Tag: "br"})
				continue
			}
			f := openFrame(tok)
			if top().drop {
				f.drop = true
			}
			stack = append(stack, f)

		case html.EndTagToken:
			tok := z.Token()
			// Close back to the nearest matching open tag; stray end tags
			// are ignored.
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].tag == tok.Data {
					for len(stack) > i {
						pop()
					}
					break
				}
			}
		}
	}
}

func openFrame(tok html.Token) *frame {
	f := &frame{tag: tok.Data}
	attr := func(name string) string {
		for _, a := range tok.Attr {
			if a.Key == name {
				return a.Val
			}
		}
		return ""
	}

	switch {
	case dropped[tok.Data]:
		f.drop = true

	case tok.Data == "strong":
		f.build = func(children []Node) Node { return Bold{Children: children} }

	case tok.Data == "abbr":
		title := attr("title")
		f.build = func(children []Node) Node { return Abbr{Title: title, Children: children} }

	case tok.Data == "span":
		classes := strings.Fields(attr("class"))
		has := func(c string) bool {
			for _, x := range classes {
				if x == c {
					return true
				}
			}
			return false
		}
		key := attr("data-size-key")
		switch {
		case has("stitch-count"):
			f.build = func(children []Node) Node {
				return StitchCount{Key: key, Fallback: Doc{Nodes: children}.PlainText()}
			}
		case has("unit-dynamic"):
			base, kind := attr("data-base-value"), units.ParseKind(attr("data-unit-type"))
			f.build = func(children []Node) Node {
				return UnitValue{Base: base, Kind: kind, SizeKey: key, Fallback: Doc{Nodes: children}.PlainText()}
			}
		case has("size-dynamic"):
			f.build = func(children []Node) Node {
				return SizeValue{Key: key, Fallback: Doc{Nodes: children}.PlainText()}
			}
		}

	case passthrough[tok.Data]:
		tag := tok.Data
		href := ""
		if tag == "a" {
			if h := attr("href"); security.ValidateLinkURL(h) == nil {
				href = strings.TrimSpace(h)
			}
		}
		f.build = func(children []Node) Node { return Element{Tag: tag, Href: href, Children: children} }
	}
	return f
}
