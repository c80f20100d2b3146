package export

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	toolbarClass   = "pv-toolbar"
	containerClass = "pv-container"
)

// Elements carrying any of these classes stay behind on export.
var strippedClasses = []string{"pv-no-export", "pv-download", "pv-live-status"}

type captured struct {
	toolbar   string
	container string
}

// capture pulls the toolbar and container out of a rendered page, drops the
// live-only controls and points the home link at liveURL.
func capture(markup, liveURL string) (*captured, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("parse rendered page: %w", err)
	}

	var toolbar, container *html.Node
	for _, n := range nodes {
		if toolbar == nil {
			toolbar = findClass(n, toolbarClass)
		}
		if container == nil {
			container = findClass(n, containerClass)
		}
	}

	var missing []string
	if toolbar == nil {
		missing = append(missing, "."+toolbarClass)
	}
	if container == nil {
		missing = append(missing, "."+containerClass)
	}
	if len(missing) > 0 {
		return nil, &ExportPreconditionError{Missing: missing}
	}

	for _, n := range []*html.Node{toolbar, container} {
		strip(n)
		rewireHome(n, liveURL)
	}

	out := &captured{}
	if out.toolbar, err = renderNode(toolbar); err != nil {
		return nil, err
	}
	if out.container, err = renderNode(container); err != nil {
		return nil, err
	}
	return out, nil
}

func findClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	return ok && slices.Contains(strings.Fields(v), class)
}

func stripped(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strippedClasses {
		if hasClass(n, c) {
			return true
		}
	}
	if _, ok := attr(n, "aria-live"); ok {
		return true
	}
	if role, _ := attr(n, "role"); role == "status" {
		return true
	}
	action, _ := attr(n, "data-pv-action")
	return action == "export"
}

// strip removes the stripped descendants of n.
func strip(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if stripped(c) {
			n.RemoveChild(c)
		} else {
			strip(c)
		}
		c = next
	}
}

func rewireHome(n *html.Node, liveURL string) {
	if n.Type == html.ElementNode && n.DataAtom == atom.A && hasClass(n, "pv-home") {
		setAttr(n, "href", liveURL)
		setAttr(n, "target", "_blank")
		setAttr(n, "rel", "noopener noreferrer")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rewireHome(c, liveURL)
	}
}

func renderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("render captured markup: %w", err)
	}
	return buf.String(), nil
}
