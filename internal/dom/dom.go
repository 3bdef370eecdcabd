// Package dom holds HTML fragments as mutable node trees.
//
// A Container plays the role of a browser element whose innerHTML is
// replaced wholesale and whose descendants are then mutated in place by
// post-processing passes (math typesetting, diagram rendering). Selectors use
// CSS syntax through cascadia.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrSelector indicates a CSS selector failed to compile.
var ErrSelector = errors.New("invalid selector")

// Container is a detached element holding a parsed HTML fragment.
// It is not safe for concurrent use.
type Container struct {
	root *html.Node
}

// NewContainer returns an empty container backed by a div element.
func NewContainer() *Container {
	return &Container{root: newElement("div")}
}

// Root returns the container element. Its children are the content.
func (c *Container) Root() *html.Node {
	return c.root
}

// SetInnerHTML replaces the container content with the parsed fragment.
func (c *Container) SetInnerHTML(fragment string) error {
	nodes, err := ParseFragment(fragment)
	if err != nil {
		return err
	}
	c.Clear()
	for _, n := range nodes {
		c.root.AppendChild(n)
	}
	return nil
}

// InnerHTML serializes the container content.
func (c *Container) InnerHTML() (string, error) {
	return InnerHTML(c.root)
}

// Clear removes all content.
func (c *Container) Clear() {
	for c.root.FirstChild != nil {
		c.root.RemoveChild(c.root.FirstChild)
	}
}

// Prepend inserts n before the first child.
func (c *Container) Prepend(n *html.Node) {
	if c.root.FirstChild == nil {
		c.root.AppendChild(n)
		return
	}
	c.root.InsertBefore(n, c.root.FirstChild)
}

// QueryAll returns the descendants matching the CSS selector, in document order.
func (c *Container) QueryAll(selector string) ([]*html.Node, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSelector, selector, err)
	}
	return cascadia.QueryAll(c.root, sel), nil
}

// ParseFragment parses HTML as the content of a div element.
func ParseFragment(fragment string) ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), newElement("div"))
	if err != nil {
		return nil, fmt.Errorf("parsing fragment: %w", err)
	}
	return nodes, nil
}

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("rendering node: %w", err)
		}
	}
	return buf.String(), nil
}

// TextContent concatenates the text nodes below n.
func TextContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(TextContent(c))
	}
	return b.String()
}

// ReplaceWith puts the nodes in place of old. old is detached afterwards.
func ReplaceWith(old *html.Node, nodes ...*html.Node) {
	parent := old.Parent
	if parent == nil {
		return
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		parent.InsertBefore(n, old)
	}
	parent.RemoveChild(old)
}

// Element builds an element with attributes given as key/value pairs.
func Element(tag string, attrs ...string) *html.Node {
	n := newElement(tag)
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// Text builds a text node. Content is escaped when rendered.
func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Attr returns the value of the attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasClass reports whether n carries the class name.
func HasClass(n *html.Node, class string) bool {
	v, ok := Attr(n, "class")
	if !ok {
		return false
	}
	for _, f := range strings.Fields(v) {
		if f == class {
			return true
		}
	}
	return false
}

// InsideAny reports whether n has an ancestor element with one of the tags.
func InsideAny(n *html.Node, tags ...atom.Atom) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		for _, t := range tags {
			if p.DataAtom == t {
				return true
			}
		}
	}
	return false
}

func newElement(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}
