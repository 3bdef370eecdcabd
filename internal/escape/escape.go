// Package escape converts text to and from HTML entity form.
//
// Escape is a plain replacement of the five characters that are unsafe in
// HTML text and attribute values. Unescape goes the other way through a real
// HTML parser and returns the text content of the parsed fragment, so it also
// drops markup and normalizes line endings the way a browser would.
package escape

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var replacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Escape replaces &, <, >, " and ' with their HTML entities.
func Escape(s string) string {
	if s == "" {
		return ""
	}
	return replacer.Replace(s)
}

// Unescape parses s as HTML body content and returns its text content.
// On a parse error s is returned unchanged.
func Unescape(s string) string {
	if s == "" {
		return ""
	}
	nodes, err := html.ParseFragment(strings.NewReader(s), bodyContext())
	if err != nil {
		return s
	}
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(textContent(n))
	}
	return b.String()
}

// bodyContext is the element fragments are parsed into. A div keeps the
// parser in body mode, where leading whitespace is significant.
func bodyContext() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
}

// textContent concatenates every text node below n in document order.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
