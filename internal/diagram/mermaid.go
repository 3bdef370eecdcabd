// Package diagram renders mermaid flowcharts found in rendered HTML.
//
// Diagram blocks arrive as <pre class="mermaid"> marker elements holding the
// escaped source. Each block is parsed and drawn as inline SVG on its own; a
// block that fails is swapped for an error card showing the message and the
// source, and its siblings are unaffected.
package diagram

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/alnah/go-mdpreview/internal/dom"
	"github.com/alnah/go-mdpreview/internal/engine"
	"github.com/alnah/go-mdpreview/internal/markup"
)

// ErrorClass is the class of the card that replaces a failed block.
const ErrorClass = "mermaid-error"

// Mermaid is the diagram engine.
type Mermaid struct{}

// NewMermaid creates the engine.
func NewMermaid() *Mermaid {
	return &Mermaid{}
}

// ID implements engine.Engine.
func (m *Mermaid) ID() engine.ID { return engine.Mermaid }

// Ready implements engine.Engine.
func (m *Mermaid) Ready() bool { return true }

// FindAndRender implements engine.Diagrams.
func (m *Mermaid) FindAndRender(c *dom.Container) []engine.DiagramError {
	blocks, err := c.QueryAll("pre." + markup.DiagramClass)
	if err != nil {
		return []engine.DiagramError{{Index: -1, Err: err}}
	}

	var failures []engine.DiagramError
	for i, block := range blocks {
		source := dom.TextContent(block)
		nodes, err := renderBlock(source, fmt.Sprintf("mermaid-%d", i))
		if err != nil {
			dom.ReplaceWith(block, errorCard(err, source))
			failures = append(failures, engine.DiagramError{Index: i, Source: source, Err: err})
			continue
		}
		figure := dom.Element("div", "class", markup.DiagramClass, "data-processed", "true")
		for _, n := range nodes {
			figure.AppendChild(n)
		}
		dom.ReplaceWith(block, figure)
	}
	return failures
}

// renderBlock turns one diagram source into SVG nodes. Panics are reported
// as errors so one block cannot take down the others.
func renderBlock(source, id string) (nodes []*html.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			nodes, err = nil, fmt.Errorf("rendering diagram: %v", r)
		}
	}()

	fc, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return dom.ParseFragment(Arrange(fc).SVG(id))
}

func errorCard(err error, source string) *html.Node {
	card := dom.Element("div", "class", ErrorClass)

	title := dom.Element("strong")
	title.AppendChild(dom.Text("Mermaid Diagram Error"))
	card.AppendChild(title)
	card.AppendChild(dom.Element("br"))

	hint := dom.Element("p")
	hint.AppendChild(dom.Text("There was a problem rendering this diagram. Check your syntax."))
	card.AppendChild(hint)

	card.AppendChild(details("View Error Details", err.Error()))
	card.AppendChild(details("View Diagram Source", source))
	return card
}

func details(summary, body string) *html.Node {
	d := dom.Element("details")
	s := dom.Element("summary")
	s.AppendChild(dom.Text(summary))
	pre := dom.Element("pre")
	pre.AppendChild(dom.Text(body))
	d.AppendChild(s)
	d.AppendChild(pre)
	return d
}
