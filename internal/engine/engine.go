// Package engine defines the capability interfaces of the pluggable markup,
// math and diagram engines and tracks which of them are ready to be called.
//
// The pipeline never branches on a concrete engine type. It looks engines up
// by ID and asks for the capability it needs:
//
//   - Markup: synchronous Render(text) -> html.
//   - InPlaceMath: typesets math inside an already mounted DOM.
//   - PreMarkupMath: typesets escaped source text in an offscreen scratch
//     buffer before markup parsing and hands back a Future.
//   - Diagrams: discovers marker elements and renders them in place,
//     isolating failures per block.
//
// An engine may implement several math capabilities; the render
// configuration decides which one is used.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/alnah/go-mdpreview/internal/dom"
)

// Sentinel errors for engine lookup and readiness.
var (
	ErrEngineUnavailable = errors.New("required engine never became ready")
	ErrUnknownEngine     = errors.New("unknown engine")
)

// ID identifies an engine.
type ID string

// Known engine IDs.
const (
	Goldmark   ID = "goldmark"   // markup engine A
	GoMarkdown ID = "gomarkdown" // markup engine B
	KaTeX      ID = "katex"      // in-place math
	MathJax    ID = "mathjax"    // queue-based math, pre-markup or in-place
	NoMath     ID = "none"
	Mermaid    ID = "mermaid"
)

// Engine is the part every engine shares.
type Engine interface {
	ID() ID
	Ready() bool
}

// Markup converts markup source to HTML. Render must not touch state shared
// with other calls.
type Markup interface {
	Engine
	Render(text string) (string, error)
}

// TrustedMarkup is a Markup engine whose Render may strip raw HTML.
// RenderTrusted keeps it, for text that was escaped before an offscreen
// math pass added MathML to it.
type TrustedMarkup interface {
	Markup
	RenderTrusted(text string) (string, error)
}

// InPlaceMath typesets math found in the text of a mounted container.
type InPlaceMath interface {
	Engine
	Typeset(ctx context.Context, c *dom.Container) error
}

// PreMarkupMath typesets math in escaped source text before markup parsing.
// The Future resolves with the processed HTML read back from the scratch
// buffer.
type PreMarkupMath interface {
	Engine
	TypesetOffscreen(ctx context.Context, escaped string) *Future[string]
}

// Diagrams renders every diagram block of a container in place. A block that
// fails is replaced with an inline error card; the failures are returned for
// logging only.
type Diagrams interface {
	Engine
	FindAndRender(c *dom.Container) []DiagramError
}

// DiagramError describes one diagram block that could not be rendered.
type DiagramError struct {
	Index  int
	Source string
	Err    error
}

func (e DiagramError) Error() string {
	return fmt.Sprintf("diagram %d: %v", e.Index, e.Err)
}

func (e DiagramError) Unwrap() error {
	return e.Err
}

// Category groups engines for the readiness table.
type Category string

// Engine categories.
const (
	CategoryMarkup  Category = "markup"
	CategoryMath    Category = "math"
	CategoryDiagram Category = "diagram"
)
