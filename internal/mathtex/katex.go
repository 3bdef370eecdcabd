// Package mathtex typesets TeX formulas found in HTML text as MathML.
//
// Two engines share one converter. KaTeX works directly on a mounted
// container and keeps no state between calls. MathJax owns a single worker
// queue and one scratch container: jobs run strictly one after another, the
// equation counter is reset at the start of each job, and offscreen jobs
// hand their result back through an engine.Future.
package mathtex

import (
	"context"

	"github.com/alnah/go-mdpreview/internal/dom"
	"github.com/alnah/go-mdpreview/internal/engine"
)

var katexStyle = style{
	inlineClass:  "katex",
	displayClass: "katex-display",
	errorClass:   "katex-error",
}

// KaTeX typesets math in place. Formula failures are shown inline in red.
type KaTeX struct {
	delims  []Delimiter
	convert func(tex string, display bool) (string, error)
}

// NewKaTeX creates the engine with DefaultDelimiters.
func NewKaTeX() *KaTeX {
	return &KaTeX{delims: DefaultDelimiters}
}

// ID implements engine.Engine.
func (k *KaTeX) ID() engine.ID { return engine.KaTeX }

// Ready implements engine.Engine.
func (k *KaTeX) Ready() bool { return true }

// Typeset implements engine.InPlaceMath.
func (k *KaTeX) Typeset(ctx context.Context, c *dom.Container) error {
	t := typesetter{style: katexStyle, delims: k.delims, convert: k.convert}
	return t.typeset(ctx, c.Root())
}
