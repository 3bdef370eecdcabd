package markup

import (
	"bytes"
	"fmt"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/alnah/go-mdpreview/internal/engine"
)

// Goldmark is markup engine A: CommonMark plus GFM, footnotes and
// typographic replacements, rendered by goldmark.
type Goldmark struct {
	md goldmark.Markdown
}

// NewGoldmark creates the engine. With allowRawHTML, inline and block HTML
// in the source is passed through instead of being omitted.
func NewGoldmark(allowRawHTML bool) *Goldmark {
	rendererOpts := []renderer.Option{html.WithXHTML()}
	if allowRawHTML {
		rendererOpts = append(rendererOpts, html.WithUnsafe())
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,         // tables, strikethrough, linkify, task lists
			extension.Footnote,    // [^1] footnotes
			extension.Typographer, // smart quotes and dashes
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
			diagramExtension{},
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(rendererOpts...),
	)
	return &Goldmark{md: md}
}

// ID implements engine.Engine.
func (g *Goldmark) ID() engine.ID { return engine.Goldmark }

// Ready implements engine.Engine. The engine is usable once constructed.
func (g *Goldmark) Ready() bool { return g.md != nil }

// Render converts Markdown to an HTML fragment.
func (g *Goldmark) Render(content string) (string, error) {
	var buf bytes.Buffer
	if err := g.md.Convert([]byte(normalizeLineEndings(content)), &buf); err != nil {
		return "", fmt.Errorf("goldmark: %w", err)
	}
	return buf.String(), nil
}

// diagramExtension swaps diagram fences for marker nodes before rendering,
// so the highlighter never sees them.
type diagramExtension struct{}

func (diagramExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithASTTransformers(util.Prioritized(diagramTransformer{}, 100)),
	)
	m.Renderer().AddOptions(
		renderer.WithNodeRenderers(util.Prioritized(diagramRenderer{}, 100)),
	)
}

var kindDiagramBlock = ast.NewNodeKind("DiagramBlock")

type diagramBlock struct {
	ast.BaseBlock
}

func (n *diagramBlock) Kind() ast.NodeKind { return kindDiagramBlock }

func (n *diagramBlock) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

type diagramTransformer struct{}

func (diagramTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()
	var fences []*ast.FencedCodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if fb, ok := n.(*ast.FencedCodeBlock); ok && isDiagramLanguage(fb.Language(source)) {
			fences = append(fences, fb)
		}
		return ast.WalkContinue, nil
	})

	for _, fb := range fences {
		parent := fb.Parent()
		if parent == nil {
			continue
		}
		block := &diagramBlock{}
		block.SetLines(fb.Lines())
		parent.ReplaceChild(parent, fb, block)
	}
}

type diagramRenderer struct{}

func (diagramRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(kindDiagramBlock, func(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			b.Write(line.Value(source))
		}
		_, _ = w.WriteString(diagramMarker(b.String()))
		return ast.WalkSkipChildren, nil
	})
}
