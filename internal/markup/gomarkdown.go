package markup

import (
	"bytes"
	"io"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/alnah/go-mdpreview/internal/engine"
)

// GoMarkdown is markup engine B: GitHub flavoured Markdown rendered by
// gomarkdown.
type GoMarkdown struct {
	formatter    *chromahtml.Formatter
	allowRawHTML bool
}

// NewGoMarkdown creates the engine. Without allowRawHTML, inline and block
// HTML in the source are dropped from the output.
func NewGoMarkdown(allowRawHTML bool) *GoMarkdown {
	return &GoMarkdown{
		formatter:    chromahtml.New(chromahtml.WithClasses(true)),
		allowRawHTML: allowRawHTML,
	}
}

// ID implements engine.Engine.
func (g *GoMarkdown) ID() engine.ID { return engine.GoMarkdown }

// Ready implements engine.Engine.
func (g *GoMarkdown) Ready() bool { return g.formatter != nil }

// Render converts Markdown to an HTML fragment. gomarkdown parsers carry
// per-document state, so each call builds its own.
func (g *GoMarkdown) Render(content string) (string, error) {
	flags := mdhtml.CommonFlags
	if !g.allowRawHTML {
		flags |= mdhtml.SkipHTML
	}
	return g.render(content, flags), nil
}

// RenderTrusted implements engine.TrustedMarkup. Raw HTML is always kept:
// the caller guarantees the only markup left in content came from an
// offscreen math pass over escaped source.
func (g *GoMarkdown) RenderTrusted(content string) (string, error) {
	return g.render(content, mdhtml.CommonFlags), nil
}

func (g *GoMarkdown) render(content string, flags mdhtml.Flags) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Footnotes | parser.AutoHeadingIDs)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags:          flags,
		RenderNodeHook: g.renderCodeBlock,
	})
	return string(markdown.ToHTML([]byte(normalizeLineEndings(content)), p, r))
}

// renderCodeBlock takes over diagram fences and code blocks chroma has a
// lexer for. Everything else falls back to the default renderer.
func (g *GoMarkdown) renderCodeBlock(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	block, ok := node.(*ast.CodeBlock)
	if !ok || !entering {
		return ast.GoToNext, false
	}

	if isDiagramLanguage(block.Info) {
		_, _ = io.WriteString(w, diagramMarker(string(block.Literal)))
		return ast.GoToNext, true
	}

	highlighted, ok := g.highlight(fenceLanguage(block.Info), string(block.Literal))
	if !ok {
		return ast.GoToNext, false
	}
	_, _ = w.Write(highlighted)
	return ast.GoToNext, true
}

func (g *GoMarkdown) highlight(lang, code string) ([]byte, bool) {
	if lang == "" {
		return nil, false
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		return nil, false
	}
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return nil, false
	}
	var buf bytes.Buffer
	if err := g.formatter.Format(&buf, styles.Fallback, iterator); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}
