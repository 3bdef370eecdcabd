package mathtex

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/alnah/go-mdpreview/internal/dom"
)

// skipped elements never have their text typeset.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Noscript: true,
	atom.Style:    true,
	atom.Textarea: true,
	atom.Pre:      true,
	atom.Code:     true,
	atom.Option:   true,
	atom.Math:     true,
}

// style decides how typeset formulas are wrapped.
type style struct {
	inlineClass  string
	displayClass string
	errorClass   string
	numbered     bool // number \begin{equation} blocks
}

// typesetter replaces delimited formulas in the text nodes of a tree.
type typesetter struct {
	style    style
	delims   []Delimiter
	equation int
	convert  func(tex string, display bool) (string, error) // nil means Convert
}

// typeset rewrites every text node below root that holds math. A formula
// that fails to convert is shown inline in the error style and is not an
// error of the pass; only ctx, checked between text nodes, can fail it.
func (t *typesetter) typeset(ctx context.Context, root *html.Node) error {
	var texts []*html.Node
	collectText(root, &texts)

	for _, n := range texts {
		if err := ctx.Err(); err != nil {
			return err
		}
		segs := Split(n.Data, t.delims)
		if !containsMath(segs) {
			continue
		}
		nodes := make([]*html.Node, 0, len(segs))
		for _, seg := range segs {
			if !seg.Math {
				nodes = append(nodes, dom.Text(seg.Text))
				continue
			}
			nodes = append(nodes, t.formula(seg))
		}
		dom.ReplaceWith(n, nodes...)
	}
	return nil
}

func (t *typesetter) formula(seg Segment) *html.Node {
	tex := seg.TeX
	number := 0
	if t.style.numbered && seg.Display {
		if body, ok := equationBody(tex); ok {
			t.equation++
			number = t.equation
			tex = body
		}
	}

	convert := t.convert
	if convert == nil {
		convert = Convert
	}
	mathml, err := convert(tex, seg.Display)
	if err != nil {
		return t.errorSpan(seg, err)
	}

	class := t.style.inlineClass
	if seg.Display {
		class = t.style.displayClass
	}
	wrapper := dom.Element("span", "class", class)
	nodes, err := dom.ParseFragment(mathml)
	if err != nil {
		return t.errorSpan(seg, &FormulaError{TeX: seg.TeX, Err: err})
	}
	for _, n := range nodes {
		wrapper.AppendChild(n)
	}
	if number > 0 {
		eqno := dom.Element("span", "class", "eqno")
		eqno.AppendChild(dom.Text("(" + strconv.Itoa(number) + ")"))
		wrapper.AppendChild(eqno)
	}
	return wrapper
}

// errorSpan shows the formula source in red with the failure as its title.
func (t *typesetter) errorSpan(seg Segment, err error) *html.Node {
	span := dom.Element("span", "class", t.style.errorClass, "title", err.Error(), "style", "color:#cc0000")
	span.AppendChild(dom.Text(seg.Text))
	return span
}

// equationBody strips an equation environment, reporting whether tex was one.
func equationBody(tex string) (string, bool) {
	trimmed := strings.TrimSpace(tex)
	const begin, end = `\begin{equation}`, `\end{equation}`
	if !strings.HasPrefix(trimmed, begin) || !strings.HasSuffix(trimmed, end) {
		return tex, false
	}
	return strings.TrimSpace(trimmed[len(begin) : len(trimmed)-len(end)]), true
}

func collectText(n *html.Node, out *[]*html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			*out = append(*out, c)
		case html.ElementNode:
			if skipped[c.DataAtom] {
				continue
			}
			collectText(c, out)
		}
	}
}

func containsMath(segs []Segment) bool {
	for _, s := range segs {
		if s.Math {
			return true
		}
	}
	return false
}

// textEscaper uses a numeric reference for < since markup parsers decode
// those to text, where a named one would be shown literally.
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&#60;")

// readBack serializes the children of n for a second parser: elements as
// HTML, text raw or, with escapeText, with & and < escaped. > is left
// alone so blockquote markers survive.
func readBack(n *html.Node, escapeText bool) (string, error) {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			if escapeText {
				b.WriteString(textEscaper.Replace(c.Data))
			} else {
				b.WriteString(c.Data)
			}
			continue
		}
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}
