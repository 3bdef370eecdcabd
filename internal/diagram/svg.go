package diagram

import (
	"fmt"
	"math"
	"strings"

	"github.com/alnah/go-mdpreview/internal/escape"
)

// SVG draws the layout. id must be unique within the page; it scopes the
// arrowhead marker.
func (l *Layout) SVG(id string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" class="flowchart" width="%s" height="%s" viewBox="0 0 %s %s">`,
		num(l.Width), num(l.Height), num(l.Width), num(l.Height))
	fmt.Fprintf(&b, `<defs><marker id="%s-arrow" viewBox="0 0 10 10" refX="10" refY="5" markerWidth="8" markerHeight="8" orient="auto">`+
		`<path d="M0,0 L10,5 L0,10 z" fill="#333"/></marker></defs>`, escape.Escape(id))

	for _, e := range l.Chart.Edges {
		l.writeEdge(&b, id, e)
	}
	for _, n := range l.Chart.Nodes {
		writeNode(&b, l.Boxes[n.ID])
	}
	b.WriteString("</svg>")
	return b.String()
}

func (l *Layout) writeEdge(b *strings.Builder, id string, e Edge) {
	from, to := l.Boxes[e.From], l.Boxes[e.To]
	if from == nil || to == nil {
		return
	}
	x1, y1 := anchor(from, to)
	x2, y2 := anchor(to, from)

	attrs := `stroke="#333" stroke-width="1.5"`
	switch e.Style {
	case Dotted:
		attrs += ` stroke-dasharray="4 3"`
	case Thick:
		attrs = `stroke="#333" stroke-width="3"`
	}
	if e.Style != Open {
		attrs += fmt.Sprintf(` marker-end="url(#%s-arrow)"`, escape.Escape(id))
	}
	fmt.Fprintf(b, `<line x1="%s" y1="%s" x2="%s" y2="%s" %s/>`, num(x1), num(y1), num(x2), num(y2), attrs)

	if e.Label != "" {
		fmt.Fprintf(b, `<text x="%s" y="%s" text-anchor="middle" font-size="12" fill="#555">%s</text>`,
			num((x1+x2)/2), num((y1+y2)/2-4), escape.Escape(e.Label))
	}
}

func writeNode(b *strings.Builder, box *Box) {
	left, top := box.X-box.W/2, box.Y-box.H/2
	switch box.Node.Shape {
	case Rhombus:
		fmt.Fprintf(b, `<polygon points="%s,%s %s,%s %s,%s %s,%s" fill="#fff8dc" stroke="#333"/>`,
			num(box.X), num(top), num(left+box.W), num(box.Y), num(box.X), num(top+box.H), num(left), num(box.Y))
	case Round:
		fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s" rx="18" fill="#eef4ff" stroke="#333"/>`,
			num(left), num(top), num(box.W), num(box.H))
	default:
		fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s" fill="#eef4ff" stroke="#333"/>`,
			num(left), num(top), num(box.W), num(box.H))
	}
	fmt.Fprintf(b, `<text x="%s" y="%s" text-anchor="middle" dominant-baseline="middle" font-size="14">%s</text>`,
		num(box.X), num(box.Y), escape.Escape(box.Node.Label))
}

// anchor returns the point where the segment from a's center toward b's
// center leaves a's bounding box.
func anchor(a, b *Box) (float64, float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	if dx == 0 && dy == 0 {
		return a.X, a.Y
	}
	sx, sy := math.Inf(1), math.Inf(1)
	if dx != 0 {
		sx = (a.W / 2) / math.Abs(dx)
	}
	if dy != 0 {
		sy = (a.H / 2) / math.Abs(dy)
	}
	s := math.Min(sx, sy)
	return a.X + dx*s, a.Y + dy*s
}

func num(f float64) string {
	return fmt.Sprintf("%.1f", f)
}
