package mdpreview

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/alnah/go-mdpreview/internal/dom"
	"github.com/alnah/go-mdpreview/internal/engine"
)

// Messages shown inside the preview.
const (
	parseErrorMessage = "Error rendering preview. Check the log for details."
	mathErrorFormat   = "Math processing error (%s). Check the log for details."
)

// errorPanel replaces the whole preview when a cycle fails. detail is
// rendered as text.
func errorPanel(detail string) []*html.Node {
	msg := dom.Element("p", "class", "preview-error", "style", "color: red; font-weight: bold;")
	msg.AppendChild(dom.Text(parseErrorMessage))
	pre := dom.Element("pre", "class", "preview-error-detail")
	pre.AppendChild(dom.Text(detail))
	return []*html.Node{msg, pre}
}

// mathBanner is prepended above content whose math pass failed.
func mathBanner(id engine.ID) *html.Node {
	div := dom.Element("div",
		"class", "math-error-banner",
		"style", "color: orange; border: 1px solid orange; padding: 5px; margin-bottom: 10px;")
	div.AppendChild(dom.Text(fmt.Sprintf(mathErrorFormat, id)))
	return div
}
