package markup

import (
	"regexp"
	"strings"

	"github.com/alnah/go-mdpreview/internal/escape"
)

// DiagramLanguage is the fence info string that marks a diagram block.
const DiagramLanguage = "mermaid"

// DiagramClass is the class of the marker element a diagram block becomes.
const DiagramClass = "mermaid"

var crlfOrCR = regexp.MustCompile(`\r\n?`)

// normalizeLineEndings converts \r\n and \r to \n.
func normalizeLineEndings(content string) string {
	return crlfOrCR.ReplaceAllString(content, "\n")
}

// isDiagramLanguage reports whether a fence info string names a diagram.
func isDiagramLanguage(info []byte) bool {
	return strings.EqualFold(fenceLanguage(info), DiagramLanguage)
}

// fenceLanguage returns the first word of a fence info string.
func fenceLanguage(info []byte) string {
	fields := strings.Fields(string(info))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// diagramMarker wraps diagram source in the marker element the diagram
// engine looks for.
func diagramMarker(source string) string {
	return `<pre class="` + DiagramClass + `">` + escape.Escape(source) + "</pre>\n"
}
