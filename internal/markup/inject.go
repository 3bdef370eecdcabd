package markup

import "strings"

// InjectCSS inserts a <style> block into an HTML page: before </head> when
// there is one, after the opening <body> tag otherwise, else at the front.
// The CSS is sanitized so it cannot close the style element early.
func InjectCSS(page, css string) string {
	if css == "" {
		return page
	}

	style := "<style>" + SanitizeCSS(css) + "</style>"
	lower := strings.ToLower(page)

	if idx := strings.Index(lower, "</head>"); idx != -1 {
		return page[:idx] + style + page[idx:]
	}

	if idx := strings.Index(lower, "<body"); idx != -1 {
		if end := strings.Index(page[idx:], ">"); end != -1 {
			at := idx + end + 1
			return page[:at] + style + page[at:]
		}
	}

	return style + page
}

// SanitizeCSS escapes every "</" so the CSS cannot close a style element.
func SanitizeCSS(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}
