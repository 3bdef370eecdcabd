// Package markup implements the two interchangeable Markdown engines of the
// preview and the HTML helpers that surround them.
//
// Both engines produce an HTML fragment (no document wrapper) and share the
// same conventions:
//   - fenced code blocks tagged "mermaid" become <pre class="mermaid"> marker
//     elements holding the escaped diagram source
//   - other fenced code is highlighted by chroma with CSS classes
//   - line endings are normalized to \n before parsing
//
// Goldmark (engine A) adds footnotes, typographic replacements and linkify.
// GoMarkdown (engine B) always passes raw HTML through, which the queue-based
// math engine relies on when it hands over pre-typeset source.
//
// The package also carries the HTML plumbing used around rendered output:
// CSS injection into page templates and rewriting of relative resource paths
// before rasterization.
package markup
