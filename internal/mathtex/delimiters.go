package mathtex

import "strings"

// Delimiter is a pair of math fences.
type Delimiter struct {
	Left    string
	Right   string
	Display bool
}

// DefaultDelimiters are tried in order at each position, so $$ wins over $.
var DefaultDelimiters = []Delimiter{
	{Left: "$$", Right: "$$", Display: true},
	{Left: `\[`, Right: `\]`, Display: true},
	{Left: "$", Right: "$", Display: false},
	{Left: `\(`, Right: `\)`, Display: false},
}

// Segment is a run of plain text or one formula.
type Segment struct {
	Text    string // plain text, or the formula with its delimiters
	TeX     string // formula body without delimiters
	Math    bool
	Display bool
}

// Split cuts s into text and math segments. A left delimiter without a
// matching right one is plain text. Right delimiters only count outside
// braces, and a backslash escapes the next character inside a formula.
func Split(s string, delims []Delimiter) []Segment {
	var out []Segment
	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			out = append(out, Segment{Text: text.String()})
			text.Reset()
		}
	}

	i := 0
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == '$' {
			text.WriteString(`\$`)
			i += 2
			continue
		}

		matched := false
		for _, d := range delims {
			if !strings.HasPrefix(s[i:], d.Left) {
				continue
			}
			start := i + len(d.Left)
			end := findEnd(s, start, d.Right)
			if end < 0 {
				continue
			}
			tex := s[start:end]
			if strings.TrimSpace(tex) == "" {
				continue
			}
			flush()
			out = append(out, Segment{
				Text:    s[i : end+len(d.Right)],
				TeX:     tex,
				Math:    true,
				Display: d.Display,
			})
			i = end + len(d.Right)
			matched = true
			break
		}
		if !matched {
			text.WriteByte(s[i])
			i++
		}
	}
	flush()
	return out
}

// findEnd returns the index of right in s at or after start, skipping
// escaped characters and anything inside braces, or -1.
func findEnd(s string, start int, right string) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if depth == 0 && strings.HasPrefix(s[i:], right) {
				return i
			}
			i++
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && strings.HasPrefix(s[i:], right) {
				return i
			}
		}
	}
	return -1
}
