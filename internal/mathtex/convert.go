package mathtex

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"git.sr.ht/~mekyt/latex2mathml"
)

// MathMLNamespace is the xmlns of generated <math> elements.
const MathMLNamespace = "http://www.w3.org/1998/Math/MathML"

var lineBreaks = regexp.MustCompile(`\n\s*`)

// ErrTypeset indicates a formula could not be converted.
var ErrTypeset = errors.New("math typesetting failed")

// FormulaError describes one formula that failed to convert.
type FormulaError struct {
	TeX string
	Err error
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("formula %q: %v", e.TeX, e.Err)
}

func (e *FormulaError) Unwrap() error { return e.Err }

// Convert renders one TeX formula as a single-line MathML element.
// Converter panics and <merror> output are reported as ErrTypeset.
func Convert(tex string, display bool) (mathml string, err error) {
	defer func() {
		if r := recover(); r != nil {
			mathml = ""
			err = &FormulaError{TeX: tex, Err: fmt.Errorf("%w: %v", ErrTypeset, r)}
		}
	}()

	mode := "inline"
	if display {
		mode = "block"
	}
	out := latex2mathml.Convert(strings.TrimSpace(tex), MathMLNamespace, mode, 2)
	if out == "" {
		return "", &FormulaError{TeX: tex, Err: fmt.Errorf("%w: empty output", ErrTypeset)}
	}
	if strings.Contains(out, "<merror") {
		return "", &FormulaError{TeX: tex, Err: fmt.Errorf("%w: unsupported command", ErrTypeset)}
	}
	return lineBreaks.ReplaceAllString(out, ""), nil
}
