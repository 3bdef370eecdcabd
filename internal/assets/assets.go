package assets

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
)

// Sentinel errors for asset operations.
var (
	ErrStyleNotFound    = errors.New("style not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidAssetName = errors.New("invalid asset name")
	ErrInvalidBasePath  = errors.New("invalid base path")
	ErrAssetRead        = errors.New("failed to read asset")
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrTemplateExecute  = errors.New("failed to execute template")
)

// Built-in asset names.
const (
	PreviewTemplate = "preview"
	PrintTemplate   = "print"

	PreviewStyle   = "preview"
	PrintStyle     = "print"
	HighlightStyle = "highlight"
)

// AssetLoader loads stylesheets and templates by name, without extension.
type AssetLoader interface {
	LoadStyle(name string) (string, error)
	LoadTemplate(name string) (string, error)
}

// ValidateAssetName rejects empty names and names containing path
// separators or dots.
func ValidateAssetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidAssetName)
	}
	if strings.ContainsAny(name, "/\\.") {
		return fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}
	return nil
}

// Stylesheet concatenates the named styles in order.
func Stylesheet(l AssetLoader, names ...string) (string, error) {
	var b strings.Builder
	for _, name := range names {
		css, err := l.LoadStyle(name)
		if err != nil {
			return "", err
		}
		b.WriteString(css)
		if !strings.HasSuffix(css, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// Execute parses the named template as html/template and runs it on data.
func Execute(l AssetLoader, name string, data any) (string, error) {
	src, err := l.LoadTemplate(name)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(name).Parse(src)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrTemplateExecute, name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrTemplateExecute, name, err)
	}
	return buf.String(), nil
}
