package mdpreview

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/alnah/go-mdpreview/internal/assets"
	"github.com/alnah/go-mdpreview/internal/markup"
	"github.com/alnah/go-mdpreview/internal/paginate"
)

// Format is an export format.
type Format string

// Export formats.
const (
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatPDF      Format = "pdf"
)

var contentTypes = map[Format]string{
	FormatMarkdown: "text/markdown; charset=utf-8",
	FormatText:     "text/plain; charset=utf-8",
	FormatPDF:      "application/pdf",
}

// ParseFormat maps a file extension, with or without the dot, to a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(s, ".")))
	if _, ok := contentTypes[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return f, nil
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	return contentTypes[f]
}

// Export is a finished export.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportFilename returns export_<timestamp>.<ext>, the timestamp being t
// in UTC with millisecond precision and ':' and '.' replaced by '-'.
func ExportFilename(t time.Time, f Format) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return "export_" + stamp + "." + string(f)
}

// printData feeds the print template.
type printData struct {
	Title   string
	Content template.HTML
}

// exporter turns committed snapshots into files.
type exporter struct {
	loader     assets.AssetLoader
	rasterizer func() Rasterizer
	geometry   paginate.Geometry
	settle     time.Duration
	sourceDir  string
	customCSS  string
	now        func() time.Time
}

// export writes the snapshot in format f. Text formats return the source
// of the snapshot as typed; the document format rasterizes its HTML.
func (e *exporter) export(ctx context.Context, snap *Snapshot, f Format) (*Export, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: %w", ErrExport, ErrNothingCommitted)
	}
	if _, ok := contentTypes[f]; !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrExport, ErrUnsupportedFormat, f)
	}

	out := &Export{Filename: ExportFilename(e.now(), f), ContentType: f.ContentType()}
	if f != FormatPDF {
		out.Data = []byte(snap.Source)
		return out, nil
	}

	data, err := e.pdf(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExport, err)
	}
	out.Data = data
	return out, nil
}

func (e *exporter) pdf(ctx context.Context, snap *Snapshot) ([]byte, error) {
	doc, err := e.printDocument(snap)
	if err != nil {
		return nil, err
	}
	img, err := e.rasterizer().Rasterize(ctx, PrintPage{
		HTML:    doc,
		Width:   PrintWidth + 2*PrintPadding,
		Scale:   PrintScale,
		Quality: PrintJPEGQuality,
		Settle:  e.settle,
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := paginate.WritePDF(&buf, img, e.geometry); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// printDocument wraps the committed HTML in the print template and
// attaches the print styles.
func (e *exporter) printDocument(snap *Snapshot) (string, error) {
	content := snap.HTML
	if e.sourceDir != "" {
		rewritten, err := markup.RewriteRelativePaths(content, e.sourceDir)
		if err != nil {
			return "", err
		}
		content = rewritten
	}

	doc, err := assets.Execute(e.loader, assets.PrintTemplate, printData{
		Title:   "export",
		Content: template.HTML(content), // #nosec G203 -- committed preview output
	})
	if err != nil {
		return "", err
	}
	css, err := assets.Stylesheet(e.loader, assets.PrintStyle, assets.HighlightStyle)
	if err != nil {
		return "", err
	}
	return markup.InjectCSS(doc, css+e.customCSS), nil
}
