// Package paginate lays one tall image out over fixed-size pages and writes
// the result as a PDF.
//
// The image is never sliced. Every page draws the whole image, shifted up
// by the height already shown, and clipped to the printable area.
package paginate

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// Sentinel errors for pagination.
var (
	ErrInvalidGeometry = errors.New("invalid page geometry")
	ErrInvalidImage    = errors.New("invalid image")
)

// Geometry is a page size and uniform margin in points.
type Geometry struct {
	PageWidth  float64
	PageHeight float64
	Margin     float64
}

// A4 is a portrait A4 page with a 40pt margin.
var A4 = Geometry{PageWidth: 595.28, PageHeight: 841.89, Margin: 40}

// Validate checks that the printable area is not empty.
func (g Geometry) Validate() error {
	switch {
	case g.PageWidth <= 0 || g.PageHeight <= 0:
		return fmt.Errorf("%w: page %vx%v", ErrInvalidGeometry, g.PageWidth, g.PageHeight)
	case g.Margin < 0:
		return fmt.Errorf("%w: negative margin %v", ErrInvalidGeometry, g.Margin)
	case g.ContentWidth() <= 0 || g.InnerHeight() <= 0:
		return fmt.Errorf("%w: margin %v leaves no printable area", ErrInvalidGeometry, g.Margin)
	}
	return nil
}

// ContentWidth is the printable width.
func (g Geometry) ContentWidth() float64 { return g.PageWidth - 2*g.Margin }

// InnerHeight is the printable height.
func (g Geometry) InnerHeight() float64 { return g.PageHeight - 2*g.Margin }

// Placement is where the scaled image is drawn on one page.
type Placement struct {
	Page   int // 1-based
	X, Y   float64
	Width  float64
	Height float64
}

// Paginate scales an imgW x imgH image to the content width and returns one
// placement per page. Page 1 draws the image at the top margin; each later
// page draws it at heightLeft - imgHeight + margin, until the image bottom
// has been shown.
func Paginate(imgW, imgH float64, g Geometry) ([]Placement, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if imgW <= 0 || imgH <= 0 {
		return nil, fmt.Errorf("%w: %vx%v", ErrInvalidImage, imgW, imgH)
	}

	width := g.ContentWidth()
	height := imgH * width / imgW
	inner := g.InnerHeight()

	pages := []Placement{{Page: 1, X: g.Margin, Y: g.Margin, Width: width, Height: height}}
	heightLeft := height - inner
	for heightLeft > 0 {
		pages = append(pages, Placement{
			Page:   len(pages) + 1,
			X:      g.Margin,
			Y:      heightLeft - height + g.Margin,
			Width:  width,
			Height: height,
		})
		heightLeft -= inner
	}
	return pages, nil
}

// Image is an encoded raster image.
type Image struct {
	Data   []byte
	Format string // "JPEG" or "PNG"
	Width  int    // pixels
	Height int    // pixels
}

// WritePDF paginates img over g and writes the document to w.
func WritePDF(w io.Writer, img Image, g Geometry) error {
	if len(img.Data) == 0 {
		return fmt.Errorf("%w: no data", ErrInvalidImage)
	}
	placements, err := Paginate(float64(img.Width), float64(img.Height), g)
	if err != nil {
		return err
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: g.PageWidth, Ht: g.PageHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	const name = "rendered"
	opts := gofpdf.ImageOptions{ImageType: img.Format}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))

	for _, p := range placements {
		pdf.AddPage()
		pdf.ClipRect(g.Margin, g.Margin, g.ContentWidth(), g.InnerHeight(), false)
		pdf.ImageOptions(name, p.X, p.Y, p.Width, p.Height, false, opts, 0, "")
		pdf.ClipEnd()
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}
