package mdpreview

import (
	"errors"

	"github.com/alnah/go-mdpreview/internal/engine"
)

// Sentinel errors for library operations.
var (
	ErrEngineUnavailable = engine.ErrEngineUnavailable
	ErrUnknownEngine     = engine.ErrUnknownEngine
	ErrParseFailure      = errors.New("markup parsing failed")
	ErrMathTypeset       = errors.New("math typesetting failed")
	ErrDiagramRender     = errors.New("diagram rendering failed")
	ErrSessionClosed     = errors.New("session closed")

	// Export errors.
	ErrExport            = errors.New("export failed")
	ErrNothingCommitted  = errors.New("nothing has been rendered yet")
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// Browser errors.
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
	ErrRasterize      = errors.New("page capture failed")
)
