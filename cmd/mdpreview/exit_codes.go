package main

import (
	"errors"
	"os"

	mdpreview "github.com/alnah/go-mdpreview"
	"github.com/alnah/go-mdpreview/internal/config"
	"github.com/alnah/go-mdpreview/internal/fileutil"
	"github.com/alnah/go-mdpreview/internal/logging"
	"github.com/alnah/go-mdpreview/internal/server"
	"github.com/alnah/go-mdpreview/internal/watch"
)

// Exit codes for the mdpreview CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Command completed
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or validation
	ExitIO      = 3 // File not found, permission denied, address in use
	ExitBrowser = 4 // Browser/Chrome errors
)

// CLI errors.
var (
	ErrUsage       = errors.New("invalid usage")
	ErrNoInput     = errors.New("no input file")
	ErrReadSource  = errors.New("failed to read source")
	ErrWriteOutput = errors.New("failed to write output")
	ErrRenderFail  = errors.New("render failed")
)

// addrInUseError carries the address that could not be bound.
type addrInUseError struct {
	addr string
	err  error
}

func (e *addrInUseError) Error() string { return e.addr + ": " + e.err.Error() }
func (e *addrInUseError) Unwrap() error { return e.err }

// configNotFoundError carries the paths searched for a config name.
type configNotFoundError struct {
	searched []string
	err      error
}

func (e *configNotFoundError) Error() string { return e.err.Error() }
func (e *configNotFoundError) Unwrap() error { return e.err }

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Browser errors (exit 4)
	if errors.Is(err, mdpreview.ErrBrowserConnect) ||
		errors.Is(err, mdpreview.ErrPageCreate) ||
		errors.Is(err, mdpreview.ErrPageLoad) ||
		errors.Is(err, mdpreview.ErrRasterize) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, fileutil.ErrFileTooLarge) ||
		errors.Is(err, fileutil.ErrNotText) ||
		errors.Is(err, watch.ErrPathNotExist) ||
		errors.Is(err, watch.ErrNotRegular) ||
		errors.Is(err, server.ErrAddrInUse) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, ErrReadSource) ||
		errors.Is(err, ErrWriteOutput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, logging.ErrInvalidLevel) ||
		errors.Is(err, logging.ErrInvalidFormat) ||
		errors.Is(err, mdpreview.ErrUnknownEngine) ||
		errors.Is(err, mdpreview.ErrUnsupportedFormat) ||
		errors.Is(err, ErrUsage) {
		return ExitUsage
	}

	return ExitGeneral
}
