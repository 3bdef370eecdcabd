// Package process terminates the browser trees left by the export
// rasterizer.
package process

import "errors"

// ErrInvalidPID reports a pid that would target the caller or init.
var ErrInvalidPID = errors.New("refusing to kill process group")
