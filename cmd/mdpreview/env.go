package main

import (
	"io"
	"net"
	"os"
	"time"

	mdpreview "github.com/alnah/go-mdpreview"
)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Now    func() time.Time
	Stdout io.Writer
	Stderr io.Writer

	// NewRasterizer builds the browser used by export. Tests swap it for
	// a fake that needs no Chrome.
	NewRasterizer func(timeout time.Duration) mdpreview.Rasterizer

	// OnListen is called with the bound address once serve accepts
	// connections. Optional.
	OnListen func(addr net.Addr)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:    time.Now,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		NewRasterizer: func(timeout time.Duration) mdpreview.Rasterizer {
			return mdpreview.NewRodRasterizer(timeout)
		},
	}
}
