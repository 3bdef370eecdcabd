package main

import (
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// renderFlags selects engines and styling for the sessions a command opens.
type renderFlags struct {
	markup    string
	math      string
	safe      bool
	css       string // path to a stylesheet appended to the built-in ones
	assetPath string
}

// serveFlags holds all flags for the serve command.
type serveFlags struct {
	common    commonFlags
	render    renderFlags
	addr      string
	debounce  string
	workers   int
	logFormat string
	origins   []string
}

// renderCmdFlags holds all flags for the render command.
type renderCmdFlags struct {
	common commonFlags
	render renderFlags
	output string
}

// exportFlags holds all flags for the export command.
type exportFlags struct {
	common   commonFlags
	render   renderFlags
	format   string
	output   string
	timeout  string
	pageSize string
	margin   float64
}

// enginesFlags holds all flags for the engines command.
type enginesFlags struct {
	common commonFlags
}

// configFlags holds all flags for the config command.
type configFlags struct {
	common   commonFlags
	defaults bool
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log every render cycle")
}

// addRenderFlags adds engine and styling flags to a FlagSet.
func addRenderFlags(fs *flag.FlagSet, f *renderFlags) {
	fs.StringVarP(&f.markup, "markup", "m", "", "markup engine: goldmark, gomarkdown")
	fs.StringVar(&f.math, "math", "", "math engine: katex, mathjax, none")
	fs.BoolVar(&f.safe, "safe", false, "strip raw HTML from the source")
	fs.StringVar(&f.css, "css", "", "extra stylesheet file")
	fs.StringVar(&f.assetPath, "asset-path", "", "custom asset directory")
}

// newFlagSet creates a FlagSet that reports to w and prints usage with
// the given function.
func newFlagSet(name string, w io.Writer, usage func(io.Writer)) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(w)
	fs.Usage = func() { usage(w) }
	return fs
}

// parseServeFlags parses serve command flags and returns positional args.
func parseServeFlags(args []string, w io.Writer) (*serveFlags, []string, error) {
	f := &serveFlags{}
	fs := newFlagSet("serve", w, printServeUsage)

	fs.StringVarP(&f.addr, "addr", "a", "", "listen address (host:port)")
	fs.StringVarP(&f.debounce, "debounce", "d", "", "quiet period before a render (e.g., 300ms)")
	fs.IntVarP(&f.workers, "workers", "w", 0, "browsers shared by exports (0 = auto)")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: text, json")
	fs.StringSliceVar(&f.origins, "allow-origin", nil, "allowed WebSocket origin (repeatable)")
	addCommonFlags(fs, &f.common)
	addRenderFlags(fs, &f.render)

	if err := fs.Parse(args); err != nil {
		return nil, nil, wrapParseError(err)
	}
	return f, fs.Args(), nil
}

// parseRenderFlags parses render command flags and returns positional args.
func parseRenderFlags(args []string, w io.Writer) (*renderCmdFlags, []string, error) {
	f := &renderCmdFlags{}
	fs := newFlagSet("render", w, printRenderUsage)

	fs.StringVarP(&f.output, "output", "o", "", "output file (default stdout)")
	addCommonFlags(fs, &f.common)
	addRenderFlags(fs, &f.render)

	if err := fs.Parse(args); err != nil {
		return nil, nil, wrapParseError(err)
	}
	return f, fs.Args(), nil
}

// parseExportFlags parses export command flags and returns positional args.
func parseExportFlags(args []string, w io.Writer) (*exportFlags, []string, error) {
	f := &exportFlags{}
	fs := newFlagSet("export", w, printExportUsage)

	fs.StringVarP(&f.format, "format", "f", "pdf", "export format: md, txt, pdf")
	fs.StringVarP(&f.output, "output", "o", "", "output file or directory")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "page load timeout (e.g., 30s, 2m)")
	fs.StringVarP(&f.pageSize, "page-size", "p", "", "page size: a4, letter, legal")
	fs.Float64Var(&f.margin, "margin", -1, "page margin in points (0-144)")
	addCommonFlags(fs, &f.common)
	addRenderFlags(fs, &f.render)

	if err := fs.Parse(args); err != nil {
		return nil, nil, wrapParseError(err)
	}
	return f, fs.Args(), nil
}

// parseEnginesFlags parses engines command flags.
func parseEnginesFlags(args []string, w io.Writer) (*enginesFlags, []string, error) {
	f := &enginesFlags{}
	fs := newFlagSet("engines", w, printEnginesUsage)
	addCommonFlags(fs, &f.common)

	if err := fs.Parse(args); err != nil {
		return nil, nil, wrapParseError(err)
	}
	return f, fs.Args(), nil
}

// parseConfigFlags parses config command flags.
func parseConfigFlags(args []string, w io.Writer) (*configFlags, []string, error) {
	f := &configFlags{}
	fs := newFlagSet("config", w, printConfigUsage)
	fs.BoolVar(&f.defaults, "defaults", false, "print built-in defaults, ignoring files and env")
	addCommonFlags(fs, &f.common)

	if err := fs.Parse(args); err != nil {
		return nil, nil, wrapParseError(err)
	}
	return f, fs.Args(), nil
}

// wrapParseError tags flag errors as usage errors. A help request passes
// through untouched.
func wrapParseError(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUsage, err)
}

// isHelpRequest reports whether err came from -h or --help.
func isHelpRequest(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}
