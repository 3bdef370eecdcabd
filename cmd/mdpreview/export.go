package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	mdpreview "github.com/alnah/go-mdpreview"
	"github.com/alnah/go-mdpreview/internal/fileutil"
)

// runExport renders one file and writes it in the requested format.
func runExport(ctx context.Context, args []string, env *Environment) error {
	f, positional, err := parseExportFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	path, err := oneFile(positional)
	if err != nil {
		return err
	}
	format, err := mdpreview.ParseFormat(f.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(f.common.config, env)
	if err != nil {
		return err
	}
	if err := applyRenderFlags(f.render, cfg); err != nil {
		return err
	}
	setIf(&cfg.Export.Timeout, f.timeout)
	setIf(&cfg.Export.PageSize, f.pageSize)
	if f.margin >= 0 {
		cfg.Export.Margin = f.margin
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := newLogger(cfg, f.common, env.Stderr)
	if err != nil {
		return err
	}

	source, err := readSource(path)
	if err != nil {
		return err
	}

	timeout := cfg.LoadTimeout()
	var rasterizer mdpreview.Rasterizer
	if format == mdpreview.FormatPDF {
		rasterizer = env.NewRasterizer(timeout)
		defer rasterizer.Close()
	}

	exportCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out *mdpreview.Export
	_, err = renderOnce(exportCtx, cfg, logger, source, func(s *mdpreview.Session) error {
		var err error
		out, err = s.Export(exportCtx, format)
		return err
	},
		mdpreview.WithSourceDir(sourceDir(path)),
		mdpreview.WithRasterizer(rasterizer),
		mdpreview.WithClock(env.Now),
	)
	if err != nil {
		return err
	}

	dest := resolveOutputPath(f.output, out.Filename)
	if err := fileutil.WriteFileAtomic(dest, out.Data); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	if !f.common.quiet {
		fmt.Fprintf(env.Stdout, "%s -> %s\n", path, dest)
	}
	logger.Debug("exported", "file", path, "output", dest, "bytes", len(out.Data))
	return nil
}

// resolveOutputPath picks where an export lands. An existing directory
// receives the generated name, any other value is used as is.
func resolveOutputPath(flagOutput, generated string) string {
	if flagOutput == "" {
		return generated
	}
	if info, err := os.Stat(flagOutput); err == nil && info.IsDir() {
		return filepath.Join(flagOutput, generated)
	}
	return flagOutput
}
