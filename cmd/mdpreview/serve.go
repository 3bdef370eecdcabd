package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	mdpreview "github.com/alnah/go-mdpreview"
	"github.com/alnah/go-mdpreview/internal/server"
	"github.com/alnah/go-mdpreview/internal/watch"
)

// runServe serves the preview until ctx is canceled. A file argument makes
// the page read-only and reloads it on every save.
func runServe(ctx context.Context, args []string, env *Environment) error {
	f, positional, err := parseServeFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	if len(positional) > 1 {
		return fmt.Errorf("%w: serve takes at most one file, got %d", ErrUsage, len(positional))
	}

	cfg, err := loadConfig(f.common.config, env)
	if err != nil {
		return err
	}
	if err := applyRenderFlags(f.render, cfg); err != nil {
		return err
	}
	setIf(&cfg.Server.Addr, f.addr)
	setIf(&cfg.Render.Debounce, f.debounce)
	setIf(&cfg.Log.Format, f.logFormat)
	if f.workers > 0 {
		cfg.Export.Workers = f.workers
	}
	if len(f.origins) > 0 {
		cfg.Server.AllowedOrigins = f.origins
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg, f.common, env.Stderr)
	if err != nil {
		return err
	}

	var path, source string
	title := ""
	if len(positional) == 1 {
		path = positional[0]
		if source, err = readSource(path); err != nil {
			return err
		}
		title = filepath.Base(path)
	}

	poolSize := mdpreview.ResolvePoolSize(cfg.Export.Workers)
	timeout := cfg.LoadTimeout()
	pool := mdpreview.NewRasterizerPool(poolSize, func() mdpreview.Rasterizer {
		return env.NewRasterizer(timeout)
	})
	defer pool.Close()
	logger.Debug("rasterizer pool", "size", poolSize)

	opts := sessionOptions(cfg)
	if path != "" {
		opts = append(opts, mdpreview.WithSourceDir(sourceDir(path)))
	}
	srv, err := server.New(server.Config{
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MaxMessageBytes: cfg.Server.MaxMessageBytes,
		Title:           title,
		ReadOnly:        path != "",
		CustomCSS:       cfg.Render.CustomCSS,
		AssetPath:       cfg.Assets.BasePath,
		SessionOptions:  opts,
		Rasterizer:      pool,
		Logger:          logger,
	}, source)
	if err != nil {
		return err
	}

	ln, err := server.Listen(cfg.Server.Addr)
	if err != nil {
		if errors.Is(err, server.ErrAddrInUse) {
			return &addrInUseError{addr: cfg.Server.Addr, err: err}
		}
		return err
	}

	if path != "" {
		w, err := watch.New(path, source, srv.SetSource, watch.WithLogger(logger))
		if err != nil {
			_ = ln.Close()
			return err
		}
		defer w.Close()
	}

	logger.Info("serving", "url", "http://"+ln.Addr().String(), "file", path)
	if env.OnListen != nil {
		env.OnListen(ln.Addr())
	}
	return srv.Serve(ctx, ln)
}
