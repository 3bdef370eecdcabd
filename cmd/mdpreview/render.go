package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	mdpreview "github.com/alnah/go-mdpreview"
	"github.com/alnah/go-mdpreview/internal/config"
	"github.com/alnah/go-mdpreview/internal/fileutil"
)

// runRender renders one file and prints the committed HTML.
func runRender(ctx context.Context, args []string, env *Environment) error {
	f, positional, err := parseRenderFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	path, err := oneFile(positional)
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

	snap, err := renderOnce(ctx, cfg, logger, source, nil)
	if err != nil {
		return err
	}

	if f.output == "" {
		_, err = io.WriteString(env.Stdout, snap.HTML)
		return err
	}
	if err := fileutil.WriteFileAtomic(f.output, []byte(snap.HTML)); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	logger.Info("rendered", "file", path, "output", f.output, "bytes", len(snap.HTML))
	return nil
}

// renderOnce opens a session without debounce, waits for the first
// cycle and returns its snapshot. then, when set, runs on the session
// before it closes.
func renderOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger, source string, then func(*mdpreview.Session) error, extra ...mdpreview.Option) (mdpreview.Snapshot, error) {
	var (
		mu      sync.Mutex
		lastErr error
	)
	observe := func(t mdpreview.Transition) {
		if t.To == mdpreview.Error {
			mu.Lock()
			lastErr = t.Err
			mu.Unlock()
		}
	}

	opts := append(sessionOptions(cfg),
		mdpreview.WithDebounce(0),
		mdpreview.WithSource(source),
		mdpreview.WithLogger(logger),
		mdpreview.WithObserver(observe),
	)
	opts = append(opts, extra...)

	sess, err := mdpreview.NewSession(opts...)
	if err != nil {
		return mdpreview.Snapshot{}, err
	}
	defer sess.Close()

	if err := sess.Start(ctx); err != nil {
		return mdpreview.Snapshot{}, err
	}
	snap, ok := sess.Committed()
	if !ok {
		mu.Lock()
		defer mu.Unlock()
		if lastErr != nil {
			return mdpreview.Snapshot{}, fmt.Errorf("%w: %w", ErrRenderFail, lastErr)
		}
		return mdpreview.Snapshot{}, ErrRenderFail
	}
	if then != nil {
		if err := then(sess); err != nil {
			return snap, err
		}
	}
	return snap, nil
}
