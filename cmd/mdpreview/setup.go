package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	mdpreview "github.com/alnah/go-mdpreview"
	"github.com/alnah/go-mdpreview/internal/config"
	"github.com/alnah/go-mdpreview/internal/engine"
	"github.com/alnah/go-mdpreview/internal/fileutil"
	"github.com/alnah/go-mdpreview/internal/logging"
)

// Accepted values, listed in hints.
var (
	engineChoices = []string{"goldmark", "gomarkdown", "katex", "mathjax", "none"}
	formatChoices = []string{"md", "txt", "pdf"}
)

// loadConfig resolves defaults, then the file named by --config or
// MDPREVIEW_CONFIG, then the other MDPREVIEW_* variables.
func loadConfig(flagConfig string, env *Environment) (*config.Config, error) {
	envCfg := loadEnvConfig()
	warnUnknownEnvVars(env.Stderr)

	name := flagConfig
	if name == "" {
		name = envCfg.ConfigPath
	}

	cfg := config.DefaultConfig()
	if name != "" {
		loaded, err := config.LoadConfig(name)
		if err != nil {
			if errors.Is(err, config.ErrConfigNotFound) && !fileutil.IsFilePath(name) {
				return nil, &configNotFoundError{searched: config.SearchPaths(name), err: err}
			}
			return nil, err
		}
		cfg = loaded
	}
	applyEnvConfig(envCfg, cfg)
	return cfg, nil
}

// applyRenderFlags merges engine and styling flags into cfg.
func applyRenderFlags(f renderFlags, cfg *config.Config) error {
	setIf(&cfg.Render.Markup, f.markup)
	setIf(&cfg.Render.Math, f.math)
	setIf(&cfg.Assets.BasePath, f.assetPath)
	if f.safe {
		cfg.Render.SafeMode = true
	}
	if f.css != "" {
		css, err := fileutil.ReadText(f.css)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrReadSource, err)
		}
		cfg.Render.CustomCSS += css
	}
	return nil
}

// newLogger builds the command logger. --quiet keeps errors only and
// --verbose adds debug records.
func newLogger(cfg *config.Config, common commonFlags, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	switch {
	case common.quiet:
		level = slog.LevelError
	case common.verbose:
		level = slog.LevelDebug
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(w, level, format), nil
}

// sessionOptions turns a validated config into session options.
func sessionOptions(cfg *config.Config) []mdpreview.Option {
	return []mdpreview.Option{
		mdpreview.WithMarkupEngine(engine.ID(strings.ToLower(cfg.Render.Markup))),
		mdpreview.WithMathEngine(engine.ID(strings.ToLower(cfg.Render.Math))),
		mdpreview.WithDebounce(cfg.DebounceDelay()),
		mdpreview.WithCoalesceDropped(cfg.Render.CoalesceDropped),
		mdpreview.WithRawHTML(!cfg.Render.SafeMode),
		mdpreview.WithReadiness(cfg.ReadinessInterval(), cfg.Readiness.Attempts),
		mdpreview.WithPageGeometry(cfg.PageGeometry()),
		mdpreview.WithSettleDelay(cfg.SettleDelay()),
		mdpreview.WithCustomCSS(cfg.Render.CustomCSS),
		mdpreview.WithAssetPath(cfg.Assets.BasePath),
	}
}

// readSource reads the markdown file at path.
func readSource(path string) (string, error) {
	if path == "" {
		return "", ErrNoInput
	}
	text, err := fileutil.ReadText(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReadSource, err)
	}
	return text, nil
}

// sourceDir returns the absolute directory of path, used to resolve
// relative images on export.
func sourceDir(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Dir(path)
	}
	return filepath.Dir(abs)
}

// oneFile returns the single positional argument, or ErrNoInput.
func oneFile(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", ErrNoInput
	case 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("%w: expected one file, got %d", ErrUsage, len(args))
	}
}
