package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alnah/go-mdpreview/internal/config"
)

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	// Tier 1 - Essential
	ConfigPath string // MDPREVIEW_CONFIG: config file name or path
	Addr       string // MDPREVIEW_ADDR: listen address
	Markup     string // MDPREVIEW_MARKUP: markup engine
	Math       string // MDPREVIEW_MATH: math engine

	// Tier 2 - Timing
	Debounce string // MDPREVIEW_DEBOUNCE: quiet period before a render
	Timeout  string // MDPREVIEW_TIMEOUT: export page load timeout

	// Tier 3 - Extended
	PageSize  string // MDPREVIEW_PAGE_SIZE: a4, letter, legal
	Workers   int    // MDPREVIEW_WORKERS: browsers shared by exports
	LogLevel  string // MDPREVIEW_LOG_LEVEL: debug, info, warn, error
	LogFormat string // MDPREVIEW_LOG_FORMAT: text, json
	AssetPath string // MDPREVIEW_ASSET_PATH: custom asset directory
}

// knownEnvVars lists valid MDPREVIEW_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	// Tier 1 - Essential
	"MDPREVIEW_CONFIG": true,
	"MDPREVIEW_ADDR":   true,
	"MDPREVIEW_MARKUP": true,
	"MDPREVIEW_MATH":   true,
	// Tier 2 - Timing
	"MDPREVIEW_DEBOUNCE": true,
	"MDPREVIEW_TIMEOUT":  true,
	// Tier 3 - Extended
	"MDPREVIEW_PAGE_SIZE":  true,
	"MDPREVIEW_WORKERS":    true,
	"MDPREVIEW_LOG_LEVEL":  true,
	"MDPREVIEW_LOG_FORMAT": true,
	"MDPREVIEW_ASSET_PATH": true,
	// Read by doctor
	"MDPREVIEW_CONTAINER": true,
}

// loadEnvConfig reads configuration from environment variables.
// Returns a struct with all recognized MDPREVIEW_* values.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath: os.Getenv("MDPREVIEW_CONFIG"),
		Addr:       os.Getenv("MDPREVIEW_ADDR"),
		Markup:     os.Getenv("MDPREVIEW_MARKUP"),
		Math:       os.Getenv("MDPREVIEW_MATH"),
		Debounce:   os.Getenv("MDPREVIEW_DEBOUNCE"),
		Timeout:    os.Getenv("MDPREVIEW_TIMEOUT"),
		PageSize:   os.Getenv("MDPREVIEW_PAGE_SIZE"),
		LogLevel:   os.Getenv("MDPREVIEW_LOG_LEVEL"),
		LogFormat:  os.Getenv("MDPREVIEW_LOG_FORMAT"),
		AssetPath:  os.Getenv("MDPREVIEW_ASSET_PATH"),
	}

	// Parse int for workers
	if workers := os.Getenv("MDPREVIEW_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			cfg.Workers = w
		}
	}

	return cfg
}

// warnUnknownEnvVars logs warnings for unrecognized MDPREVIEW_* variables.
// Helps catch typos like MDPREVIEW_MARKDOWN instead of MDPREVIEW_MARKUP.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "MDPREVIEW_") {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies environment variable values to config.
// Set variables replace file values, unset ones leave them alone.
// This ensures: CLI flags > env vars > config file > defaults
// (CLI flags are applied later by each command)
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	setIf(&cfg.Server.Addr, env.Addr)
	setIf(&cfg.Render.Markup, env.Markup)
	setIf(&cfg.Render.Math, env.Math)
	setIf(&cfg.Render.Debounce, env.Debounce)
	setIf(&cfg.Export.Timeout, env.Timeout)
	setIf(&cfg.Export.PageSize, env.PageSize)
	setIf(&cfg.Log.Level, env.LogLevel)
	setIf(&cfg.Log.Format, env.LogFormat)
	setIf(&cfg.Assets.BasePath, env.AssetPath)
	if env.Workers > 0 {
		cfg.Export.Workers = env.Workers
	}
}

// setIf overwrites *dst when v is not empty.
func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
