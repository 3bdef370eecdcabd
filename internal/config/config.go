package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-mdpreview/internal/fileutil"
	"github.com/alnah/go-mdpreview/internal/paginate"
	"github.com/alnah/go-mdpreview/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxEngineLength   = 20
	MaxDurationLength = 20   // "1500ms", "2m30s"
	MaxPageSizeLength = 10   // "letter", "a4", "legal"
	MaxAddrLength     = 255  // host:port
	MaxOriginLength   = 2048 // Browser limit
	MaxPathLength     = 4096
	MaxCSSLength      = 64 << 10
	MaxOrigins        = 32
)

// Ranges for numeric settings.
const (
	MaxReadinessAttempts = 1000
	MaxWorkers           = 8
	MaxMarginPoints      = 144 // two inches
	MinMessageBytes      = 1 << 10
	MaxMessageBytes      = 16 << 20
)

// dirName is the directory searched under os.UserConfigDir.
const dirName = "go-mdpreview"

// Engine names accepted by render.markup and render.math.
var (
	markupEngines = []string{"goldmark", "gomarkdown"}
	mathEngines   = []string{"katex", "mathjax", "none"}
)

// PageSizes maps page names to width and height in points.
var PageSizes = map[string][2]float64{
	"a4":     {595.28, 841.89},
	"letter": {612, 792},
	"legal":  {612, 1008},
}

// Config holds the settings of the CLI and the preview server.
type Config struct {
	Render    RenderConfig    `yaml:"render"`
	Readiness ReadinessConfig `yaml:"readiness"`
	Export    ExportConfig    `yaml:"export"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Assets    AssetsConfig    `yaml:"assets"`
}

// RenderConfig selects engines and paces rendering.
type RenderConfig struct {
	Markup          string `yaml:"markup"`          // "goldmark" or "gomarkdown"
	Math            string `yaml:"math"`            // "katex", "mathjax" or "none"
	Debounce        string `yaml:"debounce"`        // Go duration, "0" renders on every edit
	CoalesceDropped bool   `yaml:"coalesceDropped"` // re-run triggers dropped while the math queue was busy
	SafeMode        bool   `yaml:"safeMode"`        // strip raw HTML from goldmark output
	CustomCSS       string `yaml:"customCSS"`
}

// ReadinessConfig bounds the wait for the minimum engine set.
type ReadinessConfig struct {
	Interval string `yaml:"interval"`
	Attempts int    `yaml:"attempts"`
}

// ExportConfig defines document export settings.
type ExportConfig struct {
	PageSize string  `yaml:"pageSize"` // "a4", "letter", "legal"
	Margin   float64 `yaml:"margin"`   // points
	Settle   string  `yaml:"settle"`   // pause before capture
	Timeout  string  `yaml:"timeout"`  // page load timeout
	Workers  int     `yaml:"workers"`  // browsers shared by sessions, 0 = auto
}

// ServerConfig defines the preview server.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	AllowedOrigins  []string `yaml:"allowedOrigins"` // empty = same host only
	MaxMessageBytes int64    `yaml:"maxMessageBytes"`
}

// LogConfig defines log output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// AssetsConfig defines asset loading options.
type AssetsConfig struct {
	BasePath string `yaml:"basePath"` // Empty = use embedded assets
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Render: RenderConfig{
			Markup:   "goldmark",
			Math:     "katex",
			Debounce: "300ms",
		},
		Readiness: ReadinessConfig{Interval: "300ms", Attempts: 100},
		Export: ExportConfig{
			PageSize: "a4",
			Margin:   40,
			Settle:   "500ms",
			Timeout:  "30s",
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			MaxMessageBytes: 1 << 20,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Validate checks enums, durations, ranges and field lengths.
// Called automatically by LoadConfig, but available for callers
// who construct Config manually.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := validateDuration("readiness.interval", c.Readiness.Interval, false); err != nil {
		return err
	}
	if c.Readiness.Attempts < 1 || c.Readiness.Attempts > MaxReadinessAttempts {
		return fmt.Errorf("%w: readiness.attempts %d (must be 1-%d)", ErrInvalidValue, c.Readiness.Attempts, MaxReadinessAttempts)
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := validateOneOf("log.level", c.Log.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if err := validateOneOf("log.format", c.Log.Format, "text", "json"); err != nil {
		return err
	}
	return validateFieldLength("assets.basePath", c.Assets.BasePath, MaxPathLength)
}

func (c *Config) validateRender() error {
	r := c.Render
	if err := validateFieldLength("render.markup", r.Markup, MaxEngineLength); err != nil {
		return err
	}
	if err := validateOneOf("render.markup", r.Markup, markupEngines...); err != nil {
		return err
	}
	if err := validateFieldLength("render.math", r.Math, MaxEngineLength); err != nil {
		return err
	}
	if err := validateOneOf("render.math", r.Math, mathEngines...); err != nil {
		return err
	}
	if err := validateDuration("render.debounce", r.Debounce, true); err != nil {
		return err
	}
	return validateFieldLength("render.customCSS", r.CustomCSS, MaxCSSLength)
}

func (c *Config) validateExport() error {
	e := c.Export
	if err := validateFieldLength("export.pageSize", e.PageSize, MaxPageSizeLength); err != nil {
		return err
	}
	if _, ok := PageSizes[strings.ToLower(e.PageSize)]; !ok {
		return fmt.Errorf("%w: export.pageSize %q (must be a4, letter, or legal)", ErrInvalidValue, e.PageSize)
	}
	if e.Margin < 0 || e.Margin > MaxMarginPoints {
		return fmt.Errorf("%w: export.margin %v (must be 0-%d points)", ErrInvalidValue, e.Margin, MaxMarginPoints)
	}
	if err := validateDuration("export.settle", e.Settle, true); err != nil {
		return err
	}
	if err := validateDuration("export.timeout", e.Timeout, false); err != nil {
		return err
	}
	if e.Workers < 0 || e.Workers > MaxWorkers {
		return fmt.Errorf("%w: export.workers %d (must be 0-%d)", ErrInvalidValue, e.Workers, MaxWorkers)
	}
	return nil
}

func (c *Config) validateServer() error {
	s := c.Server
	if err := validateFieldLength("server.addr", s.Addr, MaxAddrLength); err != nil {
		return err
	}
	if s.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalidValue)
	}
	if len(s.AllowedOrigins) > MaxOrigins {
		return fmt.Errorf("%w: server.allowedOrigins has %d entries (max %d)", ErrInvalidValue, len(s.AllowedOrigins), MaxOrigins)
	}
	for i, o := range s.AllowedOrigins {
		if err := validateFieldLength(fmt.Sprintf("server.allowedOrigins[%d]", i), o, MaxOriginLength); err != nil {
			return err
		}
	}
	if s.MaxMessageBytes < MinMessageBytes || s.MaxMessageBytes > MaxMessageBytes {
		return fmt.Errorf("%w: server.maxMessageBytes %d (must be %d-%d)", ErrInvalidValue, s.MaxMessageBytes, MinMessageBytes, MaxMessageBytes)
	}
	return nil
}

// DebounceDelay returns render.debounce. Call after Validate.
func (c *Config) DebounceDelay() time.Duration {
	return mustDuration(c.Render.Debounce)
}

// ReadinessInterval returns readiness.interval. Call after Validate.
func (c *Config) ReadinessInterval() time.Duration {
	return mustDuration(c.Readiness.Interval)
}

// SettleDelay returns export.settle. Call after Validate.
func (c *Config) SettleDelay() time.Duration {
	return mustDuration(c.Export.Settle)
}

// LoadTimeout returns export.timeout. Call after Validate.
func (c *Config) LoadTimeout() time.Duration {
	return mustDuration(c.Export.Timeout)
}

// PageGeometry returns the export page in points. Call after Validate.
func (c *Config) PageGeometry() paginate.Geometry {
	size := PageSizes[strings.ToLower(c.Export.PageSize)]
	return paginate.Geometry{PageWidth: size[0], PageHeight: size[1], Margin: c.Export.Margin}
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

func validateOneOf(fieldName, value string, allowed ...string) error {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %q (must be one of %s)", ErrInvalidValue, fieldName, value, strings.Join(allowed, ", "))
}

// validateDuration parses value as a Go duration. Zero is accepted only
// when allowZero is set; negative durations never are.
func validateDuration(fieldName, value string, allowZero bool) error {
	if err := validateFieldLength(fieldName, value, MaxDurationLength); err != nil {
		return err
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidValue, fieldName, value, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return fmt.Errorf("%w: %s %q must be positive", ErrInvalidValue, fieldName, value)
	}
	return nil
}

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Keys absent from the file keep their DefaultConfig value.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SearchPaths lists where a config name is looked up, in order:
// the current directory, then ~/.config/go-mdpreview/, each with .yaml
// before .yml.
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2)
	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(userConfigDir, dirName, name+ext))
		}
	}
	return paths
}

// resolveConfigPath returns the first existing entry of SearchPaths.
func resolveConfigPath(name string) (string, error) {
	paths := SearchPaths(name)
	for _, p := range paths {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(paths, ", "))
}
