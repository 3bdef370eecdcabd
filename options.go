package mdpreview

import (
	"log/slog"
	"time"

	"github.com/alnah/go-mdpreview/internal/engine"
	"github.com/alnah/go-mdpreview/internal/logging"
	"github.com/alnah/go-mdpreview/internal/paginate"
	"github.com/alnah/go-mdpreview/internal/schedule"
)

// Default session settings.
const (
	DefaultLayoutWait  = time.Second
	DefaultSettleDelay = 500 * time.Millisecond
)

// Option configures a Session.
type Option func(*Session)

// sessionConfig holds internal configuration for Session.
type sessionConfig struct {
	debounce     time.Duration
	render       RenderConfig
	logger       *slog.Logger
	surface      Surface
	rasterizer   Rasterizer
	observer     Observer
	coalesce     bool
	rawHTML      bool
	pollInterval time.Duration
	pollAttempts int
	geometry     paginate.Geometry
	layoutWait   time.Duration
	settle       time.Duration
	sourceDir    string
	customCSS    string
	assetPath    string
	source       string
	now          func() time.Time

	// test hook
	registry *engine.Registry
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		debounce:     schedule.DefaultDelay,
		render:       DefaultRenderConfig,
		logger:       logging.Discard(),
		rawHTML:      true,
		pollInterval: engine.DefaultPollInterval,
		pollAttempts: engine.DefaultPollAttempts,
		geometry:     paginate.A4,
		layoutWait:   DefaultLayoutWait,
		settle:       DefaultSettleDelay,
		now:          time.Now,
	}
}

// WithDebounce sets the quiet period between the last edit and a render.
// Zero renders on every edit.
func WithDebounce(d time.Duration) Option {
	if d < 0 {
		panic("mdpreview: WithDebounce delay must not be negative")
	}
	return func(s *Session) {
		s.cfg.debounce = d
	}
}

// WithMarkupEngine selects the initial markup engine.
func WithMarkupEngine(id engine.ID) Option {
	if id != MarkupGoldmark && id != MarkupGoMarkdown {
		panic("mdpreview: WithMarkupEngine unknown engine " + string(id))
	}
	return func(s *Session) {
		s.cfg.render.Markup = id
	}
}

// WithMathEngine selects the initial math engine.
func WithMathEngine(id engine.ID) Option {
	if id != MathKaTeX && id != MathMathJax && id != MathNone {
		panic("mdpreview: WithMathEngine unknown engine " + string(id))
	}
	return func(s *Session) {
		s.cfg.render.Math = id
	}
}

// WithLogger sets the logger. Sessions log nothing by default.
func WithLogger(l *slog.Logger) Option {
	if l == nil {
		panic("mdpreview: WithLogger logger must not be nil")
	}
	return func(s *Session) {
		s.cfg.logger = l
	}
}

// WithSurface sets where frames are shown.
func WithSurface(sf Surface) Option {
	return func(s *Session) {
		s.cfg.surface = sf
	}
}

// WithRasterizer sets the rasterizer used by document export. Without one,
// the session creates a headless Chrome rasterizer on first export.
func WithRasterizer(r Rasterizer) Option {
	return func(s *Session) {
		s.cfg.rasterizer = r
	}
}

// WithObserver registers a hook called on every state transition.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		s.cfg.observer = o
	}
}

// WithCoalesceDropped re-runs a cycle once the in-flight queue job ends
// when a trigger was dropped meanwhile. Off by default.
func WithCoalesceDropped(on bool) Option {
	return func(s *Session) {
		s.cfg.coalesce = on
	}
}

// WithRawHTML controls whether raw HTML in the source reaches the display.
// Off drops it in both markup engines and keeps it escaped through the
// offscreen math pass. On by default.
func WithRawHTML(on bool) Option {
	return func(s *Session) {
		s.cfg.rawHTML = on
	}
}

// WithReadiness sets how Start polls for the minimum engine set.
func WithReadiness(interval time.Duration, attempts int) Option {
	if interval <= 0 {
		panic("mdpreview: WithReadiness interval must be positive")
	}
	if attempts <= 0 {
		panic("mdpreview: WithReadiness attempts must be positive")
	}
	return func(s *Session) {
		s.cfg.pollInterval = interval
		s.cfg.pollAttempts = attempts
	}
}

// WithPageGeometry sets the export page size and margin, in points.
func WithPageGeometry(g paginate.Geometry) Option {
	if err := g.Validate(); err != nil {
		panic("mdpreview: WithPageGeometry " + err.Error())
	}
	return func(s *Session) {
		s.cfg.geometry = g
	}
}

// WithLayoutWait bounds how long scroll restoration waits for the surface
// to report the new layout.
func WithLayoutWait(d time.Duration) Option {
	if d <= 0 {
		panic("mdpreview: WithLayoutWait duration must be positive")
	}
	return func(s *Session) {
		s.cfg.layoutWait = d
	}
}

// WithSettleDelay sets the pause between loading the print page and
// capturing it.
func WithSettleDelay(d time.Duration) Option {
	if d < 0 {
		panic("mdpreview: WithSettleDelay duration must not be negative")
	}
	return func(s *Session) {
		s.cfg.settle = d
	}
}

// WithSourceDir resolves relative image and link paths of exported
// documents against dir.
func WithSourceDir(dir string) Option {
	return func(s *Session) {
		s.cfg.sourceDir = dir
	}
}

// WithCustomCSS appends css to the export stylesheet.
func WithCustomCSS(css string) Option {
	return func(s *Session) {
		s.cfg.customCSS = css
	}
}

// WithAssetPath overrides built-in styles and templates with the files
// found under dir.
func WithAssetPath(dir string) Option {
	return func(s *Session) {
		s.cfg.assetPath = dir
	}
}

// WithSource sets the text the first render shows.
func WithSource(text string) Option {
	return func(s *Session) {
		s.cfg.source = text
	}
}

// withRegistry replaces the built-in engines.
func withRegistry(r *engine.Registry) Option {
	return func(s *Session) {
		s.cfg.registry = r
	}
}

// WithClock sets the clock stamped on snapshots and export file names.
func WithClock(now func() time.Time) Option {
	if now == nil {
		panic("mdpreview: WithClock clock must not be nil")
	}
	return func(s *Session) {
		s.cfg.now = now
	}
}
