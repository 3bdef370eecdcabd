package mdpreview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/alnah/go-mdpreview/internal/assets"
	"github.com/alnah/go-mdpreview/internal/diagram"
	"github.com/alnah/go-mdpreview/internal/engine"
	"github.com/alnah/go-mdpreview/internal/markup"
	"github.com/alnah/go-mdpreview/internal/mathtex"
	"github.com/alnah/go-mdpreview/internal/schedule"
)

// Session is one live preview: a source text, the engines rendering it, the
// display and the last committed output. Create with NewSession, call Start
// once the surface is attached, and Close when done.
type Session struct {
	id       string
	cfg      sessionConfig
	registry *engine.Registry
	layouts  *layoutTracker
	pipe     *pipeline
	exp      *exporter
	debounce *schedule.Debouncer // nil renders on every edit
	mathjax  *mathtex.MathJax    // owned queue worker, nil with a custom registry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	source  string
	render  RenderConfig
	nextID  uint64
	ready   bool
	closed  bool
	dropped bool // a trigger was dropped while the queue was busy

	rastMu     sync.Mutex
	rasterizer Rasterizer
	ownsRaster bool
}

// NewSession creates a session with the built-in engines.
// Returns an error when the asset directory is invalid.
func NewSession(opts ...Option) (*Session, error) {
	s := &Session{id: uuid.NewString(), cfg: defaultSessionConfig()}
	for _, opt := range opts {
		opt(s)
	}

	loader, err := assets.NewAssetResolver(s.cfg.assetPath)
	if err != nil {
		return nil, fmt.Errorf("loading assets: %w", err)
	}

	s.registry = s.cfg.registry
	if s.registry == nil {
		s.registry = s.defaultRegistry()
	}
	s.render = s.cfg.render
	s.source = s.cfg.source
	s.rasterizer = s.cfg.rasterizer
	s.layouts = newLayoutTracker()
	s.pipe = newPipeline(s.registry, s.layouts, s.cfg)
	s.exp = &exporter{
		loader:     loader,
		rasterizer: s.rasterizerForExport,
		geometry:   s.cfg.geometry,
		settle:     s.cfg.settle,
		sourceDir:  s.cfg.sourceDir,
		customCSS:  s.cfg.customCSS,
		now:        s.cfg.now,
	}
	if s.cfg.debounce > 0 {
		s.debounce = schedule.NewDebouncer(s.cfg.debounce, s.trigger)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

func (s *Session) defaultRegistry() *engine.Registry {
	r := engine.NewRegistry()
	r.AddMarkup(markup.NewGoldmark(s.cfg.rawHTML))
	r.AddMarkup(markup.NewGoMarkdown(s.cfg.rawHTML))

	s.mathjax = mathtex.NewMathJax(s.cfg.rawHTML)
	// Both implement a math capability, AddMath cannot fail here.
	_ = r.AddMath(mathtex.NewKaTeX())
	_ = r.AddMath(s.mathjax)

	r.SetDiagrams(diagram.NewMermaid())
	return r
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Start waits for the minimum engine set and renders the current source.
// When the engines never become ready the surface is told so and every
// later trigger is a no-op.
func (s *Session) Start(ctx context.Context) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	err := s.registry.WaitReady(ctx, s.cfg.pollInterval, s.cfg.pollAttempts)
	if err != nil {
		if errors.Is(err, ErrEngineUnavailable) {
			s.cfg.logger.Error("engines not ready", "session", s.id, "error", err)
			s.notify(ctx, NoticeError, "Preview engines failed to load. Reload the page to retry.")
		}
		return err
	}

	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	cfg := s.Config()
	s.cfg.logger.Info("session ready", "session", s.id, "markup", cfg.Markup, "math", cfg.Math)

	// A cycle ending in Error has already shown its panel.
	if res, err := s.RenderNow(ctx); err != nil && (res == nil || res.State != Error) {
		return err
	}
	return nil
}

// Edit replaces the source text and schedules a render.
func (s *Session) Edit(text string) {
	s.mu.Lock()
	s.source = text
	s.mu.Unlock()

	if s.debounce != nil {
		s.debounce.Call()
		return
	}
	s.trigger()
}

// Source returns the current source text.
func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Config returns the current engine selection.
func (s *Session) Config() RenderConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.render
}

// SetMarkupEngine switches the markup engine. A real change renders at
// once; selecting the current engine does nothing.
func (s *Session) SetMarkupEngine(id engine.ID) error {
	if _, err := s.registry.Markup(id); err != nil {
		return err
	}
	return s.switchEngine(func(c *RenderConfig) bool {
		if c.Markup == id {
			return false
		}
		c.Markup = id
		return true
	})
}

// SetMathEngine switches the math engine, as SetMarkupEngine does.
func (s *Session) SetMathEngine(id engine.ID) error {
	if !s.registry.HasMath(id) {
		return fmt.Errorf("%w: math %q", ErrUnknownEngine, id)
	}
	return s.switchEngine(func(c *RenderConfig) bool {
		if c.Math == id {
			return false
		}
		c.Math = id
		return true
	})
}

func (s *Session) switchEngine(change func(*RenderConfig) bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	changed := change(&s.render)
	cfg := s.render
	s.mu.Unlock()

	if !changed {
		return nil
	}
	s.cfg.logger.Info("engine switched", "session", s.id, "markup", cfg.Markup, "math", cfg.Math)
	if s.debounce != nil {
		s.debounce.Cancel()
	}
	s.trigger()
	return nil
}

// RenderNow runs a cycle synchronously, bypassing the debounce.
func (s *Session) RenderNow(ctx context.Context) (*CycleResult, error) {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if !ready {
		return nil, fmt.Errorf("%w: session not started", ErrEngineUnavailable)
	}
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.wg.Done()

	if s.debounce != nil {
		s.debounce.Cancel()
	}
	return s.runCycle(ctx)
}

// ReportLayout records the preview pane geometry measured by the surface.
// Surfaces report after showing every frame and after user scrolls. cycle
// is the CycleID of the frame on screen when v was measured, 0 before the
// first frame.
func (s *Session) ReportLayout(cycle uint64, v Viewport) {
	s.layouts.report(cycle, v)
}

// Committed returns the last committed snapshot.
func (s *Session) Committed() (Snapshot, bool) {
	snap := s.pipe.lastCommitted()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}

// Engines returns the readiness of every engine of the session.
func (s *Session) Engines() []EngineStatus {
	table := s.registry.Table()
	out := make([]EngineStatus, len(table))
	for i, st := range table {
		out[i] = EngineStatus{Category: string(st.Category), ID: st.ID, Ready: st.Ready}
	}
	return out
}

// Export writes the last committed output in format f.
func (s *Session) Export(ctx context.Context, f Format) (*Export, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.wg.Done()

	out, err := s.exp.export(ctx, s.pipe.lastCommitted(), f)
	if err != nil {
		s.cfg.logger.Error("export failed", "session", s.id, "format", f, "error", err)
		return nil, err
	}
	s.cfg.logger.Info("exported", "session", s.id, "file", out.Filename, "bytes", len(out.Data))
	return out, nil
}

// Close stops pending renders, waits for running cycles and releases the
// engines and the browser the session owns.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.debounce != nil {
		s.debounce.Cancel()
	}
	s.cancel()
	s.wg.Wait()

	if s.mathjax != nil {
		s.mathjax.Close()
	}

	s.rastMu.Lock()
	defer s.rastMu.Unlock()
	if s.ownsRaster && s.rasterizer != nil {
		return s.rasterizer.Close()
	}
	return nil
}

// trigger starts a cycle in the background. It does nothing before Start
// succeeded or after Close.
func (s *Session) trigger() {
	s.mu.Lock()
	if !s.ready || s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		_, _ = s.runCycle(s.ctx)
	}()
}

// runCycle snapshots the session state and runs it through the pipeline.
func (s *Session) runCycle(ctx context.Context) (*CycleResult, error) {
	v := s.layouts.latest()

	s.mu.Lock()
	s.nextID++
	c := Cycle{
		ID:     s.nextID,
		Source: s.source,
		Config: s.render,
		Scroll: CaptureScroll(v),
	}
	s.mu.Unlock()

	res, err := s.pipe.run(ctx, c)
	switch {
	case res.Dropped:
		if s.cfg.coalesce {
			s.mu.Lock()
			s.dropped = true
			s.mu.Unlock()
			// The job may have ended before the flag was set.
			if !s.pipe.busy() && s.takeDropped() {
				s.trigger()
			}
		}
	case s.takeDropped():
		s.cfg.logger.Debug("re-running dropped trigger", "session", s.id, "after", c.ID)
		s.trigger()
	}
	// Error frames speak for themselves; other failures need a notice.
	if err != nil && res.State != Error && !errors.Is(err, context.Canceled) {
		s.notify(ctx, NoticeError, err.Error())
	}
	return res, err
}

func (s *Session) takeDropped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dropped
	s.dropped = false
	return d
}

func (s *Session) notify(ctx context.Context, level NoticeLevel, msg string) {
	if s.cfg.surface == nil {
		return
	}
	if err := s.cfg.surface.Notify(ctx, Notice{Level: level, Message: msg}); err != nil {
		s.cfg.logger.Warn("surface rejected notice", "session", s.id, "error", err)
	}
}

// enter registers a foreground call with the wait group. The caller runs
// wg.Done when it returns.
func (s *Session) enter() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.wg.Add(1)
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// rasterizerForExport returns the configured rasterizer, launching a
// headless Chrome one on first use.
func (s *Session) rasterizerForExport() Rasterizer {
	s.rastMu.Lock()
	defer s.rastMu.Unlock()
	if s.rasterizer == nil {
		s.rasterizer = NewRodRasterizer(0)
		s.ownsRaster = true
	}
	return s.rasterizer
}

// EngineStatus is one row of the readiness table.
type EngineStatus struct {
	Category string
	ID       engine.ID
	Ready    bool
}
